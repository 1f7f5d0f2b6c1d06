package api

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/api/shared"
	"github.com/phrazzld/mastery-api/internal/catalog"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/platform/logger"
	"github.com/phrazzld/mastery-api/internal/redact"
	"github.com/phrazzld/mastery-api/internal/service/attempt"
	"github.com/phrazzld/mastery-api/internal/service/commitment"
	"github.com/phrazzld/mastery-api/internal/store"
)

// seedLength is the number of random bytes in a problem seed.
const seedLength = 8

// ExerciseHandler handles exercise and attempt HTTP requests.
type ExerciseHandler struct {
	catalog        *catalog.Snapshot
	states         store.UserExerciseStore
	commitments    commitment.Service
	attemptService attempt.Service
	logger         *slog.Logger
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(
	cat *catalog.Snapshot,
	states store.UserExerciseStore,
	commitments commitment.Service,
	attemptService attempt.Service,
	logger *slog.Logger,
) *ExerciseHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ExerciseHandler")
	}

	return &ExerciseHandler{
		catalog:        cat,
		states:         states,
		commitments:    commitments,
		attemptService: attemptService,
		logger:         logger.With(slog.String("component", "exercise_handler")),
	}
}

// ListExercises handles GET /exercises requests. It returns the live
// catalog in graph order.
func (h *ExerciseHandler) ListExercises(w http.ResponseWriter, r *http.Request) {
	exercises := make([]ExerciseResponse, 0, h.catalog.Len())
	for _, e := range h.catalog.All() {
		if !e.Live {
			continue
		}
		exercises = append(exercises, exerciseToResponse(e))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, exercises)
}

// ServeProblem handles GET /exercises/{exercise}/problem requests. It picks
// the user's next problem number, generates a seed, and issues a signed
// commitment the client must echo back on submission.
func (h *ExerciseHandler) ServeProblem(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, name, ok := h.requireUserAndExercise(w, r, log)
	if !ok {
		return
	}

	exercise, err := h.catalog.Get(name)
	if err != nil || !exercise.Live {
		if err == nil {
			err = fmt.Errorf("%w: %q", catalog.ErrExerciseNotFound, name)
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusNotFound, "Exercise not found", err)
		return
	}

	// The next problem number continues the user's completed sequence.
	problemNumber := 1
	state, err := h.states.Get(r.Context(), userID, name)
	switch {
	case err == nil:
		problemNumber = state.TotalDone + 1
	case errors.Is(err, store.ErrNotFound):
		// first problem for this exercise
	default:
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to serve problem", err)
		return
	}

	seed, err := generateSeed()
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to serve problem", err)
		return
	}
	contentSHA1 := problemContentSHA1(name, problemNumber, seed)

	token, err := h.commitments.Issue(r.Context(), commitment.Problem{
		UserID:        userID,
		Exercise:      name,
		ProblemNumber: problemNumber,
		ContentSHA1:   contentSHA1,
		Seed:          seed,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to serve problem", err)
		return
	}

	log.Debug("served problem",
		slog.String("user_id", userID.String()),
		slog.String("exercise", name),
		slog.Int("problem_number", problemNumber))

	shared.RespondWithJSON(w, r, http.StatusOK, ProblemResponse{
		Exercise:              exercise.Name,
		DisplayName:           exercise.DisplayName,
		ProblemNumber:         problemNumber,
		Seed:                  seed,
		ContentSHA1:           contentSHA1,
		Summative:             exercise.Summative,
		SecondsPerFastProblem: exercise.SecondsPerFastProblem,
		Commitment:            token,
	})
}

// SubmitAttempt handles POST /exercises/{exercise}/attempts requests.
func (h *ExerciseHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, name, ok := h.requireUserAndExercise(w, r, log)
	if !ok {
		return
	}

	var req SubmitAttemptRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID.String()),
			slog.String("exercise", name))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	result, err := h.attemptService.SubmitAttempt(r.Context(), attempt.AttemptSubmission{
		UserID:         userID,
		Exercise:       name,
		ProblemNumber:  req.ProblemNumber,
		AttemptNumber:  req.AttemptNumber,
		Completed:      req.Completed,
		CountHints:     req.CountHints,
		TimeTaken:      time.Duration(req.TimeTakenMs) * time.Millisecond,
		ContentSHA1:    req.ContentSHA1,
		Seed:           req.Seed,
		ProblemType:    req.ProblemType,
		AttemptContent: req.AttemptContent,
		ReviewMode:     req.ReviewMode,
		Suggested:      req.Suggested,
		Commitment:     req.Commitment,
		Admin:          req.Admin,
	})
	if err != nil {
		h.respondAttemptError(w, r, err)
		return
	}

	log.Debug("attempt accepted",
		slog.String("user_id", userID.String()),
		slog.String("exercise", name),
		slog.Int("problem_number", req.ProblemNumber),
		slog.Bool("correct", result.Correct),
		slog.Int("points_earned", result.PointsEarned))

	shared.RespondWithJSON(w, r, http.StatusOK, attemptResultToResponse(result))
}

// ReportHint handles POST /exercises/{exercise}/hints requests.
func (h *ExerciseHandler) ReportHint(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, name, ok := h.requireUserAndExercise(w, r, log)
	if !ok {
		return
	}

	var req ReportHintRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID.String()),
			slog.String("exercise", name))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	result, err := h.attemptService.ReportHint(r.Context(), attempt.HintReport{
		UserID:        userID,
		Exercise:      name,
		ProblemNumber: req.ProblemNumber,
		AttemptNumber: req.AttemptNumber,
		CountHints:    req.CountHints,
		ContentSHA1:   req.ContentSHA1,
		Seed:          req.Seed,
		ProblemType:   req.ProblemType,
		Commitment:    req.Commitment,
		Admin:         req.Admin,
	})
	if err != nil {
		h.respondAttemptError(w, r, err)
		return
	}

	log.Debug("hint recorded",
		slog.String("user_id", userID.String()),
		slog.String("exercise", name),
		slog.Int("problem_number", req.ProblemNumber),
		slog.Int("count_hints", req.CountHints))

	shared.RespondWithJSON(w, r, http.StatusOK, attemptResultToResponse(result))
}

// respondAttemptError maps a rejection to its status code. Quiet rejections
// are routine client noise and stay at DEBUG level.
func (h *ExerciseHandler) respondAttemptError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := MapErrorToStatusCode(err)
	safeMessage := GetSafeErrorMessage(err)

	var opts []shared.ResponseOption
	if domain.IsQuietAttemptError(err) {
		opts = append(opts, shared.WithQuietLogging())
	}

	shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err, opts...)
}

// requireUserAndExercise extracts the user ID from context and the exercise
// name from the URL path, writing an error response when either is missing.
func (h *ExerciseHandler) requireUserAndExercise(
	w http.ResponseWriter,
	r *http.Request,
	log *slog.Logger,
) (uuid.UUID, string, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		log.Warn("user ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, "", false
	}

	name := chi.URLParam(r, "exercise")
	if name == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Exercise name is required")
		return uuid.Nil, "", false
	}

	return userID, name, true
}

// attemptResultToResponse converts an attempt.Result to its response form.
func attemptResultToResponse(result *attempt.Result) AttemptResponse {
	return AttemptResponse{
		Correct:           result.Correct,
		PointsEarned:      result.PointsEarned,
		EarnedProficiency: result.EarnedProficiency,
		ReviewScheduled:   result.ReviewScheduled,
		State:             userExerciseToResponse(result.State),
	}
}

// generateSeed returns a random hex seed for one problem instance.
func generateSeed() (string, error) {
	b := make([]byte, seedLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate problem seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// problemContentSHA1 derives the content hash for a served problem
// instance. Content is rendered client-side from the seed, so the hash binds
// the rendered problem without the server holding its body.
func problemContentSHA1(exercise string, problemNumber int, seed string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s:%d:%s", exercise, problemNumber, seed)))
	return hex.EncodeToString(sum[:])
}
