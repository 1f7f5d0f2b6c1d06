package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/api/shared"
	"github.com/phrazzld/mastery-api/internal/platform/logger"
	"github.com/phrazzld/mastery-api/internal/service/graph"
)

// ReviewQueueResponse is the user's pending review work.
type ReviewQueueResponse struct {
	// Exercises lists review-due exercises, most overdue first.
	Exercises []ReviewItemResponse `json:"exercises"`

	// ReviewsLeft counts the session's remaining reviews, capped at the
	// session quota.
	ReviewsLeft int `json:"reviews_left"`
}

// ReviewItemResponse is one review-due exercise.
type ReviewItemResponse struct {
	Exercise    string `json:"exercise"`
	DisplayName string `json:"display_name"`
	Summative   bool   `json:"summative"`
}

// ReviewHandler handles review queue HTTP requests.
type ReviewHandler struct {
	graphService graph.Service
	logger       *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(graphService graph.Service, logger *slog.Logger) *ReviewHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReviewHandler")
	}

	return &ReviewHandler{
		graphService: graphService,
		logger:       logger.With(slog.String("component", "review_handler")),
	}
}

// GetReviewQueue handles GET /reviews requests. It returns the review-due
// exercises from the user's graph view, most overdue first.
func (h *ReviewHandler) GetReviewQueue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		log.Warn("user ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	view, err := h.graphService.Graph(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to build review queue", err)
		return
	}

	items := make([]ReviewItemResponse, 0, len(view.Review))
	for _, name := range view.Review {
		item := ReviewItemResponse{Exercise: name}
		if state := view.State(name); state != nil {
			item.DisplayName = state.DisplayName
			item.Summative = state.Summative
		}
		items = append(items, item)
	}

	log.Debug("returning review queue",
		slog.String("user_id", userID.String()),
		slog.Int("due", len(items)),
		slog.Int("reviews_left", view.ReviewsLeft))

	shared.RespondWithJSON(w, r, http.StatusOK, ReviewQueueResponse{
		Exercises:   items,
		ReviewsLeft: view.ReviewsLeft,
	})
}
