package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/api/shared"
	"github.com/phrazzld/mastery-api/internal/platform/logger"
	"github.com/phrazzld/mastery-api/internal/service/graph"
)

// GraphHandler handles exercise graph HTTP requests.
type GraphHandler struct {
	graphService graph.Service
	logger       *slog.Logger
}

// NewGraphHandler creates a new GraphHandler.
func NewGraphHandler(graphService graph.Service, logger *slog.Logger) *GraphHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for GraphHandler")
	}

	return &GraphHandler{
		graphService: graphService,
		logger:       logger.With(slog.String("component", "graph_handler")),
	}
}

// GetGraph handles GET /graph requests. It returns the user's full derived
// view of the exercise graph.
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
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
			"Failed to build exercise graph", err)
		return
	}

	log.Debug("returning exercise graph",
		slog.String("user_id", userID.String()),
		slog.Int("exercises", len(view.Exercises)))

	shared.RespondWithJSON(w, r, http.StatusOK, view)
}
