package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/mastery-api/internal/api"
	apiMiddleware "github.com/phrazzld/mastery-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	exerciseHandler := api.NewExerciseHandler(
		app.catalog,
		app.stateStore,
		app.commitmentService,
		app.attemptService,
		app.logger,
	)
	graphHandler := api.NewGraphHandler(app.graphService, app.logger)
	reviewHandler := api.NewReviewHandler(app.graphService, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(apiMiddleware.IdentityMiddleware)

		// Exercise catalog and problem flow
		r.Get("/exercises", exerciseHandler.ListExercises)
		r.Get("/exercises/{exercise}/problem", exerciseHandler.ServeProblem)
		r.Post("/exercises/{exercise}/attempts", exerciseHandler.SubmitAttempt)
		r.Post("/exercises/{exercise}/hints", exerciseHandler.ReportHint)

		// Derived per-user views
		r.Get("/graph", graphHandler.GetGraph)
		r.Get("/reviews", reviewHandler.GetReviewQueue)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
