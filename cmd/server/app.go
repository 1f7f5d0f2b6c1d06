package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/mastery-api/internal/catalog"
	"github.com/phrazzld/mastery-api/internal/config"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/domain/proficiency"
	"github.com/phrazzld/mastery-api/internal/domain/review"
	"github.com/phrazzld/mastery-api/internal/events"
	"github.com/phrazzld/mastery-api/internal/platform/postgres"
	"github.com/phrazzld/mastery-api/internal/service/attempt"
	"github.com/phrazzld/mastery-api/internal/service/commitment"
	"github.com/phrazzld/mastery-api/internal/service/graph"
	"github.com/phrazzld/mastery-api/internal/store"
	"github.com/phrazzld/mastery-api/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	exerciseStore   store.ExerciseStore
	stateStore      store.UserExerciseStore
	problemLogStore store.ProblemLogStore
	taskStore       task.TaskStore

	// Catalog snapshot, loaded once at startup
	catalog *catalog.Snapshot

	// Services
	commitmentService commitment.Service
	attemptService    attempt.Service
	graphService      graph.Service

	// Event system
	eventEmitter events.EventEmitter

	// Task handling
	taskRunner *task.TaskRunner
}

// snapshotCatalogProvider adapts the immutable catalog snapshot to the
// attempt service's lookup interface.
type snapshotCatalogProvider struct {
	snapshot *catalog.Snapshot
}

func (p *snapshotCatalogProvider) Exercise(_ context.Context, name string) (*domain.Exercise, error) {
	return p.snapshot.Get(name)
}

// activityLogHook records accepted attempts as a structured activity stream.
// It is the default post-commit hook; badge and goal systems plug in beside
// it by implementing task.AttemptHook.
type activityLogHook struct {
	logger *slog.Logger
}

func (h *activityLogHook) Name() string { return "activity_log" }

func (h *activityLogHook) HandleAttempt(_ context.Context, event task.AttemptEvent) error {
	h.logger.Info("attempt activity",
		slog.String("user_id", event.UserID.String()),
		slog.String("exercise", event.Exercise),
		slog.Int("problem_number", event.ProblemNumber),
		slog.Bool("completed", event.Completed),
		slog.Bool("correct", event.Correct),
		slog.Bool("costly_hint", event.CostlyHint),
		slog.Bool("review_mode", event.ReviewMode),
		slog.Int("points_earned", event.PointsEarned),
		slog.Bool("earned_proficiency", event.EarnedProficiency))
	return nil
}

// newApplication creates an application instance with all dependencies
// initialized. The database must already be migrated.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Stores
	app.exerciseStore = postgres.NewPostgresExerciseStore(db, logger)
	app.stateStore = postgres.NewPostgresUserExerciseStore(db, logger)
	app.problemLogStore = postgres.NewPostgresProblemLogStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db)

	// Catalog snapshot
	snapshot, err := catalog.Load(ctx, app.exerciseStore)
	if err != nil {
		return nil, fmt.Errorf("failed to load exercise catalog: %w", err)
	}
	app.catalog = snapshot
	logger.Info("exercise catalog loaded", slog.Int("exercises", snapshot.Len()))

	// Commitment service
	app.commitmentService, err = commitment.NewService(cfg.Commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize commitment service: %w", err)
	}

	// Mastery model, review scheduler, struggling policy
	model := proficiency.NewModel(proficiency.NewParams(proficiency.ParamsConfig{
		RequiredStreak:          cfg.Proficiency.RequiredStreak,
		SummativeRequiredStreak: cfg.Proficiency.SummativeRequiredStreak,
		ResetFactor:             cfg.Proficiency.ResetFactor,
	}))
	scheduler := review.NewScheduler(review.NewParams(review.ParamsConfig{
		MinInterval:  time.Duration(cfg.Review.MinIntervalHours) * time.Hour,
		MaxInterval:  time.Duration(cfg.Review.MaxIntervalDays) * 24 * time.Hour,
		SessionQuota: cfg.Review.SessionQuota,
	}))
	policy, err := proficiency.PolicyFromName(cfg.Proficiency.StrugglingPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve struggling policy: %w", err)
	}

	// Task runner with executors for recovered tasks
	app.taskRunner = task.NewTaskRunner(app.taskStore, task.TaskRunnerConfig{
		WorkerCount:  cfg.Task.WorkerCount,
		QueueSize:    cfg.Task.QueueSize,
		StuckTaskAge: time.Duration(cfg.Task.StuckTaskAge) * time.Minute,
	}, logger)

	logFactory := task.NewProblemLogTaskFactory(app.problemLogStore, logger)
	hooks := []task.AttemptHook{
		&activityLogHook{logger: logger.With(slog.String("component", "activity_log_hook"))},
	}
	hooksFactory := task.NewAttemptHooksTaskFactory(hooks, logger)

	app.taskRunner.RegisterExecutor(task.TaskTypeProblemLogAppend, logFactory.Executor())
	app.taskRunner.RegisterExecutor(task.TaskTypeAttemptHooks, hooksFactory.Executor())

	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	// Event emitter routing post-commit events to the task runner
	emitter := events.NewInMemoryEventEmitter(logger)
	eventHandler := task.NewTaskFactoryEventHandler(app.taskRunner, logger)
	eventHandler.RegisterFactory(events.EventTypeProblemLogAppend, logFactory)
	eventHandler.RegisterFactory(events.EventTypeAttemptRecorded, hooksFactory)
	emitter.RegisterHandler(eventHandler)
	app.eventEmitter = emitter

	// Graph view service, also serving as the attempt service's cache
	// invalidator
	app.graphService = graph.NewService(
		app.stateStore,
		app.catalog,
		model,
		scheduler,
		policy,
		logger,
	)

	// Attempt processing service
	app.attemptService = attempt.NewService(
		db,
		app.stateStore,
		&snapshotCatalogProvider{snapshot: app.catalog},
		app.commitmentService,
		model,
		scheduler,
		attempt.NewStandardPointCalculator(),
		app.eventEmitter,
		app.graphService,
		logger,
	)

	logger.Info("application initialized")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.db != nil {
		closeDatabase(app.db, app.logger)
	}

	app.logger.Info("application shutdown completed")
}
