package app

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/openclaw/model-router/config"
	"github.com/openclaw/model-router/internal/metrics"
	"github.com/openclaw/model-router/internal/scheduler"
	"github.com/openclaw/model-router/middleware"
	"github.com/openclaw/model-router/models"
	"github.com/openclaw/model-router/services/budget"
	"github.com/openclaw/model-router/services/classifier"
	"github.com/openclaw/model-router/services/providers"
	"github.com/openclaw/model-router/services/registry"
	"github.com/openclaw/model-router/services/router"
	"github.com/openclaw/model-router/services/rules"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *sql.DB // nil when no DATABASE_URL is configured

	// Routing pipeline
	Registry   *registry.Registry
	Classifier *classifier.Classifier
	Stats      *rules.Stats
	Engine     *rules.Engine
	Tracker    *budget.Tracker
	Store      *budget.Store // nil when running memory-only
	Invokers   *providers.Registry
	Router     *router.Service

	// Background workers
	Scheduler *scheduler.Scheduler
	Watcher   *config.Watcher // nil when hot reload is disabled

	// HTTP middleware
	AuthMiddleware      *middleware.AuthMiddleware      // nil when auth is disabled
	RateLimitMiddleware *middleware.RateLimitMiddleware // nil when rate limiting is disabled
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	routing, err := config.LoadRoutingConfig(cfg.Routing.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load routing config: %w", err)
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initPipeline(ctx, routing); err != nil {
		return nil, fmt.Errorf("failed to initialize routing pipeline: %w", err)
	}

	if err := deps.initWorkers(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize background workers: %w", err)
	}

	deps.initMiddleware(cfg)

	logger.Info("all dependencies initialized",
		zap.Int("models", deps.Registry.Len()),
		zap.Float64("daily_limit", routing.Budget.DailyLimit),
		zap.Bool("persistence", deps.Store != nil))
	return deps, nil
}

// initDatabase opens the optional budget transaction store. Without a
// DATABASE_URL the tracker runs memory-only.
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.URL == "" {
		d.Logger.Info("no database configured, budget tracker runs memory-only")
		return nil
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	d.DB = db
	d.Store = budget.NewStore(db, d.Logger)

	if err := d.Store.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize budget schema: %w", err)
	}

	d.Logger.Info("budget transaction store ready")
	return nil
}

// initPipeline builds the routing pipeline from the routing config: the
// model registry, classifier, rules engine, budget tracker, invoker
// registry, and the orchestrating router service.
func (d *Dependencies) initPipeline(ctx context.Context, routing *config.RoutingConfig) error {
	d.Registry = registry.New(routing.Descriptors())
	d.Classifier = classifier.New(d.Logger, classifierOptions(routing)...)
	d.Stats = rules.NewStats()
	d.Engine = rules.NewEngine(engineConfig(routing), d.Registry, d.Stats, d.Logger)

	d.Tracker = budget.NewTracker(trackerConfig(routing), d.Store, d.Logger,
		budget.WithAlertFunc(func(threshold float64, snap models.BudgetSnapshot) {
			d.Logger.Warn("budget threshold crossed",
				zap.Float64("threshold", threshold),
				zap.Float64("spent", snap.Spent),
				zap.Float64("daily_limit", snap.DailyLimit))
			metrics.BudgetSpent.Set(snap.Spent)
			metrics.BudgetRemaining.Set(snap.Remaining)
		}))

	if err := d.Tracker.Restore(ctx); err != nil {
		d.Logger.Warn("could not restore spend from store, starting from zero", zap.Error(err))
	}

	d.Invokers = providers.NewRegistry()
	loopback := providers.NewLoopback(func(modelID string, tokens int) float64 {
		desc, err := d.Registry.Get(modelID)
		if err != nil {
			return 0
		}
		return desc.EstimateCost(tokens)
	})
	if err := d.Invokers.Register(loopback); err != nil {
		return fmt.Errorf("failed to register loopback invoker: %w", err)
	}
	d.bindModels(routing)

	d.Router = router.NewService(
		router.ServiceConfig{
			MaxRetries:    routing.MaxRetries,
			InvokeTimeout: routing.Invoke.Timeout(),
		},
		d.Classifier, d.Engine, d.Tracker, d.Invokers, d.Registry, d.Stats, d.Logger,
	)

	return nil
}

// initWorkers starts the budget scheduler and, when enabled, the routing
// config watcher.
func (d *Dependencies) initWorkers(cfg *config.Config) error {
	sched, err := scheduler.New(d.Tracker, d.Store, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	d.Scheduler = sched

	if !cfg.Routing.Watch {
		return nil
	}

	watcher, err := config.NewWatcher(cfg.Routing.Path, d.applyRoutingConfig, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	d.Watcher = watcher
	return nil
}

func (d *Dependencies) initMiddleware(cfg *config.Config) {
	if cfg.Auth.Secret != "" {
		d.AuthMiddleware = middleware.NewAuthMiddleware(cfg.Auth.Secret, d.Logger)
	} else {
		d.Logger.Warn("AUTH_SECRET not set, API authentication disabled")
	}

	if cfg.RateLimit.Enabled {
		d.RateLimitMiddleware = middleware.NewRateLimitMiddleware(
			cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, d.Logger)
	}
}

// applyRoutingConfig swaps the live routing configuration. Called by the
// watcher after a file change passes validation; an invalid file never
// reaches this point, so the running config is always consistent.
func (d *Dependencies) applyRoutingConfig(routing *config.RoutingConfig) {
	d.Registry.Replace(routing.Descriptors())
	d.Engine.Replace(engineConfig(routing))
	d.Tracker.UpdateLimits(trackerConfig(routing))
	d.Router.UpdateConfig(router.ServiceConfig{
		MaxRetries:    routing.MaxRetries,
		InvokeTimeout: routing.Invoke.Timeout(),
	})
	d.bindModels(routing)

	d.Logger.Info("routing config reloaded",
		zap.Int("models", d.Registry.Len()),
		zap.Int("rules", len(routing.RoutingRules)))
}

// bindModels routes every cataloged model through the loopback invoker.
// Real provider adapters would be registered and bound here instead.
func (d *Dependencies) bindModels(routing *config.RoutingConfig) {
	for id := range routing.Models {
		if err := d.Invokers.Bind(id, "loopback"); err != nil {
			d.Logger.Warn("failed to bind model to invoker",
				zap.String("model", id), zap.Error(err))
		}
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Watcher != nil {
		if err := d.Watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close config watcher: %w", err))
		}
	}

	if d.Scheduler != nil {
		d.Scheduler.Stop()
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// engineConfig converts the routing file's rule entries to the engine's
// internal form. Entries were validated at load time.
func engineConfig(routing *config.RoutingConfig) rules.Config {
	converted := make([]rules.Rule, 0, len(routing.RoutingRules))
	for _, entry := range routing.RoutingRules {
		converted = append(converted, rules.Rule{
			Name:       entry.Name,
			TaskType:   models.TaskType(entry.When.TaskType),
			Complexity: models.Complexity(entry.When.Complexity),
			Use:        entry.Use,
			Fallback:   entry.Fallback,
			Reasoning:  entry.Reasoning,
		})
	}

	return rules.Config{
		Rules:             converted,
		DefaultModel:      routing.DefaultModel,
		DailyLimit:        routing.Budget.DailyLimit,
		LowBudgetFraction: routing.Budget.LowBudgetFraction,
	}
}

func trackerConfig(routing *config.RoutingConfig) budget.TrackerConfig {
	return budget.TrackerConfig{
		DailyLimit:      routing.Budget.DailyLimit,
		AlertThresholds: routing.Budget.AlertThresholds,
	}
}

// classifierOptions translates the optional keyword overrides into
// classifier options, skipping entries with unknown enum values.
func classifierOptions(routing *config.RoutingConfig) []classifier.Option {
	if routing.Classifier == nil {
		return nil
	}

	var opts []classifier.Option
	for key, words := range routing.Classifier.TypeKeywords {
		t, err := models.ParseTaskType(key)
		if err != nil {
			continue
		}
		opts = append(opts, classifier.WithTypeKeywords(t, words))
	}
	for key, words := range routing.Classifier.ComplexityKeywords {
		cx, err := models.ParseComplexity(key)
		if err != nil {
			continue
		}
		opts = append(opts, classifier.WithComplexityKeywords(cx, words))
	}
	return opts
}
