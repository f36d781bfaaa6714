package container

import (
	"context"
	"fmt"

	"gocp/adapters/nonconformity"
	"gocp/adapters/postgres"
	"gocp/adapters/rng"
	"gocp/app"
	"gocp/domain/dataset"
	"gocp/internal"
	"gocp/internal/config"
	"gocp/internal/isotonic"
	"gocp/internal/persistence"
	"gocp/internal/pvalue"
	"gocp/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	Logger *internal.Logger
	RNG    ports.RNGPort

	// Conformal engine
	Source ports.RandomSource
	Engine *pvalue.Engine

	// Snapshot storage; DB is nil when snapshots live on disk
	Snapshots *persistence.Storage
	DB        *sqlx.DB
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level, internal.LogLevelInfo)),
		RNG:    rng.NewAdapter(),
	}

	if err := c.initEngine(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize p-value engine: %w", err)
	}
	if err := c.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot storage: %w", err)
	}

	c.Logger.Debug("container initialized: smoothing=%t seed=%d workers=%d label_conditional=%t",
		cfg.Engine.Smoothing, cfg.Engine.Seed, cfg.Engine.Workers, cfg.Predictor.LabelConditional)
	return c, nil
}

// initEngine wires the smoothing source into the p-value engine
func (c *Container) initEngine(ctx context.Context) error {
	source, err := c.RNG.Source(ctx, "smoothing", c.Config.Engine.Seed)
	if err != nil {
		return err
	}
	c.Source = source
	c.Engine = pvalue.NewEngine(
		pvalue.WithSmoothing(c.Config.Engine.Smoothing),
		pvalue.WithRandomSource(source),
	)
	return nil
}

// initStorage picks the database when one is configured and the snapshot
// directory otherwise.
func (c *Container) initStorage(ctx context.Context) error {
	if c.Config.Database.URL == "" {
		c.Snapshots = persistence.NewStorage(c.Config.Storage.SnapshotDir)
		return nil
	}
	db, err := postgres.Connect(ctx, c.Config.Database.URL)
	if err != nil {
		return err
	}
	c.DB = db
	c.Snapshots = persistence.NewStorageWith(postgres.NewSnapshotRepository(db))
	c.Logger.Info("snapshots stored in postgres")
	return nil
}

// PredictorOptions returns the options every conformal predictor is built with.
func (c *Container) PredictorOptions() []app.Option {
	p := c.Config.Predictor
	grid := isotonic.DefaultConfig()
	grid.Resolution = p.GridResolution
	return []app.Option{
		app.WithEngine(c.Engine),
		app.WithWorkers(c.Config.Engine.Workers),
		app.WithLabelConditional(p.LabelConditional),
		app.WithLogger(c.Logger),
		app.WithGridConfig(grid),
		app.WithIntervalRule(p.IntervalRule),
		app.WithMaxConcurrentRefits(p.MaxConcurrentRefits),
	}
}

// NonconformityOptions returns the options every nonconformity function is built with.
func (c *Container) NonconformityOptions() []nonconformity.Option {
	return []nonconformity.Option{
		nonconformity.WithWorkers(c.Config.Engine.Workers),
		nonconformity.WithLogger(c.Logger.Named("nonconformity")),
	}
}

// ClassificationFunction builds the configured classification function around model.
func (c *Container) ClassificationFunction(model ports.Classifier, labels dataset.Labels) (ports.ClassificationNonconformityFunction, error) {
	return nonconformity.NewClassification(c.Config.Predictor.Nonconformity, model, labels, c.NonconformityOptions()...)
}

// RegressionFunction builds the configured regression function around model.
func (c *Container) RegressionFunction(model ports.Regressor) (ports.RegressionNonconformityFunction, error) {
	return nonconformity.NewRegression(c.Config.Predictor.RegressionNonconformity, model, c.NonconformityOptions()...)
}

// InductiveClassifier builds an unfitted inductive classifier around model.
func (c *Container) InductiveClassifier(model ports.Classifier, labels dataset.Labels) (*app.InductiveClassifier, error) {
	nc, err := c.ClassificationFunction(model, labels)
	if err != nil {
		return nil, err
	}
	return app.NewInductiveClassifier(nc, labels, c.PredictorOptions()...)
}

// TransductiveClassifier builds an unfitted transductive classifier around model.
func (c *Container) TransductiveClassifier(model ports.Classifier, labels dataset.Labels) (*app.TransductiveClassifier, error) {
	nc, err := c.ClassificationFunction(model, labels)
	if err != nil {
		return nil, err
	}
	return app.NewTransductiveClassifier(nc, labels, c.PredictorOptions()...)
}

// InductiveRegressor builds an unfitted inductive regressor around model.
func (c *Container) InductiveRegressor(model ports.Regressor) (*app.InductiveRegressor, error) {
	nc, err := c.RegressionFunction(model)
	if err != nil {
		return nil, err
	}
	return app.NewInductiveRegressor(nc, c.PredictorOptions()...)
}

// MultiProbabilisticClassifier wraps a trained base classifier; it still needs Calibrate.
func (c *Container) MultiProbabilisticClassifier(base ports.ConformalClassifier) (*app.MultiProbabilisticClassifier, error) {
	return app.NewMultiProbabilisticClassifier(base, c.PredictorOptions()...)
}

// Shutdown closes the database and flushes the logger.
func (c *Container) Shutdown(_ context.Context) error {
	var err error
	if c.DB != nil {
		err = c.DB.Close()
	}
	if c.Logger != nil {
		// Syncing stderr fails on some platforms; nothing is lost by ignoring it.
		_ = c.Logger.Sync()
	}
	return err
}
