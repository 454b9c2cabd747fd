package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/abca4/fafpipe/internal/artifact"
	"github.com/abca4/fafpipe/internal/config"
	"github.com/abca4/fafpipe/internal/jobs"
	"github.com/abca4/fafpipe/internal/observability"
	"github.com/abca4/fafpipe/internal/pipeline"
	"github.com/abca4/fafpipe/internal/registry"
)

// App encapsulates a fully wired pipeline: configuration, logger,
// graph, registry, artifact store, and metrics.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	cfg     *Config
	graph   *pipeline.Graph
	reg     *registry.Registry
	env     *jobs.Env
	metrics *observability.Metrics

	// sqlite is set only when cfg.Database names a file; it doubles as
	// the run-report sink.
	sqlite     *artifact.SQLiteStore
	httpServer *http.Server
}

// NewApp loads the config file, merges it with the flag-level config,
// and wires every component. The returned App owns the store handle;
// call Close when done.
func NewApp(outW io.Writer, cfg *Config) (*App, error) {
	file := &config.File{}
	if cfg.ConfigPath != "" {
		loaded, err := config.Load(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		file = loaded
	}
	cfg.merge(file.Settings)

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured.", "level", cfg.LogLevel, "format", cfg.LogFormat)

	app := &App{
		outW:    outW,
		logger:  logger,
		cfg:     cfg,
		metrics: observability.NewMetrics(),
	}

	var store artifact.Store
	if cfg.Database != "" {
		sqlite, err := artifact.OpenSQLite(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open artifact database: %w", err)
		}
		app.sqlite = sqlite
		store = sqlite
		logger.Debug("SQLite artifact store opened.", "path", cfg.Database)
	} else {
		store = artifact.NewMemoryStore()
		logger.Debug("Using in-memory artifact store.")
	}

	app.env = &jobs.Env{
		InputPath: cfg.InputPath,
		WorkDir:   cfg.WorkDir,
		Store:     store,
	}

	graph, err := jobs.DefaultGraph(file.Overrides)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("build pipeline graph: %w", err)
	}
	app.graph = graph
	logger.Debug("Pipeline graph finalized.", "jobs", graph.Len())

	app.reg = registry.New()
	if err := jobs.Register(app.reg, app.env); err != nil {
		app.Close()
		return nil, fmt.Errorf("register job bodies: %w", err)
	}
	if err := app.reg.Validate(graph); err != nil {
		app.Close()
		return nil, err
	}
	logger.Debug("Registry validated against the graph.")

	return app, nil
}

// Graph exposes the wired pipeline graph. Primarily for testing.
func (a *App) Graph() *pipeline.Graph {
	return a.graph
}

// Close releases the artifact store handle, if any.
func (a *App) Close() error {
	if a.sqlite == nil {
		return nil
	}
	return a.sqlite.Close()
}
