package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/RevCBH/trunkback/internal/command"
	"github.com/RevCBH/trunkback/internal/config"
	"github.com/RevCBH/trunkback/internal/events"
	"github.com/RevCBH/trunkback/internal/git"
	"github.com/RevCBH/trunkback/internal/history"
	"github.com/RevCBH/trunkback/internal/metrics"
	"github.com/RevCBH/trunkback/internal/notify"
	"github.com/RevCBH/trunkback/internal/rollback"
	"github.com/RevCBH/trunkback/internal/svn"
	"github.com/RevCBH/trunkback/internal/vcs"
	"github.com/RevCBH/trunkback/internal/workspace"
)

// Runtime holds all wired components for one command invocation
type Runtime struct {
	Config     *config.Config
	Logger     *zap.Logger
	Events     *events.Bus
	Workspaces *workspace.Manager
	Policy     vcs.ConflictPolicy

	// History is nil when history.path is empty
	History *history.Store

	Metrics  *metrics.RollbackMetrics
	registry *prometheus.Registry
}

// WireOptions selects where events are reported
type WireOptions struct {
	Logger *zap.Logger

	// JSON receives every event as a JSON line when set
	JSON io.Writer

	// Progress receives one text line per event when set
	Progress io.Writer

	// Notices is where the terminal notifier writes (nil means stderr)
	Notices io.Writer
}

// Wire assembles the rollback collaborators from cfg. The caller must Close
// the runtime.
func Wire(cfg *config.Config, opts WireOptions) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	policy, err := cfg.Conflict.Policy()
	if err != nil {
		return nil, fmt.Errorf("conflict policy: %w", err)
	}

	// Create event bus first (other components subscribe to it)
	bus := events.NewBus()
	bus.Subscribe(events.ZapHandler(logger))
	if opts.JSON != nil {
		bus.Subscribe(events.JSONEmitterHandler(events.NewJSONEmitter(opts.JSON), logger))
	}
	if opts.Progress != nil {
		bus.Subscribe(events.LogHandler(events.LogConfig{Writer: opts.Progress}))
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewRollbackMetrics(metrics.Config{Namespace: cfg.Metrics.Namespace}, registry)
	bus.Subscribe(m.Handler())

	var store *history.Store
	if cfg.History.Path != "" {
		store, err = history.Open(cfg.History.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		bus.Subscribe(store.Handler())
	}

	if err := subscribeNotifier(bus, cfg.Notify, opts.Notices, logger); err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	ws := workspace.NewManager(cfg.Workspace.BaseDir, logger)
	ws.Prefix = cfg.Workspace.Prefix

	return &Runtime{
		Config:     cfg,
		Logger:     logger,
		Events:     bus,
		Workspaces: ws,
		Policy:     policy,
		History:    store,
		Metrics:    m,
		registry:   registry,
	}, nil
}

// subscribeNotifier attaches the configured notifiers to bus. Nothing is
// subscribed when no notifier is configured.
func subscribeNotifier(bus *events.Bus, cfg config.NotifyConfig, w io.Writer, logger *zap.Logger) error {
	n, err := notify.FromConfig(notify.Config{
		Backends:     cfg.Backends,
		WebhookURL:   cfg.WebhookURL,
		SlackWebhook: cfg.SlackWebhook(),
		Terminal:     w,
	})
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if n == nil {
		return nil
	}
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return fmt.Errorf("notify timeout: %w", err)
	}
	outcomes := make([]notify.Outcome, len(cfg.Outcomes))
	for i, o := range cfg.Outcomes {
		outcomes[i] = notify.Outcome(o)
	}
	bus.Subscribe(notify.Handler(n, notify.HandlerConfig{
		Outcomes: outcomes,
		Timeout:  timeout,
		Logger:   logger,
	}))
	return nil
}

// Options returns the strategy collaborators
func (r *Runtime) Options() rollback.Options {
	return rollback.Options{
		Workspaces: r.Workspaces,
		Policy:     r.Policy,
		Events:     r.Events,
		Logger:     r.Logger,
	}
}

// GitBackend creates the distributed backend. A nil runner runs git.
func (r *Runtime) GitBackend(runner command.Runner) (*git.Backend, error) {
	c := r.Config.Git
	return git.New(git.Config{
		URL:         c.URL,
		Branch:      c.Branch,
		MirrorDir:   c.MirrorDir,
		AuthorName:  c.AuthorName,
		AuthorEmail: c.AuthorEmail,
	}, runner, r.Logger)
}

// SVNBackend creates the centralized backend. A nil runner runs svn.
func (r *Runtime) SVNBackend(runner command.Runner) (*svn.Backend, error) {
	c := r.Config.SVN
	return svn.New(svn.Config{
		URL:      c.URL,
		Username: c.Username,
		Password: c.Password(),
	}, runner, r.Logger)
}

// Close writes the metrics textfile when configured and closes the history
// store.
func (r *Runtime) Close() error {
	var errs []error
	if path := r.Config.Metrics.Textfile; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			errs = append(errs, fmt.Errorf("metrics textfile: %w", err))
		} else if err := metrics.WriteTextfile(path, r.registry); err != nil {
			errs = append(errs, err)
		}
	}
	if r.History != nil {
		if err := r.History.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	_ = r.Logger.Sync()
	return errors.Join(errs...)
}

// newLogger builds the console logger written to w. verbose forces debug.
func newLogger(level string, verbose bool, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoder), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

// loadConfig loads the explicit config file when given, otherwise
// .trunkback.yaml from the working directory.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfigFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.LoadConfig(wd)
}
