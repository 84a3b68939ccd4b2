package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pm/config"
	"pm/extension"
	"pm/output"
	"pm/storage"
)

// App holds everything a pm process needs: derived paths, logger, parsed
// configuration, the extension set, the command tree and the output
// collector. It is built once in main and threaded through the controllers.
type App struct {
	Paths      Paths
	Deployment config.Deployment

	Logger *zap.SugaredLogger
	zlog   *zap.Logger
	level  zap.AtomicLevel

	Config     *config.Config
	Output     *output.Collector
	Extensions *extension.Registry

	Root   *cobra.Command
	Stdout io.Writer
	Stderr io.Writer

	// formatFlag overrides the configured output format when set
	formatFlag string

	registry  *storage.SQLite
	store     *storage.ProjectStorage
	storeErr  error
	storeOnce sync.Once

	closeOnce sync.Once
	closeErr  error
}

// Options configures App construction. Zero values fall back to the real
// process environment; tests inject their own.
type Options struct {
	Getenv func(string) string
	Stdout io.Writer
	Stderr io.Writer
}

// NewApp derives the pm paths, builds the logger and assembles the empty
// application: default configuration, empty output collector, the built-in
// extension set and a bare root command. Controllers and plugins are
// registered afterwards.
func NewApp(opts Options) (*App, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	paths, err := DerivePaths(getenv)
	if err != nil {
		return nil, err
	}

	deployment := config.Deployment(getenv("PM_DEPLOYMENT"))
	if deployment == "" {
		deployment = config.DeploymentProduction
	}
	if !deployment.IsValid() {
		return nil, fmt.Errorf("invalid PM_DEPLOYMENT %q: must be %q or %q",
			deployment, config.DeploymentProduction, config.DeploymentAnalysis)
	}

	zlog, level := InitLogger(stderr)

	app := &App{
		Paths:      paths,
		Deployment: deployment,
		Logger:     zlog.Sugar(),
		zlog:       zlog,
		level:      level,
		Config:     config.Default(),
		Output:     output.NewCollector(),
		Extensions: extension.NewRegistry(),
		Stdout:     stdout,
		Stderr:     stderr,
	}

	app.Root = &cobra.Command{
		Use:           "pm",
		Short:         "Project and lab management tool",
		Long:          "pm manages scientific projects, sequencing run folders, pipeline runs and sample deliveries.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.Root.PersistentFlags().StringVar(&app.formatFlag, "format", "", "output format: text, json or yaml")
	app.Root.SetOut(stdout)
	app.Root.SetErr(stderr)

	for _, ext := range builtinExtensions() {
		if err := app.Extensions.Register(ext); err != nil {
			return nil, err
		}
	}

	return app, nil
}

func builtinExtensions() []extension.Extension {
	return []extension.Extension{
		extension.NewDistributed(),
		extension.NewStatusDB(),
		extension.NewQC(),
	}
}

// RegisterControllers attaches the deployment's controller commands to the
// root. A name collision is an error: two controllers must never shadow each
// other silently.
func (a *App) RegisterControllers(controllers []*cobra.Command) error {
	for _, c := range controllers {
		if err := a.registerCommand(c); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) registerCommand(c *cobra.Command) error {
	name := c.Name()
	for _, existing := range a.Root.Commands() {
		if existing.Name() == name {
			return fmt.Errorf("controller %q is already registered", name)
		}
	}
	a.Root.AddCommand(c)
	return nil
}

// Setup finishes assembly before configuration is read: external plugins are
// discovered and registered as passthrough commands.
func (a *App) Setup(ctx context.Context) error {
	plugins, err := extension.DiscoverPlugins(a.Paths.PluginDir, a.Paths.PluginConfDir)
	if err != nil {
		return err
	}
	env := extension.PluginEnv{Home: a.Paths.Home, ConfFile: a.Paths.ConfFile}
	for _, p := range plugins {
		if err := a.registerCommand(extension.NewPluginCommand(p, env)); err != nil {
			return fmt.Errorf("plugin %s: %w", p.Name, err)
		}
		a.Logger.Debugw("registered plugin command", "plugin", p.Name, "path", p.Path)
	}
	return nil
}

// LoadConfig parses the configuration file at the derived path and applies
// it: log level and default output format. The caller decides what a failure
// means for the process.
func (a *App) LoadConfig() error {
	cfg, err := config.Load(a.Paths.ConfFile)
	if err != nil {
		return err
	}
	a.Config = cfg
	a.level.SetLevel(parseLevel(cfg.Log.Level))
	if cfg.Deployment != a.Deployment {
		// The controller set is fixed before the file is read; only
		// PM_DEPLOYMENT can change it.
		a.Logger.Warnw("config file deployment ignored, set PM_DEPLOYMENT instead",
			"config", cfg.Deployment, "active", a.Deployment)
	}
	return nil
}

// Run initializes the extensions with the parsed configuration and dispatches
// the selected command.
func (a *App) Run(ctx context.Context, args []string) error {
	if err := a.Extensions.Setup(ctx, a.Config, a.Logger); err != nil {
		return err
	}
	a.Root.SetArgs(args)
	return a.Root.ExecuteContext(ctx)
}

// Format resolves the render format: the --format flag wins over the
// configured default.
func (a *App) Format() (output.Format, error) {
	if a.formatFlag != "" {
		return output.ParseFormat(a.formatFlag)
	}
	return output.ParseFormat(a.Config.Output.Format)
}

// Render writes the accumulated command output to stdout. A run that
// accumulated nothing renders nothing.
func (a *App) Render() error {
	if a.Output.Empty() {
		return nil
	}
	format, err := a.Format()
	if err != nil {
		return err
	}
	return a.Output.Render(a.Stdout, format)
}

// Store opens the SQLite project registry on first use and reuses it for the
// rest of the process. Close tears it down.
func (a *App) Store(ctx context.Context) (*storage.ProjectStorage, error) {
	a.storeOnce.Do(func() {
		dbPath := a.Config.DatabasePath(a.Paths.ConfDir)
		db, err := storage.NewSQLite(dbPath, a.Logger)
		if err != nil {
			a.storeErr = err
			return
		}
		a.registry = db
		a.store = storage.NewProjectStorage(db)
	})
	return a.store, a.storeErr
}

// Close releases everything the app holds: extensions, the project registry
// and the logger. It is safe to call on every exit path; only the first call
// does work.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		ctx := context.Background()
		if err := a.Extensions.Close(ctx); err != nil {
			a.Logger.Warnw("extension close failed", "error", err)
			a.closeErr = err
		}
		if a.registry != nil {
			if err := a.registry.Close(); err != nil {
				a.Logger.Warnw("registry close failed", "error", err)
				if a.closeErr == nil {
					a.closeErr = err
				}
			}
		}
		_ = a.zlog.Sync()
	})
	return a.closeErr
}
