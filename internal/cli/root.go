// Package cli defines the registration command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration/internal/bootstrap"
	"github.com/noah-isme/course-registration/pkg/config"
)

var version = "dev"

type rootOptions struct {
	configFile string
	v          *viper.Viper
}

// NewRootCommand builds the command tree. Each call gets its own viper
// instance so commands can run side by side in tests.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:           "registration",
		Short:         "Course registration manager",
		Long:          `Manage students, teachers and credit-capped course registrations from a console menu or an HTTP API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "env-style config file (default: .env)")
	flags.String("backend", "", "storage backend: json, sqlite or postgres")
	flags.String("data-dir", "", "directory holding the JSON files and the SQLite database")
	_ = opts.v.BindPFlag("STORAGE_BACKEND", flags.Lookup("backend"))
	_ = opts.v.BindPFlag("DATA_DIR", flags.Lookup("data-dir"))

	root.AddCommand(
		newServeCommand(opts),
		newConsoleCommand(opts),
		newSeedCommand(opts),
		newHashPasswordCommand(),
		newTokenCommand(opts),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configFile != "" {
		o.v.SetConfigFile(o.configFile)
		o.v.SetConfigType("env")
	}
	cfg, err := config.LoadWith(o.v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// build loads configuration and assembles the application with a logger
// produced by newLogger.
func (o *rootOptions) build(ctx context.Context, newLogger func(*config.Config) (*zap.Logger, error)) (*bootstrap.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logr, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	app, err := bootstrap.Build(ctx, cfg, logr)
	if err != nil {
		_ = logr.Sync()
		return nil, err
	}
	return app, nil
}

func closeApp(app *bootstrap.App) {
	if err := app.Close(); err != nil {
		app.Logger.Warn("failed to release resources", zap.Error(err))
	}
	_ = app.Logger.Sync()
}
