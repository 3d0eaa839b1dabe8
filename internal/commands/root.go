package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/finboard/finboard/internal/buildinfo"
	"github.com/finboard/finboard/internal/catalog"
	"github.com/finboard/finboard/internal/client"
	"github.com/finboard/finboard/internal/commit"
	"github.com/finboard/finboard/internal/config"
	"github.com/finboard/finboard/internal/importlog"
	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/preview"
	"github.com/finboard/finboard/internal/resolve"
	"github.com/finboard/finboard/internal/wizard"
)

type rootFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:     "finboard",
		Short:   "Bulk expense import for the finance dashboard",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", config.FileName, "config file")
	pf.StringVar(&flags.envFile, "env", ".env", "dotenv file with FINBOARD_* overrides")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newImportCommand(flags))
	rootCmd.AddCommand(newPreviewCommand(flags))
	rootCmd.AddCommand(newCatalogCommand(flags))
	rootCmd.AddCommand(newServeCommand(flags))

	return rootCmd
}

// env is the configuration and logger shared by every subcommand run.
type env struct {
	cfg    *config.Config
	logger *log.Logger
	out    io.Writer
}

// loadEnv reads the config file (defaults when it does not exist), overlays
// the environment and validates the result.
func loadEnv(cmd *cobra.Command, flags *rootFlags) (*env, error) {
	cfg, err := config.Load(flags.configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, flags.envFile); err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", flags.configPath, err)
	}

	// Workspace paths are relative to the config file.
	base := filepath.Dir(flags.configPath)
	cfg.Import.ImportDir = within(base, cfg.Import.ImportDir)
	cfg.Log.ImportLog = within(base, cfg.Log.ImportLog)

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, out: cmd.OutOrStdout()}, nil
}

func within(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Prefix:          "finboard",
	}), nil
}

func (e *env) apiClient() *client.Client {
	return client.New(e.cfg.API.BaseURL,
		client.WithToken(e.cfg.API.Token),
		client.WithTimeout(e.cfg.API.Timeout),
		client.WithUserAgent(buildinfo.UserAgent()),
	)
}

// newSession wires a wizard session against the configured backend.
func (e *env) newSession(unmatched wizard.UnmatchedPolicy) *wizard.Session {
	api := e.apiClient()
	opts := wizard.Options{
		PageSize:  e.cfg.Import.PageSize,
		Commit:    e.cfg.Import.CommitOptions(),
		Unmatched: unmatched,
		OnCommitted: func(res model.CommitResult) {
			e.logger.Info("import committed", "created", res.Created, "updated", res.Updated)
		},
	}
	return wizard.NewSession(wizard.Deps{
		Preview:  preview.NewAPI(api),
		Resolver: resolve.NewEngine(catalog.NewClient(api), e.logger),
		Commits:  commit.NewAPI(api),
		Recorder: importlog.NewWriter(e.cfg.Log.ImportLog),
		Logger:   e.logger,
	}, opts)
}
