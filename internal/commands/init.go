package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/finboard/finboard/internal/config"
)

func newInitCommand() *cobra.Command {
	var apiURL string
	var paymentType int

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a finboard import workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			cfg := config.Default()
			if apiURL != "" {
				cfg.API.BaseURL = apiURL
			}
			cfg.Import.PaymentTypeID = paymentType
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := runInit(absDir, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized finboard workspace at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "finance backend base URL")
	cmd.Flags().IntVar(&paymentType, "payment-type", 0, "default payment type id (0 = unknown)")

	return cmd
}

func runInit(dir string, cfg *config.Config) error {
	configPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	// Create directory structure.
	dirs := []string{
		cfg.Import.ImportDir,
		filepath.Join(cfg.Import.ImportDir, "processed"),
		filepath.Dir(cfg.Log.ImportLog),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	envExample := fmt.Sprintf("# Copy to .env to override %s.\n%s=%s\n%s=\n%s=info\n",
		config.FileName, config.EnvAPIURL, cfg.API.BaseURL, config.EnvAPIToken, config.EnvLogLevel)
	if err := os.WriteFile(filepath.Join(dir, ".env.example"), []byte(envExample), 0o644); err != nil {
		return fmt.Errorf("writing .env.example: %w", err)
	}

	gitignore := ".env\n" + filepath.ToSlash(filepath.Dir(cfg.Log.ImportLog)) + "/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, cfg.Import.ImportDir, ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}
	return nil
}
