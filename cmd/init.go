package cmd

import (
	"fmt"
	"os"

	"github.com/kamusis/fitmatch/internal/config"
	"github.com/kamusis/fitmatch/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the fitmatch config, data directory and store",
	Long: `Initialize fitmatch under ~/.fitmatch/ (or next to --config).

Writes a default fitmatch.yaml and a .env template when they are missing,
creates the data directory the datasets are read from, and creates the store.
Existing files are never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	config.SetPath(flagConfig)

	// ── 1. Write fitmatch.yaml if missing ─────────────────────────────────────
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("Config written: %s", cfgPath))
	} else {
		printSkip("", fmt.Sprintf("Config already exists: %s", cfgPath))
	}

	// ── 2. Dotenv template ────────────────────────────────────────────────────
	envPath, err := config.DotEnvPath()
	if err != nil {
		return err
	}
	if err := config.EnsureDotEnvTemplate(); err != nil {
		return err
	}
	printOK("", fmt.Sprintf("Environment overrides: %s", envPath))

	// ── 3. Load final config ──────────────────────────────────────────────────
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// ── 4. Data directory ─────────────────────────────────────────────────────
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("cannot create data directory %s: %w", cfg.DataDir, err)
		}
		printOK("", fmt.Sprintf("Data directory ready: %s", cfg.DataDir))
	}

	// ── 5. Store ──────────────────────────────────────────────────────────────
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if err := withStore(cfg, logger, func(*store.Store) error { return nil }); err != nil {
		return err
	}
	printOK("", fmt.Sprintf("Store ready: %s", cfg.StorePath))

	fmt.Println("\nNext steps:")
	for _, d := range cfg.Datasets {
		fmt.Printf("  - put the %s data in %s\n", d.Role, cfg.DatasetPath(d))
	}
	fmt.Println("  - run 'fitmatch load' and then 'fitmatch run'")
	fmt.Println("\n✓  fitmatch init complete.")
	return nil
}
