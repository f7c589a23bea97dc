package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kamusis/fitmatch/internal/config"
	"github.com/kamusis/fitmatch/internal/logging"
	"github.com/kamusis/fitmatch/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "fitmatch",
	Short:        "fitmatch selects ideal functions for training data and classifies test points",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `fitmatch loads training, ideal and test series from CSV into a local store,
picks the least-squares ideal function for every training column and assigns
test points whose deviation stays within sqrt(2) times the function's threshold.`,
}

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.fitmatch/fitmatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text or json")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printErr("", err.Error())
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	config.SetPath(flagConfig)
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.Log.Format = flagLogFormat
	}
	return cfg, nil
}

// newLogger builds the stderr logger described by cfg.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(os.Stderr, logging.Format(cfg.Log.Format), level), nil
}

// withStore takes the store lock, opens the store and runs fn. Every command
// that touches the store goes through here so concurrent invocations wait for
// each other instead of failing on Badger's directory lock.
func withStore(cfg *config.Config, logger *logging.Logger, fn func(st *store.Store) error) error {
	timeout := cfg.LockTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	unlock, err := store.Lock(cfg.StorePath, timeout)
	if err != nil {
		return err
	}
	defer unlock()

	scfg := store.DefaultConfig(cfg.StorePath)
	scfg.Logger = logger
	st, err := store.Open(scfg)
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		_ = st.Close()
		return err
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("cannot close store: %w", err)
	}
	return nil
}

// resultDestination resolves a --destination flag value, falling back to the
// configured default.
func resultDestination(cfg *config.Config, flagValue string) (store.Destination, error) {
	if flagValue != "" {
		return store.ParseDestination(flagValue)
	}
	return store.ParseDestination(cfg.Results.Destination)
}

// runTables returns the table names of the configured datasets.
func runTables(cfg *config.Config) (store.RunTables, error) {
	var t store.RunTables
	for role, dst := range map[string]*string{"training": &t.Training, "ideal": &t.Ideal, "test": &t.Test} {
		d, err := cfg.Dataset(role)
		if err != nil {
			return t, err
		}
		*dst = d.Name
	}
	return t, nil
}

// commandContext returns cmd's context, or Background when cmd was not run
// through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
