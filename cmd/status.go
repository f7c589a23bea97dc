package cmd

import (
	"errors"
	"fmt"

	"github.com/kamusis/fitmatch/internal/config"
	"github.com/kamusis/fitmatch/internal/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show loaded tables and stored results",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	cfgPath, _ := config.ConfigPath()

	return withStore(cfg, logger, func(st *store.Store) error {
		fmt.Println("=== Datasets ===")
		printInfo("", fmt.Sprintf("config: %s", cfgPath))
		printInfo("", fmt.Sprintf("store:  %s", cfg.StorePath))

		var loaded, missing, wrongRole int
		for _, d := range cfg.Datasets {
			meta, err := st.TableMeta(ctx, d.Name)
			switch {
			case errors.Is(err, store.ErrTableNotFound):
				printMiss(d.Name, fmt.Sprintf("not loaded  (run: fitmatch load)  [%s]", cfg.DatasetPath(d)))
				missing++
			case err != nil:
				return fmt.Errorf("table %s: %w", d.Name, err)
			case meta.Role.String() != d.Role:
				printErr(d.Name, fmt.Sprintf("loaded as %s, configured as %s  (run: fitmatch load --force)", meta.Role, d.Role))
				wrongRole++
			default:
				printOK(d.Name, fmt.Sprintf("%s, %s rows x %d columns, loaded %s", meta.Role, count(meta.Rows), len(meta.Header), meta.LoadedAt))
				loaded++
			}
		}
		fmt.Printf("\n  %d loaded / %d not loaded / %d wrong role\n", loaded, missing, wrongRole)

		fmt.Println("\n=== Results ===")
		for _, dest := range []store.Destination{store.Production, store.Validation} {
			run, err := st.Run(ctx, dest)
			if err != nil {
				return err
			}
			if run == nil {
				printSkip(dest.String(), "empty")
				continue
			}
			n, err := st.CountResults(ctx, dest)
			if err != nil {
				return err
			}
			printOK(dest.String(), fmt.Sprintf("%s record(s) from run %s at %s", count(n), run.RunID, run.CreatedAt))
		}
		return nil
	})
}
