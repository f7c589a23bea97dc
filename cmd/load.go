package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/kamusis/fitmatch/internal/config"
	"github.com/kamusis/fitmatch/internal/ingest"
	"github.com/kamusis/fitmatch/internal/series"
	"github.com/kamusis/fitmatch/internal/store"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load [dir]",
	Short: "Load the configured CSV datasets into the store",
	Long: `Load the training, ideal and test CSV files into the store, replacing the
previous contents of each table. Files whose checksum matches the stored
table are skipped unless --force is given.

dir defaults to data_dir from fitmatch.yaml. Dataset files with an absolute
path, or a relative one leading out of dir such as ../train.csv, are read from
that path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

var flagLoadForce bool

func init() {
	loadCmd.Flags().BoolVar(&flagLoadForce, "force", false, "Reload tables even when the file is unchanged")
	rootCmd.AddCommand(loadCmd)
}

// datasetSources converts configured datasets into ingest sources.
func datasetSources(cfg *config.Config) ([]ingest.Source, error) {
	out := make([]ingest.Source, 0, len(cfg.Datasets))
	for _, d := range cfg.Datasets {
		role, err := series.ParseRole(d.Role)
		if err != nil {
			return nil, err
		}
		out = append(out, ingest.Source{Name: d.Name, Role: role, Path: d.File})
	}
	return out, nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	dir := cfg.DataDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no data directory: pass one or set data_dir in the config")
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return err
	}
	sources, err := datasetSources(cfg)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)

	return withStore(cfg, logger, func(st *store.Store) error {
		res, err := ingest.ImportDir(ctx, st, logger, dir, sources, cfg.Excludes, flagLoadForce)
		if err != nil {
			return err
		}

		printSection("Load")
		for _, t := range res.Tables {
			switch t.Status {
			case ingest.StatusSkipped:
				printSkip(t.Name, fmt.Sprintf("unchanged, %s rows  (%s)", count(t.Rows), t.Path))
			default:
				printOK(t.Name, fmt.Sprintf("%s rows loaded  (%s)", count(t.Rows), t.Path))
			}
		}
		for _, rel := range res.Unused {
			printInfo("", fmt.Sprintf("not a configured dataset: %s", rel))
		}
		fmt.Printf("\n  %d loaded / %d unchanged\n", res.Loaded, res.Skipped)
		return nil
	})
}
