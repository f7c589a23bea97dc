package cmd

import (
	"fmt"
	"math"
	"sort"

	"github.com/kamusis/fitmatch/internal/pipeline"
	"github.com/kamusis/fitmatch/internal/store"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Show the ideal function selected for each training column",
	Long: `Match every training column against the ideal functions by least squares
and print the selection with each function's threshold. Nothing is written.`,
	Args: cobra.NoArgs,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	tables, err := runTables(cfg)
	if err != nil {
		return err
	}
	opts := pipeline.Options{Tables: tables, Parallelism: cfg.Engine.Parallelism, Strict: cfg.Engine.Strict}

	return withStore(cfg, logger, func(st *store.Store) error {
		sel, err := pipeline.NewRunner(st, logger, nil).Select(commandContext(cmd), opts)
		if err != nil {
			return err
		}
		printSelection(sel)
		return nil
	})
}

func printSelection(sel *pipeline.Selection) {
	printBullet("Matches:")
	for _, m := range sel.Matches {
		name := sel.ColumnName(m.Column)
		if !m.Found {
			printMiss(name, "no ideal function of the same length")
			continue
		}
		printOK(name, fmt.Sprintf("→ ideal %s  (sse %s)", sel.FunctionName(m.IdealID), decimal(m.SSE, 6)))
	}

	ids := make([]int, 0, len(sel.Thresholds))
	for id := range sel.Thresholds {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	printBullet("Thresholds:")
	for _, id := range ids {
		th := sel.Thresholds[id]
		printInfo(sel.FunctionName(id), fmt.Sprintf("max deviation %s, accepts up to %s", decimal(th, 6), decimal(th*math.Sqrt2, 6)))
	}
}
