package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/kamusis/fitmatch/internal/store"
	"github.com/spf13/cobra"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show the stored assignments of a destination",
	Args:  cobra.NoArgs,
	RunE:  runResults,
}

var resultsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored assignment of a destination",
	Long: `Delete the assignments and the run record of one destination so the next
'fitmatch run' can write to it. The other destination is left untouched.`,
	Args: cobra.NoArgs,
	RunE: runResultsClear,
}

var (
	flagResultsDestination string
	flagResultsLimit       int
	flagClearDestination   string
)

func init() {
	resultsCmd.Flags().StringVar(&flagResultsDestination, "destination", "", "production or validation (default from config)")
	resultsCmd.Flags().IntVar(&flagResultsLimit, "limit", 50, "Maximum records to print (0 = all)")
	resultsClearCmd.Flags().StringVar(&flagClearDestination, "destination", "", "production or validation")
	_ = resultsClearCmd.MarkFlagRequired("destination")
	resultsCmd.AddCommand(resultsClearCmd)
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	dest, err := resultDestination(cfg, flagResultsDestination)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	return withStore(cfg, logger, func(st *store.Store) error {
		run, err := st.Run(ctx, dest)
		if err != nil {
			return err
		}
		printSection("Results: " + dest.String())
		if run == nil {
			printMiss("", "no results stored (run: fitmatch run)")
			return nil
		}
		printInfo("", fmt.Sprintf("run %s at %s", run.RunID, run.CreatedAt))
		printInfo("", fmt.Sprintf("tables: training=%s ideal=%s test=%s", run.Tables.Training, run.Tables.Ideal, run.Tables.Test))
		printInfo("", fmt.Sprintf("%s point(s): %s accepted, %s rejected, %s lookup miss(es)",
			count(run.Points), count(run.Accepted), count(run.Rejected), count(run.Misses)))

		recs, err := st.Results(ctx, dest)
		if err != nil {
			return err
		}
		shown := recs
		if flagResultsLimit > 0 && len(recs) > flagResultsLimit {
			shown = recs[:flagResultsLimit]
		}
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  x\ty\tdelta y\tideal function")
		for _, r := range shown {
			fmt.Fprintf(w, "  %s\t%s\t%s\ty%d\n",
				strconv.FormatFloat(r.X, 'g', -1, 64),
				strconv.FormatFloat(r.Y, 'g', -1, 64),
				strconv.FormatFloat(r.DeltaY, 'g', -1, 64),
				r.IdealFunction)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if len(shown) < len(recs) {
			printInfo("", fmt.Sprintf("%s more record(s); use --limit 0 to show all", count(len(recs)-len(shown))))
		}
		return nil
	})
}

func runResultsClear(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if flagClearDestination == "" {
		return fmt.Errorf("--destination is required")
	}
	dest, err := store.ParseDestination(flagClearDestination)
	if err != nil {
		return err
	}

	return withStore(cfg, logger, func(st *store.Store) error {
		n, err := st.ClearResults(commandContext(cmd), dest)
		if err != nil {
			return err
		}
		if err := st.Compact(); err != nil {
			printWarn("", err.Error())
		}
		printOK(dest.String(), fmt.Sprintf("%s record(s) removed", count(n)))
		return nil
	})
}
