package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/kamusis/fitmatch/internal/fit"
	"github.com/kamusis/fitmatch/internal/metrics"
	"github.com/kamusis/fitmatch/internal/pipeline"
	"github.com/kamusis/fitmatch/internal/store"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Select ideal functions, assign test points and store the results",
	Long: `Run the full pipeline against the loaded tables:

  1. match each training column to its least-squares ideal function
  2. derive each selected function's threshold
  3. assign every test point whose deviation is within threshold * sqrt(2)
  4. commit the accepted assignments to the destination (unless --no-save)

A destination that already holds results is never appended to; clear it with
'fitmatch results clear' first.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	flagRunNoSave      bool
	flagRunDestination string
	flagRunMetricsFile string
	flagRunParallel    int
	flagRunStrict      bool
)

func init() {
	runCmd.Flags().BoolVar(&flagRunNoSave, "no-save", false, "Evaluate without writing results")
	runCmd.Flags().StringVar(&flagRunDestination, "destination", "", "Result destination: production or validation (default from config)")
	runCmd.Flags().StringVar(&flagRunMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file (default from config)")
	runCmd.Flags().IntVar(&flagRunParallel, "parallel", 0, "Worker goroutines per stage (default from config)")
	runCmd.Flags().BoolVar(&flagRunStrict, "strict", false, "Fail on unmatched columns and on test points without an ideal row")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	dest, err := resultDestination(cfg, flagRunDestination)
	if err != nil {
		return err
	}
	tables, err := runTables(cfg)
	if err != nil {
		return err
	}
	opts := pipeline.Options{
		Tables:      tables,
		Destination: dest,
		Save:        !flagRunNoSave,
		Parallelism: cfg.Engine.Parallelism,
		Strict:      cfg.Engine.Strict || flagRunStrict,
	}
	if flagRunParallel > 0 {
		opts.Parallelism = flagRunParallel
	}
	metricsFile := cfg.MetricsFile
	if flagRunMetricsFile != "" {
		metricsFile = flagRunMetricsFile
	}

	rec := metrics.New()
	var rep *pipeline.Report
	err = withStore(cfg, logger, func(st *store.Store) error {
		var err error
		rep, err = pipeline.NewRunner(st, logger, rec).Run(commandContext(cmd), opts)
		return err
	})
	if mErr := rec.WriteTextfile(metricsFile); mErr != nil {
		printWarn("", mErr.Error())
	}
	if err != nil {
		var ce *store.ConflictError
		if errors.As(err, &ce) {
			printErr(string(ce.Destination), fmt.Sprintf("holds results already; nothing was written (run: fitmatch results clear --destination %s)", ce.Destination))
		}
		var lm *fit.LookupMissError
		if errors.As(err, &lm) {
			for _, m := range lm.Misses {
				printMiss("", fmt.Sprintf("test point %d: no ideal row at x=%g", m.Index+1, m.X))
			}
		}
		return err
	}

	printReport(rep)
	if metricsFile != "" {
		printInfo("", fmt.Sprintf("metrics written: %s", metricsFile))
	}
	return nil
}

func printReport(rep *pipeline.Report) {
	printSection("Run " + rep.RunID)
	printSelection(&rep.Selection)

	s := rep.Summary
	printBullet("Test points:")
	printOK("", fmt.Sprintf("%s accepted (%s%%)", count(s.Accepted), decimal(100*s.AcceptanceRate(), 1)))
	printSkip("", fmt.Sprintf("%s rejected", count(s.Rejected)))
	if s.Misses > 0 {
		printWarn("", fmt.Sprintf("%s without an ideal row at their x", count(s.Misses)))
	}
	for _, fc := range s.PerFunction {
		printInfo(rep.FunctionName(fc.IdealID), fmt.Sprintf("%s point(s)", count(fc.Count)))
	}
	if s.Accepted > 0 {
		printInfo("", fmt.Sprintf("deviation mean %s, sd %s, max %s",
			decimal(s.MeanDeltaY, 6), decimal(s.StdDevDeltaY, 6), decimal(s.MaxDeltaY, 6)))
	}

	fmt.Println()
	if rep.Saved {
		printOK(rep.Destination.String(), fmt.Sprintf("%s record(s) committed", count(rep.Committed)))
	} else {
		printSkip(rep.Destination.String(), "not saved (--no-save)")
	}
	fmt.Printf("\n  completed in %s\n", rep.Duration.Round(time.Microsecond))
}
