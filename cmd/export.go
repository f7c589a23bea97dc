package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kamusis/fitmatch/internal/export"
	"github.com/kamusis/fitmatch/internal/store"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Write the stored run of a destination as a plotting bundle",
	Long: `Write manifest.json, assignments.jsonl and curves.f64 for the run stored in
a destination. The bundle is built in a temporary directory and swapped into
<dir> at the end, so readers never see a half-written bundle.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var flagExportDestination string

func init() {
	exportCmd.Flags().StringVar(&flagExportDestination, "destination", "", "production or validation (default from config)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	dest, err := resultDestination(cfg, flagExportDestination)
	if err != nil {
		return err
	}
	outDir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	var b *export.Bundle
	err = withStore(cfg, logger, func(st *store.Store) error {
		var err error
		b, err = export.Build(commandContext(cmd), st, dest)
		return err
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outDir), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(outDir), err)
	}
	tmpDir, err := os.MkdirTemp(filepath.Dir(outDir), ".fitmatch-export-")
	if err != nil {
		return fmt.Errorf("cannot create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := export.Write(tmpDir, b); err != nil {
		return err
	}
	if err := export.AtomicSwap(tmpDir, outDir); err != nil {
		return fmt.Errorf("cannot move bundle into %s: %w", outDir, err)
	}

	printOK(dest.String(), fmt.Sprintf("run %s exported to %s", b.Manifest.RunID, outDir))
	printInfo("", fmt.Sprintf("%d function(s), %s assignment(s), %s curve row(s)",
		len(b.Manifest.Functions), count(len(b.Assignments)), count(b.Manifest.CurveRows)))
	return nil
}
