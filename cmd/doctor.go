package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kamusis/fitmatch/internal/config"
	"github.com/kamusis/fitmatch/internal/store"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run pre-flight environment checks",
	Long: `Check that fitmatch's config, data files and store are usable.
Run this command when something seems wrong, or before filing a bug report.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.AddCommand(doctorFixCmd)
	rootCmd.AddCommand(doctorCmd)
}

var doctorFixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Automatically fix detected issues",
	Long: `Fix detected issues in the fitmatch store.

Currently fixes:
  - Orphan tables: drops stored tables that no configured dataset refers to
  - Value log garbage: compacts the store

Run 'fitmatch doctor' first to see what will be fixed.`,
	RunE: runDoctorFix,
}

// orphanTables returns stored tables that no dataset in cfg refers to.
func orphanTables(ctx context.Context, cfg *config.Config, st *store.Store) ([]string, error) {
	metas, err := st.Tables(ctx)
	if err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, d := range cfg.Datasets {
		want[d.Name] = true
	}
	var out []string
	for _, m := range metas {
		if !want[m.Name] {
			out = append(out, m.Name)
		}
	}
	return out, nil
}

func runDoctorFix(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	printSection("fitmatch doctor fix")

	return withStore(cfg, logger, func(st *store.Store) error {
		fmt.Println("\n[ Orphan tables ]")
		orphans, err := orphanTables(ctx, cfg, st)
		if err != nil {
			return err
		}
		if len(orphans) == 0 {
			printOK("", "no orphan tables found")
		}
		var failed int
		for _, name := range orphans {
			if err := st.DropTable(ctx, name); err != nil {
				printErr(name, fmt.Sprintf("cannot drop: %v", err))
				failed++
				continue
			}
			printOK(name, "dropped")
		}

		fmt.Println("\n[ Compaction ]")
		if err := st.Compact(); err != nil {
			printErr("", err.Error())
			failed++
		} else {
			printOK("", "store compacted")
		}

		fmt.Println()
		if failed > 0 {
			return fmt.Errorf("%d fix(es) failed", failed)
		}
		return nil
	})
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	allOK := true
	failD := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}
	ctx := commandContext(cmd)

	printSection("fitmatch doctor")
	fmt.Println()

	// ── Check 1: config file ──────────────────────────────────────────────────
	fmt.Println("[ fitmatch.yaml ]")
	config.SetPath(flagConfig)
	cfgPath, _ := config.ConfigPath()
	cfg, loadErr := loadConfig()
	switch {
	case errors.Is(loadErr, config.ErrNotInitialized):
		failD("%s not found, run 'fitmatch init' first", cfgPath)
	case loadErr != nil:
		failD("%v", loadErr)
	default:
		printOK("", fmt.Sprintf("valid: %d dataset(s) defined in %s", len(cfg.Datasets), cfgPath))
	}
	fmt.Println()

	// ── Check 2: dataset files ────────────────────────────────────────────────
	fmt.Println("[ Dataset files ]")
	if loadErr == nil {
		for _, d := range cfg.Datasets {
			p := cfg.DatasetPath(d)
			info, err := os.Stat(p)
			switch {
			case os.IsNotExist(err):
				printWarn(d.Name, fmt.Sprintf("%s does not exist", p))
			case err != nil:
				failD("[%s] %v", d.Name, err)
			case info.IsDir():
				failD("[%s] %s is a directory", d.Name, p)
			case !strings.EqualFold(filepath.Ext(p), ".csv"):
				printWarn(d.Name, fmt.Sprintf("%s does not have a .csv extension", p))
			default:
				printOK(d.Name, p)
			}
		}
	} else {
		printWarn("", "skipped (fitmatch.yaml not loaded)")
	}
	fmt.Println()

	// ── Check 3: store ────────────────────────────────────────────────────────
	fmt.Println("[ Store ]")
	if loadErr == nil {
		logger, err := newLogger(cfg)
		if err != nil {
			failD("%v", err)
		} else {
			err = withStore(cfg, logger, func(st *store.Store) error {
				printOK("", fmt.Sprintf("opened %s", st.Path()))
				for _, d := range cfg.Datasets {
					meta, err := st.TableMeta(ctx, d.Name)
					switch {
					case errors.Is(err, store.ErrTableNotFound):
						printWarn(d.Name, "not loaded (run 'fitmatch load')")
					case err != nil:
						failD("[%s] %v", d.Name, err)
					case meta.Role.String() != d.Role:
						failD("[%s] stored as %s, configured as %s (run 'fitmatch load --force')", d.Name, meta.Role, d.Role)
					default:
						printOK(d.Name, fmt.Sprintf("%s rows", count(meta.Rows)))
					}
				}
				orphans, err := orphanTables(ctx, cfg, st)
				if err != nil {
					return err
				}
				for _, name := range orphans {
					printWarn(name, "stored but not configured (run 'fitmatch doctor fix' to drop)")
				}
				return nil
			})
			if errors.Is(err, store.ErrLocked) {
				failD("store is in use by another fitmatch process")
			} else if err != nil {
				failD("%v", err)
			}
		}
	} else {
		printWarn("", "skipped (fitmatch.yaml not loaded)")
	}
	fmt.Println()

	// ── Summary ──────────────────────────────────────────────────────────────────
	fmt.Println("===================")
	if allOK {
		fmt.Println("✓  All checks passed. fitmatch is ready to use.")
	} else {
		fmt.Fprintln(os.Stderr, "✗  One or more checks failed. See details above.")
		return fmt.Errorf("doctor found issues")
	}
	return nil
}
