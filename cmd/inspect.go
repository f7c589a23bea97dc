package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/kamusis/fitmatch/internal/series"
	"github.com/kamusis/fitmatch/internal/store"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [table]",
	Short: "List stored tables or show the contents of one",
	Long: `Without arguments, list every table in the store with its role and size.

With a table name, print its header and rows. --x looks up the first row at
exactly that x, the same lookup used when assigning test points. --csv writes
the whole table as CSV in the format 'fitmatch load' reads.

Example:
  fitmatch inspect
  fitmatch inspect ideal --limit 5
  fitmatch inspect ideal --x=-19.6
  fitmatch inspect training --columns
  fitmatch inspect test --csv > test.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

var (
	flagInspectX       string
	flagInspectLimit   int
	flagInspectColumns bool
	flagInspectCSV     bool
)

func init() {
	inspectCmd.Flags().StringVar(&flagInspectX, "x", "", "Show only the row at this exact x")
	inspectCmd.Flags().IntVar(&flagInspectLimit, "limit", 20, "Maximum rows to print (0 = all)")
	inspectCmd.Flags().BoolVar(&flagInspectColumns, "columns", false, "Print the table column by column")
	inspectCmd.Flags().BoolVar(&flagInspectCSV, "csv", false, "Write the whole table to stdout as CSV")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	return withStore(cfg, logger, func(st *store.Store) error {
		if len(args) == 0 {
			return listTables(cmd, st)
		}
		name := args[0]
		meta, err := st.TableMeta(ctx, name)
		if err != nil {
			return err
		}

		if flagInspectCSV {
			t, err := st.Table(ctx, name)
			if err != nil {
				return err
			}
			return series.WriteCSV(os.Stdout, t)
		}

		if flagInspectX != "" {
			x, err := strconv.ParseFloat(strings.TrimSpace(flagInspectX), 64)
			if err != nil {
				return fmt.Errorf("invalid --x %q: %w", flagInspectX, err)
			}
			row, err := st.Row(ctx, name, x)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(meta.Header, "\t"))
			fmt.Fprintln(w, joinFloats(row, "\t"))
			return w.Flush()
		}

		printSection(fmt.Sprintf("%s (%s, %s rows)", meta.Name, meta.Role, count(meta.Rows)))
		if meta.Source != "" {
			printInfo("", fmt.Sprintf("source: %s", meta.Source))
		}

		if flagInspectColumns {
			cols, err := st.Columns(ctx, name)
			if err != nil {
				return err
			}
			for i, c := range cols {
				if flagInspectLimit > 0 && len(c) > flagInspectLimit {
					c = c[:flagInspectLimit]
				}
				fmt.Printf("  %s: %s\n", meta.Header[i], joinFloats(c, ", "))
			}
			return nil
		}

		rows, err := st.Rows(ctx, name)
		if err != nil {
			return err
		}
		shown := rows
		if flagInspectLimit > 0 && len(rows) > flagInspectLimit {
			shown = rows[:flagInspectLimit]
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  "+strings.Join(meta.Header, "\t"))
		for _, r := range shown {
			fmt.Fprintln(w, "  "+joinFloats(r, "\t"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if len(shown) < len(rows) {
			printInfo("", fmt.Sprintf("%s more row(s); use --limit 0 to show all", count(len(rows)-len(shown))))
		}
		return nil
	})
}

func listTables(cmd *cobra.Command, st *store.Store) error {
	metas, err := st.Tables(commandContext(cmd))
	if err != nil {
		return err
	}
	printSection("Tables")
	if len(metas) == 0 {
		printMiss("", "no tables loaded (run: fitmatch load)")
		return nil
	}
	for _, m := range metas {
		printOK(m.Name, fmt.Sprintf("%s, %s rows x %d columns, loaded %s", m.Role, count(m.Rows), len(m.Header), m.LoadedAt))
	}
	return nil
}

func joinFloats(v []float64, sep string) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, sep)
}
