package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"comparativo/internal/core"
	"comparativo/internal/export"
	applog "comparativo/internal/log"
	"comparativo/internal/report"
	"comparativo/internal/services"
	"comparativo/internal/session"
)

const cliSession = "cli"

// rangeAliases are shell-friendly names for the period range labels.
var rangeAliases = map[string]core.PeriodRange{
	"le2018":    core.RangeUpTo2018,
	"2019-2024": core.Range2019To2024,
	"gt2024":    core.RangeAfter2024,
	"sin-dato":  core.RangeNoData,
}

type compareOptions struct {
	base   string
	actual string
	types  []string
	ranges []string
	output string
	all    bool
	xlsx   string
	pdf    string
}

func newCompareCmd() *cobra.Command {
	opts := &compareOptions{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two snapshots and print the report",
		Long: `Runs the full comparison of --base against --actual, optionally keeps only
the given portfolio types and period ranges, and prints the summary.

Period ranges accept their labels or the aliases le2018, 2019-2024, gt2024
and sin-dato.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			return runCompare(cmd.Context(), cc, opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.base, "base", "", "base (earlier) snapshot (required)")
	f.StringVar(&opts.actual, "actual", "", "actual (later) snapshot (required)")
	f.StringSliceVar(&opts.types, "type", nil, "keep only these portfolio types (repeatable)")
	f.StringSliceVar(&opts.ranges, "range", nil, "keep only these period ranges (repeatable)")
	f.StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
	f.BoolVar(&opts.all, "all", false, "include every detail row in json output")
	f.StringVar(&opts.xlsx, "xlsx", "", "also write the report to this Excel file")
	f.StringVar(&opts.pdf, "pdf", "", "also write the report to this PDF file")
	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("actual")
	return cmd
}

func runCompare(ctx context.Context, cc *cliContext, opts *compareOptions, out io.Writer) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("invalid output format %q: must be text or json", opts.output)
	}

	ctx, cancel := context.WithTimeout(ctx, cc.timeout)
	defer cancel()

	src, err := cc.openBackend(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	svc := services.NewComparisonService(src, session.NewMemoryStore(1, time.Hour, nil), services.Options{
		Timeout: cc.timeout,
		Logger:  applog.New(applog.Config{Component: "cli", Handler: cc.logger.Handler()}),
	})

	st, err := svc.Execute(ctx, cliSession, core.ComparisonRequest{Base: opts.base, Actual: opts.actual})
	if err != nil {
		return err
	}

	if len(opts.types) > 0 {
		if st, err = keepOnly(ctx, st, st.Filters.Types, opts.types, core.ErrUnknownType, svc.ToggleType); err != nil {
			return err
		}
	}
	if len(opts.ranges) > 0 {
		labels := make([]string, len(opts.ranges))
		for i, r := range opts.ranges {
			labels[i] = r
			if alias, ok := rangeAliases[r]; ok {
				labels[i] = string(alias)
			}
		}
		if st, err = keepOnly(ctx, st, st.Filters.Ranges, labels, core.ErrUnknownRange, svc.ToggleRange); err != nil {
			return err
		}
	}

	view := st.View()

	if opts.xlsx != "" {
		if err := writeFile(opts.xlsx, view, export.WriteXLSX); err != nil {
			return err
		}
	}
	if opts.pdf != "" {
		if err := writeFile(opts.pdf, view, export.WritePDF); err != nil {
			return err
		}
	}

	if opts.output == "json" {
		limit := 0
		if opts.all {
			limit = -1
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Build(view, report.Options{RowLimit: limit}))
	}
	return printReport(out, report.Build(view, report.Options{RowLimit: -1}))
}

// keepOnly toggles members of sel until exactly wanted is selected and
// returns the resulting state.
func keepOnly(ctx context.Context, st session.State, sel core.Selection, wanted []string, unknown error,
	toggle func(context.Context, string, string) (session.State, error)) (session.State, error) {
	for _, w := range wanted {
		if !sel.Known(w) {
			return session.State{}, fmt.Errorf("%w: %q", unknown, w)
		}
	}

	var err error
	for _, m := range sel.Universe() {
		if sel.Contains(m) == slices.Contains(wanted, m) {
			continue
		}
		if st, err = toggle(ctx, cliSession, m); err != nil {
			return session.State{}, err
		}
	}
	return st, nil
}

func writeFile(path string, view session.View, write func(io.Writer, session.View) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, view); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func printReport(out io.Writer, rep report.Report) error {
	run := rep.Run
	fmt.Fprintf(out, "Comparativo %s -> %s  (%d filas, %s)\n\n",
		run.Base, run.Actual, rep.RowCount, run.Duration.Round(time.Millisecond))

	for _, c := range rep.Cards {
		fmt.Fprintf(out, "%-22s %s\n", c.Label+":", c.Value)
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Estado\tValor anterior\tValor actual\tDiferencia\tAfiliaciones\t")
	for _, l := range rep.Summary {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", l.Status, l.Before, l.After, l.Delta, report.Count(l.Entities))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTipos: %s\nRangos: %s\n",
		joinSelected(rep.TypeToggles), joinSelected(rep.RangeToggles))
	return nil
}

func joinSelected(toggles []report.Toggle) string {
	var out []string
	for _, t := range toggles {
		if t.Active {
			out = append(out, t.Value)
		}
	}
	if len(out) == 0 {
		return "(ninguno)"
	}
	return fmt.Sprint(out)
}
