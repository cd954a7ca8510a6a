package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"comparativo/internal/core"
	"comparativo/internal/snapshots"
	"comparativo/internal/storage"
)

func newSeedCmd() *cobra.Command {
	var (
		file    string
		dir     string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load YAML snapshot fixtures into the SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			if (file == "") == (dir == "") {
				return fmt.Errorf("exactly one of --file or --dir is required")
			}

			var fixture snapshots.Fixture
			if file != "" {
				fixture, err = snapshots.LoadFixtureFile(file)
			} else {
				fixture, err = snapshots.LoadFixtureDir(dir)
			}
			if err != nil {
				return err
			}

			repo, err := cc.openSQLite()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cc.timeout)
			defer cancel()
			n, err := repo.Import(ctx, fixture, replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows in %d snapshots into %s\n",
				n, len(fixture.Snapshots), cc.cfg.SQLiteDBPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file")
	cmd.Flags().StringVar(&dir, "dir", "", "directory of fixture files")
	cmd.Flags().BoolVar(&replace, "replace", false, "delete existing rows of each imported snapshot first")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQLite migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			// NewSQLiteRepository creates the directory the migration needs
			repo, err := cc.openSQLite()
			if err != nil {
				return err
			}
			repo.Close()

			version, err := storage.RunMigrations(cc.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s at schema version %d\n", cc.cfg.SQLiteDBPath, version)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the comparisons recorded in the SQLite database, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			repo, err := cc.openSQLite()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cc.timeout)
			defer cancel()
			runs, err := repo.ListRuns(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output == "json" {
				if runs == nil {
					runs = []core.Run{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EJECUTADO\tRUN\tBASE\tACTUAL\tFILAS\tDURACION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.ExecutedAt.Local().Format("2006-01-02 15:04"), r.ID, r.Base, r.Actual, r.Rows,
					r.Duration.Round(time.Millisecond))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	return cmd
}
