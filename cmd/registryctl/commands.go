package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hemophilia-registry-api/internal/importer"
	"hemophilia-registry-api/internal/schema"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func getPingCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the database connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := appFn().resolver.Ping(cmd.Context())
			out, _ := json.MarshalIndent(res, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if !res.OK {
				return fmt.Errorf("database unreachable: %s", res.Error)
			}
			return nil
		},
	}
}

func getTablesCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List live record tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := appFn().reports.ListReportableTables(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, t := range list {
				marker := " "
				if !t.Known {
					marker = "?"
				}
				fmt.Fprintf(w, "%s %-32s %s\n", marker, t.Name, t.Title)
			}
			return nil
		},
	}
}

func getEnsureCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure [table...]",
		Short: "Create or evolve catalog tables",
		Long: `Create missing catalog tables and add missing columns to existing ones.
Without arguments every catalog table is ensured.

Examples:
  registryctl ensure
  registryctl ensure organizations patient_counts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			var tables []schema.Table
			if len(args) == 0 {
				tables = a.registry.All()
			} else {
				for _, name := range args {
					t, err := a.store.Lookup(name)
					if err != nil {
						return err
					}
					tables = append(tables, t)
				}
			}
			for _, t := range tables {
				if err := a.schema.Ensure(cmd.Context(), t); err != nil {
					return fmt.Errorf("ensure %s: %w", t.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ensured %s\n", t.Name)
			}
			return nil
		},
	}
}

func getReportCmd(appFn func() *app) *cobra.Command {
	var (
		out     string
		tables  []string
		archive bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compile the cross-table workbook to a file",
		Long: `Compile one sheet per table into an xlsx workbook.
Without --table every live table known to the catalog is included.

Examples:
  registryctl report --out report.xlsx
  registryctl report --table patient_counts --table age_groups --archive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			if len(tables) == 0 {
				list, err := a.reports.ListReportableTables(cmd.Context())
				if err != nil {
					return err
				}
				for _, t := range list {
					if t.Known {
						tables = append(tables, t.Name)
					}
				}
			}

			rep, err := a.reports.Compile(cmd.Context(), tables, archive)
			if err != nil {
				return err
			}
			if out == "" {
				out = rep.Filename
			}
			if err := os.WriteFile(out, rep.Workbook, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "wrote %s (%s, %d sheet(s))\n", out, humanize.Bytes(uint64(len(rep.Workbook))), len(rep.Sheets))
			if len(rep.Failed) > 0 {
				fmt.Fprintf(w, "failed: %s\n", strings.Join(rep.Failed, ", "))
			}
			if rep.ArchiveURL != "" {
				fmt.Fprintf(w, "archived to %s\n", rep.ArchiveURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: generated name)")
	cmd.Flags().StringSliceVarP(&tables, "table", "t", nil, "table to include (repeatable)")
	cmd.Flags().BoolVar(&archive, "archive", false, "also upload the workbook to REPORT_BUCKET")
	return cmd
}

func getImportCmd(appFn func() *app) *cobra.Command {
	var logOut string
	cmd := &cobra.Command{
		Use:   "import <table> <file.xlsx>",
		Short: "Import a spreadsheet into a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			table, path := args[0], args[1]
			if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
				return fmt.Errorf("only .xlsx files are supported")
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			res, err := a.imports.Import(cmd.Context(), table, f, filepath.Base(path), info.Size())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s: %d ok, %d failed, %d skipped\n", res.Table, res.OK, res.Failed, res.Skipped)
			for _, r := range res.Rows {
				if r.Status == importer.StatusFailed {
					fmt.Fprintf(w, "  row %d: %s\n", r.Row, r.Reason)
				}
			}

			if logOut != "" {
				data, err := a.imports.ResultWorkbook(res)
				if err != nil {
					return err
				}
				if err := os.WriteFile(logOut, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", logOut, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logOut, "log", "", "write the per-row result workbook to this file")
	return cmd
}

func getRebuildSummaryCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-summary",
		Short: "Rebuild the combined age group summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := appFn().aggregates.RebuildAgeSummary(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s rebuilt from %s: %s row(s)\n",
				res.Table, res.Source, humanize.Comma(res.Inserted))
			return nil
		},
	}
}
