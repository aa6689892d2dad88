package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/progress"
)

// tableFlags are shared by the commands that name one table.
type tableFlags struct {
	schemaPath    string
	table         string
	targetID      string
	targetDSN     string
	targetKind    string
	targetSchema  string
	inferIdentity bool
}

func (f *tableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.schemaPath, "schema", "f", "", "CREATE TABLE script")
	cmd.Flags().StringVarP(&f.table, "table", "t", "", "Table name, optionally schema-qualified")
	cmd.Flags().StringVar(&f.targetID, "target", "", "Target profile id or name")
	cmd.Flags().StringVar(&f.targetDSN, "dsn", "", "Inline target DSN")
	cmd.Flags().StringVar(&f.targetKind, "kind", "", "Inline target kind (required with --dsn)")
	cmd.Flags().StringVar(&f.targetSchema, "target-schema", "", "Inline target schema")
	cmd.Flags().BoolVar(&f.inferIdentity, "infer-identity", false, "Treat a lone integer primary key as identity")
}

func (f *tableFlags) request() (*domain.PopulateRequest, error) {
	req := &domain.PopulateRequest{
		SchemaPath:    f.schemaPath,
		Table:         f.table,
		TargetID:      f.targetID,
		InferIdentity: f.inferIdentity,
	}
	if f.targetDSN != "" {
		if f.targetKind == "" {
			return nil, fmt.Errorf("--kind required when using --dsn")
		}
		if f.targetID != "" {
			return nil, fmt.Errorf("use either --target or --dsn, not both")
		}
		req.Target = &domain.TargetConfig{
			Name:   "inline-target",
			Kind:   strings.ToLower(f.targetKind),
			DSN:    f.targetDSN,
			Schema: f.targetSchema,
		}
	}
	return req, nil
}

func inspectCmd() *cobra.Command {
	var tf tableFlags
	var format string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show a table's columns and how each will be generated",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := tf.request()
			if err != nil {
				return err
			}
			logger := newLogger()
			history, err := openHistory()
			if err != nil {
				return err
			}
			defer history.Close()
			svc := newService(history, logger)

			table, err := svc.ResolveTable(cmd.Context(), req)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				data, _ := json.MarshalIndent(table, "", "  ")
				fmt.Println(string(data))
				return nil
			case "yaml":
				data, _ := yaml.Marshal(table)
				fmt.Print(string(data))
				return nil
			}

			rules, err := svc.LoadRules()
			if err != nil {
				return err
			}
			synthesizer, err := svc.NewSynthesizer(cfg.Locale, 0, rules)
			if err != nil {
				return err
			}

			fmt.Printf("%s (%s)\n", table.Qualified(), table.Source)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tCOLUMN\tTYPE\tDECLARED\tNULL\tKEY\tTIER\tRULE")
			for _, c := range table.Columns {
				d := synthesizer.Decide(c)
				rule := d.Rule
				if d.Skip != domain.SkipNone {
					rule = d.Skip.String()
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					c.Position, c.Name, c.Type, c.DeclaredType, yesNo(c.Nullable), keyLabel(c), d.Tier, rule)
			}
			w.Flush()
			for _, warning := range table.Warnings {
				color.Yellow("warning: %s", warning)
			}
			return nil
		},
	}
	tf.register(cmd)
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table|json|yaml)")
	return cmd
}

func previewCmd() *cobra.Command {
	var tf tableFlags
	var rows int
	var seed int64
	var format string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Generate sample rows without writing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := tf.request()
			if err != nil {
				return err
			}
			if rows <= 0 {
				return fmt.Errorf("--rows must be > 0, got %d", rows)
			}
			logger := newLogger()
			history, err := openHistory()
			if err != nil {
				return err
			}
			defer history.Close()
			svc := newService(history, logger)

			table, err := svc.ResolveTable(cmd.Context(), req)
			if err != nil {
				return err
			}
			generated, err := svc.PreviewRows(table, rows, seed)
			if err != nil {
				return err
			}

			if format == "json" {
				out := make([]map[string]string, 0, len(generated))
				for _, r := range generated {
					m := make(map[string]string, len(r.Columns))
					for i, c := range r.Columns {
						m[c] = formatValue(r.Values[i])
					}
					out = append(out, m)
				}
				data, _ := json.MarshalIndent(out, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			if len(generated) == 0 {
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(generated[0].Columns, "\t"))
			for _, r := range generated {
				cells := make([]string, len(r.Values))
				for i, v := range r.Values {
					cells[i] = formatValue(v)
				}
				fmt.Fprintln(w, strings.Join(cells, "\t"))
			}
			w.Flush()
			return nil
		},
	}
	tf.register(cmd)
	cmd.Flags().IntVarP(&rows, "rows", "n", 5, "Rows to generate")
	cmd.Flags().Int64VarP(&seed, "seed", "s", 0, "Seed for RNG")
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")
	return cmd
}

func populateCmd() *cobra.Command {
	var tf tableFlags
	var (
		rows       int64
		seed       int64
		batchSize  int
		truncate   bool
		noProgress bool
		format     string
	)

	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Generate rows and insert them into a target table",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := tf.request()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("rows") {
				rows = cfg.DefaultRows
			}
			req.Rows = rows
			req.BatchSize = batchSize
			req.Truncate = truncate
			req.Locale = cfg.Locale
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}

			logger := newLogger()
			history, err := openHistory()
			if err != nil {
				return err
			}
			defer history.Close()
			svc := newService(history, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var bar *progress.Bar
			var onProgress func(done, total int64)
			if !noProgress && format != "json" && rows > 0 {
				bar = progress.NewBar(rows, "populate")
				onProgress = bar.Track()
			}

			run, err := svc.PopulateWithProgress(ctx, req, onProgress)
			if bar != nil {
				bar.Finish()
			}
			if run == nil {
				return err
			}
			if format == "json" {
				data, _ := json.MarshalIndent(run, "", "  ")
				fmt.Println(string(data))
				return err
			}
			printRunSummary(run)
			return err
		},
	}
	tf.register(cmd)
	cmd.Flags().Int64VarP(&rows, "rows", "n", 10, "Rows to insert")
	cmd.Flags().Int64VarP(&seed, "seed", "s", 0, "Seed for RNG")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Rows per insert transaction (default from config)")
	cmd.Flags().BoolVar(&truncate, "truncate", false, "Empty the table first")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide the progress bar")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text|json)")
	return cmd
}

func printRunSummary(run *domain.Run) {
	var stats domain.RunStats
	if len(run.Stats) > 0 {
		_ = json.Unmarshal(run.Stats, &stats)
	}
	if run.Status == domain.RunStatusSuccess {
		color.Green("Run %s completed", run.ID)
	} else {
		color.Red("Run %s failed: %s", run.ID, run.Error)
	}
	fmt.Printf("Table:    %s -> %s (%s)\n", run.Table, run.TargetName, run.TargetKind)
	fmt.Printf("Seed:     %d\n", run.Seed)
	fmt.Printf("Inserted: %d of %d\n", stats.RowsInserted, run.RowsRequested)
	if stats.RowsFailed > 0 {
		color.Yellow("Failed:   %d", stats.RowsFailed)
	}
	if stats.Retries > 0 {
		fmt.Printf("Retries:  %d\n", stats.Retries)
	}
	if len(stats.SkippedColumns) > 0 {
		fmt.Printf("Skipped:  %s\n", strings.Join(stats.SkippedColumns, ", "))
	}
	fmt.Printf("Duration: %.2fs\n", stats.DurationSeconds)
}
