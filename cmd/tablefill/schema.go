package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmrzaf/tablefill/internal/infra/repos/schemas"
)

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Discover CREATE TABLE scripts",
	}

	var format string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List table scripts in the schema directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := schemas.NewFileRepository(cfg.SchemaDir, newLogger())
			list, err := repo.List()
			if err != nil {
				return err
			}

			if format == "json" {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			if len(list) == 0 {
				fmt.Printf("No files matching %s in %s\n", strings.Join(schemas.FilePatterns, " or "), cfg.SchemaDir)
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tTABLES")
			for _, f := range list {
				fmt.Fprintf(w, "%s\t%s\n", f.Path, strings.Join(f.Tables, ", "))
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	cmd.AddCommand(listCmd)
	return cmd
}
