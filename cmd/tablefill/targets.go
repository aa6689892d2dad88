package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mmrzaf/tablefill/internal/app"
	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/infra/repos/targets"
	"github.com/mmrzaf/tablefill/internal/validation"
)

func targetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage target profiles",
	}

	var format string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List target profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := openHistory()
			if err != nil {
				return err
			}
			defer history.Close()
			_, chain := targetRepos(history, newLogger())

			list, err := chain.List()
			if err != nil {
				return err
			}
			list = targets.RedactTargets(list)

			if format == "json" {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tKIND\tDSN")
			for _, t := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortID(t.ID), t.Name, t.Kind, truncate(t.DSN, 50))
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	var showSecrets bool
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show target details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := openHistory()
			if err != nil {
				return err
			}
			defer history.Close()
			_, chain := targetRepos(history, newLogger())

			target, err := chain.Get(args[0])
			if err != nil {
				return err
			}
			if !showSecrets {
				target = targets.RedactTarget(target)
			}

			data, _ := yaml.Marshal(target)
			fmt.Print(string(data))
			return nil
		},
	}
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print the DSN unmasked")

	validateCmd := &cobra.Command{
		Use:   "validate <id|path>",
		Short: "Validate a target profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			var target *domain.TargetConfig
			var err error

			if looksLikePath(args[0]) {
				target, err = targets.NewFileRepository(cfg.TargetsDir, logger).GetByPath(args[0])
			} else {
				history, herr := openHistory()
				if herr != nil {
					return herr
				}
				defer history.Close()
				_, chain := targetRepos(history, logger)
				target, err = chain.Get(args[0])
			}
			if err != nil {
				return err
			}

			validator := validation.NewValidator(nil)
			if err := validator.ValidateTarget(target); err != nil {
				color.Red("Validation failed: %v", err)
				return err
			}

			color.Green("Target '%s' is valid", target.Name)
			return nil
		},
	}

	testCmd := &cobra.Command{
		Use:   "test <id>",
		Short: "Connect to a target and record the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := openHistory()
			if err != nil {
				return err
			}
			defer history.Close()
			saved, chain := targetRepos(history, newLogger())

			target, err := chain.Get(args[0])
			if err != nil {
				return err
			}

			check, checkErr := app.CheckTarget(cmd.Context(), target)
			if check != nil {
				if check.TargetID == "" {
					check.TargetID = target.Name
				}
				if err := saved.RecordCheck(check); err != nil {
					return fmt.Errorf("failed to record check: %w", err)
				}
			}
			if checkErr != nil {
				color.Red("Target '%s' is unreachable: %v", target.Name, checkErr)
				return checkErr
			}

			color.Green("Target '%s' OK (%d ms)", target.Name, check.LatencyMS)
			if check.ServerVer != "" {
				fmt.Printf("Server version: %s\n", check.ServerVer)
			}
			return nil
		},
	}

	var checksLimit int
	checksCmd := &cobra.Command{
		Use:   "checks <id>",
		Short: "Show recent connection checks of a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := openHistory()
			if err != nil {
				return err
			}
			defer history.Close()
			saved, chain := targetRepos(history, newLogger())

			targetID := args[0]
			if target, err := chain.Get(args[0]); err == nil && target.ID != "" {
				targetID = target.ID
			}
			list, err := saved.ListChecks(targetID, checksLimit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHECKED\tOK\tLATENCY_MS\tVERSION\tERROR")
			for _, c := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					c.CheckedAt.Local().Format("2006-01-02 15:04:05"), yesNo(c.OK), c.LatencyMS, c.ServerVer, truncate(c.Error, 60))
			}
			w.Flush()
			return nil
		},
	}
	checksCmd.Flags().IntVar(&checksLimit, "limit", 20, "Limit results")

	var add domain.TargetConfig
	var addOptions []string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Save a target profile in the local database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			add.Name = args[0]
			add.Kind = strings.ToLower(add.Kind)
			if len(addOptions) > 0 {
				add.Options = make(map[string]string, len(addOptions))
				for _, kv := range addOptions {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid option format: %s", kv)
					}
					add.Options[strings.TrimSpace(parts[0])] = parts[1]
				}
			}

			validator := validation.NewValidator(nil)
			if err := validator.ValidateTarget(&add); err != nil {
				return err
			}

			history, err := openHistory()
			if err != nil {
				return err
			}
			defer history.Close()
			saved, _ := targetRepos(history, newLogger())
			if err := saved.Create(&add); err != nil {
				return fmt.Errorf("failed to save target: %w", err)
			}
			color.Green("Saved target '%s' (%s)", add.Name, add.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&add.Kind, "kind", "", "Target kind (postgres|sqlite|mysql|sqlserver)")
	addCmd.Flags().StringVar(&add.DSN, "dsn", "", "Connection string")
	addCmd.Flags().StringVar(&add.Schema, "schema", "", "Schema")
	addCmd.Flags().StringVar(&add.Database, "database", "", "Database")
	addCmd.Flags().StringSliceVar(&addOptions, "option", nil, "SQL Server option (key=value)")

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a saved target profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := openHistory()
			if err != nil {
				return err
			}
			defer history.Close()
			saved, _ := targetRepos(history, newLogger())

			target, err := saved.Get(args[0])
			if err != nil {
				return err
			}
			if err := saved.Delete(target.ID); err != nil {
				return err
			}
			fmt.Printf("Deleted target '%s'\n", target.Name)
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd, validateCmd, testCmd, checksCmd, addCmd, rmCmd)
	return cmd
}

func looksLikePath(s string) bool {
	return strings.ContainsRune(s, os.PathSeparator) || strings.Contains(s, "/") ||
		strings.HasSuffix(s, ".yaml") || strings.HasSuffix(s, ".yml") || strings.HasSuffix(s, ".json")
}
