// Package cli implements classboardctl, the operator command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/classboard/classboard/internal/app"
	"github.com/classboard/classboard/internal/platform/db"
	"github.com/classboard/classboard/internal/rbac"
)

type jobsFactory func(cfg *app.Config) *JobsCLI

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd(defaultJobs)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func defaultJobs(cfg *app.Config) *JobsCLI {
	return NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}, cfg.AuditQueue)
}

func newRootCmd(newJobs jobsFactory) *cobra.Command {
	var output string
	rootCmd := &cobra.Command{
		Use:           "classboardctl",
		Short:         "Operator tooling for classboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch output {
			case "text", "json":
				return nil
			default:
				return fmt.Errorf("unsupported output format %q", output)
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text or json")

	rootCmd.AddCommand(newJobsCmd(newJobs))
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newCapabilitiesCmd())
	rootCmd.AddCommand(newBootstrapCmd())
	return rootCmd
}

func outputFormat(cmd *cobra.Command) string {
	v, err := cmd.Flags().GetString("output")
	if err != nil || v == "" {
		return "text"
	}
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			pool, err := db.New(cmd.Context(), cfg.PGDSN, db.Options{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(pool); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Print the capabilities each role resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalogue := rbac.Catalogue()
			if outputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), catalogue)
			}
			for _, entry := range catalogue {
				caps := make([]string, 0, len(entry.Capabilities))
				for _, c := range entry.Capabilities {
					caps = append(caps, string(c))
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", entry.Role, strings.Join(caps, ", "))
			}
			return nil
		},
	}
}
