package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"multigateway-api/app"
	"multigateway-api/models"
)

var errNoQueue = errors.New("REDIS_URL is not configured")

func gatewaysCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "gateways",
		Short: "List registered gateways and whether they are enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(a *app.App) error {
				out := cmd.OutOrStdout()
				for _, e := range a.Registry.List() {
					state := "disabled"
					if _, ok := a.Gateways[e.Name]; ok {
						state = "enabled"
					}
					fmt.Fprintf(out, "%-15s %-9s %s  %v\n", e.Name, state, e.DefaultCurrency, e.Actions)
				}
				return nil
			})
		},
	}
}

func tokenCmd(load appLoader) *cobra.Command {
	var (
		gateways []string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token [merchant-id]",
		Short: "Issue an API token for a merchant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(a *app.App) error {
				if a.JWT == nil {
					return errors.New("JWT_SECRET is not configured")
				}
				token, err := a.JWT.GenerateToken(models.Merchant{ID: args[0], Gateways: gateways}, ttl)
				if err != nil {
					return err
				}
				return printJSON(cmd, token)
			})
		},
	}
	cmd.Flags().StringSliceVar(&gateways, "gateways", nil, "restrict the token to these gateways")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func migrateCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the transaction log schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(a *app.App) error {
				if err := a.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", a.Config.Database.Driver)
				return nil
			})
		},
	}
}

func jobsCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and retry queued gateway jobs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "failed",
		Short: "List jobs that exhausted their retries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(a *app.App) error {
				if a.Queue == nil {
					return errNoQueue
				}
				jobs, err := a.Queue.FailedJobs(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, jobs)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "retry [job-id]",
		Short: "Move a failed job back onto the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(a *app.App) error {
				if a.Queue == nil {
					return errNoQueue
				}
				if err := a.Queue.RetryJob(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %s re-queued\n", args[0])
				return nil
			})
		},
	})

	return cmd
}
