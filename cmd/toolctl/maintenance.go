package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"toolhub/internal/config"
	"toolhub/internal/core/services"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// app.Open migrates
		_, _, cancel, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

var seedMasterOnly bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed development accounts, categories and sample tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, cancel, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		if seedMasterOnly {
			return config.SeedMasterData(a.DB)
		}
		return config.NewSeeder(a.DB).Run()
	},
}

var notifyOverdue bool

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "List lent loans past their planned return date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, cancel, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		svc := a.Services
		if notifyOverdue {
			n, err := services.NewCronService(svc.Reports, nil, a.Notifier, svc.FinePerDay).RunOverdueCheck(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d overdue loan(s) notified\n", n)
			return nil
		}

		loans, err := svc.Reports.Overdue(ctx, svc.FinePerDay)
		if err != nil {
			return err
		}
		return writeOverdue(cmd.OutOrStdout(), loans)
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedMasterOnly, "master-only", false, "Only categories and sample tools, no accounts")
	overdueCmd.Flags().BoolVar(&notifyOverdue, "notify", false, "Send a webhook notification per overdue loan")
}
