package main

import (
	"github.com/spf13/cobra"

	"fintrack/internal/services"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Monthly breakdown of expenses and incomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := currentUser(cmd.Context())
			if err != nil {
				return err
			}
			p, err := period()
			if err != nil {
				return err
			}
			return show(cmd, app.UseCases.GetReport, services.PeriodRequest{UserID: user.ID, Period: p}, printReport)
		},
	}
	cmd.Flags().Bool("watch", false, "keep printing as transactions change")
	return cmd
}

func homeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "home",
		Short: "Budget totals and recent activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := currentUser(cmd.Context())
			if err != nil {
				return err
			}
			p, err := period()
			if err != nil {
				return err
			}
			return show(cmd, app.UseCases.Home, services.PeriodRequest{UserID: user.ID, Period: p}, printHome)
		},
	}
	cmd.Flags().Bool("watch", false, "keep printing as data changes")
	return cmd
}
