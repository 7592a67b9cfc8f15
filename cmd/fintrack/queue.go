package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the background work queue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Count jobs by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := app.Processor().Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("pending:   %d\nrunning:   %d\ncompleted: %d\nfailed:    %d\n",
				stats.Pending, stats.Running, stats.Completed, stats.Failed)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "retry-failed",
		Short: "Requeue every failed job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := app.Processor().RetryFailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Requeued %d jobs\n", n)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the jobs that are due now, without starting the worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := app.Processor().RunDue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Ran %d jobs\n", n)
			return nil
		},
	})
	return cmd
}
