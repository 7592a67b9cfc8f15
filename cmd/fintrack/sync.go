package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"fintrack/internal/worker"
)

func syncCmd() *cobra.Command {
	var (
		entities []string
		queue    bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local data with the remote store",
		Long: `Runs one sync round per entity now. With --queue the rounds are handed to
the worker instead, through the broker when one is configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			user, err := currentUser(ctx)
			if err != nil {
				return err
			}

			selected := app.SyncWorkers
			if len(entities) > 0 {
				selected = nil
				for _, w := range app.SyncWorkers {
					if slices.Contains(entities, string(w.Entity())) {
						selected = append(selected, w)
					}
				}
				if len(selected) == 0 {
					return fmt.Errorf("no syncable entity in %v", entities)
				}
			}

			if queue {
				for _, w := range selected {
					if err := app.Sync.RequestSync(ctx, w.Entity(), user.ID); err != nil {
						return err
					}
					fmt.Printf("%-8s queued\n", w.Entity())
				}
				return nil
			}

			outcomes := worker.SyncAll(ctx, selected, user.ID)
			failed := 0
			for _, w := range selected {
				o := outcomes[w.Entity()]
				fmt.Printf("%-8s %s\n", w.Entity(), o)
				if o != worker.Success {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d entities did not sync", failed, len(selected))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&entities, "entity", nil, fmt.Sprintf("entities to sync %v (default: all)", worker.SyncEntities))
	cmd.Flags().BoolVar(&queue, "queue", false, "request the sync from the worker instead of running it here")
	return cmd
}
