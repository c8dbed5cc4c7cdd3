package cmd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sifat29/smartos/internal/output"
	"github.com/sifat29/smartos/internal/threadpool"
	"github.com/spf13/cobra"
)

func addPoolDemoCommand(root *cobra.Command) {
	var workers int
	var jobs int

	cmd := &cobra.Command{
		Use:   "pool-demo",
		Short: "Exercise the thread pool with synthetic jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool := threadpool.New(workers)
			defer pool.Cleanup()

			for i := 0; i < jobs; i++ {
				id := uuid.New()
				pool.Add(func(arg any) {
					time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
				}, id)
			}
			pool.Wait()

			stats := pool.Stats()
			if jsonFlag {
				return output.PrintJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workers=%d completed=%d pending=%d\n",
				stats.Workers, stats.Completed, stats.Pending)
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "n", 4, "Number of worker goroutines")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 20, "Number of synthetic jobs to run")

	root.AddCommand(cmd)
}
