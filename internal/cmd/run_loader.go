package cmd

import (
	"fmt"
	"strconv"

	"github.com/sifat29/smartos/internal/loader"
	"github.com/sifat29/smartos/internal/output"
	"github.com/spf13/cobra"
)

func addRunLoaderCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "run-loader <elf-path> <policy> <max-pages>",
		Short: "Demand-page load and run a guest ELF executable",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxPages, err := strconv.Atoi(args[2])
			if err != nil || maxPages <= 0 {
				return fmt.Errorf("max-pages must be a positive integer")
			}

			l, err := loader.New(args[0], args[1], maxPages, "")
			if err != nil {
				if jsonFlag {
					return output.PrintError(cmd.OutOrStdout(), "loader_init_failed", err.Error())
				}
				return err
			}
			defer l.Cleanup()

			result, err := l.Run()
			if err != nil {
				if jsonFlag {
					return output.PrintError(cmd.OutOrStdout(), "loader_run_failed", err.Error())
				}
				return err
			}

			stats := l.Stats()
			if jsonFlag {
				return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
					"entry_result": result,
					"stats":        stats,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User _start return value = %d\n", result)
			fmt.Fprint(cmd.OutOrStdout(), stats.String())
			return nil
		},
	}
	root.AddCommand(cmd)
}
