package cmd

import (
	"fmt"

	"github.com/sifat29/smartos/internal/config"
	"github.com/sifat29/smartos/internal/output"
	"github.com/spf13/cobra"
)

func addConfigCommand(root *cobra.Command) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Read or write ~/.smartos/config.toml",
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val, err := config.Get(args[0])
			if err != nil {
				if jsonFlag {
					return output.PrintError(cmd.OutOrStdout(), "unknown_key", err.Error())
				}
				return err
			}
			if jsonFlag {
				return output.PrintJSON(cmd.OutOrStdout(), map[string]string{args[0]: val})
			}
			fmt.Fprintln(cmd.OutOrStdout(), val)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set and persist a config value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Set(args[0], args[1]); err != nil {
				if jsonFlag {
					return output.PrintError(cmd.OutOrStdout(), "invalid_value", err.Error())
				}
				return err
			}
			return nil
		},
	}

	configCmd.AddCommand(getCmd, setCmd)
	root.AddCommand(configCmd)
}
