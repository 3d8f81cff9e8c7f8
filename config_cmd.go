package main

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// newConfigCmd returns the `drivecache config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			return toml.NewEncoder(os.Stdout).Encode(resolvedCfg)
		},
	})

	return cmd
}
