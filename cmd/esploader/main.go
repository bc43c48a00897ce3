// Command esploader provisions ESP-AT firmware onto a target chip and then
// relays the target's console.
package main

import (
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cobra.CheckErr(newRootCommand().Execute())
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "esploader",
		Short: "Flash ESP-AT images onto a target and relay its console",
		Long: `esploader holds the target in download mode, writes every image of the
detected chip variant, resets the target and then relays its serial
console until interrupted.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFixture(cmd.Context(), configPath, cmd.OutOrStdout())
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	root.AddCommand(newImagesCommand(&configPath))
	root.AddCommand(newVersionCommand())
	return root
}
