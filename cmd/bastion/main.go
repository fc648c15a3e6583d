package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dcrodman/bastion/internal/core"
)

var ConfigFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "bastion",
		Short: "Bastion game server and related tools",
		RunE:  ServerCommand,
	}
	rootCmd.PersistentFlags().StringVarP(&ConfigFlag, "config", "c", "", "Path to the server config/data directory")

	levelCmd.AddCommand(levelShowCmd)
	levelCmd.AddCommand(levelCreateCmd)
	levelCmd.AddCommand(levelDeleteCmd)
	levelCreateCmd.Flags().Int64Var(&LevelIDFlag, "id", 0, "ID of the new level (0 assigns the next free one)")
	levelCreateCmd.Flags().StringVar(&LevelTokenFlag, "token", "", "Token of the new level (blank generates one)")

	analyzeCmd.Flags().StringVarP(&CaptureFileFlag, "file", "f", "", "pcap file to decode")
	analyzeCmd.Flags().StringVarP(&DeviceFlag, "device", "d", "", "Device on which to capture live traffic")
	analyzeCmd.Flags().IntVarP(&PortFlag, "port", "p", 9339, "Port the game server listens on")
	analyzeCmd.Flags().IntVar(&TruncateFlag, "truncate", 0, "Only dump the first N bytes of each body (0 dumps everything)")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(levelCmd)
	rootCmd.AddCommand(analyzeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig reads the config from ConfigFlag and changes to that directory
// so that any relative paths in the config file will resolve.
func loadConfig() (*core.Config, error) {
	if ConfigFlag != "" {
		if err := os.Chdir(ConfigFlag); err != nil {
			return nil, fmt.Errorf("error changing to config directory: %w", err)
		}
	}
	return core.LoadConfig(".")
}
