package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd is the bare entry point; the actual work happens in the
// client and server subcommands.
var rootCmd = &cobra.Command{
	Use:   "sipvpn",
	Short: "sipvpn is an obfuscated, authenticated UDP tunnel",
	Long: `sipvpn tunnels IP traffic between two endpoints over a single
obfuscated, authenticated, encrypted UDP stream.

Run "sipvpn server" on the side with a stable address, then
"sipvpn client" on the other end pointed at it.`,
}

// Execute runs the root command, exiting non-zero on any setup error
// (config load, tun device creation, socket bind). Only setup errors
// reach main; packet-scoped errors are logged and the engine
// continues.
func Execute() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/sipvpn/config.yaml", "path to the YAML config file")

	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
