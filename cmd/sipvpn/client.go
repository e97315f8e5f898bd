package main

import (
	"github.com/spf13/cobra"

	"sipvpn/domain/mode"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "dial the configured server and tunnel traffic to it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTunnel(cmd, mode.Client, "client")
	},
}

func init() {
	registerOverrideFlags(clientCmd)
}
