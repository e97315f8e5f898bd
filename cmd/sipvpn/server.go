package main

import (
	"github.com/spf13/cobra"

	"sipvpn/domain/mode"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "bind and serve clients that roam across NAT rebindings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTunnel(cmd, mode.Server, "server")
	},
}

func init() {
	registerOverrideFlags(serverCmd)
}
