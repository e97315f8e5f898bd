package main

import (
	"time"

	"github.com/spf13/cobra"

	"sipvpn/infrastructure/settings"
)

// Override flags: registerOverrideFlags binds the same set on both the
// client and server subcommands; applyOverrides only copies a flag's
// value into cfg when the user actually passed it, via cobra's
// Flags().Changed, so an unset --mtu=0 or --duplicate=false can never
// clobber a config file's value.
var (
	flagServer      string
	flagPort        int
	flagMTU         int
	flagKey         string
	flagDuplicate   bool
	flagKeepalive   string
	flagUser        string
	flagLogLevel    string
	flagMetricsAddr string
	flagNAT         bool
)

func registerOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagServer, "server", "", "override the configured peer address")
	cmd.Flags().IntVar(&flagPort, "port", 0, "override the configured UDP port")
	cmd.Flags().IntVar(&flagMTU, "mtu", 0, "override the configured MTU")
	cmd.Flags().StringVar(&flagKey, "key", "", "override the configured pre-shared key")
	cmd.Flags().BoolVar(&flagDuplicate, "duplicate", false, "send each tun-originated packet three times")
	cmd.Flags().StringVar(&flagKeepalive, "keepalive", "", "override the client heartbeat period (e.g. 30s)")
	cmd.Flags().StringVar(&flagUser, "user", "", "override the unprivileged user to drop to")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level")
	cmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "override the Prometheus listen address")
	cmd.Flags().BoolVar(&flagNAT, "nat", false, "enable server-side NAT masquerading")
}

func applyOverrides(cmd *cobra.Command, cfg *settings.Config) error {
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Server = flagServer
	}
	if flags.Changed("port") {
		cfg.Port = flagPort
	}
	if flags.Changed("mtu") {
		cfg.MTU = flagMTU
	}
	if flags.Changed("key") {
		cfg.Key = flagKey
	}
	if flags.Changed("duplicate") {
		cfg.Duplicate = flagDuplicate
	}
	if flags.Changed("keepalive") {
		d, err := time.ParseDuration(flagKeepalive)
		if err != nil {
			return err
		}
		cfg.Keepalive = settings.Duration{Duration: d}
	}
	if flags.Changed("user") {
		cfg.User = flagUser
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = flagMetricsAddr
	}
	if flags.Changed("nat") {
		cfg.NAT = flagNAT
	}
	return nil
}
