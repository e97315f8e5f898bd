package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"sipvpn/application"
	"sipvpn/domain/mode"
	"sipvpn/domain/peer"
	"sipvpn/engine"
	"sipvpn/infrastructure/clock"
	"sipvpn/infrastructure/cryptography/envelope"
	"sipvpn/infrastructure/endpoint"
	"sipvpn/infrastructure/logging"
	"sipvpn/infrastructure/metrics"
	"sipvpn/infrastructure/nat"
	"sipvpn/infrastructure/privilege"
	"sipvpn/infrastructure/settings"
	"sipvpn/infrastructure/socket"
	"sipvpn/infrastructure/tun"
)

// runTunnel wires every collaborator the engine needs and runs it until
// an interrupt or a fatal setup/I-O error. want pins the subcommand's
// expected mode so a config file edited for the other role is rejected
// rather than silently run the wrong way.
func runTunnel(cmd *cobra.Command, want mode.Mode, label string) error {
	cfg, err := settings.Load(configPath)
	if err != nil {
		return err
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		return fmt.Errorf("sipvpn %s: %w", label, err)
	}

	parsedMode, err := cfg.ParseMode()
	if err != nil {
		return fmt.Errorf("sipvpn %s: %w", label, err)
	}
	if parsedMode != want {
		return fmt.Errorf("sipvpn %s: config mode is %q, expected %q", label, cfg.Mode, label)
	}

	if !privilege.IsElevated() {
		return fmt.Errorf("sipvpn %s: must run as root to create the tun device", label)
	}

	runID := xid.New().String()
	logger := logging.NewLogLogger(runID)

	tunDevice, err := tun.Open(tun.Config{
		InterfaceName: cfg.InterfaceName,
		InterfaceCIDR: cfg.InterfaceCIDR,
		MTU:           cfg.MTU,
	})
	if err != nil {
		return fmt.Errorf("sipvpn %s: %w", label, err)
	}

	if cfg.NAT && parsedMode == mode.Server {
		if err := nat.Toggle(cfg.InterfaceCIDR, cfg.InterfaceName, true); err != nil {
			logger.Printf("nat enable: %v", err)
		}
	}

	udpSocket, peerTracker, err := bindAndTrack(parsedMode, cfg)
	if err != nil {
		_ = tunDevice.Close()
		return fmt.Errorf("sipvpn %s: %w", label, err)
	}

	env := envelope.New([]byte(cfg.Key))
	metricsSink := metricsFor(cfg, runID, logger)

	if err := privilege.DropTo(cfg.User); err != nil {
		logger.Printf("privilege drop: %v", err)
	}

	eng := engine.New(
		engine.Config{
			Mode:      parsedMode,
			MTU:       cfg.MTU,
			Duplicate: cfg.Duplicate,
			Keepalive: cfg.Keepalive.Duration,
		},
		tunDevice, udpSocket, env, peerTracker,
		clock.System{}, clock.Ticker{}, logger, metricsSink,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigCh
		logger.Printf("sipvpn %s: shutting down", label)
		cancel()
	}()

	logger.Printf("sipvpn %s: starting", label)
	runErr := eng.RouteTraffic(ctx)

	_ = udpSocket.Close()
	if cfg.NAT && parsedMode == mode.Server {
		if err := nat.Toggle(cfg.InterfaceCIDR, cfg.InterfaceName, false); err != nil {
			logger.Printf("nat disable: %v", err)
		}
	}
	_ = tunDevice.Close()
	if err := tun.Destroy(cfg.InterfaceName); err != nil {
		logger.Printf("tun destroy: %v", err)
	}

	if runErr != nil && runErr != context.Canceled {
		return runErr
	}
	return nil
}

// bindAndTrack binds the UDP socket and constructs the matching peer
// tracker: a client dials a fixed, resolved server address; a server
// binds locally and starts with no known peer.
func bindAndTrack(m mode.Mode, cfg *settings.Config) (application.UDPSocket, *peer.Tracker, error) {
	if m == mode.Client {
		addr, err := cfg.ResolveServerAddr()
		if err != nil {
			return nil, nil, err
		}
		sock, err := socket.ListenClient()
		if err != nil {
			return nil, nil, err
		}
		return sock, peer.NewClient(addr), nil
	}

	listenAddr, err := cfg.ListenAddr()
	if err != nil {
		return nil, nil, err
	}
	local, err := endpoint.NewSocket(listenAddr.Addr().String(), strconv.Itoa(int(listenAddr.Port())))
	if err != nil {
		return nil, nil, err
	}
	sock, err := socket.ListenServer(local)
	if err != nil {
		return nil, nil, err
	}
	return sock, peer.NewServer(), nil
}

// metricsFor serves Prometheus metrics over HTTP when metrics_addr is
// configured, or returns a no-op sink otherwise.
func metricsFor(cfg *settings.Config, runID string, logger application.Logger) application.MetricsSink {
	if cfg.MetricsAddr == "" {
		return metrics.Noop{}
	}
	sink := metrics.New(runID)
	mux := http.NewServeMux()
	mux.Handle("/metrics", sink.Handler())
	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Printf("metrics listener: %v", err)
		}
	}()
	return sink
}
