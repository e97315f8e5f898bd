package settings

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sipvpn/domain/mode"
)

// Duration wraps time.Duration so config files spell durations the way
// a human writes them ("30s", "2m") instead of as raw nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("settings: invalid duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Config is the on-disk shape of a sipvpn instance's configuration,
// shared by both the client and server subcommands. After Load returns,
// cobra flags may override every field except Mode, InterfaceName and
// InterfaceCIDR, which have no flag.
type Config struct {
	Mode string `yaml:"mode"`

	// Server is the tunnel peer's host, in its raw configured form
	// (domain name or IP, without a port; the port is Port). The client
	// dials it; the server binds it as its local listen address.
	Server string `yaml:"server"`
	Port   int    `yaml:"port"`

	MTU       int      `yaml:"mtu"`
	Key       string   `yaml:"key"`
	Duplicate bool     `yaml:"duplicate"`
	Keepalive Duration `yaml:"keepalive"`

	InterfaceName string `yaml:"interface_name"`
	InterfaceCIDR string `yaml:"interface_cidr"`

	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
	User        string `yaml:"user"`
	NAT         bool   `yaml:"nat"`
}

// Default returns a Config with the MTU/interface defaults used in the
// absence of an operator override.
func Default() Config {
	return Config{
		MTU:           1400,
		InterfaceName: "sipvpn0",
		InterfaceCIDR: "10.0.0.1/24",
		Port:          4500,
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() so unset fields keep sensible values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ParseMode maps the config's mode string onto domain/mode.Mode, with
// typed errors for the empty and unrecognized cases.
func (c *Config) ParseMode() (mode.Mode, error) {
	switch c.Mode {
	case "":
		return mode.Unknown, mode.NewNoModeProvided()
	case "client":
		return mode.Client, nil
	case "server":
		return mode.Server, nil
	default:
		return mode.Unknown, mode.NewInvalidModeProvided(c.Mode)
	}
}

// ResolveServerAddr turns the configured Server/Port into a
// netip.AddrPort, resolving a domain name via Host.RouteIP when Server
// is not already a literal IP address.
func (c *Config) ResolveServerAddr() (netip.AddrPort, error) {
	host, err := NewHost(c.Server)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("settings: invalid server %q: %w", c.Server, err)
	}
	if host.IsIP() {
		return host.AddrPort(c.Port)
	}

	ip, err := host.RouteIP()
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("settings: resolve %q: %w", c.Server, err)
	}
	resolved, err := IPHost(ip)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return resolved.AddrPort(c.Port)
}

// ListenAddr returns the local address the server binds: the
// configured Server/Port if set, or all interfaces otherwise.
func (c *Config) ListenAddr() (netip.AddrPort, error) {
	if c.Server == "" {
		return netip.AddrPortFrom(netip.IPv4Unspecified(), uint16(c.Port)), nil
	}
	return c.ResolveServerAddr()
}
