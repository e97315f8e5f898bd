package settings

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Host is the parsed form of the config file's single `server` string:
// either a literal IP address (the common case, a tunnel endpoint is
// reached directly) or a domain name to resolve. Host carries only
// what ResolveServerAddr and ListenAddr actually need: parse once,
// then either use the IP directly or resolve the domain to one via
// RouteIP.
type Host struct {
	domain string
	ip     netip.Addr
}

var lookupHostContext = func(ctx context.Context, domain string) ([]string, error) {
	return net.DefaultResolver.LookupHost(ctx, domain)
}

// IPHost creates a Host from a string that must already be a literal
// IP address, for wrapping a RouteIP resolution result back into a
// Host before calling AddrPort.
func IPHost(raw string) (Host, error) {
	ip, ok := parseHostIP(strings.TrimSpace(raw))
	if !ok {
		return Host{}, fmt.Errorf("expected IP address, got %q", raw)
	}
	return Host{ip: ip}, nil
}

// NewHost parses the config file's `server` field: a literal IP
// address or a domain name. An empty string yields a zero Host,
// matching the server subcommand's bind-to-all-interfaces default.
func NewHost(raw string) (Host, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Host{}, nil
	}

	if ip, ok := parseHostIP(trimmed); ok {
		return Host{ip: ip}, nil
	}

	domain, ok := normalizeDomain(trimmed)
	if !ok {
		return Host{}, fmt.Errorf("invalid host %q: expected IP address or domain name", raw)
	}
	return Host{domain: domain}, nil
}

func (h Host) String() string {
	if h.domain != "" {
		return h.domain
	}
	if h.ip.IsValid() {
		return h.ip.String()
	}
	return ""
}

// IsZero reports whether NewHost parsed an empty `server` field.
func (h Host) IsZero() bool {
	return h.domain == "" && !h.ip.IsValid()
}

// IsIP reports whether the host was already a literal address,
// letting ResolveServerAddr skip DNS resolution entirely.
func (h Host) IsIP() bool {
	return h.ip.IsValid()
}

// AddrPort combines the host's IP with port. It is an error to call
// this on a domain Host; resolve it via RouteIP and wrap the result in
// IPHost first.
func (h Host) AddrPort(port int) (netip.AddrPort, error) {
	if !h.ip.IsValid() {
		return netip.AddrPort{}, fmt.Errorf("host %q is not an IP address", h.String())
	}
	if err := validatePort(port); err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(h.ip, uint16(port)), nil
}

// RouteIP resolves the host to a single IP address suitable for
// dialing: the literal IP if already one, otherwise the first address
// DNS returns for the domain.
func (h Host) RouteIP() (string, error) {
	return h.RouteIPContext(context.Background())
}

// RouteIPContext is RouteIP with a caller-supplied context bounding
// the DNS lookup.
func (h Host) RouteIPContext(ctx context.Context) (string, error) {
	if h.ip.IsValid() {
		return h.ip.String(), nil
	}
	if h.domain == "" {
		return "", fmt.Errorf("host %q is neither an IP address nor a domain name", h.String())
	}
	if ctx == nil {
		ctx = context.Background()
	}
	addrs, err := lookupHostContext(ctx, h.domain)
	if err != nil || len(addrs) == 0 {
		return "", fmt.Errorf("failed to resolve host %q: %v", h.domain, err)
	}
	for _, a := range addrs {
		if ip, parseErr := netip.ParseAddr(a); parseErr == nil {
			return ip.Unmap().String(), nil
		}
	}
	return "", fmt.Errorf("no usable address found resolving host %q", h.domain)
}

func parseHostIP(raw string) (netip.Addr, bool) {
	ip, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}

func normalizeDomain(raw string) (string, bool) {
	domain := strings.ToLower(strings.TrimSpace(raw))
	domain = strings.TrimSuffix(domain, ".")
	if domain == "" || len(domain) > 253 {
		return "", false
	}
	if strings.ContainsAny(domain, " \t\n\r/:?#[]@\\") {
		return "", false
	}
	labels := strings.Split(domain, ".")
	for _, label := range labels {
		if !isValidDomainLabel(label) {
			return "", false
		}
	}
	return domain, true
}

func isValidDomainLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, c := range label {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			continue
		}
		return false
	}
	return true
}
