// Package endpoint provides the small, concrete network-facing value
// type the engine's socket adapters are built on: a validated ip:port
// pair satisfying application.Socket.
package endpoint

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Socket is a validated host:port pair describing a UDP endpoint before
// it is bound (server) or dialed (client).
type Socket struct {
	ip   string
	port string
}

// NewSocket validates ip and port and returns a Socket. ip may be empty
// to mean "any address" (used by a server binding to all interfaces).
func NewSocket(ip, port string) (*Socket, error) {
	s := &Socket{ip: ip, port: port}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// UdpAddr resolves the socket to a *net.UDPAddr.
func (s *Socket) UdpAddr() (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", s.StringAddr())
}

// StringAddr returns the "host:port" form net.Dial/net.Listen expect.
func (s *Socket) StringAddr() string {
	return net.JoinHostPort(s.ip, s.port)
}

func (s *Socket) validate() error {
	if s.ip != "" {
		if strings.Contains(s.ip, "%") {
			return fmt.Errorf("endpoint: invalid IP %q: zone specifiers are not supported", s.ip)
		}
		if _, err := netip.ParseAddr(s.ip); err != nil {
			return fmt.Errorf("endpoint: invalid IP %q: %w", s.ip, err)
		}
	}

	port, err := strconv.ParseUint(s.port, 10, 16)
	if err != nil {
		return fmt.Errorf("endpoint: invalid port %q: %w", s.port, err)
	}
	if port == 0 {
		return fmt.Errorf("endpoint: port must be > 0")
	}
	return nil
}
