// Package socket adapts a bound net.UDPConn to the application.UDPSocket
// contract the engine drives its event loop against.
package socket

import (
	"net"
	"net/netip"
	"time"

	"sipvpn/application"
	"sipvpn/domain/network"
	"sipvpn/infrastructure/listeners/udp_listener"
)

type udpSocket struct {
	conn *net.UDPConn
}

// ListenClient binds an ephemeral local UDP socket a client uses to talk
// to a single fixed remote address.
func ListenClient() (application.UDPSocket, error) {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, err
	}
	return &udpSocket{conn: conn}, nil
}

// ListenServer binds a UDP socket on the given local address, via the
// udp_listener adapter.
func ListenServer(local application.Socket) (application.UDPSocket, error) {
	listener := udp_listener.NewUdpListener(local)
	conn, err := listener.ListenUDP()
	if err != nil {
		return nil, err
	}
	return &udpSocket{conn: conn}, nil
}

func (s *udpSocket) Recv(buf []byte) (int, netip.AddrPort, error) {
	n, addr, err := s.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return 0, netip.AddrPort{}, network.NewErrTimeout(err)
		}
		return 0, netip.AddrPort{}, err
	}
	return n, addr, nil
}

func (s *udpSocket) Send(buf []byte, addr netip.AddrPort) error {
	_, err := s.conn.WriteToUDPAddrPort(buf, addr)
	return err
}

// SetReadDeadline validates t through domain/network before applying
// it, rejecting a deadline that has already elapsed. A zero t clears
// the deadline and always passes validation.
func (s *udpSocket) SetReadDeadline(t time.Time) error {
	if err := network.ValidateReadDeadline(t); err != nil {
		return err
	}
	return s.conn.SetReadDeadline(t)
}

func (s *udpSocket) Close() error {
	return s.conn.Close()
}
