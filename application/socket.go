package application

import (
	"net"
	"net/netip"
	"time"
)

// Socket describes a configured UDP endpoint before it is bound: either
// the local address a server listens on, or the remote address a client
// dials.
type Socket interface {
	StringAddr() string
	UdpAddr() (*net.UDPAddr, error)
}

// UDPSocket is the bound-socket contract the engine drives its event
// loop against. Recv and Send operate on whole wire packets; the engine
// owns buffer allocation and passes a reusable slice to Recv.
type UDPSocket interface {
	Recv(buf []byte) (n int, addr netip.AddrPort, err error)
	Send(buf []byte, addr netip.AddrPort) error
	// SetReadDeadline bounds the next Recv call, so a reader goroutine
	// can periodically give up and check for shutdown. A zero deadline
	// clears any previously set one.
	SetReadDeadline(t time.Time) error
	Close() error
}
