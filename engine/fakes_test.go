package engine

import (
	"net/netip"
	"time"
)

// fakeTun is an in-memory application.TunDevice recording every Write
// call; Read is never exercised by these tests since they drive
// handleTunPacket directly rather than through the reactor's tun-read
// goroutine.
type fakeTun struct {
	written [][]byte
}

func (f *fakeTun) Read([]byte) (int, error) { select {} }

func (f *fakeTun) Write(data []byte) (int, error) {
	f.written = append(f.written, append([]byte(nil), data...))
	return len(data), nil
}

func (f *fakeTun) Close() error { return nil }

// fakeWire is one datagram captured by fakeSocket.Send.
type fakeWire struct {
	data []byte
	dst  netip.AddrPort
}

// fakeSocket is an in-memory application.UDPSocket that records every
// Send call. Tests wire two engines' sockets together by feeding one
// engine's recorded sends into the other's handleUDPPacket directly,
// rather than through a real network round trip.
type fakeSocket struct {
	sent []fakeWire
}

func (s *fakeSocket) Recv([]byte) (int, netip.AddrPort, error) { select {} }

func (s *fakeSocket) Send(buf []byte, addr netip.AddrPort) error {
	s.sent = append(s.sent, fakeWire{data: append([]byte(nil), buf...), dst: addr})
	return nil
}

func (s *fakeSocket) SetReadDeadline(time.Time) error { return nil }
func (s *fakeSocket) Close() error                    { return nil }

// drain returns and clears every send recorded so far.
func (s *fakeSocket) drain() []fakeWire {
	out := s.sent
	s.sent = nil
	return out
}

// fakeClock gives the test explicit control over the time onTick and
// the retransmit table see.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

// fakeTimer satisfies application.Timer; its channels are never driven
// in these tests because onTick and the keepalive send are invoked
// directly rather than through RouteTraffic's select loop.
type fakeTimer struct{}

func (fakeTimer) Tick(time.Duration) <-chan time.Time { return make(chan time.Time) }

type discardLogger struct{}

func (discardLogger) Printf(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) IncPacketsIn()           {}
func (noopMetrics) IncPacketsOut()          {}
func (noopMetrics) IncDedupDropped()        {}
func (noopMetrics) IncAuthFailed()          {}
func (noopMetrics) IncRetransmits(int)      {}
func (noopMetrics) IncAcksSent()            {}
func (noopMetrics) SetRetransmitInUse(int)  {}
func (noopMetrics) SetAckQueueLen(int)      {}
