// Package engine implements the single-threaded packet engine: the
// reactor that moves datagrams between a tun device and a UDP socket,
// authenticating, obfuscating, deduplicating, acking and retransmitting
// them along the way.
package engine

import (
	"context"
	"net/netip"
	"time"

	"sipvpn/application"
	"sipvpn/domain/ackqueue"
	"sipvpn/domain/dedup"
	"sipvpn/domain/mode"
	"sipvpn/domain/packet"
	"sipvpn/domain/peer"
	"sipvpn/domain/retransmit"
	"sipvpn/infrastructure/obfuscation"
)

// tickInterval is the reactor's single suspension point: every tick it
// flushes pending acks and scans the retransmit table for due resends.
const tickInterval = 10 * time.Millisecond

// Config holds the engine's run-time parameters, all sourced from
// settings.Config.
type Config struct {
	Mode      mode.Mode
	MTU       int
	Duplicate bool
	Keepalive time.Duration // client only; 0 disables heartbeats
}

// Engine is application.TrafficRouter's concrete implementation: it
// owns every piece of mutable protocol state and touches all of it only
// from the single goroutine running inside RouteTraffic.
type Engine struct {
	cfg Config

	tun  application.TunDevice
	sock application.UDPSocket
	env  application.Envelope
	obf  *obfuscation.Obfuscator

	dedup *dedup.Filter
	acks  *ackqueue.Queue
	retx  *retransmit.Table
	peer  *peer.Tracker

	clock   application.Clock
	timer   application.Timer
	logger  application.Logger
	metrics application.MetricsSink

	// sendBuf is the reusable wire-format scratch buffer Encode writes
	// into; framePayload backs every Frame's logical Payload field
	// (payload bytes followed by obfuscator padding); hashBuf backs
	// AuthenticatedRegion. None are touched outside the single
	// goroutine running RouteTraffic.
	sendBuf      []byte
	framePayload []byte
	hashBuf      []byte
}

// New builds an Engine. peerTracker is peer.NewClient(addr) for a
// client (address pinned at init) or peer.NewServer() for a server
// (address learned from the first valid inbound packet).
func New(
	cfg Config,
	tun application.TunDevice,
	sock application.UDPSocket,
	env application.Envelope,
	peerTracker *peer.Tracker,
	clock application.Clock,
	timer application.Timer,
	logger application.Logger,
	metrics application.MetricsSink,
) *Engine {
	return &Engine{
		cfg:          cfg,
		tun:          tun,
		sock:         sock,
		env:          env,
		obf:          obfuscation.New(cfg.MTU),
		dedup:        dedup.New(dedup.DefaultBuckets),
		acks:         ackqueue.New(ackqueue.DefaultCapacity),
		retx:         retransmit.New(retransmit.DefaultSlots),
		peer:         peerTracker,
		clock:        clock,
		timer:        timer,
		logger:       logger,
		metrics:      metrics,
		sendBuf:      make([]byte, 0, cfg.MTU+packet.PayloadOffset+512),
		framePayload: make([]byte, 0, cfg.MTU+512),
		hashBuf:      make([]byte, 0, cfg.MTU+4),
	}
}

type tunRead struct {
	payload []byte
	err     error
}

type udpRead struct {
	buf  []byte
	n    int
	addr netip.AddrPort
	err  error
}

// RouteTraffic runs the reactor until ctx is cancelled or an
// unrecoverable I/O error occurs. It implements application.TrafficRouter.
func (e *Engine) RouteTraffic(ctx context.Context) error {
	tunCh := make(chan tunRead, 1)
	udpCh := make(chan udpRead, 1)

	go e.readTunLoop(ctx, tunCh)
	go e.readUDPLoop(ctx, udpCh)

	tick := e.timer.Tick(tickInterval)

	var heartbeat <-chan time.Time
	if e.cfg.Mode == mode.Client && e.cfg.Keepalive > 0 {
		heartbeat = e.timer.Tick(e.cfg.Keepalive)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case r := <-tunCh:
			if r.err != nil {
				return r.err
			}
			if err := e.handleTunPacket(r.payload); err != nil {
				e.logger.Printf("tun packet: %v", err)
			}

		case r := <-udpCh:
			if r.err != nil {
				return r.err
			}
			e.handleUDPPacket(r.buf[:r.n], r.addr)

		case now := <-tick:
			e.onTick(now)

		case <-heartbeat:
			if err := e.sendHeartbeat(); err != nil {
				e.logger.Printf("heartbeat: %v", err)
			}
		}
	}
}

func (e *Engine) readTunLoop(ctx context.Context, out chan<- tunRead) {
	buf := make([]byte, e.cfg.MTU+64)
	for {
		n, err := e.tun.Read(buf)
		payload := append([]byte(nil), buf[:n]...)
		select {
		case out <- tunRead{payload: payload, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (e *Engine) readUDPLoop(ctx context.Context, out chan<- udpRead) {
	for {
		// Bound each Recv by one tick so the goroutine periodically
		// wakes to observe ctx.Done() instead of parking forever on a
		// quiet socket.
		if err := e.sock.SetReadDeadline(e.clock.Now().Add(tickInterval)); err != nil {
			e.logger.Printf("udp read deadline: %v", err)
		}
		buf := make([]byte, e.cfg.MTU+packet.PayloadOffset+512)
		n, addr, err := e.sock.Recv(buf)
		if isTimeout(err) {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		select {
		case out <- udpRead{buf: buf, n: n, addr: addr, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
