package engine

import (
	"net/netip"
	"testing"
	"time"

	"sipvpn/domain/mode"
	"sipvpn/domain/packet"
	"sipvpn/domain/peer"
	"sipvpn/infrastructure/cryptography/envelope"
)

var (
	clientAddr = netip.MustParseAddrPort("198.51.100.9:4500")
	serverAddr = netip.MustParseAddrPort("203.0.113.1:4500")
	roamedAddr = netip.MustParseAddrPort("198.51.100.9:9001")
)

// newTestEngine builds an Engine wired to in-memory fakes, sharing one
// envelope (hence one PSK) across every engine a test constructs.
func newTestEngine(m mode.Mode, duplicate bool, peerTracker *peer.Tracker, env *envelope.ChaCha20Envelope) (*Engine, *fakeTun, *fakeSocket, *fakeClock) {
	tun := &fakeTun{}
	sock := &fakeSocket{}
	clock := &fakeClock{now: time.Unix(0, 0)}

	e := New(
		Config{Mode: m, MTU: 1400, Duplicate: duplicate, Keepalive: 0},
		tun, sock, env, peerTracker, clock, fakeTimer{}, discardLogger{}, noopMetrics{},
	)
	return e, tun, sock, clock
}

// decodeWire reverses one wire datagram with the test's shared envelope,
// mirroring handleUDPPacket's own decrypt+decode step, for assertions.
func decodeWire(env *envelope.ChaCha20Envelope, wire []byte) (packet.Frame, bool) {
	buf := append([]byte(nil), wire...)
	var nonce [packet.NonceSize]byte
	copy(nonce[:], buf[:packet.NonceSize])
	env.Decrypt(buf[packet.NonceSize:], nonce)

	var f packet.Frame
	if !packet.Decode(buf, len(buf), &f) {
		return packet.Frame{}, false
	}
	return f, true
}

func TestS1Heartbeat(t *testing.T) {
	env := envelope.New([]byte("shared psk"))
	client, _, clientSock, _ := newTestEngine(mode.Client, false, peer.NewClient(serverAddr), env)
	server, _, serverSock, _ := newTestEngine(mode.Server, false, peer.NewServer(), env)

	if err := client.sendHeartbeat(); err != nil {
		t.Fatalf("sendHeartbeat: %v", err)
	}
	if len(clientSock.sent) != 1 {
		t.Fatalf("expected exactly one heartbeat emitted by client, got %d", len(clientSock.sent))
	}

	server.handleUDPPacket(clientSock.sent[0].data, clientAddr)

	if addr, ok := server.peer.Addr(); !ok || addr != clientAddr {
		t.Fatalf("expected server peer == client source %v, got %v (ok=%v)", clientAddr, addr, ok)
	}
	if len(serverSock.sent) != 1 {
		t.Fatalf("expected server to reply with exactly one heartbeat, got %d", len(serverSock.sent))
	}
	if serverSock.sent[0].dst != clientAddr {
		t.Fatalf("expected reply addressed to %v, got %v", clientAddr, serverSock.sent[0].dst)
	}
	f, ok := decodeWire(env, serverSock.sent[0].data)
	if !ok || !f.IsHeartbeat() {
		t.Fatalf("expected server's reply to decode as a heartbeat")
	}

	// Every heartbeat carries the same chksum (identical authenticated
	// region), so a second keepalive must not be swallowed as a
	// duplicate: each one elicits its own reply.
	if err := client.sendHeartbeat(); err != nil {
		t.Fatalf("sendHeartbeat: %v", err)
	}
	server.handleUDPPacket(clientSock.sent[1].data, clientAddr)
	if len(serverSock.sent) != 2 {
		t.Fatalf("expected a reply to every heartbeat, got %d replies after 2 keepalives", len(serverSock.sent))
	}
}

func TestS2SinglePacketTunnel(t *testing.T) {
	env := envelope.New([]byte("shared psk"))
	client, _, clientSock, _ := newTestEngine(mode.Client, false, peer.NewClient(serverAddr), env)
	server, serverTun, serverSock, serverClock := newTestEngine(mode.Server, false, peer.NewServer(), env)

	if err := client.handleTunPacket([]byte("HELLO")); err != nil {
		t.Fatalf("handleTunPacket: %v", err)
	}
	if len(clientSock.sent) != 1 {
		t.Fatalf("expected one wire packet, got %d", len(clientSock.sent))
	}

	server.handleUDPPacket(clientSock.sent[0].data, clientAddr)

	if len(serverTun.written) != 1 || string(serverTun.written[0]) != "HELLO" {
		t.Fatalf("expected tun_write(\"HELLO\"), got %v", serverTun.written)
	}
	if server.acks.Len() != 1 {
		t.Fatalf("expected one checksum queued for acking, got %d", server.acks.Len())
	}

	serverClock.advance(10 * time.Millisecond)
	server.onTick(serverClock.Now())

	if server.acks.Len() != 0 {
		t.Fatalf("expected ack queue drained after flush")
	}
	if len(serverSock.sent) != 2 {
		t.Fatalf("expected ack bundle sent twice, got %d", len(serverSock.sent))
	}
	for _, w := range serverSock.sent {
		f, ok := decodeWire(env, w.data)
		if !ok || !f.IsAckBundle() {
			t.Fatalf("expected an ack-bundle packet")
		}
		if f.Len != packet.AckSize {
			t.Fatalf("expected bundle of 1 checksum (%d bytes), got len=%d", packet.AckSize, f.Len)
		}
	}
}

func TestS3LossAndRetransmit(t *testing.T) {
	env := envelope.New([]byte("shared psk"))
	client, _, clientSock, clientClock := newTestEngine(mode.Client, false, peer.NewClient(serverAddr), env)

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := client.handleTunPacket(payload); err != nil {
		t.Fatalf("handleTunPacket: %v", err)
	}
	if len(clientSock.sent) != 1 {
		t.Fatalf("expected 1 on-wire transmission for the original send, got %d", len(clientSock.sent))
	}
	if client.retx.InUse() != 1 {
		t.Fatalf("expected the packet recorded in the retransmit table")
	}

	wantCopiesPerAttempt := []int{2, 3, 4}
	for _, wantCopies := range wantCopiesPerAttempt {
		before := len(clientSock.sent)
		clientClock.advance(201 * time.Millisecond)
		client.onTick(clientClock.Now())
		got := len(clientSock.sent) - before
		if got != wantCopies {
			t.Fatalf("expected %d copies this attempt, got %d", wantCopies, got)
		}
	}

	if client.retx.InUse() != 0 {
		t.Fatalf("expected the slot retired after attempt 4, still in use")
	}
	if len(clientSock.sent) != 1+2+3+4 {
		t.Fatalf("expected 10 total on-wire transmissions, got %d", len(clientSock.sent))
	}
	chksums := make(map[uint32]bool)
	nonces := make(map[[packet.NonceSize]byte]bool)
	for _, w := range clientSock.sent {
		f, ok := decodeWire(env, w.data)
		if !ok {
			t.Fatalf("failed to decode a retransmitted copy")
		}
		chksums[f.Chksum] = true
		nonces[f.Nonce] = true
	}
	if len(chksums) != 1 {
		t.Fatalf("expected every copy to share the same chksum, saw %d distinct", len(chksums))
	}
	if len(nonces) != len(clientSock.sent) {
		t.Fatalf("expected every copy to carry a distinct nonce, saw %d distinct of %d", len(nonces), len(clientSock.sent))
	}

	// Further ticks touch a now-empty table: nothing more should be sent.
	clientClock.advance(201 * time.Millisecond)
	client.onTick(clientClock.Now())
	if len(clientSock.sent) != 10 {
		t.Fatalf("expected no further sends after retirement, got %d total", len(clientSock.sent))
	}
}

func TestS4DedupUnderTriplication(t *testing.T) {
	env := envelope.New([]byte("shared psk"))
	client, _, clientSock, _ := newTestEngine(mode.Client, true /* duplicate */, peer.NewClient(serverAddr), env)
	server, serverTun, _, _ := newTestEngine(mode.Server, false, peer.NewServer(), env)

	payload := make([]byte, 200)
	if err := client.handleTunPacket(payload); err != nil {
		t.Fatalf("handleTunPacket: %v", err)
	}
	if len(clientSock.sent) != 3 {
		t.Fatalf("expected triplication (3 copies), got %d", len(clientSock.sent))
	}

	for _, w := range clientSock.sent {
		server.handleUDPPacket(w.data, clientAddr)
	}

	if len(serverTun.written) != 1 {
		t.Fatalf("expected tun_write called exactly once despite 3 copies, got %d", len(serverTun.written))
	}
	if server.acks.Len() != 1 {
		t.Fatalf("expected exactly one checksum queued for acking, got %d", server.acks.Len())
	}
}

func TestS5Piggyback(t *testing.T) {
	env := envelope.New([]byte("shared psk"))
	server, _, serverSock, _ := newTestEngine(mode.Server, false, peer.NewServer(), env)
	server.peer.Update(clientAddr)
	server.acks.Enqueue(0xA, nil)
	server.acks.Enqueue(0xB, nil)

	if err := server.handleTunPacket([]byte("outbound")); err != nil {
		t.Fatalf("handleTunPacket: %v", err)
	}
	if len(serverSock.sent) != 1 {
		t.Fatalf("expected one outbound packet, got %d", len(serverSock.sent))
	}

	f, ok := decodeWire(env, serverSock.sent[0].data)
	if !ok || !f.HasPiggybackAck() {
		t.Fatalf("expected piggyback ack flag set")
	}
	if f.Ack != 0xB {
		t.Fatalf("expected freshest ack 0xB piggybacked first, got 0x%x", f.Ack)
	}
	if server.acks.Len() != 1 {
		t.Fatalf("expected 0xA still queued, got len=%d", server.acks.Len())
	}
}

func TestS6RoamingServerPeer(t *testing.T) {
	env := envelope.New([]byte("shared psk"))
	client, _, clientSock, _ := newTestEngine(mode.Client, false, peer.NewClient(serverAddr), env)
	server, _, serverSock, _ := newTestEngine(mode.Server, false, peer.NewServer(), env)
	server.peer.Update(clientAddr)

	if err := client.handleTunPacket([]byte("ping")); err != nil {
		t.Fatalf("handleTunPacket: %v", err)
	}

	server.handleUDPPacket(clientSock.sent[0].data, roamedAddr)

	addr, ok := server.peer.Addr()
	if !ok || addr != roamedAddr {
		t.Fatalf("expected server peer to roam to %v, got %v (ok=%v)", roamedAddr, addr, ok)
	}

	if err := server.handleTunPacket([]byte("reply")); err != nil {
		t.Fatalf("handleTunPacket: %v", err)
	}
	if len(serverSock.sent) == 0 || serverSock.sent[len(serverSock.sent)-1].dst != roamedAddr {
		t.Fatalf("expected subsequent sends to follow the roamed address %v", roamedAddr)
	}
}
