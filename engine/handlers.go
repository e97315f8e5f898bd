package engine

import (
	"encoding/binary"
	"net/netip"
	"time"

	"sipvpn/domain/mode"
	"sipvpn/domain/packet"
	"sipvpn/domain/retransmit"
	"sipvpn/infrastructure/obfuscation"
)

// maxPadding bounds the scratch space reserved after a logical payload
// for the obfuscator's random padding (the widest bucket in its
// distribution table tops out at 349 bytes).
const maxPadding = 512

// handleTunPacket is called for every IP datagram read from the tun
// device: it frames, possibly piggybacks an ack, records the packet for
// retransmission, and sends it (tripled if cfg.Duplicate is set).
func (e *Engine) handleTunPacket(payload []byte) error {
	if len(payload) > e.cfg.MTU {
		e.logger.Printf("tun: dropping oversized datagram (%d > mtu %d)", len(payload), e.cfg.MTU)
		return nil
	}

	addr, ok := e.peer.Addr()
	if !ok {
		// Server with no learned peer yet: outbound sending is a no-op.
		return nil
	}

	f := e.newFrame(payload, 0, 0)
	if ack, ok := e.acks.PopForPiggyback(); ok {
		f.Ack = ack
		f.Flag |= packet.FlagPiggybackAck
	}
	f.Chksum = e.hash(&f)

	e.retx.Record(f.Chksum, f.Ack, f.Flag, payload, e.clock.Now())
	e.metrics.SetRetransmitInUse(e.retx.InUse())

	copies := 1
	if e.cfg.Duplicate {
		copies = 3
	}
	return e.sendFrame(&f, addr, copies)
}

// handleUDPPacket is called for every datagram read off the UDP socket.
// It decrypts and authenticates the envelope, learns/refreshes the peer
// address on success, replies to heartbeats, and deduplicates the rest
// before dispatching by flag.
func (e *Engine) handleUDPPacket(wire []byte, src netip.AddrPort) {
	if len(wire) < packet.PayloadOffset {
		return
	}

	var nonce [packet.NonceSize]byte
	copy(nonce[:], wire[:packet.NonceSize])
	e.env.Decrypt(wire[packet.NonceSize:], nonce)

	var f packet.Frame
	if !packet.Decode(wire, len(wire), &f) {
		return // malformed: declared len overflows received bytes
	}

	if e.hash(&f) != f.Chksum {
		e.metrics.IncAuthFailed()
		e.logger.Printf("udp: auth failed from %s, dropping", src)
		return
	}

	e.metrics.IncPacketsIn()
	e.peer.Update(src)

	// Heartbeats dispatch before the dedup check: every heartbeat from
	// a peer carries the same authenticated region (flag=0, len=0) and
	// therefore the same chksum, so entering it into the dedup table
	// would drop every keepalive after the first.
	if f.IsHeartbeat() {
		e.handleHeartbeat(src)
		return
	}

	if e.dedup.IsDup(f.Chksum) {
		e.metrics.IncDedupDropped()
		return
	}

	if f.IsAckBundle() {
		e.handleAckBundle(&f)
		return
	}
	e.handleDataFrame(&f)
}

func (e *Engine) handleAckBundle(f *packet.Frame) {
	for off := 0; off+packet.AckSize <= int(f.Len); off += packet.AckSize {
		chksum := binary.LittleEndian.Uint32(f.Payload[off : off+packet.AckSize])
		e.retx.Acknowledge(chksum)
	}
	e.metrics.SetRetransmitInUse(e.retx.InUse())
}

func (e *Engine) handleHeartbeat(src netip.AddrPort) {
	if e.cfg.Mode != mode.Server {
		return
	}
	if err := e.sendHeartbeatTo(src); err != nil {
		e.logger.Printf("heartbeat reply: %v", err)
	}
}

func (e *Engine) handleDataFrame(f *packet.Frame) {
	if f.HasPiggybackAck() {
		e.retx.Acknowledge(f.Ack)
		e.metrics.SetRetransmitInUse(e.retx.InUse())
	}

	e.acks.Enqueue(f.Chksum, e.flushAcks)
	e.metrics.SetAckQueueLen(e.acks.Len())

	if _, err := e.tun.Write(f.Payload); err != nil {
		e.logger.Printf("tun write: %v", err)
	}
}

// onTick runs the two 10ms-driven protocol actions: flushing any
// pending acks and scanning the retransmit table for due resends.
func (e *Engine) onTick(now time.Time) {
	if e.acks.Len() > 0 {
		e.flushAcks(e.acks.DrainForFlush())
	}

	addr, haveAddr := e.peer.Addr()
	e.retx.ScanDue(now, func(r retransmit.DueResend) {
		if !haveAddr {
			return
		}
		f := e.newFrame(r.Payload, r.Flag, r.Ack)
		f.Chksum = r.Chksum
		if err := e.sendFrame(&f, addr, r.Copies); err != nil {
			e.logger.Printf("retransmit: %v", err)
		}
		e.metrics.IncRetransmits(r.Copies)
	})
	e.metrics.SetRetransmitInUse(e.retx.InUse())
}

// flushAcks builds and sends (always twice, regardless of cfg.Duplicate)
// an ack-bundle packet carrying the given checksums.
func (e *Engine) flushAcks(pending []uint32) {
	if len(pending) == 0 {
		return
	}
	addr, ok := e.peer.Addr()
	if !ok {
		return
	}

	n := len(pending) * packet.AckSize
	buf := e.payloadBuf(n)
	for i, c := range pending {
		binary.LittleEndian.PutUint32(buf[i*packet.AckSize:], c)
	}

	f := e.newFrame(buf[:n], packet.FlagAckBundle, 0)
	f.Chksum = e.hash(&f)

	if err := e.sendFrame(&f, addr, 2); err != nil {
		e.logger.Printf("ack flush: %v", err)
	}
	e.metrics.IncAcksSent()
}

// sendHeartbeat sends a zero-length heartbeat to the pinned peer; it is
// the client's keepalive timer callback.
func (e *Engine) sendHeartbeat() error {
	addr, ok := e.peer.Addr()
	if !ok {
		return nil
	}
	return e.sendHeartbeatTo(addr)
}

func (e *Engine) sendHeartbeatTo(addr netip.AddrPort) error {
	f := e.newFrame(nil, 0, 0)
	f.Chksum = e.hash(&f)
	return e.sendFrame(&f, addr, 1)
}

// newFrame copies data into the engine's reusable payload scratch
// buffer, leaving room after it for the obfuscator's padding, and
// returns a Frame referencing that buffer.
func (e *Engine) newFrame(data []byte, flag uint16, ack uint32) packet.Frame {
	buf := e.payloadBuf(len(data))
	copy(buf, data)
	return packet.Frame{
		Flag:    flag,
		Ack:     ack,
		Len:     uint16(len(data)),
		Payload: buf,
	}
}

func (e *Engine) payloadBuf(n int) []byte {
	need := n + maxPadding
	if cap(e.framePayload) < need {
		e.framePayload = make([]byte, need)
	}
	return e.framePayload[:need]
}

// hash computes the keyed digest over a frame's authenticated region
// (flag, len, payload[0:len]), independent of nonce and padding.
func (e *Engine) hash(f *packet.Frame) uint32 {
	e.hashBuf = f.AuthenticatedRegion(e.hashBuf)
	return e.env.Hash(e.hashBuf)
}

// sendFrame obfuscates (fresh nonce and padding) and encrypts f copies
// times, sending each as an independent wire packet to addr. Chksum is
// unchanged across copies.
func (e *Engine) sendFrame(f *packet.Frame, addr netip.AddrPort, copies int) error {
	var firstErr error
	for i := 0; i < copies; i++ {
		if err := e.sendOne(f, addr); err != nil {
			e.logger.Printf("udp send: %v", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.metrics.IncPacketsOut()
	}
	return firstErr
}

func (e *Engine) sendOne(f *packet.Frame, addr netip.AddrPort) error {
	nonce, err := e.obf.Nonce()
	if err != nil {
		return err
	}
	f.Nonce = nonce

	pad, err := e.obf.PadLen(int(f.Len))
	if err != nil {
		return err
	}
	if pad > 0 {
		if err := obfuscation.Pad(f.Payload[f.Len:int(f.Len)+pad], pad); err != nil {
			return err
		}
	}

	wire := packet.Encode(e.sendBuf, f, pad)
	e.sendBuf = wire
	e.env.Encrypt(wire[packet.NonceSize:], nonce)

	return e.sock.Send(wire, addr)
}
