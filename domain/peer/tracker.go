// Package peer tracks the single remote endpoint a tunnel instance talks
// to: fixed at startup for a client, learned and updated from traffic for
// a server.
package peer

import "net/netip"

// Tracker holds the remote address data packets are sent to.
//
// A client pins its remote address once, at construction, and never
// updates it. A server starts with no known address and learns one from
// the source address of the first (and every subsequent) authenticated
// packet it receives — data, heartbeat, or ack bundle alike — so the
// peer can roam across NAT rebindings without a handshake.
type Tracker struct {
	pinned bool
	addr   netip.AddrPort
	known  bool
}

// NewClient returns a Tracker pinned to addr; Update is a no-op on it.
func NewClient(addr netip.AddrPort) *Tracker {
	return &Tracker{pinned: true, addr: addr, known: true}
}

// NewServer returns a Tracker with no known peer; the first Update call
// establishes it.
func NewServer() *Tracker {
	return &Tracker{}
}

// Addr returns the current remote address and whether one is known yet.
// A freshly constructed server tracker reports ok=false until its first
// Update.
func (t *Tracker) Addr() (addr netip.AddrPort, ok bool) {
	return t.addr, t.known
}

// Update records addr as the current remote endpoint, following the
// source address of the most recently authenticated inbound packet of
// any kind (data, heartbeat, or ack bundle). It is a no-op on a client
// tracker, whose remote address is fixed at construction. Callers must
// only invoke Update once a packet has passed decrypt+verify.
func (t *Tracker) Update(addr netip.AddrPort) {
	if t.pinned {
		return
	}
	t.addr = addr
	t.known = true
}
