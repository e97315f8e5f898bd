// Package retransmit implements the fixed-size table of unacknowledged
// outbound packets the engine resends on an escalating schedule.
package retransmit

import "time"

// DefaultSlots bounds how many outbound packets can await
// acknowledgement at once; overflow degrades to single-shot sends.
const DefaultSlots = 1021

// ResendInterval is the spacing between retransmit attempts.
const ResendInterval = 200 * time.Millisecond

// MaxSendCount is the send counter value at which a slot is retired,
// regardless of whether it was ever acknowledged.
const MaxSendCount = 4

type entry struct {
	inUse   bool
	sends   int
	stime   time.Time
	chksum  uint32
	ack     uint32
	flag    uint16
	payload []byte // logical payload only; nonce/padding/chksum are regenerated fresh per resend
}

// Table tracks outbound data packets awaiting acknowledgement. It is owned
// exclusively by the single-threaded event loop and requires no locking.
type Table struct {
	slots []entry
}

// New creates a Table with the given slot count. n <= 0 uses DefaultSlots.
func New(n int) *Table {
	if n <= 0 {
		n = DefaultSlots
	}
	return &Table{slots: make([]entry, n)}
}

// Record stores the logical fields of an outbound packet under chksum
// with send count 1 and the given timestamp. payload is copied. If no
// slot is free, Record reports false: the packet still goes out once
// but will not be retransmitted.
func (t *Table) Record(chksum, ack uint32, flag uint16, payload []byte, now time.Time) bool {
	for i := range t.slots {
		if !t.slots[i].inUse {
			s := &t.slots[i]
			s.inUse = true
			s.sends = 1
			s.stime = now
			s.chksum = chksum
			s.ack = ack
			s.flag = flag
			s.payload = append(s.payload[:0], payload...)
			return true
		}
	}
	return false
}

// Acknowledge frees any slot whose stored checksum matches chksum. A
// checksum not present is a no-op; repeated acknowledgement is idempotent.
func (t *Table) Acknowledge(chksum uint32) {
	for i := range t.slots {
		if t.slots[i].inUse && t.slots[i].chksum == chksum {
			t.slots[i].inUse = false
		}
	}
}

// DueResend describes one slot that has passed its resend deadline. The
// caller re-obfuscates and re-encrypts Payload fresh for each of Copies
// transmissions; Chksum is unchanged across resends (it depends only on
// flag/len/payload), but nonce and padding must not be reused.
type DueResend struct {
	Chksum  uint32
	Ack     uint32
	Flag    uint16
	Payload []byte
	Copies  int // number of fresh copies to send for this attempt
}

// ScanDue walks the table once, advancing the send counter and timestamp of
// every slot whose last send is older than ResendInterval, and retiring
// slots that reach MaxSendCount. emit is called once per due slot with the
// number of copies to send for that attempt (the attempt count itself,
// matching the 1/2/3/4 escalation).
func (t *Table) ScanDue(now time.Time, emit func(DueResend)) {
	for i := range t.slots {
		s := &t.slots[i]
		if !s.inUse {
			continue
		}
		if now.Sub(s.stime) <= ResendInterval {
			continue
		}
		s.sends++
		s.stime = now
		emit(DueResend{Chksum: s.chksum, Ack: s.ack, Flag: s.flag, Payload: s.payload, Copies: s.sends})
		if s.sends >= MaxSendCount {
			s.inUse = false
		}
	}
}

// InUse reports how many slots currently hold an outstanding packet.
func (t *Table) InUse() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].inUse {
			n++
		}
	}
	return n
}
