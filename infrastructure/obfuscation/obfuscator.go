// Package obfuscation randomizes the nonce and padding length of an
// outbound packet to resist passive traffic analysis.
package obfuscation

import (
	"crypto/rand"
)

// Obfuscator chooses per-packet nonce bytes and a padding length derived
// from the headroom between the current payload length and the
// interface MTU.
type Obfuscator struct {
	mtu int
}

// New returns an Obfuscator for the given tunnel MTU.
func New(mtu int) *Obfuscator {
	return &Obfuscator{mtu: mtu}
}

// Nonce fills a fresh 8-byte random nonce.
func (o *Obfuscator) Nonce() ([8]byte, error) {
	var n [8]byte
	_, err := rand.Read(n[:])
	return n, err
}

// PadLen returns the number of padding bytes to append after a payload
// of the given length, drawn uniformly from the range the headroom
// (mtu - payloadLen) falls into.
func (o *Obfuscator) PadLen(payloadLen int) (int, error) {
	headroom := o.mtu - payloadLen
	if headroom <= 0 {
		return 0, nil
	}

	var lo, hi int
	switch {
	case headroom > 1000:
		lo, hi = 0, 250
	case headroom > 500:
		lo, hi = 99, 349
	case headroom > 200:
		lo, hi = 49, 199
	default:
		lo, hi = 0, 198
	}
	if hi > headroom {
		hi = headroom
	}
	if lo > hi {
		lo = hi
	}

	n, err := randInt(hi - lo + 1)
	if err != nil {
		return 0, err
	}
	return lo + n, nil
}

// Pad writes n random bytes into dst[:n].
func Pad(dst []byte, n int) error {
	_, err := rand.Read(dst[:n])
	return err
}

// randInt returns a uniform random integer in [0, n) using crypto/rand.
// n must be > 0.
func randInt(n int) (int, error) {
	if n <= 1 {
		return 0, nil
	}
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	v := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	return int(v % uint32(n)), nil
}
