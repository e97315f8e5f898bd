// Package hmac computes the keyed digest the packet engine relies on
// for two distinct jobs: a full HMAC-SHA256 signature (Generate/Verify,
// for callers that want the whole tag) and the truncated 32-bit
// Checksum the engine actually stores in a packet's Chksum field and
// reuses as dedup/ack/retransmit identity.
package hmac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"sipvpn/application"
)

// chksumSize is the width of the packet engine's Chksum wire field;
// Checksum truncates the full HMAC down to this many leading bytes.
const chksumSize = 4

// CryptoHMAC - concurrently unsafe implementation of application.HMAC based on crypto/sha256 and crypto/hmac.
type CryptoHMAC struct {
	secret []byte
	// ioBuf is used to avoid memory allocations on Generate or Verify calls.
	// NOTE: each Generate or Verify call will rewrite ioBuf
	ioBuf [sha256.Size]byte
}

func NewHMAC(secret []byte) application.HMAC {
	return &CryptoHMAC{
		secret: secret,
	}
}

// Generate generates new HMAC data.
// NOTE: do not use it in concurrent environment as Generate is only valid before next Generate or Verify call.
func (d *CryptoHMAC) Generate(data []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, d.secret)
	mac.Write(data)
	sum := mac.Sum(d.ioBuf[:0])
	return sum, nil
}

// Verify verifies HMAC data
// NOTE: do not use it in concurrent environment as Verify is only valid before next Generate or Verify call.
func (d *CryptoHMAC) Verify(data, signature []byte) error {
	mac := hmac.New(sha256.New, d.secret)
	mac.Write(data)
	expected := mac.Sum(d.ioBuf[:0])
	equal := hmac.Equal(expected, signature)
	if !equal {
		return ErrUnexpectedSignature
	}

	return nil
}

// Checksum returns the first chksumSize bytes of Generate(data) as a
// little-endian uint32: the packet engine's authentication tag and
// packet identity in one value, since a 32-bit wire field has no room
// for a full 32-byte HMAC.
func (d *CryptoHMAC) Checksum(data []byte) (uint32, error) {
	sum, err := d.Generate(data)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(sum[:chksumSize]), nil
}
