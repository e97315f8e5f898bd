// Package envelope implements the authenticated-and-obscured wire
// envelope: a truncated keyed hash for packet authentication and dedup
// identity, and a stream cipher over the packet body.
package envelope

import (
	"crypto/sha256"

	"golang.org/x/crypto/chacha20"

	"sipvpn/application"
	"sipvpn/infrastructure/cryptography/hmac"
)

// ChaCha20Envelope implements application.Envelope over a single
// pre-shared key, the way a static-PSK deployment of this tunnel is
// configured: no handshake, no rekeying, one key for the life of the
// process.
type ChaCha20Envelope struct {
	key  [chacha20.KeySize]byte
	hmac application.HMAC
}

// New derives a ChaCha20Envelope from psk. psk of any length is folded
// to a 32-byte key via SHA-256, so operators can supply a passphrase
// instead of a raw key. The same derived key seeds the package's
// CryptoHMAC, reused here for the packet's authentication tag rather
// than a handshake signature.
func New(psk []byte) *ChaCha20Envelope {
	key := sha256.Sum256(psk)
	return &ChaCha20Envelope{key: key, hmac: hmac.NewHMAC(key[:])}
}

// Hash returns hmac.CryptoHMAC's truncated Checksum(data): the
// packet's authentication tag and, doubling as its identity, what the
// dedup filter, ack queue, and retransmit table key on.
func (e *ChaCha20Envelope) Hash(data []byte) uint32 {
	sum, err := e.hmac.Checksum(data)
	if err != nil {
		// CryptoHMAC.Checksum never fails; crypto/hmac only errors on
		// construction, which New already exercised successfully.
		panic(err)
	}
	return sum
}

// Encrypt XORs buf in place with the ChaCha20 keystream derived from the
// envelope's key and nonce.
func (e *ChaCha20Envelope) Encrypt(buf []byte, nonce [8]byte) {
	e.xor(buf, nonce)
}

// Decrypt is identical to Encrypt: ChaCha20 is its own inverse.
func (e *ChaCha20Envelope) Decrypt(buf []byte, nonce [8]byte) {
	e.xor(buf, nonce)
}

func (e *ChaCha20Envelope) xor(buf []byte, nonce [8]byte) {
	var wireNonce [chacha20.NonceSize]byte
	copy(wireNonce[:], nonce[:])

	cipher, err := chacha20.NewUnauthenticatedCipher(e.key[:], wireNonce[:])
	if err != nil {
		// Only NewUnauthenticatedCipher's own size constants can cause
		// this, and they are satisfied by construction above.
		panic(err)
	}
	cipher.XORKeyStream(buf, buf)
}
