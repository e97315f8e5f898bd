package application

// Envelope provides the keyed hash and stream-cipher operations the
// engine needs to authenticate and obscure wire packets. A single
// Envelope is constructed per running instance from the configured
// pre-shared key.
type Envelope interface {
	// Hash returns the truncated keyed hash of data, used both as the
	// packet's authentication tag and as its dedup/ack identity.
	Hash(data []byte) uint32

	// Encrypt applies the stream cipher in place to buf, keyed by nonce.
	// Encrypt and Decrypt are the same operation: XOR with a keystream
	// derived from the pre-shared key and nonce.
	Encrypt(buf []byte, nonce [8]byte)

	// Decrypt applies the stream cipher in place to buf, keyed by nonce.
	Decrypt(buf []byte, nonce [8]byte)
}
