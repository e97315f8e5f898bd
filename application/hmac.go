package application

// HMAC provides a keyed message authentication code, plus the
// truncated-to-uint32 form the packet engine actually consumes: a
// chksum doubling as both the wire packet's authentication tag and its
// dedup/ack/retransmit identity.
type HMAC interface {
	// Generate is used to generate(calculate) hmac
	Generate(data []byte) ([]byte, error)
	// Verify is used to verify HMAC
	Verify(data, signature []byte) error
	// Checksum returns the first 4 bytes of Generate(data), interpreted
	// as a little-endian uint32. This is the value the engine stores as
	// a packet's Chksum field.
	Checksum(data []byte) (uint32, error)
}
