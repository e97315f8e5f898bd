// Package packet defines the on-wire frame carried between tunnel endpoints
// and the logical working buffer the engine manipulates in memory.
package packet

import "encoding/binary"

const (
	// NonceSize is the width of the per-packet random nonce.
	NonceSize = 8
	// ChksumSize is the width of the keyed authentication tag.
	ChksumSize = 4
	// AckSize is the width of the piggybacked ack field.
	AckSize = 4
	// FlagSize is the width of the flag field.
	FlagSize = 2
	// LenSize is the width of the payload-length field.
	LenSize = 2

	// PayloadOffset is the size of the fixed header preceding the payload.
	PayloadOffset = NonceSize + ChksumSize + AckSize + FlagSize + LenSize

	// MaxAckChecksums bounds the number of 4-byte checksums an ack bundle
	// payload may carry, matching the ack queue's own capacity.
	MaxAckChecksums = 256
)

// Flag bits.
const (
	// FlagPiggybackAck marks that the Ack field carries a valid checksum.
	FlagPiggybackAck uint16 = 1 << 0
	// FlagAckBundle marks that Payload is a concatenation of ack checksums.
	FlagAckBundle uint16 = 1 << 1
)

// Frame is the logical, decoded form of a wire packet. Its in-memory layout
// is independent of the wire layout; Encode/Decode perform the conversion.
type Frame struct {
	Nonce   [NonceSize]byte
	Chksum  uint32
	Ack     uint32
	Flag    uint16
	Len     uint16
	Payload []byte // logical payload, length == Len; padding is not modeled here
}

// IsHeartbeat reports whether the frame carries no payload.
func (f *Frame) IsHeartbeat() bool { return f.Len == 0 }

// HasPiggybackAck reports whether Ack is valid.
func (f *Frame) HasPiggybackAck() bool { return f.Flag&FlagPiggybackAck != 0 }

// IsAckBundle reports whether Payload is a list of ack checksums.
func (f *Frame) IsAckBundle() bool { return f.Flag&FlagAckBundle != 0 }

// AuthenticatedRegion returns the bytes hash() must cover: flag, len and the
// declared payload, encoded in the same little-endian wire order used by
// Encode. It does not include nonce, chksum, ack or padding.
func (f *Frame) AuthenticatedRegion(buf []byte) []byte {
	buf = buf[:0]
	var hdr [FlagSize + LenSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], f.Flag)
	binary.LittleEndian.PutUint16(hdr[2:4], f.Len)
	buf = append(buf, hdr[:]...)
	buf = append(buf, f.Payload[:f.Len]...)
	return buf
}

// Encode writes the wire representation of f, including pad bytes of random
// padding already staged by the caller at Payload[Len:Len+pad], into dst.
// dst must have capacity for PayloadOffset+int(f.Len)+pad.
func Encode(dst []byte, f *Frame, pad int) []byte {
	total := PayloadOffset + int(f.Len) + pad
	dst = growTo(dst, total)

	copy(dst[0:NonceSize], f.Nonce[:])
	binary.LittleEndian.PutUint32(dst[NonceSize:NonceSize+ChksumSize], f.Chksum)
	binary.LittleEndian.PutUint32(dst[NonceSize+ChksumSize:NonceSize+ChksumSize+AckSize], f.Ack)
	binary.LittleEndian.PutUint16(dst[NonceSize+ChksumSize+AckSize:NonceSize+ChksumSize+AckSize+FlagSize], f.Flag)
	binary.LittleEndian.PutUint16(dst[NonceSize+ChksumSize+AckSize+FlagSize:PayloadOffset], f.Len)
	copy(dst[PayloadOffset:PayloadOffset+int(f.Len)], f.Payload[:f.Len])
	if pad > 0 {
		copy(dst[PayloadOffset+int(f.Len):total], f.Payload[int(f.Len):int(f.Len)+pad])
	}
	return dst[:total]
}

// Decode parses the fixed header of a wire buffer into f. Payload is a
// sub-slice of wire (no copy); the caller must not mutate wire while Payload
// is in use. wireLen is the number of valid bytes in wire (which may be
// larger, e.g. a reusable recv buffer). Decode fails if wireLen is too short
// to contain the fixed header or the declared payload.
func Decode(wire []byte, wireLen int, f *Frame) bool {
	if wireLen < PayloadOffset {
		return false
	}
	copy(f.Nonce[:], wire[0:NonceSize])
	f.Chksum = binary.LittleEndian.Uint32(wire[NonceSize : NonceSize+ChksumSize])
	f.Ack = binary.LittleEndian.Uint32(wire[NonceSize+ChksumSize : NonceSize+ChksumSize+AckSize])
	f.Flag = binary.LittleEndian.Uint16(wire[NonceSize+ChksumSize+AckSize : NonceSize+ChksumSize+AckSize+FlagSize])
	f.Len = binary.LittleEndian.Uint16(wire[NonceSize+ChksumSize+AckSize+FlagSize : PayloadOffset])
	if PayloadOffset+int(f.Len) > wireLen {
		return false
	}
	f.Payload = wire[PayloadOffset : PayloadOffset+int(f.Len)]
	return true
}

func growTo(buf []byte, n int) []byte {
	if cap(buf) < n {
		return make([]byte, n)
	}
	return buf[:n]
}
