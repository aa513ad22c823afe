package artnet

import "fmt"

// PortAddress is one of the 32,768 addresses a DMX frame can be directed to:
// a 15-bit value composed of Net (7 bits), Sub-Net (4 bits) and Universe (4 bits).
//
// On the wire it takes two bytes:
//
//	byte 0: bits 0-3 Sub-Net, bits 4-7 Universe
//	byte 1: bits 0-6 Net, bit 7 reserved
type PortAddress struct {
	Net      uint8
	SubNet   uint8
	Universe uint8
}

// ParsePortAddress decodes the two wire bytes at the start of b
func ParsePortAddress(b []byte) (PortAddress, error) {
	if len(b) < 2 {
		return PortAddress{}, NewParseError("port address too short", 0)
	}
	return PortAddress{
		SubNet:   b[0] & 0x0F,
		Universe: b[0] >> 4,
		Net:      b[1] & 0x7F,
	}, nil
}

// PutPortAddress writes a into the first two bytes of b. Fields are masked to their
// bit widths and the reserved bit is cleared.
func PutPortAddress(b []byte, a PortAddress) error {
	if len(b) < 2 {
		return &BufferTooSmallError{Need: 2, Have: len(b)}
	}
	b[0] = a.SubNet&0x0F | (a.Universe&0x0F)<<4
	b[1] = a.Net & 0x7F
	return nil
}

// Wire returns the little-endian value of the two bytes PutPortAddress writes.
func (a PortAddress) Wire() uint16 {
	lo := a.SubNet&0x0F | (a.Universe&0x0F)<<4
	hi := a.Net & 0x7F
	return uint16(lo) | uint16(hi)<<8
}

// PortAddressFromWire is the inverse of Wire
func PortAddressFromWire(v uint16) PortAddress {
	a, _ := ParsePortAddress([]byte{byte(v), byte(v >> 8)})
	return a
}

// Index combines Net, Sub-Net and Universe into a single index.
//
// This is not the value sent over the wire and it is not unique: Net and Sub-Net are
// shifted right by more bits than they hold, so the result only ever reflects Universe.
// Use Wire to key state by address.
func (a PortAddress) Index() int {
	return (int(a.Net) >> 14) + (int(a.SubNet) >> 7) + int(a.Universe)
}

func (a PortAddress) String() string {
	return fmt.Sprintf("%d:%d:%d", a.Net, a.SubNet, a.Universe)
}
