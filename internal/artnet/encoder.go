package artnet

import "encoding/binary"

// Encoded sizes of the fixed-length packets
const (
	PollSize      = HeaderSize + 6
	SyncSize      = HeaderSize + 2
	commandHeader = HeaderSize + 4
	dmxHeader     = HeaderSize + 6
)

// putOpCode writes ID and opcode into b[0:10]
func putOpCode(b []byte, op OpCode) {
	copy(b[0:8], ID[:])
	binary.LittleEndian.PutUint16(b[8:10], uint16(op))
}

// putHeader writes ID, opcode and protocol version into b[0:12]
func putHeader(b []byte, op OpCode) {
	putOpCode(b, op)
	binary.BigEndian.PutUint16(b[10:12], ProtocolVersion)
}

// putPaddedString writes s into dst as a NUL-terminated string of exactly len(dst) bytes.
// At most len(dst)-1 bytes of s are kept; the rest of dst is zeroed.
func putPaddedString(dst []byte, s string) {
	if len(dst) == 0 {
		return
	}
	n := copy(dst[:len(dst)-1], s)
	clear(dst[n:])
}

func checkCapacity(buf []byte, need int) error {
	if len(buf) < need {
		return &BufferTooSmallError{Need: need, Have: len(buf)}
	}
	return nil
}

// MarshalTo encodes an ArtPoll into buf and returns the number of bytes written
func (p *Poll) MarshalTo(buf []byte) (int, error) {
	if err := checkCapacity(buf, PollSize); err != nil {
		return 0, err
	}

	putHeader(buf, OpPoll)
	buf[12] = p.Flags
	buf[13] = p.MinDiagnosticPriority
	binary.BigEndian.PutUint16(buf[14:16], p.Targets.Top)
	binary.BigEndian.PutUint16(buf[16:18], p.Targets.Bottom)

	return PollSize, nil
}

// MarshalTo encodes an ArtCommand into buf and returns the number of bytes written
func (c *Command) MarshalTo(buf []byte) (int, error) {
	if len(c.Data) > 0xFFFF {
		return 0, ErrCommandTooLong
	}
	n := commandHeader + len(c.Data)
	if err := checkCapacity(buf, n); err != nil {
		return 0, err
	}

	putHeader(buf, OpCommand)
	buf[12] = c.ESTAManufacturerCode.Lo
	buf[13] = c.ESTAManufacturerCode.Hi
	binary.LittleEndian.PutUint16(buf[14:16], uint16(len(c.Data)))
	copy(buf[commandHeader:n], c.Data)

	return n, nil
}

// MarshalTo encodes an ArtDmx into buf and returns the number of bytes written
func (d *Dmx) MarshalTo(buf []byte) (int, error) {
	if len(d.Data) > MaxDmxChannels {
		return 0, ErrDmxTooLong
	}
	n := dmxHeader + len(d.Data)
	if err := checkCapacity(buf, n); err != nil {
		return 0, err
	}

	putHeader(buf, OpDmx)
	buf[12] = d.Sequence
	buf[13] = d.Physical
	if err := PutPortAddress(buf[14:16], d.PortAddress); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint16(buf[16:18], uint16(len(d.Data)))
	copy(buf[dmxHeader:n], d.Data)

	return n, nil
}

// MarshalTo encodes an ArtSync into buf and returns the number of bytes written
func (s *Sync) MarshalTo(buf []byte) (int, error) {
	if err := checkCapacity(buf, SyncSize); err != nil {
		return 0, err
	}

	putHeader(buf, OpSync)
	buf[12] = 0 // Aux1
	buf[13] = 0 // Aux2

	return SyncSize, nil
}
