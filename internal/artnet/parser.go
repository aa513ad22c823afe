package artnet

import (
	"bytes"
	"encoding/binary"
)

// Decode parses a raw Art-Net datagram.
//
// The envelope is checked once for every opcode: the ID preamble must match and the
// protocol version must not exceed ProtocolVersion. Payload slices in the returned
// message point into data.
func Decode(data []byte) (Message, error) {
	if len(data) < len(ID) {
		return nil, NewParseError("packet too short", 0)
	}
	if !bytes.Equal(data[:len(ID)], ID[:]) {
		return nil, NewParseError("invalid Art-Net ID", 0)
	}

	// OpCode (offset 8-9), little-endian
	if len(data) < 10 {
		return nil, NewParseError("missing opcode", 8)
	}
	op := OpCode(binary.LittleEndian.Uint16(data[8:10]))

	// ProtVer (offset 10-11), big-endian
	if len(data) < HeaderSize {
		return nil, NewParseError("missing protocol version", 10)
	}
	version := binary.BigEndian.Uint16(data[10:12])
	if version > ProtocolVersion {
		return nil, &UnsupportedProtocolVersionError{Version: version}
	}

	payload := data[HeaderSize:]

	var (
		msg Message
		err error
	)
	switch op {
	case OpPoll:
		msg, err = parsePoll(payload)
	case OpCommand:
		msg, err = parseCommand(payload)
	case OpDmx:
		msg, err = parseDmx(payload)
	case OpSync:
		msg, err = parseSync(payload)
	default:
		return nil, &UnsupportedOpCodeError{OpCode: op}
	}
	if err != nil {
		// keep the interface nil rather than wrapping a nil pointer
		return nil, err
	}
	return msg, nil
}

// parsePoll reads Flags, DiagPriority and, when present, the target range
func parsePoll(p []byte) (*Poll, error) {
	if len(p) < 2 {
		return nil, NewParseError("poll too short", HeaderSize+len(p))
	}

	poll := &Poll{
		Flags:                 p[0],
		MinDiagnosticPriority: p[1],
		Targets:               FullAddressRange,
	}

	if len(p) >= 6 {
		poll.Targets = AddressRange{
			Top:    binary.BigEndian.Uint16(p[2:4]),
			Bottom: binary.BigEndian.Uint16(p[4:6]),
		}
	}

	return poll, nil
}

func parseCommand(p []byte) (*Command, error) {
	if len(p) < 4 {
		return nil, NewParseError("command header too short", HeaderSize+len(p))
	}

	// Length is little-endian here, unlike every other length field
	length := int(binary.LittleEndian.Uint16(p[2:4]))
	if length > len(p)-4 {
		return nil, NewParseError("command length exceeds packet", HeaderSize+2)
	}

	return &Command{
		ESTAManufacturerCode: ESTAManufacturerCode{Lo: p[0], Hi: p[1]},
		Data:                 p[4 : 4+length],
	}, nil
}

func parseDmx(p []byte) (*Dmx, error) {
	if len(p) < 6 {
		return nil, NewParseError("dmx header too short", HeaderSize+len(p))
	}

	addr, err := ParsePortAddress(p[2:4])
	if err != nil {
		return nil, err
	}

	length := int(binary.BigEndian.Uint16(p[4:6]))
	if length > len(p)-6 {
		return nil, NewParseError("dmx length exceeds packet", HeaderSize+4)
	}

	return &Dmx{
		Sequence:    p[0],
		Physical:    p[1],
		PortAddress: addr,
		Data:        p[6 : 6+length],
	}, nil
}

func parseSync(p []byte) (*Sync, error) {
	// Aux1 and Aux2 must be present but are not interpreted
	if len(p) < 2 {
		return nil, NewParseError("sync too short", HeaderSize+len(p))
	}
	return &Sync{}, nil
}
