package artnet

import (
	"errors"
	"fmt"
)

// ErrDmxTooLong is returned when encoding an ArtDmx with more than 512 channels
var ErrDmxTooLong = errors.New("artnet: dmx data exceeds 512 channels")

// ErrCommandTooLong is returned when an ArtCommand payload does not fit its 16-bit length
var ErrCommandTooLong = errors.New("artnet: command data exceeds 65535 bytes")

// ParseError represents an error during packet parsing
type ParseError struct {
	Message string
	Offset  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("artnet: %s at offset %d", e.Message, e.Offset)
}

// NewParseError creates a new ParseError
func NewParseError(message string, offset int) *ParseError {
	return &ParseError{Message: message, Offset: offset}
}

// UnsupportedProtocolVersionError is returned for packets newer than ProtocolVersion
type UnsupportedProtocolVersionError struct {
	Version uint16
}

func (e *UnsupportedProtocolVersionError) Error() string {
	return fmt.Sprintf("artnet: unsupported protocol version %d", e.Version)
}

// UnsupportedOpCodeError is returned for opcodes Decode has no parser for
type UnsupportedOpCodeError struct {
	OpCode OpCode
}

func (e *UnsupportedOpCodeError) Error() string {
	return fmt.Sprintf("artnet: unsupported opcode 0x%04x", uint16(e.OpCode))
}

// BufferTooSmallError is returned by encoders when the destination cannot hold the packet.
// Nothing is written in that case.
type BufferTooSmallError struct {
	Need int
	Have int
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("artnet: buffer too small: need %d bytes, have %d", e.Need, e.Have)
}
