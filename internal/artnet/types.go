// Package artnet decodes Art-Net datagrams and encodes the replies a node sends.
//
// Decoded messages borrow from the buffer they were decoded from: Command.Data and
// Dmx.Data are sub-slices of the input and stay valid only while the caller leaves that
// buffer untouched. Copy them before reusing the receive buffer.
package artnet

import "fmt"

// Art-Net protocol constants
const (
	Port            = 0x1936
	ProtocolVersion = 14
	HeaderSize      = 12
	PollReplySize   = 239
	MaxDmxChannels  = 512
)

// ID is the 8-byte preamble every Art-Net packet starts with
var ID = [8]byte{'A', 'r', 't', '-', 'N', 'e', 't', 0x00}

// OpCode selects the message layout that follows the envelope
type OpCode uint16

const (
	OpPoll      OpCode = 0x2000
	OpPollReply OpCode = 0x2100
	OpCommand   OpCode = 0x2400
	OpDmx       OpCode = 0x5000
	OpSync      OpCode = 0x5200
)

func (o OpCode) String() string {
	switch o {
	case OpPoll:
		return "ArtPoll"
	case OpPollReply:
		return "ArtPollReply"
	case OpCommand:
		return "ArtCommand"
	case OpDmx:
		return "ArtDmx"
	case OpSync:
		return "ArtSync"
	default:
		return fmt.Sprintf("OpCode(0x%04x)", uint16(o))
	}
}

// Message is one decoded Art-Net packet: *Poll, *Command, *Dmx or *Sync.
type Message interface {
	OpCode() OpCode
	isMessage()
}

// ESTAManufacturerCode is the two-byte vendor identifier (ESTAManLo, ESTAManHi).
// The bytes are not checked for printable ASCII.
type ESTAManufacturerCode struct {
	Lo byte
	Hi byte
}

func (c ESTAManufacturerCode) String() string {
	return string([]byte{c.Lo, c.Hi})
}

// AddressRange is the inclusive Port-Address range an ArtPoll targets.
// Top and Bottom are kept in wire order.
type AddressRange struct {
	Top    uint16
	Bottom uint16
}

// FullAddressRange is used when an ArtPoll carries no target range
var FullAddressRange = AddressRange{Top: 0, Bottom: 0xFFFF}

// Contains reports whether addr lies within the range. Bounds may arrive in either order.
func (r AddressRange) Contains(addr uint16) bool {
	lo, hi := r.Top, r.Bottom
	if lo > hi {
		lo, hi = hi, lo
	}
	return addr >= lo && addr <= hi
}

// Poll is an ArtPoll: a controller looking for nodes
type Poll struct {
	Flags                 uint8
	MinDiagnosticPriority uint8
	Targets               AddressRange
}

// Command is an ArtCommand carrying an opaque, vendor-specific payload
type Command struct {
	ESTAManufacturerCode ESTAManufacturerCode
	Data                 []byte // borrowed from the decoded buffer
}

// Dmx is an ArtDmx carrying the channel data of one DMX512 universe
type Dmx struct {
	// Sequence orders packets 0x01..0xff; 0x00 disables re-sequencing.
	Sequence uint8
	// Physical is the input port the data came from. Receivers use it to tell apart
	// sources with the same Port-Address that need merging.
	Physical    uint8
	PortAddress PortAddress
	Data        []byte // borrowed from the decoded buffer
}

// Sync is an ArtSync. Its two auxiliary bytes carry nothing and are dropped.
type Sync struct{}

func (*Poll) OpCode() OpCode    { return OpPoll }
func (*Command) OpCode() OpCode { return OpCommand }
func (*Dmx) OpCode() OpCode     { return OpDmx }
func (*Sync) OpCode() OpCode    { return OpSync }

func (*Poll) isMessage()    {}
func (*Command) isMessage() {}
func (*Dmx) isMessage()     {}
func (*Sync) isMessage()    {}
