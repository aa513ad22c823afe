package artnet

import "encoding/binary"

// Status1 indicator bits (7-6)
const (
	Status1IndicatorUnknown = 0b00_000000
	Status1IndicatorLocate  = 0b01_000000
	Status1IndicatorMute    = 0b10_000000
	Status1IndicatorNormal  = 0b11_000000
)

// Port type and good-output bits used by nodes with DMX512 outputs
const (
	PortTypeOutput       = 0b1000_0000
	PortTypeInput        = 0b0100_0000
	GoodOutputDataTx     = 0b1000_0000
	Status2PortAddress15 = 0b0000_1000
)

// Field widths of the ArtPollReply text fields
const (
	ShortNameSize  = 18
	LongNameSize   = 64
	NodeReportSize = 64
)

// PollReply is the ArtPollReply a node sends in answer to an ArtPoll.
// There is no decoder for it. Build one with DefaultPollReply and override fields.
type PollReply struct {
	IPAddress       [4]byte
	Port            uint16 // little-endian on the wire
	FirmwareVersion uint16
	// NetSwitch carries bits 14-8 of the Port-Address in its bottom 7 bits.
	NetSwitch uint8
	// SubSwitch carries bits 7-4 of the Port-Address in its bottom 4 bits.
	SubSwitch uint8
	// OEM identifies the equipment vendor; bit 15 high means extended features.
	OEM uint16
	// UBEAVersion is zero when the User Bios Extension Area is not programmed.
	UBEAVersion uint8
	// Status1 is the general status register:
	//
	//	7-6 indicator state (00 unknown, 01 locate, 10 mute, 11 normal)
	//	5-4 Port-Address programming authority
	//	2   booted from ROM
	//	1   RDM capable
	//	0   UBEA present
	Status1              uint8
	ESTAManufacturerCode ESTAManufacturerCode
	// ShortName, LongName and NodeReport are ASCII. They are truncated to 17, 63 and 63
	// bytes and always NUL terminated.
	ShortName   string
	LongName    string
	NodeReport  string
	NumPorts    uint16
	PortTypes   [4]byte
	GoodInput   [4]byte
	GoodOutputA [4]byte
	SwIn        [4]byte
	SwOut       [4]byte
	ACNPriority uint8
	SwMacro     uint8
	SwRemote    uint8
	Style       uint8
	MACAddress  [6]byte
	// BindIPAddress and BindIndex group the pages of a multi-port node.
	BindIPAddress [4]byte
	BindIndex     uint8
	Status2       uint8
	GoodOutputB   [4]byte
	Status3       uint8
	// DefaultResponderUID is the RDMnet and LLRP default responder UID.
	DefaultResponderUID [6]byte
}

// DefaultPollReply returns a reply with every field zero except Status1, which reports
// indicators in normal mode.
func DefaultPollReply() PollReply {
	return PollReply{
		Status1: Status1IndicatorNormal,
	}
}

// MarshalTo encodes the reply into buf and returns the number of bytes written,
// always PollReplySize. buf is left untouched when it is too small.
func (r *PollReply) MarshalTo(buf []byte) (int, error) {
	if err := checkCapacity(buf, PollReplySize); err != nil {
		return 0, err
	}
	b := buf[:PollReplySize]

	// No ProtVer in a reply: the IP address follows the opcode directly
	putOpCode(b, OpPollReply)
	copy(b[10:14], r.IPAddress[:])
	binary.LittleEndian.PutUint16(b[14:16], r.Port)
	binary.BigEndian.PutUint16(b[16:18], r.FirmwareVersion)
	b[18] = r.NetSwitch
	b[19] = r.SubSwitch
	binary.BigEndian.PutUint16(b[20:22], r.OEM)
	b[22] = r.UBEAVersion
	b[23] = r.Status1
	b[24] = r.ESTAManufacturerCode.Lo
	b[25] = r.ESTAManufacturerCode.Hi

	putPaddedString(b[26:44], r.ShortName)
	putPaddedString(b[44:108], r.LongName)
	putPaddedString(b[108:172], r.NodeReport)

	binary.BigEndian.PutUint16(b[172:174], r.NumPorts)
	copy(b[174:178], r.PortTypes[:])
	copy(b[178:182], r.GoodInput[:])
	copy(b[182:186], r.GoodOutputA[:])
	copy(b[186:190], r.SwIn[:])
	copy(b[190:194], r.SwOut[:])
	b[194] = r.ACNPriority
	b[195] = r.SwMacro
	b[196] = r.SwRemote
	clear(b[197:200]) // spare
	b[200] = r.Style
	copy(b[201:207], r.MACAddress[:])
	copy(b[207:211], r.BindIPAddress[:])
	b[211] = r.BindIndex
	b[212] = r.Status2
	copy(b[213:217], r.GoodOutputB[:])
	b[217] = r.Status3
	copy(b[218:224], r.DefaultResponderUID[:])
	clear(b[224:PollReplySize]) // filler

	return PollReplySize, nil
}

// MarshalBinary encodes the reply into a newly allocated buffer
func (r *PollReply) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PollReplySize)
	if _, err := r.MarshalTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
