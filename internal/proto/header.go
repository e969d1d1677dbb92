package proto

import (
	"fmt"

	"github.com/cwsl/netjack/internal/wire"
)

// headerTag is "headr" NUL-padded to its 7-byte wire field, so it compares
// equal to buf[0:7] of an encoded header.
const headerTag = "headr\x00\x00"

// DataType selects the payload handling for a data packet (§3, §4.2).
type DataType byte

const (
	DataAudio DataType = 'a'
	DataMIDI  DataType = 'm'
	DataSync  DataType = 's'
)

// Direction marks which peer sent a data packet.
type Direction byte

const (
	DirSend   Direction = 's'
	DirReturn Direction = 'r'
)

// HeaderWireSize is the fixed on-wire size of a packet header (§3: "64-byte
// aligned on the wire"). The fields below sum to 7+1+1+4+4+4+4+4+4+4 = 37
// bytes; the remaining bytes up to the 64-byte alignment boundary are
// reserved padding, matching the teacher's convention of over-allocating
// fixed headers to a round boundary for future fields.
const HeaderWireSize = 64

const headerFieldsSize = 7 + 1 + 1 + 4 + 4 + 4 + 4 + 4 + 4 + 4

// Header is the fixed prefix of every data packet (§3).
type Header struct {
	DataType     DataType
	Direction    Direction
	SlaveID      uint32
	NumPacket    uint32 // N, number of data packets this cycle
	PacketSize   uint32 // payload size in bytes, not including the header
	ActivePorts  uint32
	Cycle        uint32
	SubCycle     uint32
	IsLastPacket bool
}

// EncodeHeader serializes h into its fixed wire form.
func EncodeHeader(h Header) [HeaderWireSize]byte {
	var buf [HeaderWireSize]byte
	off := 0
	copy(buf[off:], headerTag)
	off += 7
	buf[off] = byte(h.DataType)
	off++
	buf[off] = byte(h.Direction)
	off++
	wire.PutU32(buf[off:], h.SlaveID)
	off += 4
	wire.PutU32(buf[off:], h.NumPacket)
	off += 4
	wire.PutU32(buf[off:], h.PacketSize)
	off += 4
	wire.PutU32(buf[off:], h.ActivePorts)
	off += 4
	wire.PutU32(buf[off:], h.Cycle)
	off += 4
	wire.PutU32(buf[off:], h.SubCycle)
	off += 4
	wire.PutU32(buf[off:], boolToU32(h.IsLastPacket))
	return buf
}

// ErrMalformedHeader is returned by DecodeHeader on a tag mismatch or other
// structurally invalid header (§7 MalformedHeader — drop the packet).
var ErrMalformedHeader = fmt.Errorf("netjack: malformed header")

// DecodeHeader deserializes a packet header from its wire form. It
// validates the tag and the data-type character but not the slave id or
// sequencing — those are the caller's responsibility (session layer and
// loss detector respectively).
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerFieldsSize {
		return Header{}, fmt.Errorf("%w: buffer too short (%d < %d)", ErrMalformedHeader, len(buf), headerFieldsSize)
	}
	if string(buf[0:7]) != headerTag {
		return Header{}, fmt.Errorf("%w: bad tag %q", ErrMalformedHeader, buf[0:7])
	}
	var h Header
	off := 7
	h.DataType = DataType(buf[off])
	off++
	switch h.DataType {
	case DataAudio, DataMIDI, DataSync:
	default:
		return Header{}, fmt.Errorf("%w: unknown data type %q", ErrMalformedHeader, h.DataType)
	}
	h.Direction = Direction(buf[off])
	off++
	h.SlaveID = wire.U32(buf[off:])
	off += 4
	h.NumPacket = wire.U32(buf[off:])
	off += 4
	h.PacketSize = wire.U32(buf[off:])
	off += 4
	h.ActivePorts = wire.U32(buf[off:])
	off += 4
	h.Cycle = wire.U32(buf[off:])
	off += 4
	h.SubCycle = wire.U32(buf[off:])
	off += 4
	h.IsLastPacket = wire.U32(buf[off:]) != 0
	return h, nil
}
