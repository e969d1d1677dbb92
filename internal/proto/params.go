// Package proto implements the negotiated session parameters and the
// per-packet header that precede every data packet (C2/C3 of the core
// design), plus the packet-type and sync-phase discrimination described in
// §4.2.
package proto

import (
	"errors"
	"fmt"

	"github.com/cwsl/netjack/internal/wire"
)

// EncoderKind selects the wire sample representation for an audio cycle.
type EncoderKind uint32

const (
	EncoderFloat EncoderKind = iota
	EncoderInt
	EncoderCelt
)

func (k EncoderKind) String() string {
	switch k {
	case EncoderFloat:
		return "float"
	case EncoderInt:
		return "int16"
	case EncoderCelt:
		return "celt"
	default:
		return fmt.Sprintf("EncoderKind(%d)", uint32(k))
	}
}

// MarshalYAML implements yaml.Marshaler so EncoderKind reads and writes as
// a lowercase name in local config files, the same way the teacher's
// DecoderMode does for its enum.
func (k EncoderKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for EncoderKind.
func (k *EncoderKind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "float", "FLOAT":
		*k = EncoderFloat
	case "int", "int16", "INT":
		*k = EncoderInt
	case "celt", "CELT":
		*k = EncoderCelt
	default:
		return fmt.Errorf("unknown encoder kind %q", s)
	}
	return nil
}

// ProtocolVersion is the protocol version carried in every session
// parameters packet. A mismatch between master and slave refuses the
// connection (§6).
const ProtocolVersion = 4

// paramsTag is "params" NUL-padded to its 7-byte wire field, so it compares
// equal to buf[0:7] of an encoded parameters packet.
const paramsTag = "params\x00"

// wire sizes, §6.
const (
	slaveNameSize  = 32
	hostNameSize   = 256
	ParamsWireSize = 7 + 1 + 4 + slaveNameSize + hostNameSize + hostNameSize +
		4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4
)

// PacketID discriminates the sync phase of a session-parameters packet
// (§4.2).
type PacketID uint32

const (
	PhaseInvalid PacketID = iota
	PhaseSlaveAvailable
	PhaseSlaveSetup
	PhaseStartMaster
	PhaseStartSlave
	PhaseKillMaster
)

// Params is the negotiated, immutable-after-construction session record
// (§3). It parameterizes every downstream framer and encoder.
type Params struct {
	Version  uint8
	PacketID PacketID

	SlaveName  string
	MasterHost string
	SlaveHost  string

	MTU     uint32
	SlaveID uint32

	TransportSync bool

	SendAudioChannels   int32
	ReturnAudioChannels int32
	SendMIDIChannels    int32
	ReturnMIDIChannels  int32

	SampleRate uint32
	PeriodSize uint32

	Encoder EncoderKind
	KBps    uint32

	SlaveSyncMode  bool
	NetworkLatency uint32
}

// ErrProtocolMismatch is returned by Decode and Validate when the tag or
// version doesn't match, per §7 ProtocolMismatch — fatal to the session.
var ErrProtocolMismatch = errors.New("netjack: protocol mismatch")

// Validate checks the invariants §8 implies a decoded Params must satisfy
// before any downstream component trusts it: the protocol version must
// match, the MTU must be large enough to hold at least a header and one
// byte of payload, the period size must be a power of two, and the encoder
// kind must be one of the three known values.
func (p *Params) Validate() error {
	if p.Version != ProtocolVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrProtocolMismatch, p.Version, ProtocolVersion)
	}
	if p.MTU < HeaderWireSize+1 {
		return fmt.Errorf("%w: mtu %d too small for header", ErrProtocolMismatch, p.MTU)
	}
	if p.PeriodSize == 0 || p.PeriodSize&(p.PeriodSize-1) != 0 {
		return fmt.Errorf("%w: period size %d is not a power of two", ErrProtocolMismatch, p.PeriodSize)
	}
	switch p.Encoder {
	case EncoderFloat, EncoderInt, EncoderCelt:
	default:
		return fmt.Errorf("%w: unknown encoder kind %d", ErrProtocolMismatch, p.Encoder)
	}
	return nil
}

// EncodeParams serializes p into the fixed wire form described in §6, in
// canonical big-endian byte order. (§4.1 describes this as a "128-byte
// buffer" in prose, but §6's authoritative field-by-field layout —
// 32+256+256 bytes of name/hostname fields alone — is far larger; this
// implementation follows §6.)
func EncodeParams(p Params) [ParamsWireSize]byte {
	var buf [ParamsWireSize]byte
	off := 0
	copy(buf[off:], paramsTag)
	off += 7
	buf[off] = p.Version
	off++
	wire.PutU32(buf[off:], uint32(p.PacketID))
	off += 4
	wire.PutCString(buf[off:off+slaveNameSize], p.SlaveName)
	off += slaveNameSize
	wire.PutCString(buf[off:off+hostNameSize], p.MasterHost)
	off += hostNameSize
	wire.PutCString(buf[off:off+hostNameSize], p.SlaveHost)
	off += hostNameSize
	wire.PutU32(buf[off:], p.MTU)
	off += 4
	wire.PutU32(buf[off:], p.SlaveID)
	off += 4
	wire.PutU32(buf[off:], boolToU32(p.TransportSync))
	off += 4
	wire.PutI32(buf[off:], p.SendAudioChannels)
	off += 4
	wire.PutI32(buf[off:], p.ReturnAudioChannels)
	off += 4
	wire.PutI32(buf[off:], p.SendMIDIChannels)
	off += 4
	wire.PutI32(buf[off:], p.ReturnMIDIChannels)
	off += 4
	wire.PutU32(buf[off:], p.SampleRate)
	off += 4
	wire.PutU32(buf[off:], p.PeriodSize)
	off += 4
	wire.PutU32(buf[off:], uint32(p.Encoder))
	off += 4
	wire.PutU32(buf[off:], p.KBps)
	off += 4
	wire.PutU32(buf[off:], boolToU32(p.SlaveSyncMode))
	off += 4
	wire.PutU32(buf[off:], p.NetworkLatency)
	return buf
}

// DecodeParams deserializes a session-parameters packet from its wire
// form. It does not call Validate; callers should call Validate
// explicitly once they've decided what to do with a tag/version mismatch.
func DecodeParams(buf []byte) (Params, error) {
	if len(buf) < ParamsWireSize {
		return Params{}, fmt.Errorf("netjack: params buffer too short (%d < %d)", len(buf), ParamsWireSize)
	}
	if string(buf[0:7]) != paramsTag {
		return Params{}, fmt.Errorf("%w: bad tag %q", ErrProtocolMismatch, buf[0:7])
	}
	off := 7
	var p Params
	p.Version = buf[off]
	off++
	p.PacketID = PacketID(wire.U32(buf[off:]))
	off += 4
	p.SlaveName = wire.CString(buf[off : off+slaveNameSize])
	off += slaveNameSize
	p.MasterHost = wire.CString(buf[off : off+hostNameSize])
	off += hostNameSize
	p.SlaveHost = wire.CString(buf[off : off+hostNameSize])
	off += hostNameSize
	p.MTU = wire.U32(buf[off:])
	off += 4
	p.SlaveID = wire.U32(buf[off:])
	off += 4
	p.TransportSync = wire.U32(buf[off:]) != 0
	off += 4
	p.SendAudioChannels = wire.I32(buf[off:])
	off += 4
	p.ReturnAudioChannels = wire.I32(buf[off:])
	off += 4
	p.SendMIDIChannels = wire.I32(buf[off:])
	off += 4
	p.ReturnMIDIChannels = wire.I32(buf[off:])
	off += 4
	p.SampleRate = wire.U32(buf[off:])
	off += 4
	p.PeriodSize = wire.U32(buf[off:])
	off += 4
	p.Encoder = EncoderKind(wire.U32(buf[off:]))
	off += 4
	p.KBps = wire.U32(buf[off:])
	off += 4
	p.SlaveSyncMode = wire.U32(buf[off:]) != 0
	off += 4
	p.NetworkLatency = wire.U32(buf[off:])
	return p, nil
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// PeekKind inspects the first bytes of a packet to discriminate its
// top-level kind (§4.2): a session-parameters packet, a data packet, or
// neither.
type Kind int

const (
	KindInvalid Kind = iota
	KindParams
	KindData
)

// PeekKind implements the §4.2 dispatch contract: "params" -> session
// parameters, "headr" -> data packet, anything else -> invalid.
func PeekKind(buf []byte) Kind {
	if len(buf) >= 7 && string(buf[0:7]) == paramsTag {
		return KindParams
	}
	if len(buf) >= 7 && string(buf[0:7]) == headerTag {
		return KindData
	}
	return KindInvalid
}
