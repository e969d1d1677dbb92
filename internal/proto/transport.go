package proto

import (
	"math"

	"github.com/cwsl/netjack/internal/wire"
)

// TimebaseMaster discriminates a transport timebase-master state change
// (§4.1).
type TimebaseMaster uint32

const (
	TimebaseNoChange TimebaseMaster = iota
	TimebaseRelease
	TimebaseTimebase
	TimebaseConditional
)

// TransportState mirrors a host transport's play/stop/... state. The core
// treats this as an opaque enum it only needs to round-trip; the engine
// collaborator defines the actual meaning of each value.
type TransportState uint32

// Position is the playhead position record carried inside transport data.
type Position struct {
	Frame      uint64
	SampleRate uint32
	Tempo      float64
}

// Transport is the sync-packet payload that carries playhead state between
// peers (§3, §6). It is decoded/encoded by this package but is otherwise
// opaque to the framers.
type Transport struct {
	StateChanged bool
	Timebase     TimebaseMaster
	State        TransportState
	Pos          Position
}

// TransportWireSize is the fixed on-wire size of a Transport record: one
// u32 flag, two u32 enums, a Position (u64 frame + u32 sample rate + u64
// tempo bits).
const TransportWireSize = 4 + 4 + 4 + 8 + 4 + 8

// EncodeTransport serializes t into its fixed wire form.
func EncodeTransport(t Transport) [TransportWireSize]byte {
	var buf [TransportWireSize]byte
	off := 0
	wire.PutU32(buf[off:], boolToU32(t.StateChanged))
	off += 4
	wire.PutU32(buf[off:], uint32(t.Timebase))
	off += 4
	wire.PutU32(buf[off:], uint32(t.State))
	off += 4
	wire.PutU64(buf[off:], t.Pos.Frame)
	off += 8
	wire.PutU32(buf[off:], t.Pos.SampleRate)
	off += 4
	wire.PutU64(buf[off:], math.Float64bits(t.Pos.Tempo))
	return buf
}

// DecodeTransport deserializes a Transport record from its wire form.
func DecodeTransport(buf []byte) Transport {
	var t Transport
	off := 0
	t.StateChanged = wire.U32(buf[off:]) != 0
	off += 4
	t.Timebase = TimebaseMaster(wire.U32(buf[off:]))
	off += 4
	t.State = TransportState(wire.U32(buf[off:]))
	off += 4
	t.Pos.Frame = wire.U64(buf[off:])
	off += 8
	t.Pos.SampleRate = wire.U32(buf[off:])
	off += 4
	t.Pos.Tempo = math.Float64frombits(wire.U64(buf[off:]))
	return t
}
