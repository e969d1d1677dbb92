// Package midibuf implements C4, the MIDI cycle buffer: packing variable
// length MIDI events from up to nports ports into an intermediate buffer
// sized to one cycle, splitting it across 1..K packets, and reassembling
// it on the far side. MIDI event bytes themselves are an opaque payload
// (MIDI event byte representation is explicitly out of scope, spec.md §1)
// — this package only concerns itself with framing, not interpretation.
package midibuf

import (
	"fmt"

	"github.com/cwsl/netjack/internal/metrics"
	"github.com/cwsl/netjack/internal/wire"
)

// Event is one MIDI event captured within a cycle: a timestamp (in
// samples, relative to the start of the period) and opaque event bytes.
type Event struct {
	Timestamp uint32
	Data      []byte
}

// wire sizes for the per-event and per-port headers inside the linear
// intermediate buffer (§4.3: "for each port, the port's MIDI buffer
// structure (event count, lost count) followed by the events").
const (
	portHeaderWireSize = 4 + 4 // event count, lost count
	eventHeaderSize    = 4 + 4 // timestamp, length
)

// MaxEventBytes is a per-event payload ceiling mirroring jack_midi's
// effective per-event limit. RenderFromLocalPorts does not check it: an
// event is dropped only when it does not fit the space left in the
// staging buffer.
const MaxEventBytes = 1 << 16

// HeaderWireSize is the size of the §6 MIDI buffer header this package
// encodes/decodes: event count, total byte size, lost-events counter.
const HeaderWireSize = 4 + 4 + 4

// BufferHeader is the framing-fields subset of a MIDI batch (§4.1): event
// count, total byte size, and the lost-events counter surfaced on
// overflow (§7 MidiOverflow).
type BufferHeader struct {
	EventCount uint32
	ByteSize   uint32
	LostEvents uint32
}

// EncodeBufferHeader serializes h into its fixed wire form.
func EncodeBufferHeader(h BufferHeader) [HeaderWireSize]byte {
	var buf [HeaderWireSize]byte
	wire.PutU32(buf[0:], h.EventCount)
	wire.PutU32(buf[4:], h.ByteSize)
	wire.PutU32(buf[8:], h.LostEvents)
	return buf
}

// DecodeBufferHeader deserializes a BufferHeader from its wire form.
func DecodeBufferHeader(buf []byte) BufferHeader {
	return BufferHeader{
		EventCount: wire.U32(buf[0:]),
		ByteSize:   wire.U32(buf[4:]),
		LostEvents: wire.U32(buf[8:]),
	}
}

// CycleBuffer is the per-direction, per-cycle MIDI intermediate buffer
// (§4.3). It is allocated once at session start and reused every cycle.
type CycleBuffer struct {
	maxBufsize int // fMaxBufsize = nports * jack_midi_buffer_max_size
	nports     int

	// staging holds the linear self-describing form produced by
	// RenderFromLocalPorts / consumed by RenderToLocalPorts.
	staging    []byte
	cycleSize  int // fCycleSize: actually-used bytes this cycle
	lostEvents int

	recv receiveAssembly

	metrics   *metrics.Metrics
	direction string
}

// AttachMetrics wires m's MIDI-events-lost counter and sequence-gap
// counter into this buffer's render/accept calls, labeled by direction
// ("send" or "return", §4.6). A nil m (the default) disables metrics
// without changing any other behavior.
func (c *CycleBuffer) AttachMetrics(m *metrics.Metrics, direction string) {
	c.metrics = m
	c.direction = direction
}

// NewCycleBuffer allocates a MIDI cycle buffer for nports ports, each
// reserving portMaxBytes bytes (the jack_midi_buffer_max_size analogue).
func NewCycleBuffer(nports, portMaxBytes int) *CycleBuffer {
	return &CycleBuffer{
		maxBufsize: nports * portMaxBytes,
		nports:     nports,
		staging:    make([]byte, nports*portMaxBytes),
	}
}

// CycleSize returns fCycleSize, the bytes actually used this cycle —
// always <= maxBufsize except that an overflow is clamped to maxBufsize
// (the excess is recorded as lost events, not over-written).
func (c *CycleBuffer) CycleSize() int { return c.cycleSize }

// LostEvents returns the number of events dropped to overflow this cycle
// (§4.3 Failure, §7 MidiOverflow).
func (c *CycleBuffer) LostEvents() int { return c.lostEvents }

// RenderFromLocalPorts walks ports' event lists, appending each port's
// buffer-header-plus-events into the linear staging area. If the total
// exceeds the buffer's reservation, the overflow events are dropped and
// counted in LostEvents (§4.3 Failure) — the rest of the cycle is still
// delivered intact.
func (c *CycleBuffer) RenderFromLocalPorts(ports [][]Event) int {
	pos := 0
	c.lostEvents = 0
	for _, events := range ports {
		headerPos := pos
		if headerPos+portHeaderWireSize > len(c.staging) {
			c.lostEvents += len(events)
			continue
		}
		pos += portHeaderWireSize

		kept := 0
		lost := 0
		for _, ev := range events {
			need := eventHeaderSize + len(ev.Data)
			if pos+need > len(c.staging) {
				lost++
				continue
			}
			wire.PutU32(c.staging[pos:], ev.Timestamp)
			wire.PutU32(c.staging[pos+4:], uint32(len(ev.Data)))
			copy(c.staging[pos+eventHeaderSize:], ev.Data)
			pos += need
			kept++
		}
		wire.PutU32(c.staging[headerPos:], uint32(kept))
		wire.PutU32(c.staging[headerPos+4:], uint32(lost))
		c.lostEvents += lost
	}
	c.cycleSize = pos
	if c.metrics != nil && c.lostEvents > 0 {
		c.metrics.MIDIEventsLost.Add(float64(c.lostEvents))
	}
	return c.cycleSize
}

// NumPackets returns ceil(cycleSize / payloadBudget), the number of
// packets this cycle's MIDI volume must be split across (§4.3 Send).
func (c *CycleBuffer) NumPackets(payloadBudget int) int {
	if payloadBudget <= 0 {
		return 1
	}
	n := c.cycleSize / payloadBudget
	if c.cycleSize%payloadBudget != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// RenderChunk copies the sub_cycle-th chunk of the staging buffer
// (chunked at payloadBudget bytes) into dst, returning the number of
// bytes written.
func (c *CycleBuffer) RenderChunk(subCycle, payloadBudget int, dst []byte) int {
	off := subCycle * payloadBudget
	if off >= c.cycleSize {
		return 0
	}
	end := off + payloadBudget
	if end > c.cycleSize {
		end = c.cycleSize
	}
	return copy(dst, c.staging[off:end])
}

// receiveAssembly tracks in-progress reassembly across a cycle's packets
// on the far side.
type receiveAssembly struct {
	lastSubCycle int
	discarded    bool
	total        int
}

// BeginReceive resets reassembly state at the start of a new cycle.
func (c *CycleBuffer) BeginReceive() {
	c.recv = receiveAssembly{lastSubCycle: -1}
}

// AcceptChunk reassembles successive packets into the staging buffer in
// sub-cycle order. Missing sub-cycles cause the MIDI cycle to be
// discarded entirely — MIDI has no interpolation (§4.3 Receive).
func (c *CycleBuffer) AcceptChunk(subCycle int, chunk []byte, isLast bool) error {
	if subCycle != c.recv.lastSubCycle+1 {
		wasDiscarded := c.recv.discarded
		c.recv.discarded = true
		if c.metrics != nil && !wasDiscarded {
			c.metrics.SequenceGaps.WithLabelValues(c.direction).Inc()
		}
	}
	c.recv.lastSubCycle = subCycle
	if c.recv.discarded {
		return fmt.Errorf("netjack: midi cycle discarded: sub-cycle gap at %d", subCycle)
	}
	if c.recv.total+len(chunk) > len(c.staging) {
		return fmt.Errorf("netjack: midi reassembly overflow at sub-cycle %d", subCycle)
	}
	n := copy(c.staging[c.recv.total:], chunk)
	c.recv.total += n
	if isLast {
		c.cycleSize = c.recv.total
	}
	return nil
}

// Discarded reports whether the current cycle's reassembly hit a gap and
// should not be scattered to local ports.
func (c *CycleBuffer) Discarded() bool { return c.recv.discarded }

// RenderToLocalPorts scatters the reassembled staging buffer back into
// per-port event lists (§4.3 Receive).
func (c *CycleBuffer) RenderToLocalPorts() ([][]Event, error) {
	ports := make([][]Event, c.nports)
	pos := 0
	for i := 0; i < c.nports; i++ {
		if pos+portHeaderWireSize > c.cycleSize {
			return ports, fmt.Errorf("netjack: midi render_to_local_ports: truncated port header at port %d", i)
		}
		count := int(wire.U32(c.staging[pos:]))
		_ = wire.U32(c.staging[pos+4:]) // lost count, informational only
		pos += portHeaderWireSize

		events := make([]Event, 0, count)
		for j := 0; j < count; j++ {
			if pos+eventHeaderSize > c.cycleSize {
				return ports, fmt.Errorf("netjack: midi render_to_local_ports: truncated event header at port %d event %d", i, j)
			}
			ts := wire.U32(c.staging[pos:])
			length := int(wire.U32(c.staging[pos+4:]))
			pos += eventHeaderSize
			if pos+length > c.cycleSize {
				return ports, fmt.Errorf("netjack: midi render_to_local_ports: truncated event data at port %d event %d", i, j)
			}
			data := make([]byte, length)
			copy(data, c.staging[pos:pos+length])
			pos += length
			events = append(events, Event{Timestamp: ts, Data: data})
		}
		ports[i] = events
	}
	return ports, nil
}
