package audioframe

import (
	"fmt"
	"log"

	"github.com/cwsl/netjack/internal/lossdetect"
	"github.com/cwsl/netjack/internal/metrics"
	"github.com/cwsl/netjack/internal/wire"
)

// ErrPortIndexOutOfRange is logged and the offending entry skipped (§7
// PortIndexOutOfRange) when an optimized active-ports entry names a port
// outside [0, N).
var ErrPortIndexOutOfRange = fmt.Errorf("netjack: port index out of range")

// PortBuffer is a single port's per-cycle sample storage, borrowed from
// the driver for the duration of one cycle (§5 "Sharing"). Samples are
// stored as raw little-endian bytes, sampleWidth bytes per sample.
type PortBuffer struct {
	bound bool
	data  []byte
}

// NewPortBuffer allocates a port buffer sized for periodSize samples of
// sampleWidth bytes each.
func NewPortBuffer(periodSize, sampleWidth int) *PortBuffer {
	return &PortBuffer{data: make([]byte, periodSize*sampleWidth)}
}

// Bind attaches a sample slice for this cycle; Release detaches it. A
// bound slot is the only meaning of "locally bound" (§9: the `-1`
// sentinel-as-pointer trick is replaced by an explicit bound flag; see
// OptimizedPortList.activeMask for the separate "remotely active" bit).
func (b *PortBuffer) Bind(slice []byte) { b.bound = true; copy(b.data, slice) }
func (b *PortBuffer) Release()          { b.bound = false }
func (b *PortBuffer) Bound() bool       { return b.bound }
func (b *PortBuffer) Bytes() []byte     { return b.data }

// Zero clears the port's entire period buffer. Used by the optimized
// framer at sub_cycle 0 so silence is transmitted by omission (§4.4).
func (b *PortBuffer) Zero() {
	for i := range b.data {
		b.data[i] = 0
	}
}

// DensePortList implements C5: every port's slice is serialized every
// sub-cycle, with no active-port negotiation.
type DensePortList struct {
	periodSize  int
	sampleWidth int
	budget      int
	numPorts    int
	subPeriod   int

	seq *lossdetect.Detector // tracks fLastSubCycle for this direction (§4.6)

	metrics   *metrics.Metrics
	direction string
}

// AttachMetrics wires m's counters/gauges into this framer's render calls,
// labeled by direction ("send" or "return", §4.6). A nil m (the default)
// disables metrics without changing any other behavior.
func (d *DensePortList) AttachMetrics(m *metrics.Metrics, direction string) {
	d.metrics = m
	d.direction = direction
}

// NewDensePortList constructs a dense framer. S is fixed at construction
// time (§3 Invariants: "S is recomputed only at negotiation time for
// dense mode").
func NewDensePortList(periodSize, numPorts, sampleWidth, mtu, headerSize int) *DensePortList {
	budget := PayloadBudget(mtu, headerSize)
	return &DensePortList{
		periodSize:  periodSize,
		sampleWidth: sampleWidth,
		budget:      budget,
		numPorts:    numPorts,
		subPeriod:   SubPeriodSize(periodSize, numPorts, sampleWidth, budget, Dense),
		seq:         lossdetect.New(),
	}
}

// SubPeriodSize returns S, the samples-per-sub-cycle for this framer.
func (d *DensePortList) SubPeriodSize() int { return d.subPeriod }

// NumPackets returns K = P / S (§4.4).
func (d *DensePortList) NumPackets() int { return NumPackets(d.periodSize, d.subPeriod) }

// RenderToNetwork copies sub_cycle's slice of every port into buf
// port-major and returns the payload byte count and the port count
// written (always numPorts for dense).
func (d *DensePortList) RenderToNetwork(ports []*PortBuffer, subCycle int, buf []byte) (payloadBytes, portCount int, err error) {
	s := d.subPeriod
	off := subCycle * s * d.sampleWidth
	pos := 0
	for _, p := range ports {
		if off+s*d.sampleWidth > len(p.Bytes()) {
			return 0, 0, fmt.Errorf("netjack: dense render_to_network: sub-cycle %d out of range", subCycle)
		}
		n := copy(buf[pos:], p.Bytes()[off:off+s*d.sampleWidth])
		wire.SwapSamplesLE32(buf[pos : pos+n])
		pos += n
	}
	if subCycle == d.NumPackets()-1 {
		d.seq.EndCycle()
	}
	if d.metrics != nil {
		d.metrics.PacketsSent.WithLabelValues("audio").Inc()
		d.metrics.BytesSent.WithLabelValues("audio").Add(float64(pos))
	}
	return pos, len(ports), nil
}

// RenderFromNetwork scatters S samples per port from buf into the per-port
// buffers at sub_cycle's offset, asserting the sequencing invariant (§4.4,
// §8 invariant 5). On a sequence gap it still scatters the payload and
// returns a *lossdetect.Gap so the caller can log it and mark ports for
// silence, per §7 policy ("malformed and sequence errors are recovered
// locally").
func (d *DensePortList) RenderFromNetwork(ports []*PortBuffer, cycle, subCycle int, buf []byte, portCount int) error {
	s := d.subPeriod
	off := subCycle * s * d.sampleWidth
	pos := 0
	for _, p := range ports {
		end := off + s*d.sampleWidth
		if end > len(p.Bytes()) {
			break
		}
		n := copy(p.Bytes()[off:end], buf[pos:])
		wire.SwapSamplesLE32(p.Bytes()[off : off+n])
		pos += n
	}

	gap := d.seq.Check(subCycle)
	if subCycle == d.NumPackets()-1 {
		d.seq.EndCycle()
	}
	if d.metrics != nil {
		d.metrics.PacketsReceived.WithLabelValues("audio").Inc()
		d.metrics.BytesReceived.WithLabelValues("audio").Add(float64(pos))
		if gap != nil {
			d.metrics.SequenceGaps.WithLabelValues(d.direction).Inc()
		}
	}
	if gap != nil {
		return gap
	}
	return nil
}

// OptimizedPortList implements C6: only ports with a bound buffer are
// transmitted; the active-port set is advertised once per cycle via a
// sync packet (§4.4).
type OptimizedPortList struct {
	periodSize  int
	sampleWidth int
	budget      int
	numPorts    int
	subPeriod   int

	// activeMask marks ports the *remote* peer reported as active this
	// cycle (§9: replaces the C++ "-1 cast to pointer" sentinel with an
	// explicit bitset; a port's PortBuffer.bound flag always means
	// "locally bound", never "remotely active").
	activeMask []bool

	seq *lossdetect.Detector

	logger *log.Logger

	metrics   *metrics.Metrics
	direction string
}

// AttachMetrics wires m's counters/gauges into this framer's render calls,
// labeled by direction ("send" or "return", §4.6). A nil m (the default)
// disables metrics without changing any other behavior.
func (o *OptimizedPortList) AttachMetrics(m *metrics.Metrics, direction string) {
	o.metrics = m
	o.direction = direction
}

// MaxActivePorts is the asserted maximum active-port count for the
// optimized protocol (§4.4 active_ports_to_network).
const MaxActivePorts = 512

// NewOptimizedPortList constructs an optimized framer for up to numPorts
// ports.
func NewOptimizedPortList(periodSize, numPorts, sampleWidth, mtu, headerSize int, logger *log.Logger) *OptimizedPortList {
	if logger == nil {
		logger = log.Default()
	}
	return &OptimizedPortList{
		periodSize:  periodSize,
		sampleWidth: sampleWidth,
		budget:      PayloadBudget(mtu, headerSize),
		numPorts:    numPorts,
		activeMask:  make([]bool, numPorts),
		seq:         lossdetect.New(),
		logger:      logger,
	}
}

// activeCount returns A, the number of locally bound ports this cycle.
func activeCount(ports []*PortBuffer) int {
	n := 0
	for _, p := range ports {
		if p.Bound() {
			n++
		}
	}
	return n
}

// NumPackets recomputes S from the current active-port count and returns
// K = P / S, or 1 if A = 0 (§4.4).
func (o *OptimizedPortList) NumPackets(ports []*PortBuffer) int {
	a := activeCount(ports)
	if a == 0 {
		return 1
	}
	o.subPeriod = SubPeriodSize(o.periodSize, a, o.sampleWidth, o.budget, Optimized)
	return NumPackets(o.periodSize, o.subPeriod)
}

// RenderToNetwork writes, for each locally bound port, a 4-byte port
// index followed by S samples, returning the total payload bytes and the
// number of port entries written (§4.4, §6: 4-byte port indices in the
// inline audio payload — distinct from the 16-bit indices used in the
// active-ports list, §9 Open Question a).
func (o *OptimizedPortList) RenderToNetwork(ports []*PortBuffer, subCycle int, buf []byte) (payloadBytes, portCount int, err error) {
	s := o.subPeriod
	off := subCycle * s * o.sampleWidth
	pos := 0
	for idx, p := range ports {
		if !p.Bound() {
			continue
		}
		end := off + s*o.sampleWidth
		if end > len(p.Bytes()) {
			return 0, 0, fmt.Errorf("netjack: optimized render_to_network: sub-cycle %d out of range", subCycle)
		}
		wire.PutU32(buf[pos:], uint32(idx))
		pos += 4
		n := copy(buf[pos:], p.Bytes()[off:end])
		wire.SwapSamplesLE32(buf[pos : pos+n])
		pos += n
		portCount++
	}
	if subCycle == NumPackets(o.periodSize, s)-1 {
		o.seq.EndCycle()
	}
	if o.metrics != nil {
		o.metrics.PacketsSent.WithLabelValues("audio").Inc()
		o.metrics.BytesSent.WithLabelValues("audio").Add(float64(pos))
		o.metrics.ActivePorts.WithLabelValues(o.direction).Set(float64(portCount))
		o.metrics.SubPeriod.WithLabelValues(o.direction).Set(float64(s))
	}
	return pos, portCount, nil
}

// RenderFromNetwork scatters a received optimized-mode packet. At
// sub_cycle 0 every locally bound port's full period is zeroed first, so
// a port that the remote peer doesn't transmit this cycle is silent by
// omission (§4.4). S is recomputed from portCount before slicing, since
// the sender's active count is conveyed implicitly by how many entries
// are present in this packet together with the header's ActivePorts
// field.
func (o *OptimizedPortList) RenderFromNetwork(ports []*PortBuffer, cycle, subCycle int, buf []byte, portCount int) error {
	if subCycle == 0 {
		for _, p := range ports {
			if p.Bound() {
				p.Zero()
			}
		}
	}

	s := SubPeriodSize(o.periodSize, portCount, o.sampleWidth, o.budget, Optimized)
	o.subPeriod = s
	off := subCycle * s * o.sampleWidth
	pos := 0
	for i := 0; i < portCount; i++ {
		if pos+4 > len(buf) {
			break
		}
		idx := int(wire.U32(buf[pos:]))
		pos += 4
		end := off + s*o.sampleWidth
		if idx < 0 || idx >= len(ports) {
			o.logger.Printf("netjack: optimized render_from_network: %v: idx=%d num_ports=%d", ErrPortIndexOutOfRange, idx, len(ports))
			pos += s * o.sampleWidth
			continue
		}
		if ports[idx].Bound() && end <= len(ports[idx].Bytes()) {
			n := copy(ports[idx].Bytes()[off:end], buf[pos:])
			wire.SwapSamplesLE32(ports[idx].Bytes()[off : off+n])
		}
		pos += s * o.sampleWidth
	}

	gap := o.seq.Check(subCycle)
	if subCycle == NumPackets(o.periodSize, s)-1 {
		o.seq.EndCycle()
	}
	if o.metrics != nil {
		o.metrics.PacketsReceived.WithLabelValues("audio").Inc()
		o.metrics.BytesReceived.WithLabelValues("audio").Add(float64(len(buf)))
		o.metrics.ActivePorts.WithLabelValues(o.direction).Set(float64(portCount))
		o.metrics.SubPeriod.WithLabelValues(o.direction).Set(float64(s))
		if gap != nil {
			o.metrics.SequenceGaps.WithLabelValues(o.direction).Inc()
		}
	}
	if gap != nil {
		return gap
	}
	return nil
}

// ActivePortsToNetwork writes the ordered sequence of locally bound port
// indices as 16-bit values into buf (§4.4, §6: "16-bit port indices in the
// active-ports list"). It asserts the maximum of 512 active ports.
func ActivePortsToNetwork(ports []*PortBuffer, buf []byte) (portCount int, err error) {
	pos := 0
	for idx, p := range ports {
		if !p.Bound() {
			continue
		}
		if portCount >= MaxActivePorts {
			return portCount, fmt.Errorf("netjack: active port count exceeds max %d", MaxActivePorts)
		}
		wire.PutU16(buf[pos:], uint16(idx))
		pos += 2
		portCount++
	}
	return portCount, nil
}

// ActivePortsFromNetwork clears the optimized framer's remote-active mask
// and marks each of the portCount 16-bit indices in buf as remotely
// active. Indices outside [0, N) are rejected and skipped with a logged
// error (§4.4, §7 PortIndexOutOfRange).
func (o *OptimizedPortList) ActivePortsFromNetwork(buf []byte, portCount int) {
	for i := range o.activeMask {
		o.activeMask[i] = false
	}
	pos := 0
	for i := 0; i < portCount; i++ {
		if pos+2 > len(buf) {
			return
		}
		idx := int(wire.U16(buf[pos:]))
		pos += 2
		if idx < 0 || idx >= len(o.activeMask) {
			o.logger.Printf("netjack: active_ports_from_network: %v: idx=%d num_ports=%d", ErrPortIndexOutOfRange, idx, len(o.activeMask))
			continue
		}
		o.activeMask[idx] = true
	}
}

// RemotelyActive reports whether the peer advertised port idx as active
// in the most recent sync packet.
func (o *OptimizedPortList) RemotelyActive(idx int) bool {
	if idx < 0 || idx >= len(o.activeMask) {
		return false
	}
	return o.activeMask[idx]
}
