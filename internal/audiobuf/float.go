// Package audiobuf implements C7, the three interchangeable audio buffer
// encoder variants (float, 16-bit PCM, CELT) that adapt the dense and
// optimized port-list framers in package audioframe to a specific wire
// sample representation (§4.5). All three obey the same fLastSubCycle
// sequencing invariant; each computes its own packet count K per cycle
// (float and int from the sub-period geometry, CELT from its compressed
// block size and the payload budget).
package audiobuf

import (
	"log"

	"github.com/cwsl/netjack/internal/audioframe"
)

// Buffer is the common operation set every encoder variant exposes,
// dispatched by the session's negotiated EncoderKind rather than by Go
// interface embedding of C++ virtuals (§9: "tagged variant AudioBuffer ∈
// {Float, Int, Celt} dispatched by the session encoder field").
type Buffer interface {
	CycleSize() int
	CycleDuration() float64
	NumPackets() int
	SetBuffer(portIndex int, samples []float32)
	GetBuffer(portIndex int) []float32
	RenderFromLocalPorts() int
	RenderToLocalPorts(cycle int) error
	RenderFromNetwork(cycle, subCycle int, buf []byte, portCount int) error
	RenderToNetwork(subCycle int, buf []byte) (payloadBytes, portCount int, err error)
}

// OptimizedBuffer is additionally implemented by variants running in
// optimized-protocol mode (§4.4 active_ports_to_network /
// active_ports_from_network).
type OptimizedBuffer interface {
	Buffer
	ActivePortsToNetwork(buf []byte) (portCount int, err error)
	ActivePortsFromNetwork(buf []byte, portCount int)
}

// FloatAudioBuffer is C7a: no sample transformation, dispatched to the
// dense or optimized framer depending on whether optimized-protocol mode
// is negotiated for the session (§4.5: "a runtime field on session
// parameters", per §9's resolution of the build-time OPTIMIZED_PROTOCOL
// switch).
type FloatAudioBuffer struct {
	sampleRate int
	periodSize int
	ports      []*audioframe.PortBuffer

	dense     *audioframe.DensePortList
	optimized *audioframe.OptimizedPortList
}

const sampleWidthFloat = 4

// NewFloatAudioBuffer constructs a float encoder for numPorts ports. If
// optimized is true, active-ports packing is used (C6); otherwise every
// port is transmitted every sub-cycle (C5).
func NewFloatAudioBuffer(sampleRate, periodSize, numPorts, mtu, headerSize int, optimized bool, logger *log.Logger) *FloatAudioBuffer {
	b := &FloatAudioBuffer{
		sampleRate: sampleRate,
		periodSize: periodSize,
		ports:      make([]*audioframe.PortBuffer, numPorts),
	}
	for i := range b.ports {
		b.ports[i] = audioframe.NewPortBuffer(periodSize, sampleWidthFloat)
	}
	if optimized {
		b.optimized = audioframe.NewOptimizedPortList(periodSize, numPorts, sampleWidthFloat, mtu, headerSize, logger)
	} else {
		b.dense = audioframe.NewDensePortList(periodSize, numPorts, sampleWidthFloat, mtu, headerSize)
	}
	return b
}

func (b *FloatAudioBuffer) subPeriod() int {
	if b.optimized != nil {
		// NumPackets recomputes S from the bound-port count and returns
		// K = P / S (1 when no port is bound, so S = P).
		return b.periodSize / b.optimized.NumPackets(b.ports)
	}
	return b.dense.SubPeriodSize()
}

// CycleSize returns the per-cycle byte volume for the active port set.
func (b *FloatAudioBuffer) CycleSize() int {
	a := len(b.ports)
	if b.optimized != nil {
		a = countBound(b.ports)
	}
	return a * b.periodSize * sampleWidthFloat
}

// CycleDuration is S / sample_rate (§4.5).
func (b *FloatAudioBuffer) CycleDuration() float64 {
	s := b.subPeriod()
	return float64(s) / float64(b.sampleRate)
}

// NumPackets returns K for the current cycle.
func (b *FloatAudioBuffer) NumPackets() int {
	if b.optimized != nil {
		return b.optimized.NumPackets(b.ports)
	}
	return b.dense.NumPackets()
}

// SetBuffer binds a float32 sample slice to portIndex for this cycle,
// converting to the little-endian byte form used on the wire.
func (b *FloatAudioBuffer) SetBuffer(portIndex int, samples []float32) {
	raw := float32SliceToLEBytes(samples)
	b.ports[portIndex].Bind(raw)
}

// GetBuffer returns portIndex's current period as float32 samples.
func (b *FloatAudioBuffer) GetBuffer(portIndex int) []float32 {
	return leBytesToFloat32Slice(b.ports[portIndex].Bytes())
}

// RenderFromLocalPorts is a no-op byte-count report for the float variant
// (there is no host-side encode step); kept for interface symmetry with
// Int/Celt, which do real work here.
func (b *FloatAudioBuffer) RenderFromLocalPorts() int { return b.CycleSize() }

// RenderToLocalPorts is likewise a no-op for float (samples already live
// in each port's buffer byte-for-byte); provided for interface symmetry.
func (b *FloatAudioBuffer) RenderToLocalPorts(cycle int) error { return nil }

func (b *FloatAudioBuffer) RenderToNetwork(subCycle int, buf []byte) (int, int, error) {
	if b.optimized != nil {
		return b.optimized.RenderToNetwork(b.ports, subCycle, buf)
	}
	return b.dense.RenderToNetwork(b.ports, subCycle, buf)
}

func (b *FloatAudioBuffer) RenderFromNetwork(cycle, subCycle int, buf []byte, portCount int) error {
	if b.optimized != nil {
		return b.optimized.RenderFromNetwork(b.ports, cycle, subCycle, buf, portCount)
	}
	return b.dense.RenderFromNetwork(b.ports, cycle, subCycle, buf, portCount)
}

// ActivePortsToNetwork is only meaningful in optimized mode.
func (b *FloatAudioBuffer) ActivePortsToNetwork(buf []byte) (int, error) {
	return audioframe.ActivePortsToNetwork(b.ports, buf)
}

// ActivePortsFromNetwork is only meaningful in optimized mode.
func (b *FloatAudioBuffer) ActivePortsFromNetwork(buf []byte, portCount int) {
	if b.optimized != nil {
		b.optimized.ActivePortsFromNetwork(buf, portCount)
	}
}

// ReleasePort releases portIndex's borrowed buffer at cycle end (§5).
func (b *FloatAudioBuffer) ReleasePort(portIndex int) { b.ports[portIndex].Release() }

func countBound(ports []*audioframe.PortBuffer) int {
	n := 0
	for _, p := range ports {
		if p.Bound() {
			n++
		}
	}
	return n
}
