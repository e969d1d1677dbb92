package audiobuf

import "github.com/cwsl/netjack/internal/audioframe"

const sampleWidthInt16 = 2

// IntAudioBuffer is C7b: converts float samples in [-1, 1] to 16-bit
// linear PCM on send (clipping saturates) and back on receive. It uses
// the dense framer's geometry recomputed with sample width 2 (§4.5).
//
// fSubPeriodSize is the common sub-cycle sample count; fLastSubPeriodSize
// is P - (K-1)·S, the final sub-cycle's count, which equals fSubPeriodSize
// for a power-of-two period. Rendering goes through the dense framer,
// which slices every sub-cycle at SubPeriodSize: when the period is not a
// multiple of it, RenderToNetwork returns an error for the last sub-cycle
// and RenderFromNetwork leaves that tail unwritten.
type IntAudioBuffer struct {
	periodSize int
	sampleRate int
	ports      []*audioframe.PortBuffer // holds converted int16 samples, LE-packed

	dense *audioframe.DensePortList

	subPeriodSize     int
	lastSubPeriodSize int
}

// NewIntAudioBuffer constructs a 16-bit PCM encoder for numPorts ports.
func NewIntAudioBuffer(sampleRate, periodSize, numPorts, mtu, headerSize int) *IntAudioBuffer {
	b := &IntAudioBuffer{
		periodSize: periodSize,
		sampleRate: sampleRate,
		ports:      make([]*audioframe.PortBuffer, numPorts),
		dense:      audioframe.NewDensePortList(periodSize, numPorts, sampleWidthInt16, mtu, headerSize),
	}
	for i := range b.ports {
		b.ports[i] = audioframe.NewPortBuffer(periodSize, sampleWidthInt16)
	}
	b.subPeriodSize = b.dense.SubPeriodSize()
	k := b.dense.NumPackets()
	b.lastSubPeriodSize = periodSize - (k-1)*b.subPeriodSize
	if b.lastSubPeriodSize <= 0 {
		b.lastSubPeriodSize = b.subPeriodSize
	}
	return b
}

func (b *IntAudioBuffer) CycleSize() int { return len(b.ports) * b.periodSize * sampleWidthInt16 }

func (b *IntAudioBuffer) CycleDuration() float64 {
	return float64(b.subPeriodSize) / float64(b.sampleRate)
}

func (b *IntAudioBuffer) NumPackets() int { return b.dense.NumPackets() }

// SetBuffer converts float samples to 16-bit PCM (saturating) and binds
// them to portIndex for this cycle.
func (b *IntAudioBuffer) SetBuffer(portIndex int, samples []float32) {
	raw := make([]byte, len(samples)*sampleWidthInt16)
	for i, s := range samples {
		putLE16(raw[i*2:], uint16(clampFloatToInt16(s)))
	}
	b.ports[portIndex].Bind(raw)
}

// GetBuffer converts portIndex's 16-bit PCM period back to float samples.
func (b *IntAudioBuffer) GetBuffer(portIndex int) []float32 {
	raw := b.ports[portIndex].Bytes()
	out := make([]float32, len(raw)/sampleWidthInt16)
	for i := range out {
		out[i] = int16ToFloat(int16(getLE16(raw[i*2:])))
	}
	return out
}

func (b *IntAudioBuffer) RenderFromLocalPorts() int { return b.CycleSize() }

func (b *IntAudioBuffer) RenderToLocalPorts(cycle int) error { return nil }

func (b *IntAudioBuffer) RenderToNetwork(subCycle int, buf []byte) (int, int, error) {
	return b.dense.RenderToNetwork(b.ports, subCycle, buf)
}

func (b *IntAudioBuffer) RenderFromNetwork(cycle, subCycle int, buf []byte, portCount int) error {
	return b.dense.RenderFromNetwork(b.ports, cycle, subCycle, buf, portCount)
}

// SubPeriodSize returns fSubPeriodSize.
func (b *IntAudioBuffer) SubPeriodSize() int { return b.subPeriodSize }

// LastSubPeriodSize returns fLastSubPeriodSize, the final sub-cycle's
// sample count (may differ from SubPeriodSize, §4.5).
func (b *IntAudioBuffer) LastSubPeriodSize() int { return b.lastSubPeriodSize }
