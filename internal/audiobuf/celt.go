package audiobuf

import (
	"fmt"
	"log"

	"github.com/cwsl/netjack/internal/lossdetect"
	"github.com/cwsl/netjack/internal/metrics"
)

// CeltCodec is the external collaborator interface for a fixed-rate
// block encoder/decoder (§1, §6: "CELT codec create/destroy/encode-float/
// decode-float"). The core only depends on this interface; a concrete
// implementation (celt_opus.go, gated by the `opus` build tag — see
// DESIGN.md) backs it with gopkg.in/hraban/opus.v2, the same stand-in
// the teacher repo uses for its own "CELT-like" compressed audio path.
type CeltCodec interface {
	// EncodeFloat encodes one full period of float samples into a
	// fixed-size compressed block sized to out.
	EncodeFloat(samples []float32, out []byte) (n int, err error)
	// DecodeFloat decodes a fixed-size compressed block back into
	// periodSize float samples.
	DecodeFloat(data []byte, periodSize int) ([]float32, error)
	Close()
}

// CeltCodecFactory creates one CeltCodec per port at the session sample
// rate, frame size, and bitrate.
type CeltCodecFactory func(sampleRate, periodSize, kbps int) (CeltCodec, error)

// ErrEncoderFailure marks a CELT encode/decode failure (§7 EncoderFailure
// — silence that port that cycle rather than failing the whole transfer).
var ErrEncoderFailure = fmt.Errorf("netjack: celt encoder failure")

// CeltAudioBuffer is C7c: instantiates a fixed-frame CELT encoder/decoder
// pair per port at the session sample rate with frame size P and bitrate
// fKBps*1024/8 bytes per frame (§4.5).
type CeltAudioBuffer struct {
	sampleRate int
	periodSize int
	kbps       int

	compressedSizeByte     int // fCompressedSizeByte
	subPeriodBytesSize     int // fSubPeriodBytesSize
	lastSubPeriodBytesSize int // fLastSubPeriodBytesSize
	numPackets             int // K

	codecs            []CeltCodec
	compressedBuffers [][]byte // per-port compressed block, filled at sub_cycle 0 on send
	decodeValid       []bool   // per-port: whether this cycle's reassembly is intact
	decodeBuf         [][]byte // per-port receive-side reassembly scratch

	pending [][]float32 // samples staged via SetBuffer, encoded at sub_cycle 0

	seq *lossdetect.Detector // tracks fLastSubCycle for this direction (§4.6)

	logger *log.Logger

	metrics   *metrics.Metrics
	direction string
}

// AttachMetrics wires m's packet/byte/gap counters into this buffer's
// network render calls, labeled by direction ("send" or "return", §4.6).
// A nil m (the default) disables metrics without changing any other
// behavior.
func (b *CeltAudioBuffer) AttachMetrics(m *metrics.Metrics, direction string) {
	b.metrics = m
	b.direction = direction
}

// NewCeltAudioBuffer constructs a CELT encoder for numPorts ports. budget
// is the MTU payload budget (B = M - headerSize); it determines how many
// sub-cycle packets (K) the compressed block is split across.
func NewCeltAudioBuffer(sampleRate, periodSize, kbps, numPorts, budget int, factory CeltCodecFactory, logger *log.Logger) (*CeltAudioBuffer, error) {
	if logger == nil {
		logger = log.Default()
	}
	compressedSizeByte := kbps * 1024 / 8

	b := &CeltAudioBuffer{
		sampleRate:         sampleRate,
		periodSize:         periodSize,
		kbps:               kbps,
		compressedSizeByte: compressedSizeByte,
		codecs:             make([]CeltCodec, numPorts),
		compressedBuffers:  make([][]byte, numPorts),
		decodeValid:        make([]bool, numPorts),
		decodeBuf:          make([][]byte, numPorts),
		pending:            make([][]float32, numPorts),
		seq:                lossdetect.New(),
		logger:             logger,
	}

	for i := 0; i < numPorts; i++ {
		codec, err := factory(sampleRate, periodSize, kbps)
		if err != nil {
			return nil, fmt.Errorf("netjack: celt codec port %d: %w", i, err)
		}
		b.codecs[i] = codec
		b.compressedBuffers[i] = make([]byte, compressedSizeByte)
		b.decodeBuf[i] = make([]byte, compressedSizeByte)
	}

	b.numPackets = audioNumPacketsForBytes(compressedSizeByte, budget)
	b.subPeriodBytesSize = compressedSizeByte / b.numPackets
	b.lastSubPeriodBytesSize = compressedSizeByte - b.subPeriodBytesSize*(b.numPackets-1)
	return b, nil
}

// audioNumPacketsForBytes computes K = ceil(compressedSizeByte / budget)
// (§8 scenario 6).
func audioNumPacketsForBytes(compressedSizeByte, budget int) int {
	if budget <= 0 {
		return 1
	}
	k := compressedSizeByte / budget
	if compressedSizeByte%budget != 0 {
		k++
	}
	if k < 1 {
		k = 1
	}
	return k
}

// Close releases every port's codec. Not part of the Buffer interface —
// callers that own a CeltAudioBuffer for the session's lifetime call it
// at session teardown.
func (b *CeltAudioBuffer) Close() {
	for _, c := range b.codecs {
		if c != nil {
			c.Close()
		}
	}
}

func (b *CeltAudioBuffer) CycleSize() int { return len(b.codecs) * b.compressedSizeByte }

func (b *CeltAudioBuffer) CycleDuration() float64 {
	return float64(b.periodSize) / float64(b.sampleRate)
}

func (b *CeltAudioBuffer) NumPackets() int { return b.numPackets }

// SetBuffer stages portIndex's float samples for encoding at sub_cycle 0
// of RenderFromLocalPorts (§4.5 Send path).
func (b *CeltAudioBuffer) SetBuffer(portIndex int, samples []float32) {
	b.pending[portIndex] = samples
}

// GetBuffer returns the most recently decoded period for portIndex.
func (b *CeltAudioBuffer) GetBuffer(portIndex int) []float32 {
	if !b.decodeValid[portIndex] {
		return make([]float32, b.periodSize)
	}
	out, err := b.codecs[portIndex].DecodeFloat(b.decodeBuf[portIndex], b.periodSize)
	if err != nil {
		b.logger.Printf("netjack: %v: port %d: %v", ErrEncoderFailure, portIndex, err)
		return make([]float32, b.periodSize)
	}
	return out
}

// RenderFromLocalPorts encodes every port's full period into its
// compressed buffer. Called once at sub_cycle 0 of a send cycle (§4.5
// Send path: "at sub_cycle=0 encode each port's full period").
func (b *CeltAudioBuffer) RenderFromLocalPorts() int {
	total := 0
	for i, codec := range b.codecs {
		n, err := codec.EncodeFloat(b.pending[i], b.compressedBuffers[i])
		if err != nil {
			b.logger.Printf("netjack: %v: port %d: %v", ErrEncoderFailure, i, err)
			n = 0
		}
		total += n
	}
	return total
}

// RenderToLocalPorts does nothing and returns nil. Decoding happens in
// GetBuffer, which decodes a port's reassembled compressed buffer each
// time it is called, or returns silence when that port's reassembly for
// the cycle is invalid.
func (b *CeltAudioBuffer) RenderToLocalPorts(cycle int) error { return nil }

// RenderToNetwork emits the sub_cycle-th slice of every port's compressed
// buffer, concatenated port-major, using subPeriodBytesSize for all but
// the last sub-cycle (which uses lastSubPeriodBytesSize, §4.5).
func (b *CeltAudioBuffer) RenderToNetwork(subCycle int, buf []byte) (int, int, error) {
	size := b.subPeriodBytesSize
	if subCycle == b.numPackets-1 {
		size = b.lastSubPeriodBytesSize
	}
	off := subCycle * b.subPeriodBytesSize
	pos := 0
	for _, cbuf := range b.compressedBuffers {
		end := off + size
		if end > len(cbuf) {
			end = len(cbuf)
		}
		if off > len(cbuf) {
			continue
		}
		pos += copy(buf[pos:], cbuf[off:end])
	}
	if b.metrics != nil {
		b.metrics.PacketsSent.WithLabelValues("audio").Inc()
		b.metrics.BytesSent.WithLabelValues("audio").Add(float64(pos))
	}
	return pos, len(b.compressedBuffers), nil
}

// RenderFromNetwork reassembles the sub_cycle-th slice into each port's
// receive-side compressed buffer, obeying the same fLastSubCycle
// sequencing invariant as the dense/optimized framers (§4.5 closing:
// "all encoder variants obey the same fLastSubCycle sequencing
// invariant"). Loss of any sub-cycle in a cycle invalidates the decode
// for every port and yields silence that cycle (§4.5 Receive path),
// tracked by decodeValid — both on a sub-cycle whose byte range doesn't
// fit the reassembly buffer and on a detected sequence gap, since a
// sub-cycle that is simply never delivered looks identical to the
// decoder from one that was delivered out of range.
func (b *CeltAudioBuffer) RenderFromNetwork(cycle, subCycle int, buf []byte, portCount int) error {
	if subCycle == 0 {
		for i := range b.decodeValid {
			b.decodeValid[i] = true
		}
	}
	size := b.subPeriodBytesSize
	if subCycle == b.numPackets-1 {
		size = b.lastSubPeriodBytesSize
	}
	off := subCycle * b.subPeriodBytesSize
	pos := 0
	for i, dbuf := range b.decodeBuf {
		end := off + size
		if end > len(dbuf) || pos+size > len(buf) {
			b.decodeValid[i] = false
			continue
		}
		copy(dbuf[off:end], buf[pos:pos+size])
		pos += size
	}

	gap := b.seq.Check(subCycle)
	if subCycle == b.numPackets-1 {
		b.seq.EndCycle()
	}
	if b.metrics != nil {
		b.metrics.PacketsReceived.WithLabelValues("audio").Inc()
		b.metrics.BytesReceived.WithLabelValues("audio").Add(float64(pos))
		if gap != nil {
			b.metrics.SequenceGaps.WithLabelValues(b.direction).Inc()
		}
	}
	if gap != nil {
		for i := range b.decodeValid {
			b.decodeValid[i] = false
		}
		return gap
	}
	return nil
}
