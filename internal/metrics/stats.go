package metrics

import (
	"sync"
	"time"
)

// BytesSample is a single point in a 1-second sliding window used to
// derive an instantaneous throughput rate, mirroring the teacher's
// BytesSample / AddAudioBytes sliding-window accounting in session.go.
type BytesSample struct {
	Timestamp time.Time
	Bytes     uint64
}

// PacketStats is a plain-Go cumulative counter snapshot for callers
// that embed this core without wanting a Prometheus dependency (§9
// supplemented feature). It tracks the same quantities as the
// Prometheus collectors in Metrics, without requiring a registry.
type PacketStats struct {
	mu sync.Mutex

	packetsSent     uint64
	packetsReceived uint64
	bytesSent       uint64
	bytesReceived   uint64
	sequenceGaps    uint64
	midiEventsLost  uint64

	bytesSentSamples []BytesSample
}

// NewPacketStats constructs a zeroed PacketStats.
func NewPacketStats() *PacketStats {
	return &PacketStats{}
}

// AddSent records n bytes of one outgoing packet and refreshes the
// 1-second throughput window.
func (s *PacketStats) AddSent(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packetsSent++
	s.bytesSent += uint64(n)

	now := time.Now()
	s.bytesSentSamples = append(s.bytesSentSamples, BytesSample{Timestamp: now, Bytes: s.bytesSent})
	cutoff := now.Add(-1 * time.Second)
	for len(s.bytesSentSamples) > 0 && s.bytesSentSamples[0].Timestamp.Before(cutoff) {
		s.bytesSentSamples = s.bytesSentSamples[1:]
	}
}

// AddReceived records n bytes of one incoming packet.
func (s *PacketStats) AddReceived(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packetsReceived++
	s.bytesReceived += uint64(n)
}

// AddSequenceGap records one detected sub-cycle discontinuity (§4.6).
func (s *PacketStats) AddSequenceGap() {
	s.mu.Lock()
	s.sequenceGaps++
	s.mu.Unlock()
}

// AddMIDIEventsLost records count MIDI events dropped for not fitting the
// MIDI cycle buffer (§4.3).
func (s *PacketStats) AddMIDIEventsLost(count int) {
	s.mu.Lock()
	s.midiEventsLost += uint64(count)
	s.mu.Unlock()
}

// Snapshot is an immutable copy of the counters at one instant, plus
// the send throughput observed over the trailing second.
type Snapshot struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	SequenceGaps    uint64
	MIDIEventsLost  uint64
	SendBytesPerSec float64
}

// Snapshot returns the current counter values and instantaneous send
// rate.
func (s *PacketStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rate float64
	if n := len(s.bytesSentSamples); n > 1 {
		first, last := s.bytesSentSamples[0], s.bytesSentSamples[n-1]
		elapsed := last.Timestamp.Sub(first.Timestamp).Seconds()
		if elapsed > 0 {
			rate = float64(last.Bytes-first.Bytes) / elapsed
		}
	}

	return Snapshot{
		PacketsSent:     s.packetsSent,
		PacketsReceived: s.packetsReceived,
		BytesSent:       s.bytesSent,
		BytesReceived:   s.bytesReceived,
		SequenceGaps:    s.sequenceGaps,
		MIDIEventsLost:  s.midiEventsLost,
		SendBytesPerSec: rate,
	}
}
