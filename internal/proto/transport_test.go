package proto

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func Test_EncodeDecodeTransportRoundTrip(t *testing.T) {
	tr := Transport{
		StateChanged: true,
		Timebase:     TimebaseTimebase,
		State:        TransportState(1),
		Pos: Position{
			Frame:      123456,
			SampleRate: 48000,
			Tempo:      120.5,
		},
	}
	buf := EncodeTransport(tr)
	got := DecodeTransport(buf[:])
	assert.Equal(t, tr, got)
}

func Test_TransportTempoRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tempo := rapid.Float64Range(1, 400).Draw(t, "tempo")
		tr := Transport{Pos: Position{Tempo: tempo}}
		buf := EncodeTransport(tr)
		got := DecodeTransport(buf[:])
		assert.True(t, math.Abs(got.Pos.Tempo-tempo) < 1e-9)
	})
}

func Test_TransportWireSizeMatchesEncoding(t *testing.T) {
	buf := EncodeTransport(Transport{})
	assert.Len(t, buf, TransportWireSize)
}
