package midibuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	dto "github.com/prometheus/client_model/go"

	"github.com/cwsl/netjack/internal/metrics"
)

func Test_EncodeDecodeBufferHeaderRoundTrip(t *testing.T) {
	h := BufferHeader{EventCount: 4, ByteSize: 256, LostEvents: 1}
	buf := EncodeBufferHeader(h)
	got := DecodeBufferHeader(buf[:])
	assert.Equal(t, h, got)
}

func Test_CycleBufferSinglePacketRoundTrip(t *testing.T) {
	c := NewCycleBuffer(3, 1024)
	ports := [][]Event{
		{{Timestamp: 0, Data: []byte{0x90, 0x40, 0x7f}}},
		{},
		{{Timestamp: 10, Data: []byte{0x80, 0x40, 0x00}}, {Timestamp: 20, Data: []byte{0xB0, 0x07, 0x7f}}},
	}
	c.RenderFromLocalPorts(ports)
	require.Equal(t, 0, c.LostEvents())

	budget := c.CycleSize() // everything fits in one packet
	k := c.NumPackets(budget)
	require.Equal(t, 1, k)

	c.BeginReceive()
	chunk := make([]byte, budget)
	n := c.RenderChunk(0, budget, chunk)
	require.NoError(t, c.AcceptChunk(0, chunk[:n], true))
	require.False(t, c.Discarded())

	got, err := c.RenderToLocalPorts()
	require.NoError(t, err)
	assert.Equal(t, ports, got)
}

func Test_CycleBufferMultiPacketRoundTrip(t *testing.T) {
	c := NewCycleBuffer(2, 4096)
	events := make([]Event, 50)
	for i := range events {
		events[i] = Event{Timestamp: uint32(i), Data: []byte{byte(i), byte(i + 1), byte(i + 2)}}
	}
	ports := [][]Event{events, nil}
	c.RenderFromLocalPorts(ports)

	budget := 64
	k := c.NumPackets(budget)
	require.Greater(t, k, 1)

	c.BeginReceive()
	chunk := make([]byte, budget)
	for sub := 0; sub < k; sub++ {
		n := c.RenderChunk(sub, budget, chunk)
		require.NoError(t, c.AcceptChunk(sub, chunk[:n], sub == k-1))
	}
	require.False(t, c.Discarded())

	got, err := c.RenderToLocalPorts()
	require.NoError(t, err)
	assert.Equal(t, events, got[0])
	assert.Empty(t, got[1])
}

func Test_CycleBufferOverflowDropsEventsAndCountsLost(t *testing.T) {
	c := NewCycleBuffer(1, 32) // tiny reservation: room for the port header plus two small events
	ports := [][]Event{{
		{Timestamp: 0, Data: []byte{1, 2, 3}},
		{Timestamp: 1, Data: []byte{4, 5, 6}},
		{Timestamp: 2, Data: []byte{7, 8, 9}},
		{Timestamp: 3, Data: []byte{10, 11, 12}},
	}}
	c.RenderFromLocalPorts(ports)
	assert.Greater(t, c.LostEvents(), 0)

	got, err := c.RenderToLocalPorts()
	require.NoError(t, err)
	assert.NotEmpty(t, got[0], "surviving events must still be delivered intact")
}

func Test_CycleBufferDiscardsOnSequenceGap(t *testing.T) {
	c := NewCycleBuffer(1, 4096)
	c.RenderFromLocalPorts([][]Event{{{Timestamp: 0, Data: []byte{1}}}})

	c.BeginReceive()
	chunk := make([]byte, 8)
	n := c.RenderChunk(0, 8, chunk)
	require.NoError(t, c.AcceptChunk(0, chunk[:n], false))

	err := c.AcceptChunk(2, chunk[:0], true) // skipped sub-cycle 1
	assert.Error(t, err)
	assert.True(t, c.Discarded())
}

func Test_CycleBufferAttachMetricsRecordsLostEventsAndGaps(t *testing.T) {
	m := metrics.New()

	overflow := NewCycleBuffer(1, 32)
	overflow.AttachMetrics(m, "send")
	overflow.RenderFromLocalPorts([][]Event{{
		{Timestamp: 0, Data: []byte{1, 2, 3}},
		{Timestamp: 1, Data: []byte{4, 5, 6}},
		{Timestamp: 2, Data: []byte{7, 8, 9}},
		{Timestamp: 3, Data: []byte{10, 11, 12}},
	}})
	require.Greater(t, overflow.LostEvents(), 0)

	var lost dto.Metric
	require.NoError(t, m.MIDIEventsLost.Write(&lost))
	assert.Equal(t, float64(overflow.LostEvents()), lost.GetCounter().GetValue())

	recv := NewCycleBuffer(1, 4096)
	recv.AttachMetrics(m, "return")
	recv.BeginReceive()
	chunk := make([]byte, 8)
	require.NoError(t, recv.AcceptChunk(0, chunk[:0], false))
	err := recv.AcceptChunk(2, chunk[:0], true) // skipped sub-cycle 1
	assert.Error(t, err)

	var gaps dto.Metric
	require.NoError(t, m.SequenceGaps.WithLabelValues("return").Write(&gaps))
	assert.Equal(t, float64(1), gaps.GetCounter().GetValue())
}

func Test_CycleBufferEventDataRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "n")
		events := make([]Event, n)
		for i := range events {
			events[i] = Event{
				Timestamp: rapid.Uint32().Draw(t, "ts"),
				Data:      rapid.SliceOfN(rapid.Byte(), 0, 16).Draw(t, "data"),
			}
		}
		c := NewCycleBuffer(1, 4096)
		c.RenderFromLocalPorts([][]Event{events})
		require.Equal(t, 0, c.LostEvents())

		budget := 4096
		c.BeginReceive()
		chunk := make([]byte, budget)
		nw := c.RenderChunk(0, budget, chunk)
		require.NoError(t, c.AcceptChunk(0, chunk[:nw], true))

		got, err := c.RenderToLocalPorts()
		require.NoError(t, err)
		if len(events) == 0 {
			assert.Empty(t, got[0])
		} else {
			assert.Equal(t, events, got[0])
		}
	})
}
