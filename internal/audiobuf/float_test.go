package audiobuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	testSampleRate = 48000
	testPeriodSize = 64
	testMTU        = 1500
	testHeaderSize = 64
)

func floatsClose(t require.TestingT, want, got []float32) {
	require.Equal(t, len(want), len(got))
	for i := range want {
		require.InDelta(t, want[i], got[i], 1e-6)
	}
}

func Test_FloatAudioBufferDenseRoundTrip(t *testing.T) {
	send := NewFloatAudioBuffer(testSampleRate, testPeriodSize, 2, testMTU, testHeaderSize, false, nil)
	recv := NewFloatAudioBuffer(testSampleRate, testPeriodSize, 2, testMTU, testHeaderSize, false, nil)

	samples0 := make([]float32, testPeriodSize)
	samples1 := make([]float32, testPeriodSize)
	for i := range samples0 {
		samples0[i] = float32(i) / float32(testPeriodSize)
		samples1[i] = -float32(i) / float32(testPeriodSize)
	}
	send.SetBuffer(0, samples0)
	send.SetBuffer(1, samples1)

	buf := make([]byte, testMTU-testHeaderSize)
	for sub := 0; sub < send.NumPackets(); sub++ {
		n, count, err := send.RenderToNetwork(sub, buf)
		require.NoError(t, err)
		require.NoError(t, recv.RenderFromNetwork(0, sub, buf[:n], count))
	}

	floatsClose(t, samples0, recv.GetBuffer(0))
	floatsClose(t, samples1, recv.GetBuffer(1))
}

func Test_FloatAudioBufferOptimizedSkipsUnboundPorts(t *testing.T) {
	send := NewFloatAudioBuffer(testSampleRate, testPeriodSize, 4, testMTU, testHeaderSize, true, nil)
	recv := NewFloatAudioBuffer(testSampleRate, testPeriodSize, 4, testMTU, testHeaderSize, true, nil)
	for i := 0; i < 4; i++ {
		recv.SetBuffer(i, make([]float32, testPeriodSize)) // the receiver scatters only into its locally bound ports
	}

	samples := make([]float32, testPeriodSize)
	for i := range samples {
		samples[i] = float32(i)
	}
	send.SetBuffer(2, samples)

	k := send.NumPackets()
	buf := make([]byte, testMTU-testHeaderSize)
	for sub := 0; sub < k; sub++ {
		n, count, err := send.RenderToNetwork(sub, buf)
		require.NoError(t, err)
		require.NoError(t, recv.RenderFromNetwork(0, sub, buf[:n], count))
	}

	floatsClose(t, samples, recv.GetBuffer(2))
	for _, v := range recv.GetBuffer(0) {
		assert.Equal(t, float32(0), v)
	}
}

func Test_FloatAudioBufferActivePortsRoundTrip(t *testing.T) {
	var _ OptimizedBuffer = (*FloatAudioBuffer)(nil) // optimized variant implements the active-ports contract

	send := NewFloatAudioBuffer(testSampleRate, testPeriodSize, 8, testMTU, testHeaderSize, true, nil)
	recv := NewFloatAudioBuffer(testSampleRate, testPeriodSize, 8, testMTU, testHeaderSize, true, nil)

	send.SetBuffer(1, make([]float32, testPeriodSize))
	send.SetBuffer(6, make([]float32, testPeriodSize))

	buf := make([]byte, 64)
	count, err := send.ActivePortsToNetwork(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	recv.ActivePortsFromNetwork(buf, count) // must not panic when applied to the non-sending peer
}

func Test_FloatAudioBufferSampleRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.SliceOfN(rapid.Float32(), testPeriodSize, testPeriodSize).Draw(t, "samples")
		b := NewFloatAudioBuffer(testSampleRate, testPeriodSize, 1, testMTU, testHeaderSize, false, nil)
		b.SetBuffer(0, n)
		got := b.GetBuffer(0)
		floatsClose(t, n, got)
	})
}
