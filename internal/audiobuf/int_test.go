package audiobuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_IntAudioBufferRoundTripWithinQuantizationError(t *testing.T) {
	send := NewIntAudioBuffer(testSampleRate, testPeriodSize, 2, testMTU, testHeaderSize)
	recv := NewIntAudioBuffer(testSampleRate, testPeriodSize, 2, testMTU, testHeaderSize)

	samples := make([]float32, testPeriodSize)
	for i := range samples {
		samples[i] = float32(i)/float32(testPeriodSize)*2 - 1 // [-1, 1)
	}
	send.SetBuffer(0, samples)

	buf := make([]byte, testMTU-testHeaderSize)
	for sub := 0; sub < send.NumPackets(); sub++ {
		n, count, err := send.RenderToNetwork(sub, buf)
		require.NoError(t, err)
		require.NoError(t, recv.RenderFromNetwork(0, sub, buf[:n], count))
	}

	got := recv.GetBuffer(0)
	require.Equal(t, len(samples), len(got))
	for i := range samples {
		assert.InDelta(t, samples[i], got[i], 1.0/32767.0, "16-bit PCM quantization error")
	}
}

func Test_IntAudioBufferClampsOutOfRangeSamples(t *testing.T) {
	b := NewIntAudioBuffer(testSampleRate, testPeriodSize, 1, testMTU, testHeaderSize)
	samples := make([]float32, testPeriodSize)
	samples[0] = 10.0  // far above +1
	samples[1] = -10.0 // far below -1
	b.SetBuffer(0, samples)

	got := b.GetBuffer(0)
	assert.InDelta(t, 1.0, got[0], 1.0/32767.0)
	assert.InDelta(t, -1.0, got[1], 1.0/32767.0)
}

func Test_IntAudioBufferSubPeriodsCoverWholePeriod(t *testing.T) {
	b := NewIntAudioBuffer(testSampleRate, testPeriodSize, 1, testMTU, testHeaderSize)
	total := (b.NumPackets()-1)*b.SubPeriodSize() + b.LastSubPeriodSize()
	assert.Equal(t, testPeriodSize, total)
}

func Test_IntAudioBufferClampRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Float32Range(-2, 2).Draw(t, "v")
		q := clampFloatToInt16(v)
		assert.GreaterOrEqual(t, q, int16(-32768))
		assert.LessOrEqual(t, q, int16(32767))
	})
}
