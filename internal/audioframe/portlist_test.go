package audioframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"

	"github.com/cwsl/netjack/internal/metrics"
)

const (
	testPeriodSize = 64
	testWidth      = 4
	testMTU        = 1500
	testHeaderSize = 64
)

func newBoundPorts(n, periodSize int, fill byte) []*PortBuffer {
	ports := make([]*PortBuffer, n)
	for i := range ports {
		ports[i] = NewPortBuffer(periodSize, testWidth)
		src := make([]byte, periodSize*testWidth)
		for j := range src {
			src[j] = fill
		}
		ports[i].Bind(src)
	}
	return ports
}

func Test_DensePortListRoundTrip(t *testing.T) {
	d := NewDensePortList(testPeriodSize, 4, testWidth, testMTU, testHeaderSize)
	sendPorts := newBoundPorts(4, testPeriodSize, 0xAB)
	recvPorts := make([]*PortBuffer, 4)
	for i := range recvPorts {
		recvPorts[i] = NewPortBuffer(testPeriodSize, testWidth)
	}

	buf := make([]byte, testMTU-testHeaderSize)
	for sub := 0; sub < d.NumPackets(); sub++ {
		n, count, err := d.RenderToNetwork(sendPorts, sub, buf)
		require.NoError(t, err)
		assert.Equal(t, 4, count)
		err = d.RenderFromNetwork(recvPorts, 0, sub, buf[:n], count)
		require.NoError(t, err)
	}

	for i := range sendPorts {
		assert.Equal(t, sendPorts[i].Bytes(), recvPorts[i].Bytes())
	}
}

func Test_DensePortListDetectsSequenceGap(t *testing.T) {
	d := NewDensePortList(testPeriodSize, 16, testWidth, testMTU, testHeaderSize)
	require.Greater(t, d.NumPackets(), 2, "fixture must span multiple sub-cycles")
	ports := newBoundPorts(16, testPeriodSize, 0)
	buf := make([]byte, testMTU-testHeaderSize)

	err := d.RenderFromNetwork(ports, 0, 0, buf, 16)
	assert.NoError(t, err)
	err = d.RenderFromNetwork(ports, 0, 2, buf, 16) // skipped sub-cycle 1
	assert.Error(t, err)
}

func Test_DensePortListAttachMetricsRecordsReceivedAndGaps(t *testing.T) {
	d := NewDensePortList(testPeriodSize, 16, testWidth, testMTU, testHeaderSize)
	require.Greater(t, d.NumPackets(), 2, "fixture must span multiple sub-cycles")
	m := metrics.New()
	d.AttachMetrics(m, "return")

	ports := newBoundPorts(16, testPeriodSize, 0)
	buf := make([]byte, testMTU-testHeaderSize)

	require.NoError(t, d.RenderFromNetwork(ports, 0, 0, buf, 16))
	err := d.RenderFromNetwork(ports, 0, 2, buf, 16) // skipped sub-cycle 1
	require.Error(t, err)

	var received dto.Metric
	require.NoError(t, m.PacketsReceived.WithLabelValues("audio").Write(&received))
	assert.Equal(t, float64(2), received.GetCounter().GetValue())

	var gaps dto.Metric
	require.NoError(t, m.SequenceGaps.WithLabelValues("return").Write(&gaps))
	assert.Equal(t, float64(1), gaps.GetCounter().GetValue())
}

func Test_OptimizedPortListOnlyTransmitsBoundPorts(t *testing.T) {
	o := NewOptimizedPortList(testPeriodSize, 8, testWidth, testMTU, testHeaderSize, nil)
	ports := make([]*PortBuffer, 8)
	for i := range ports {
		ports[i] = NewPortBuffer(testPeriodSize, testWidth)
	}
	ports[3].Bind(make([]byte, testPeriodSize*testWidth))
	ports[5].Bind(make([]byte, testPeriodSize*testWidth))

	k := o.NumPackets(ports)
	buf := make([]byte, testMTU-testHeaderSize)
	_, count, err := o.RenderToNetwork(ports, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.GreaterOrEqual(t, k, 1)
}

func Test_OptimizedPortListZeroesUnboundOnReceive(t *testing.T) {
	sendPorts := make([]*PortBuffer, 4)
	recvPorts := make([]*PortBuffer, 4)
	for i := range sendPorts {
		sendPorts[i] = NewPortBuffer(testPeriodSize, testWidth)
		recvPorts[i] = NewPortBuffer(testPeriodSize, testWidth)
		recvPorts[i].Bind(make([]byte, testPeriodSize*testWidth))
	}
	fill := make([]byte, testPeriodSize*testWidth)
	for i := range fill {
		fill[i] = 0xFF
	}
	sendPorts[1].Bind(fill)

	o := NewOptimizedPortList(testPeriodSize, 4, testWidth, testMTU, testHeaderSize, nil)
	buf := make([]byte, testMTU-testHeaderSize)

	for sub := 0; sub < o.NumPackets(sendPorts); sub++ {
		n, count, err := o.RenderToNetwork(sendPorts, sub, buf)
		require.NoError(t, err)
		err = o.RenderFromNetwork(recvPorts, 0, sub, buf[:n], count)
		require.NoError(t, err)
	}

	assert.Equal(t, fill, recvPorts[1].Bytes())
	for _, zero := range []int{0, 2, 3} {
		for _, b := range recvPorts[zero].Bytes() {
			assert.Equal(t, byte(0), b)
		}
	}
}

func Test_ActivePortsRoundTrip(t *testing.T) {
	ports := make([]*PortBuffer, 16)
	for i := range ports {
		ports[i] = NewPortBuffer(testPeriodSize, testWidth)
	}
	ports[3].Bind(make([]byte, testPeriodSize*testWidth))
	ports[11].Bind(make([]byte, testPeriodSize*testWidth))

	buf := make([]byte, 2*MaxActivePorts)
	count, err := ActivePortsToNetwork(ports, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	o := NewOptimizedPortList(testPeriodSize, 16, testWidth, testMTU, testHeaderSize, nil)
	o.ActivePortsFromNetwork(buf, count)
	assert.True(t, o.RemotelyActive(3))
	assert.True(t, o.RemotelyActive(11))
	assert.False(t, o.RemotelyActive(0))
}

func Test_PortBufferBindReleaseBound(t *testing.T) {
	p := NewPortBuffer(testPeriodSize, testWidth)
	assert.False(t, p.Bound())
	p.Bind(make([]byte, testPeriodSize*testWidth))
	assert.True(t, p.Bound())
	p.Release()
	assert.False(t, p.Bound())
}
