package proto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validParams() Params {
	return Params{
		Version:             ProtocolVersion,
		PacketID:            PhaseSlaveAvailable,
		SlaveName:           "slave-1",
		MasterHost:          "master.local",
		SlaveHost:           "slave.local",
		MTU:                 1500,
		SlaveID:             7,
		SendAudioChannels:   2,
		ReturnAudioChannels: 2,
		SampleRate:          48000,
		PeriodSize:          1024,
		Encoder:             EncoderFloat,
		NetworkLatency:      2,
	}
}

func Test_EncodeDecodeParamsRoundTrip(t *testing.T) {
	p := validParams()
	buf := EncodeParams(p)
	got, err := DecodeParams(buf[:])
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func Test_DecodeParamsRejectsBadTag(t *testing.T) {
	buf := EncodeParams(validParams())
	buf[0] = 'X'
	_, err := DecodeParams(buf[:])
	assert.ErrorIs(t, err, ErrProtocolMismatch)
}

func Test_DecodeParamsRejectsShortBuffer(t *testing.T) {
	buf := EncodeParams(validParams())
	_, err := DecodeParams(buf[:ParamsWireSize-1])
	assert.Error(t, err)
}

func Test_ValidateRejectsVersionMismatch(t *testing.T) {
	p := validParams()
	p.Version = ProtocolVersion + 1
	err := p.Validate()
	assert.ErrorIs(t, err, ErrProtocolMismatch)
}

func Test_ValidateRejectsUndersizedMTU(t *testing.T) {
	p := validParams()
	p.MTU = HeaderWireSize
	assert.Error(t, p.Validate())
}

func Test_ValidateRejectsNonPowerOfTwoPeriod(t *testing.T) {
	p := validParams()
	p.PeriodSize = 1000
	assert.Error(t, p.Validate())
}

func Test_ValidateRejectsUnknownEncoder(t *testing.T) {
	p := validParams()
	p.Encoder = EncoderKind(99)
	assert.Error(t, p.Validate())
}

func Test_ValidateAcceptsWellFormedParams(t *testing.T) {
	p := validParams()
	assert.NoError(t, p.Validate())
}

func Test_PeekKindDiscriminatesParamsAndData(t *testing.T) {
	params := EncodeParams(validParams())
	assert.Equal(t, KindParams, PeekKind(params[:]))

	hdr := EncodeHeader(Header{DataType: DataAudio, Direction: DirSend})
	assert.Equal(t, KindData, PeekKind(hdr[:]))

	assert.Equal(t, KindInvalid, PeekKind([]byte("garbage")))
}

func Test_EncoderKindYAMLRoundTrip(t *testing.T) {
	for _, k := range []EncoderKind{EncoderFloat, EncoderInt, EncoderCelt} {
		s, err := k.MarshalYAML()
		require.NoError(t, err)
		var got EncoderKind
		require.NoError(t, got.UnmarshalYAML(func(v interface{}) error {
			*(v.(*string)) = s.(string)
			return nil
		}))
		assert.Equal(t, k, got)
	}
}

func Test_EncoderKindUnmarshalRejectsUnknown(t *testing.T) {
	var k EncoderKind
	err := k.UnmarshalYAML(func(v interface{}) error {
		*(v.(*string)) = "vorbis"
		return nil
	})
	assert.Error(t, err)
}

func Test_ParamsPeriodSizeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		shift := rapid.IntRange(0, 16).Draw(t, "shift")
		p := validParams()
		p.PeriodSize = uint32(1) << uint(shift)

		buf := EncodeParams(p)
		got, err := DecodeParams(buf[:])
		require.NoError(t, err)
		assert.Equal(t, p.PeriodSize, got.PeriodSize)
		assert.NoError(t, got.Validate())
	})
}

func Test_ValidateReturnsProtocolMismatchSentinel(t *testing.T) {
	p := validParams()
	p.Version = 0
	err := p.Validate()
	require.True(t, errors.Is(err, ErrProtocolMismatch))
}
