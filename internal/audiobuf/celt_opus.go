//go:build opus

package audiobuf

import (
	"fmt"

	opus "gopkg.in/hraban/opus.v2"
)

// opusCeltCodec backs CeltCodec with a real Opus encoder/decoder pair,
// the practical fixed-rate stand-in for "a CELT-like codec" that the
// teacher repo itself reaches for (opus_support.go) when it needs a
// compressed audio path — CELT proper was folded into Opus years ago and
// the Go ecosystem's maintained binding is for Opus, not bare CELT.
type opusCeltCodec struct {
	enc *opus.Encoder
	dec *opus.Decoder

	periodSize int
	kbps       int
}

// NewOpusCeltCodecFactory returns a CeltCodecFactory backed by Opus,
// compiled in only under the `opus` build tag (requires libopus via
// cgo, same as the teacher's opus_support.go).
func NewOpusCeltCodecFactory() CeltCodecFactory {
	return func(sampleRate, periodSize, kbps int) (CeltCodec, error) {
		enc, err := opus.NewEncoder(sampleRate, 1, opus.AppAudio)
		if err != nil {
			return nil, fmt.Errorf("opus encoder: %w", err)
		}
		if err := enc.SetBitrate(kbps * 1000); err != nil {
			return nil, fmt.Errorf("opus set bitrate: %w", err)
		}
		dec, err := opus.NewDecoder(sampleRate, 1)
		if err != nil {
			return nil, fmt.Errorf("opus decoder: %w", err)
		}
		return &opusCeltCodec{enc: enc, dec: dec, periodSize: periodSize, kbps: kbps}, nil
	}
}

func (c *opusCeltCodec) EncodeFloat(samples []float32, out []byte) (int, error) {
	return c.enc.EncodeFloat32(samples, out)
}

func (c *opusCeltCodec) DecodeFloat(data []byte, periodSize int) ([]float32, error) {
	pcm := make([]float32, periodSize)
	n, err := c.dec.DecodeFloat32(data, pcm)
	if err != nil {
		return nil, err
	}
	return pcm[:n], nil
}

func (c *opusCeltCodec) Close() {}
