//go:build !opus

package audiobuf

import "fmt"

// ErrCeltUnavailable is returned by the stub codec factory when the
// module was built without the `opus` tag. Mirrors the teacher's
// opus_stub.go, which logs a warning and falls back to PCM rather than
// failing outright; here the decision to fall back to FloatAudioBuffer
// or IntAudioBuffer belongs to the session negotiation layer (out of
// scope for this core), so the stub just reports the condition.
var ErrCeltUnavailable = fmt.Errorf("netjack: celt/opus support not compiled in (build with -tags opus)")

// NewOpusCeltCodecFactory returns a CeltCodecFactory that always fails,
// for builds without libopus available. Rebuild with `-tags opus` (and
// libopus-dev installed) to get a working CELT encoder variant.
func NewOpusCeltCodecFactory() CeltCodecFactory {
	return func(sampleRate, periodSize, kbps int) (CeltCodec, error) {
		return nil, ErrCeltUnavailable
	}
}
