// Package wire implements the canonical big-endian byte-order codecs shared
// by every fixed-layout struct that crosses the network: session
// parameters, packet headers, transport data, and MIDI buffer headers.
// Audio sample payloads never pass through this package — they stay
// little-endian on the wire regardless of host byte order (see
// SwapSamplesLE32 for the one place that changes).
package wire

import (
	"encoding/binary"
	"unsafe"
)

// ByteOrder is the canonical wire byte order for every fixed-layout struct.
var ByteOrder = binary.BigEndian

// PutU32 writes v to buf[0:4] in wire byte order.
func PutU32(buf []byte, v uint32) { ByteOrder.PutUint32(buf, v) }

// U32 reads a uint32 from buf[0:4] in wire byte order.
func U32(buf []byte) uint32 { return ByteOrder.Uint32(buf) }

// PutI32 writes a signed 32-bit value to buf[0:4] in wire byte order.
func PutI32(buf []byte, v int32) { ByteOrder.PutUint32(buf, uint32(v)) }

// I32 reads a signed 32-bit value from buf[0:4] in wire byte order.
func I32(buf []byte) int32 { return int32(ByteOrder.Uint32(buf)) }

// PutU64 writes v to buf[0:8] in wire byte order.
func PutU64(buf []byte, v uint64) { ByteOrder.PutUint64(buf, v) }

// U64 reads a uint64 from buf[0:8] in wire byte order.
func U64(buf []byte) uint64 { return ByteOrder.Uint64(buf) }

// PutU16 writes v to buf[0:2] in wire byte order. Used only by the
// optimized active-ports list (§6), which is 16-bit per the spec's
// documented asymmetry with the 32-bit port index used inline in audio
// payloads (see §9 Open Question a).
func PutU16(buf []byte, v uint16) { ByteOrder.PutUint16(buf, v) }

// U16 reads a uint16 from buf[0:2] in wire byte order.
func U16(buf []byte) uint16 { return ByteOrder.Uint16(buf) }

// PutCString copies s into buf, zero-padding (NUL-terminating and filling)
// the remainder. s is truncated to len(buf)-1 bytes if it doesn't fit, so
// the last byte is always a NUL terminator.
func PutCString(buf []byte, s string) {
	if len(buf) == 0 {
		return
	}
	n := copy(buf[:len(buf)-1], s)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

// CString reads a NUL-terminated (or buffer-filling) ASCII string out of buf.
func CString(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// hostIsBigEndian reports whether this process is running on a big-endian
// host. The core assumes little-endian audio samples on the wire (§3
// Invariants); on a big-endian host every 32-bit sample must be swapped on
// both send and receive (§9 Open Question b — this rewrite implements the
// swap rather than leaving it as an unimplemented path).
var hostIsBigEndian = func() bool {
	var x uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&x))
	return b[0] == 0
}()

// SwapSamplesLE32 normalizes a slice of 4-byte little-endian samples in
// place for the local host's byte order: a no-op on little-endian hosts,
// a byte-swap of every 32-bit word on big-endian hosts. Called once on
// send (host -> wire) and once on receive (wire -> host); calling it twice
// is therefore always correct for a little-endian host, but callers must
// invoke it exactly once per direction on a big-endian host.
func SwapSamplesLE32(buf []byte) {
	if !hostIsBigEndian {
		return
	}
	for i := 0; i+4 <= len(buf); i += 4 {
		buf[i], buf[i+1], buf[i+2], buf[i+3] = buf[i+3], buf[i+2], buf[i+1], buf[i]
	}
}

// HostIsBigEndian reports the local host's byte order, exported so callers
// can decide whether they need the same swap treatment as the framers.
func HostIsBigEndian() bool { return hostIsBigEndian }
