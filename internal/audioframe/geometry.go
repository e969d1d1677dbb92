// Package audioframe implements the sub-cycle packing geometry shared by
// the dense and optimized port-list framers (C5/C6): splitting a period's
// worth of samples per port into MTU-bounded sub-cycle packets.
//
// Dense and optimized packing share one formula and differ only in which
// port count feeds it and whether a 4-byte port-index tag rides along
// with each port's slice — modeled here as a single SubPeriodSize function
// parameterized by a packing Policy (§9: "model as one framer type
// parameterized by a packing policy with two variants; do not replicate
// the formula").
package audioframe

// Policy distinguishes the two ways a sub-cycle packet's payload is laid
// out: Dense transmits every port's slice with no tag; Optimized prefixes
// each port's slice with a 4-byte port index and only includes bound
// ports.
type Policy int

const (
	Dense Policy = iota
	Optimized
)

// TagBytes returns the per-port-slice tag overhead for the policy: 0 for
// Dense, 4 for Optimized (§3: "effective slice bytes are S·W + 4").
func (p Policy) TagBytes() int {
	if p == Optimized {
		return 4
	}
	return 0
}

// SubPeriodSize computes S, the largest power-of-two sub-period length in
// samples that lets `count` ports (N in dense mode, active port count A in
// optimized mode) fit within the payload budget, per §4.4's formula:
//
//	S = min(P, 2^floor(log2(B / (C·W))))
//
// with C = count. If count is 0, S = P (one packet, no audio — §8
// invariant 1). If a single sample for every port already exceeds the
// budget, S = 1 (§8 invariant 1).
func SubPeriodSize(periodSize, count, sampleWidth, budget int, policy Policy) int {
	if count == 0 {
		return periodSize
	}
	// budget >= count*(S*sampleWidth + tagBytes)  =>  S <= (budget - count*tagBytes) / (count*sampleWidth)
	tagTotal := count * policy.TagBytes()
	perSample := count * sampleWidth
	if perSample <= 0 {
		return periodSize
	}
	remaining := budget - tagTotal
	if remaining < perSample {
		return 1
	}
	maxS := remaining / perSample
	if maxS < 1 {
		return 1
	}
	s := 1
	for s*2 <= maxS && s*2 <= periodSize {
		s *= 2
	}
	if s > periodSize {
		s = periodSize
	}
	return s
}

// NumPackets returns K, the number of sub-cycle packets a cycle is split
// into given a computed sub-period size: ceil(periodSize / subPeriodSize).
// For a power-of-two period and the power-of-two S this package produces
// the division is exact; the ceiling only matters for a period that is
// not a multiple of S.
func NumPackets(periodSize, subPeriodSize int) int {
	if subPeriodSize <= 0 {
		return 1
	}
	k := periodSize / subPeriodSize
	if periodSize%subPeriodSize != 0 {
		k++
	}
	if k < 1 {
		k = 1
	}
	return k
}

// PayloadBudget returns B, the payload budget in bytes available to a
// sub-cycle packet given the negotiated MTU, per §3: "payload budget B =
// M - sizeof(header)".
func PayloadBudget(mtu, headerSize int) int {
	b := mtu - headerSize
	if b < 0 {
		return 0
	}
	return b
}
