// Package lossdetect implements C8: a single per-direction integer
// tracking the expected sub-cycle sequence, emitting a non-fatal
// "packet(s) missing" signal when a gap appears and resetting at the end
// of each cycle (§4.6).
package lossdetect

import "fmt"

// Gap describes a detected sub-cycle discontinuity: the range of sub-cycle
// indices that were skipped between the last accepted packet and the one
// that triggered the gap (§8 scenario 4).
type Gap struct {
	Expected int
	Got      int
}

func (g Gap) Error() string {
	if g.Got == g.Expected+1 {
		return fmt.Sprintf("netjack: packet missing: expected sub-cycle %d", g.Expected)
	}
	return fmt.Sprintf("netjack: packets missing: expected sub-cycle %d..%d, got %d", g.Expected, g.Got-1, g.Got)
}

// Detector tracks fLastSubCycle for one direction (send or return) of one
// session. Precondition on every received data packet: header.sub_cycle
// == fLastSubCycle + 1 (§4.6).
type Detector struct {
	lastSubCycle int
}

// New constructs a Detector at its cycle-boundary reset state.
func New() *Detector {
	return &Detector{lastSubCycle: -1}
}

// Check validates subCycle against the expected next value. The packet
// should still be processed (its payload scattered) regardless of the
// result — Check only reports whether a gap occurred; it does not refuse
// the packet (§4.6: "the packet is still processed... so subsequent
// packets can continue"). Returns a non-nil *Gap on discontinuity,
// including duplicate or out-of-order arrivals, which are treated as loss
// of the expected packet (§5 Ordering).
func (d *Detector) Check(subCycle int) *Gap {
	var gap *Gap
	if subCycle != d.lastSubCycle+1 {
		gap = &Gap{Expected: d.lastSubCycle + 1, Got: subCycle}
	}
	d.lastSubCycle = subCycle
	return gap
}

// EndCycle resets the detector to its cycle-boundary state (§3
// Lifecycle: "fLastSubCycle resets to -1 at the boundary"). Callers
// invoke this when the last-packet flag is observed, or when subCycle
// reaches numPackets-1, whichever the transport signals first (§4.6).
func (d *Detector) EndCycle() {
	d.lastSubCycle = -1
}

// LastSubCycle reports the most recently accepted sub-cycle index, or -1
// at a cycle boundary. Exposed for tests verifying §8 invariant 5.
func (d *Detector) LastSubCycle() int { return d.lastSubCycle }
