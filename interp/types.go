package interp

import "github.com/google/uuid"

// UnroutablePolicy governs what Finalize does when a contribution's
// output row number belongs to no rank's ownership range.
type UnroutablePolicy int

const (
	// DropAndWarn drops the contribution and reports a diagnostic. This
	// is the reference design's documented behavior and the default.
	DropAndWarn UnroutablePolicy = iota
	// FailStop aborts Finalize with an error on the first unroutable
	// contribution.
	FailStop
)

// state is the Assembler/Operator lifecycle: ASSEMBLING -> READY ->
// DESTROYED, one-way.
type state int

const (
	stateAssembling state = iota
	stateReady
	stateDestroyed
)

func newID() uuid.UUID {
	id, err := uuid.NewRandom()
	if err != nil {
		// uuid.NewRandom only fails if the system CSPRNG is broken;
		// fall back to the nil UUID rather than propagating an error
		// through every constructor in the package for an event this
		// module cannot recover from anyway.
		return uuid.Nil
	}
	return id
}
