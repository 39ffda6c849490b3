// Package redist implements the Redistributor contract the interp
// package's external collaborator must satisfy: a forward gather of
// remote input entries and a reverse scatter-add of computed
// contributions back to their owners.
package redist

import "github.com/notargets/interp/bvec"

// Redistributor is the contract interp.Operator drives during apply.
// Begin* posts an exchange; End* completes it. Within one instance,
// Begin* must precede its matching End* and no two overlapping
// exchanges on the same buffer are permitted.
type Redistributor interface {
	// BeginForward posts a gather so that after EndForward the B-tuple
	// at local offset B*c in buf equals the B-tuple at the owner of
	// this Redistributor's c-th external index.
	BeginForward(in bvec.Vector, buf []float64) error
	EndForward(in bvec.Vector, buf []float64) error

	// BeginReverse scatters buf to the remote owners of this
	// Redistributor's external indices, adding element-wise into each
	// owner's local slice of out.
	BeginReverse(buf []float64, out bvec.Vector) error
	EndReverse(buf []float64, out bvec.Vector) error
}
