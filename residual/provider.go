// Package residual builds the residual providers that feed the solver:
// one Provider per reprojection observation and per geometric Constraint.
// Each Provider reads the flat variable vector x (laid out by varlayout)
// and returns its residual values and their sparse Jacobian with respect
// to x, as (row, column, value) triplets scoped to its own row block --
// solve assigns the row offset when it concatenates providers.
package residual

import "github.com/scottlawsonbc/slam/code/photon/recon/linalg"

// Provider is one residual block: a reprojection observation or a
// geometric constraint, contributing NumResiduals() rows to the overall
// residual vector and a slice of Jacobian triplets whose Row fields are
// local (0-based within this provider); solve.Problem shifts them by the
// provider's row offset before handing them to linalg.NormalEquations.
type Provider interface {
	// Name identifies the provider for diagnostics, e.g.
	// "reprojection[viewpoint 3, point 17]" or "distance[4-9]".
	Name() string

	// NumResiduals returns how many rows this provider contributes.
	NumResiduals() int

	// Residuals evaluates the provider's residual vector at x, already
	// scaled by sqrt(Weight()).
	Residuals(x []float64) []float64

	// Jacobian evaluates the provider's Jacobian at x, with Row in
	// [0, NumResiduals()) and Col a column index into x. Entries are
	// already scaled by sqrt(Weight()).
	Jacobian(x []float64) []linalg.Triplet

	// Weight returns the provider's contribution weight, applied as a
	// multiplier on the sum of squared residuals (i.e. residual values
	// and Jacobian entries are scaled by sqrt(Weight)).
	Weight() float64
}

func weightOrDefault(w float64) float64 {
	if w <= 0 {
		return 1
	}
	return w
}
