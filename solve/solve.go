// Package solve implements the Levenberg-Marquardt loop that drives a
// Problem's free variables toward a least-squares minimum: damped normal
// equations solved by dense Cholesky (linalg.SolveDamped), with the
// standard accept/reject damping adaptation (halve lambda on an accepted
// step that reduces cost, grow it tenfold on a rejected one).
package solve

import (
	"errors"
	"fmt"
	"math"

	"github.com/scottlawsonbc/slam/code/photon/recon/linalg"
	"github.com/scottlawsonbc/slam/code/photon/recon/residual"
)

// ErrCancelled reports that opts.ShouldCancel tripped mid-solve. Run
// returns it alongside the Result as of the last accepted iteration, so
// a caller can still use a partial, non-converged solution if it wants
// to.
var ErrCancelled = errors.New("solve: cancelled")

// Problem bundles a fixed list of residual providers into one
// concatenated residual vector and sparse Jacobian, assigning each
// provider a row offset equal to the running total of the providers
// before it -- so the row ordering, and hence JᵀJ's reduction order, is
// the same every time Problem is built from the same provider list.
type Problem struct {
	providers  []residual.Provider
	rowOffset  []int
	numRows    int
	numColumns int
}

// NewProblem builds a Problem from providers, over a variable vector of
// length numColumns.
func NewProblem(providers []residual.Provider, numColumns int) *Problem {
	p := &Problem{providers: providers, numColumns: numColumns}
	p.rowOffset = make([]int, len(providers))
	row := 0
	for i, prov := range providers {
		p.rowOffset[i] = row
		row += prov.NumResiduals()
	}
	p.numRows = row
	return p
}

// NumResiduals returns the total residual vector length.
func (p *Problem) NumResiduals() int { return p.numRows }

// Residuals evaluates every provider's residual block at x and
// concatenates them in provider order.
func (p *Problem) Residuals(x []float64) []float64 {
	out := make([]float64, p.numRows)
	for i, prov := range p.providers {
		copy(out[p.rowOffset[i]:], prov.Residuals(x))
	}
	return out
}

// Jacobian evaluates every provider's Jacobian at x and shifts each
// provider's local row indices by its row offset.
func (p *Problem) Jacobian(x []float64) []linalg.Triplet {
	var out []linalg.Triplet
	for i, prov := range p.providers {
		offset := p.rowOffset[i]
		for _, t := range prov.Jacobian(x) {
			out = append(out, linalg.Triplet{Row: t.Row + offset, Col: t.Col, Value: t.Value})
		}
	}
	return out
}

// Cost returns half the sum of squared residuals at x, the quantity
// Levenberg-Marquardt minimizes.
func (p *Problem) Cost(x []float64) float64 {
	return 0.5 * sumSquares(p.Residuals(x))
}

func sumSquares(r []float64) float64 {
	var s float64
	for _, v := range r {
		s += v * v
	}
	return s
}

// Options configures the Levenberg-Marquardt loop.
type Options struct {
	// Tolerance is the minimum relative cost improvement between
	// iterations; once an accepted step improves cost by less than this
	// fraction, the solve is considered converged.
	Tolerance float64
	// MaxIterations bounds the number of outer LM iterations.
	MaxIterations int
	// Damping is the initial value of lambda.
	Damping float64
	// Verbose, when true, calls LogFunc (if non-nil) once per iteration.
	Verbose bool
	// LogFunc receives one line of progress text per iteration when
	// Verbose is set.
	LogFunc func(string)
	// Yield is called once per LM iteration, before that iteration's work
	// starts, so a host can stay responsive across a long solve. May be nil.
	Yield func()
	// ShouldCancel is polled once per LM iteration, immediately after
	// Yield. If it returns true, Run stops and returns ErrCancelled
	// alongside the Result as of the last accepted iteration. May be nil,
	// in which case Run never cancels early.
	ShouldCancel func() bool
}

// DefaultOptions returns reasonable defaults grounded in common
// Levenberg-Marquardt practice: a small initial damping, a tight relative
// tolerance, and a generous iteration ceiling since each iteration is
// cheap relative to how much a bundle adjustment benefits from running to
// convergence.
func DefaultOptions() Options {
	return Options{
		Tolerance:     1e-10,
		MaxIterations: 100,
		Damping:       1e-3,
	}
}

// Result reports how a Run call concluded.
type Result struct {
	Converged  bool
	Iterations int
	// FinalCost is 0.5 * sum of squared residuals at X.
	FinalCost float64
	X         []float64
}

// maxLambda is the ceiling the damping parameter may grow to before Run
// gives up and reports a damping-adjustment failure: at this point the
// normal equations are so ill-conditioned that no further shrinking of
// the trust region is making progress.
const maxLambda = 1e16

// Run executes the Levenberg-Marquardt loop starting from x0, returning
// the final variable vector and a Result describing convergence.
func Run(problem *Problem, x0 []float64, opts Options) (Result, error) {
	if problem.numColumns == 0 {
		return Result{Converged: true, X: append([]float64(nil), x0...)}, nil
	}
	x := append([]float64(nil), x0...)
	r := problem.Residuals(x)
	cost := 0.5 * sumSquares(r)
	lambda := opts.Damping
	if lambda <= 0 {
		lambda = 1e-3
	}

	result := Result{X: x, FinalCost: cost}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if opts.Yield != nil {
			opts.Yield()
		}
		if opts.ShouldCancel != nil && opts.ShouldCancel() {
			return result, ErrCancelled
		}
		jac := problem.Jacobian(x)
		jtj, jtr := linalg.NormalEquations(jac, r, problem.numColumns)

		accepted := false
		for {
			delta, err := linalg.SolveDamped(jtj, jtr, lambda)
			if err != nil {
				lambda *= 10
				if lambda > maxLambda {
					return result, fmt.Errorf("solve: damping adjustment failed after %d iterations: %w", iter, err)
				}
				continue
			}
			xNew := make([]float64, len(x))
			for i := range x {
				xNew[i] = x[i] + delta[i]
			}
			rNew := problem.Residuals(xNew)
			costNew := 0.5 * sumSquares(rNew)
			if costNew < cost || math.IsNaN(cost) {
				improvement := cost - costNew
				relative := improvement / math.Max(cost, 1e-300)
				x, r = xNew, rNew
				lambda = math.Max(lambda/2, 1e-300)
				accepted = true
				result = Result{Iterations: iter + 1, X: x, FinalCost: costNew}
				cost = costNew
				if opts.Verbose && opts.LogFunc != nil {
					opts.LogFunc(fmt.Sprintf("solve: iter %d accepted, cost=%g lambda=%g", iter, cost, lambda))
				}
				if relative < opts.Tolerance {
					result.Converged = true
					return result, nil
				}
				break
			}
			lambda *= 10
			if opts.Verbose && opts.LogFunc != nil {
				opts.LogFunc(fmt.Sprintf("solve: iter %d rejected, cost=%g lambda=%g", iter, costNew, lambda))
			}
			if lambda > maxLambda {
				return result, fmt.Errorf("solve: damping adjustment failed after %d iterations", iter)
			}
		}
		if !accepted {
			break
		}
	}
	return result, nil
}
