// Package linalg provides the dense linear-algebra primitives the solver
// and initialization strategies need beyond what r3's fixed-size 3x3 types
// supply: general MxN thin SVD and a damped normal-equations solve. It is a
// thin wrapper over gonum.org/v1/gonum/mat, kept intentionally small so the
// rest of the repository imports gonum directly only for r3's 3x3 SVD.
package linalg

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Triplet is one non-zero entry of a sparse Jacobian, keyed by row and
// column (column is a variable-layout slot index).
type Triplet struct {
	Row, Col int
	Value    float64
}

// sortTriplets orders triplets by (row, col) so that reduction into dense
// normal equations does not depend on the order residual providers were
// evaluated in. This is the "explicit commutative-associative pass" the
// determinism requirement calls for: float64 addition is not associative,
// so summing JᵀJ's entries in a fixed order is what makes two solves over
// the same inputs produce bit-identical results.
func sortTriplets(t []Triplet) []Triplet {
	out := make([]Triplet, len(t))
	copy(out, t)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// NormalEquations assembles JᵀJ and Jᵀr from a sparse Jacobian given as
// triplets, a residual vector r, and the number of columns (free
// variables) n. Rows of J need not be contiguous or sorted; they are
// sorted internally before reduction.
func NormalEquations(jacobian []Triplet, r []float64, n int) (jtj *mat.SymDense, jtr []float64) {
	sorted := sortTriplets(jacobian)

	// Group by row so each row's contribution to JᵀJ is a deterministic
	// outer product accumulated in column-sorted order.
	jtj = mat.NewSymDense(n, nil)
	jtr = make([]float64, n)

	i := 0
	for i < len(sorted) {
		row := sorted[i].Row
		j := i
		for j < len(sorted) && sorted[j].Row == row {
			j++
		}
		entries := sorted[i:j]
		ri := 0.0
		if row >= 0 && row < len(r) {
			ri = r[row]
		}
		for a := 0; a < len(entries); a++ {
			ea := entries[a]
			jtr[ea.Col] += ea.Value * ri
			for b := a; b < len(entries); b++ {
				eb := entries[b]
				jtj.SetSym(ea.Col, eb.Col, jtj.At(ea.Col, eb.Col)+ea.Value*eb.Value)
			}
		}
		i = j
	}
	return jtj, jtr
}

// SolveDamped solves (JtJ + lambda*diag(JtJ)) * delta = -Jtr for delta using
// a dense Cholesky factorization, the damped normal-equations step at the
// heart of Levenberg-Marquardt. It returns an error if the damped system is
// not positive definite, which the caller should treat as a signal to grow
// lambda and retry.
func SolveDamped(jtj *mat.SymDense, jtr []float64, lambda float64) ([]float64, error) {
	n := jtj.SymmetricDim()
	damped := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := jtj.At(i, j)
			if i == j {
				v += lambda * jtj.At(i, i)
			}
			damped.SetSym(i, j, v)
		}
	}

	negJtr := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		negJtr.SetVec(i, -jtr[i])
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(damped); !ok {
		return nil, fmt.Errorf("linalg: damped normal equations are not positive definite")
	}

	var delta mat.VecDense
	if err := chol.SolveVecTo(&delta, negJtr); err != nil {
		return nil, fmt.Errorf("linalg: cholesky solve failed: %w", err)
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = delta.AtVec(i)
	}
	return out, nil
}

// SVDResult is the singular value decomposition of an MxN matrix,
// M = U * diag(S) * V^T, with S (K), K = min(M,N). For M >= N it is thin:
// U (MxK), V (NxK). For M < N it is full: U (MxM), V (NxN), so V still
// holds the directions of the null space.
type SVDResult struct {
	Rows, Cols int
	U          *mat.Dense
	S          []float64
	V          *mat.Dense
}

// ThinSVD factorizes an MxN row-major matrix given as a flat slice of
// length rows*cols.
func ThinSVD(rows, cols int, data []float64) (SVDResult, error) {
	d := mat.NewDense(rows, cols, data)
	var svd mat.SVD
	kind := mat.SVDThin
	if rows < cols {
		kind = mat.SVDFull
	}
	if ok := svd.Factorize(d, kind); !ok {
		return SVDResult{}, fmt.Errorf("linalg: SVD factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	return SVDResult{
		Rows: rows,
		Cols: cols,
		U:    &u,
		S:    svd.Values(nil),
		V:    &v,
	}, nil
}

// NullVector returns the right singular vector of the smallest singular
// value, i.e. the (approximate) null-space vector of a homogeneous linear
// system A*x=0 solved in the least-squares sense. It is used by the
// eight-point essential-matrix estimate and by plane fitting.
func (s SVDResult) NullVector() []float64 {
	last := s.V.RawMatrix().Cols - 1
	out := make([]float64, s.V.RawMatrix().Rows)
	for i := range out {
		out[i] = s.V.At(i, last)
	}
	return out
}
