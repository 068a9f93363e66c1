package r3

import "gonum.org/v1/gonum/mat"

// SVD3x3 is the singular value decomposition of a 3x3 matrix: M = U * S * V^T.
type SVD3x3 struct {
	U      Mat3x3
	S      Vec // Singular values in descending order.
	V      Mat3x3
}

// ComputeSVD3x3 computes the full singular value decomposition of m using
// gonum's dense SVD. It panics if gonum fails to factorize, which only
// happens for non-finite input.
func ComputeSVD3x3(m Mat3x3) SVD3x3 {
	d := mat.NewDense(3, 3, []float64{
		m.M[0][0], m.M[0][1], m.M[0][2],
		m.M[1][0], m.M[1][1], m.M[1][2],
		m.M[2][0], m.M[2][1], m.M[2][2],
	})
	var svd mat.SVD
	ok := svd.Factorize(d, mat.SVDFull)
	if !ok {
		panic("r3: SVD factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	vals := svd.Values(nil)
	return SVD3x3{
		U: matFromDense(&u),
		S: Vec{vals[0], vals[1], vals[2]},
		V: matFromDense(&v),
	}
}

func matFromDense(d *mat.Dense) Mat3x3 {
	var out Mat3x3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.M[i][j] = d.At(i, j)
		}
	}
	return out
}
