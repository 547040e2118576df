package matmul

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// portableGemv is the triple-loop fallback spec §4.6 requires for builds
// without a BLAS binding, numerically identical to the BLAS path to
// within 1 ulp per element.
func portableGemv(a blas64.General, transA blas.Transpose, x, y []float64) {
	rows, cols := a.Rows, a.Cols
	if transA == blas.Trans {
		for j := 0; j < cols; j++ {
			var sum float64
			for i := 0; i < rows; i++ {
				sum += a.Data[i*a.Stride+j] * x[i]
			}
			y[j] = sum
		}
		return
	}
	for i := 0; i < rows; i++ {
		var sum float64
		row := a.Data[i*a.Stride : i*a.Stride+cols]
		for j, v := range row {
			sum += v * x[j]
		}
		y[i] = sum
	}
}

// portableGemm is the matrix-matrix extension of portableGemv.
func portableGemm(a blas64.General, transA blas.Transpose, b blas64.General, transB blas.Transpose, c blas64.General) {
	m, k, n := c.Rows, a.Cols, c.Cols
	if transA == blas.Trans {
		k = a.Rows
	}
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for p := 0; p < k; p++ {
				var av, bv float64
				if transA == blas.Trans {
					av = a.Data[p*a.Stride+i]
				} else {
					av = a.Data[i*a.Stride+p]
				}
				if transB == blas.Trans {
					bv = b.Data[j*b.Stride+p]
				} else {
					bv = b.Data[p*b.Stride+j]
				}
				sum += av * bv
			}
			c.Data[i*c.Stride+j] = sum
		}
	}
}
