package trend

import (
	"errors"
	"math"
)

// polyfit fits a degree-d polynomial to (x, y) by least squares and returns
// its coefficients in increasing-power order over the scaled domain, plus
// the scaling used. x is mapped onto [-1, 1] before fitting: raw epoch
// seconds raised to the 20th power overflow float64 long before the solver
// gets a say.
type polynomial struct {
	coeffs []float64
	xMid   float64
	xHalf  float64
}

var errDegenerateFit = errors.New("trend: degenerate polynomial fit")

func polyfit(x, y []float64, degree int) (*polynomial, error) {
	n := len(x)
	if n != len(y) || n < 2 {
		return nil, errDegenerateFit
	}
	if degree >= n {
		degree = n - 1
	}
	if degree < 1 {
		return nil, errDegenerateFit
	}

	xMid := (x[n-1] + x[0]) / 2
	xHalf := (x[n-1] - x[0]) / 2
	if xHalf <= 0 {
		return nil, errDegenerateFit
	}

	// Vandermonde matrix on the scaled domain.
	cols := degree + 1
	a := make([][]float64, n)
	for i := 0; i < n; i++ {
		a[i] = make([]float64, cols)
		s := (x[i] - xMid) / xHalf
		p := 1.0
		for j := 0; j < cols; j++ {
			a[i][j] = p
			p *= s
		}
	}
	rhs := append([]float64(nil), y...)

	coeffs, err := solveLeastSquares(a, rhs, cols)
	if err != nil {
		return nil, err
	}
	return &polynomial{coeffs: coeffs, xMid: xMid, xHalf: xHalf}, nil
}

// solveLeastSquares runs an in-place Householder QR on a (n x cols, n >= cols)
// and back-substitutes min ||a·c - rhs||.
func solveLeastSquares(a [][]float64, rhs []float64, cols int) ([]float64, error) {
	n := len(a)
	for k := 0; k < cols; k++ {
		// Householder reflector for column k.
		norm := 0.0
		for i := k; i < n; i++ {
			norm = math.Hypot(norm, a[i][k])
		}
		if norm == 0 {
			return nil, errDegenerateFit
		}
		if a[k][k] > 0 {
			norm = -norm
		}
		for i := k; i < n; i++ {
			a[i][k] /= norm
		}
		a[k][k] -= 1

		// Apply reflector to the remaining columns and rhs.
		for j := k + 1; j < cols; j++ {
			s := 0.0
			for i := k; i < n; i++ {
				s += a[i][k] * a[i][j]
			}
			s /= a[k][k]
			for i := k; i < n; i++ {
				a[i][j] += s * a[i][k]
			}
		}
		s := 0.0
		for i := k; i < n; i++ {
			s += a[i][k] * rhs[i]
		}
		s /= a[k][k]
		for i := k; i < n; i++ {
			rhs[i] += s * a[i][k]
		}
		a[k][k] = norm
	}

	// Back substitution on the R factor.
	coeffs := make([]float64, cols)
	for k := cols - 1; k >= 0; k-- {
		s := rhs[k]
		for j := k + 1; j < cols; j++ {
			s -= a[k][j] * coeffs[j]
		}
		if a[k][k] == 0 || math.IsNaN(a[k][k]) {
			return nil, errDegenerateFit
		}
		coeffs[k] = s / a[k][k]
	}
	for _, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, errDegenerateFit
		}
	}
	return coeffs, nil
}

// at evaluates the polynomial at raw x via Horner on the scaled domain.
func (p *polynomial) at(x float64) float64 {
	s := (x - p.xMid) / p.xHalf
	v := 0.0
	for j := len(p.coeffs) - 1; j >= 0; j-- {
		v = v*s + p.coeffs[j]
	}
	return v
}

// resample evaluates the polynomial on an evenly spaced grid of size points
// spanning [x0, x1], returning the samples and the grid step.
func (p *polynomial) resample(x0, x1 float64, size int) ([]float64, float64) {
	step := (x1 - x0) / float64(size-1)
	out := make([]float64, size)
	for i := 0; i < size; i++ {
		out[i] = p.at(x0 + float64(i)*step)
	}
	return out, step
}

// rollingMean mirrors a trailing-window moving average: out[i] is the mean
// of in[i-w+1..i], NaN while the window is not yet full or contains NaN.
// The running sum restarts after each NaN so a padded head does not poison
// the rest of the series.
func rollingMean(in []float64, w int) []float64 {
	out := make([]float64, len(in))
	sum := 0.0
	run := 0 // 以 i 结尾的连续有限样本数
	for i := range in {
		if math.IsNaN(in[i]) {
			sum, run = 0, 0
			out[i] = math.NaN()
			continue
		}
		sum += in[i]
		run++
		if run > w {
			sum -= in[i-w]
		}
		if run >= w {
			out[i] = sum / float64(w)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// derivative computes the symmetric finite difference of f divided by the
// grid step; out has len(f)-2 samples covering interior grid points.
func derivative(f []float64, step float64) []float64 {
	if len(f) < 3 {
		return nil
	}
	out := make([]float64, len(f)-2)
	for i := 1; i < len(f)-1; i++ {
		out[i-1] = (f[i+1] - f[i-1]) / (2 * step)
	}
	return out
}
