// Package calibration converts between RS41 measurement counts and physical
// values using the sonde's factory calibration coefficients.
package calibration

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNotConverged is returned when an inverse model stops before
	// reaching the requested accuracy. The accompanying Solution holds the
	// best estimate found.
	ErrNotConverged = errors.New("calibration: solver did not converge")

	// ErrDegenerate is returned when coefficients or reference counts make
	// a model undefined (equal references, no real root).
	ErrDegenerate = errors.New("calibration: degenerate calibration input")
)

const (
	// DefaultMaxIterations bounds every iterative inverse.
	DefaultMaxIterations = 100

	relativeTolerance = 1e-4
	secantStep        = 2000
)

// Solution is the result of an inverse model.
type Solution struct {
	Counts     int
	Value      float64
	Iterations int
	Converged  bool
}

// secant finds counts with model(counts) close to target, starting from
// start and start+2000 counts.
func secant(target, start float64, maxIter int, model func(float64) float64) (Solution, error) {
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	x0, x1 := start, start+secantStep
	y0, y1 := model(x0), model(x1)

	best := Solution{Counts: int(x1), Value: y1}
	bestErr := math.Inf(1)

	for i := 1; i <= maxIter; i++ {
		if y1 == y0 || math.IsNaN(y0) || math.IsNaN(y1) {
			return best, fmt.Errorf("%w: flat or undefined model at iteration %d", ErrNotConverged, i)
		}
		x := (target-y0)*(x1-x0)/(y1-y0) + x0
		y := model(x)

		e := relativeError(target, y)
		if e < bestErr {
			bestErr = e
			best = Solution{Counts: int(x), Value: y, Iterations: i}
		}
		if e <= relativeTolerance {
			best.Converged = true
			best.Value = model(float64(best.Counts))
			return best, nil
		}
		x0, y0 = x1, y1
		x1, y1 = x, y
	}
	return best, fmt.Errorf("%w after %d iterations", ErrNotConverged, maxIter)
}

func relativeError(target, got float64) float64 {
	if math.IsNaN(got) {
		return math.Inf(1)
	}
	if target == 0 {
		return math.Abs(got)
	}
	return math.Abs((target - got) / target)
}
