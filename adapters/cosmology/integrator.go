package cosmology

import (
	"math"

	"zerofield/domain/core"
)

// Failure reasons carried by core.IntegrationError.
const (
	reasonNonFinite     = "non-finite state"
	reasonCollapse      = "expansion rate reached zero"
	reasonStepUnderflow = "adaptive step below minimum"
	reasonStepBudget    = "step budget exhausted"
	reasonInterpolate   = "interpolation failed"
	reasonPanic         = "numerical panic"
)

// Dormand–Prince 5(4) tableau.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// difference between the 5th and 4th order weights
	dpE = [7]float64{71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920, -17253.0 / 339200, 22.0 / 525, -1.0 / 40}
)

type derivFunc func(x float64, y, dy []float64)

// dopri45 is an adaptive embedded Runge–Kutta integrator. It is not safe for
// concurrent use; the solver creates one per solve.
type dopri45 struct {
	rtol     float64
	atol     float64
	minStep  float64
	maxSteps int

	steps int     // attempted steps so far
	h     float64 // step size carried between calls
	k     [7][]float64
	ytmp  []float64
	ynew  []float64
}

func newDopri45(dim int, rtol, atol, minStep float64, maxSteps int) *dopri45 {
	d := &dopri45{rtol: rtol, atol: atol, minStep: minStep, maxSteps: maxSteps}
	for i := range d.k {
		d.k[i] = make([]float64, dim)
	}
	d.ytmp = make([]float64, dim)
	d.ynew = make([]float64, dim)
	return d
}

// advance integrates y in place from x0 to x1. x1 may be below x0.
func (d *dopri45) advance(f derivFunc, x0, x1 float64, y []float64) error {
	span := x1 - x0
	if span == 0 {
		return nil
	}
	dir := math.Copysign(1, span)
	if d.h == 0 || math.Abs(d.h) > math.Abs(span) {
		d.h = span
	}
	d.h = dir * math.Abs(d.h)

	x := x0
	f(x, y, d.k[0])
	for dir*(x1-x) > 0 {
		if d.steps >= d.maxSteps {
			return &core.IntegrationError{Step: d.steps, A: x, Reason: reasonStepBudget}
		}
		if math.Abs(d.h) < d.minStep {
			return &core.IntegrationError{Step: d.steps, A: x, Reason: reasonStepUnderflow}
		}
		h := d.h
		last := false
		if dir*(x+h-x1) >= 0 {
			h = x1 - x
			last = true
		}
		d.steps++

		errNorm := d.trial(f, x, h, y)
		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
			// shrink hard and retry; the step budget bounds the retries
			d.h = h / 10
			continue
		}
		if errNorm <= 1 {
			if last {
				x = x1
			} else {
				x += h
			}
			copy(y, d.ynew)
			d.k[0], d.k[6] = d.k[6], d.k[0] // FSAL
			for _, v := range y {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return &core.IntegrationError{Step: d.steps, A: x, Reason: reasonNonFinite}
				}
			}
			if y[iH] <= 0 {
				return &core.IntegrationError{Step: d.steps, A: x, Reason: reasonCollapse}
			}
		}
		d.h = h * stepFactor(errNorm)
		if last && errNorm <= 1 {
			// keep the pre-clipping step for the next output interval
			d.h = math.Max(math.Abs(d.h), math.Abs(h)) * dir
		}
	}
	return nil
}

// trial computes a 5th order step into d.ynew and returns the RMS error norm.
func (d *dopri45) trial(f derivFunc, x, h float64, y []float64) float64 {
	n := len(y)
	for s := 1; s < 7; s++ {
		for i := 0; i < n; i++ {
			acc := 0.0
			for j := 0; j < s; j++ {
				acc += dpA[s][j] * d.k[j][i]
			}
			d.ytmp[i] = y[i] + h*acc
		}
		f(x+dpC[s]*h, d.ytmp, d.k[s])
	}
	copy(d.ynew, d.ytmp) // stage 7 is evaluated at the 5th order solution

	var sum float64
	for i := 0; i < n; i++ {
		e := 0.0
		for s := 0; s < 7; s++ {
			e += dpE[s] * d.k[s][i]
		}
		e *= h
		scale := d.atol + d.rtol*math.Max(math.Abs(y[i]), math.Abs(d.ynew[i]))
		sum += (e / scale) * (e / scale)
	}
	return math.Sqrt(sum / float64(n))
}

func stepFactor(errNorm float64) float64 {
	if errNorm == 0 {
		return 5
	}
	return math.Min(5, math.Max(0.2, 0.9*math.Pow(errNorm, -0.2)))
}
