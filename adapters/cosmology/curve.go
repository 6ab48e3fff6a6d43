package cosmology

import (
	"fmt"

	"gonum.org/v1/gonum/interp"

	"zerofield/domain/core"
)

// predictor is the subset of the gonum interpolators used here.
type predictor interface {
	Predict(x float64) float64
	PredictDerivative(x float64) float64
}

// splineCurve interpolates an integrated expansion history in z. Inside the
// integrated range it uses a not-a-knot cubic spline; outside it continues
// along the end tangent.
type splineCurve struct {
	zMin, zMax float64
	hubble     predictor
	distance   predictor
}

// newSplineCurve fits H(z) and D_C(z). zs must be strictly increasing with at
// least three nodes.
func newSplineCurve(zs, hs, ds []float64) (*splineCurve, error) {
	var h, d interp.NotAKnotCubic
	if err := h.Fit(zs, hs); err != nil {
		return nil, &core.IntegrationError{Step: -1, A: 1 / (1 + zs[len(zs)-1]), Reason: fmt.Sprintf("%s: H(z): %v", reasonInterpolate, err)}
	}
	if err := d.Fit(zs, ds); err != nil {
		return nil, &core.IntegrationError{Step: -1, A: 1 / (1 + zs[len(zs)-1]), Reason: fmt.Sprintf("%s: D_C(z): %v", reasonInterpolate, err)}
	}
	return &splineCurve{zMin: zs[0], zMax: zs[len(zs)-1], hubble: &h, distance: &d}, nil
}

func (c *splineCurve) Hubble(z float64) float64 {
	return c.eval(c.hubble, z)
}

func (c *splineCurve) ComovingDistance(z float64) float64 {
	return c.eval(c.distance, z)
}

func (c *splineCurve) eval(p predictor, z float64) float64 {
	switch {
	case z < c.zMin:
		return p.Predict(c.zMin) + p.PredictDerivative(c.zMin)*(z-c.zMin)
	case z > c.zMax:
		return p.Predict(c.zMax) + p.PredictDerivative(c.zMax)*(z-c.zMax)
	}
	return p.Predict(z)
}

// tangentCurve is the first-order expansion around z = 0, used when nothing
// beyond the present epoch was requested.
type tangentCurve struct {
	h0, dHdz float64
	dDdz     float64
}

func (c tangentCurve) Hubble(z float64) float64 {
	return c.h0 + c.dHdz*z
}

func (c tangentCurve) ComovingDistance(z float64) float64 {
	return c.dDdz * z
}
