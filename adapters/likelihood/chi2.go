package likelihood

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"zerofield/domain/core"
)

// Chi2Sentinel is the finite χ² reported for parameter vectors the prior rejects.
const Chi2Sentinel = 1e10

// Chi2 returns Σ ((observed − model)/σ)². Non-positive or non-finite σ and
// mismatched lengths are data-integrity errors.
func Chi2(observed, model, sigma []float64) (float64, error) {
	if len(observed) != len(model) || len(observed) != len(sigma) {
		return 0, core.NewDataIntegrityError("chi2", -1, "",
			fmt.Sprintf("length mismatch: observed=%d model=%d sigma=%d", len(observed), len(model), len(sigma)))
	}
	var sum float64
	for i := range observed {
		s := sigma[i]
		if !(s > 0) || math.IsInf(s, 0) {
			return 0, core.NewDataIntegrityError("chi2", i, "sigma", fmt.Sprintf("must be finite and > 0, got %g", s))
		}
		r := (observed[i] - model[i]) / s
		sum += r * r
	}
	return sum, nil
}

// GoodnessOfFit returns the probability of a χ² at least this large under
// dof degrees of freedom. It is NaN when dof < 1.
func GoodnessOfFit(chi2 float64, dof int) float64 {
	if dof < 1 || math.IsNaN(chi2) {
		return math.NaN()
	}
	return distuv.ChiSquared{K: float64(dof)}.Survival(chi2)
}
