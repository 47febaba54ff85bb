package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

// Fit estimates Weibull beta and eta by median-rank regression. Right-censored observations
// shift the ranks of later failures (Johnson's adjusted ranks); with complete data the ranks
// reduce to 1..n. Plotting positions use Bernard's approximation.
func (m *ReliabilityModel) Fit(observations []models.Observation) (models.FitResult, error) {
	for i, o := range observations {
		if !(o.Time > 0) || math.IsInf(o.Time, 0) {
			return models.FitResult{}, utils.Validation(opFit, fmt.Sprintf("observations[%d]", i), o.Time, "time must be a positive finite number")
		}
	}

	sorted := append([]models.Observation(nil), observations...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Time != sorted[j].Time {
			return sorted[i].Time < sorted[j].Time
		}
		// at equal times, failures are ranked before suspensions
		return !sorted[i].Censored && sorted[j].Censored
	})

	failures, distinct := 0, 0
	last := math.NaN()
	for _, o := range sorted {
		if o.Censored {
			continue
		}
		failures++
		if o.Time != last {
			distinct++
			last = o.Time
		}
	}
	if failures < 2 || distinct < 2 {
		return models.FitResult{}, utils.InsufficientData(opFit, failures, "at least two failures at distinct times are required")
	}

	n := float64(len(sorted))
	xs := make([]float64, 0, failures)
	ys := make([]float64, 0, failures)
	prevRank := 0.0
	for i, o := range sorted {
		if o.Censored {
			continue
		}
		reverse := n - float64(i)
		rank := prevRank + (n+1-prevRank)/(1+reverse)
		prevRank = rank
		f := (rank - 0.3) / (n + 0.4)
		xs = append(xs, math.Log(o.Time))
		ys = append(ys, math.Log(-math.Log1p(-f)))
	}

	slope, intercept, r2 := leastSquares(xs, ys)
	if !(slope > 0) {
		return models.FitResult{}, utils.Domain(opFit, "beta", slope, "regression produced a non-positive shape parameter")
	}
	beta := slope
	eta := math.Exp(-intercept / beta)

	return models.FitResult{
		Beta:        beta,
		Eta:         eta,
		R2:          r2,
		B10:         Quantile(beta, eta, 0.10),
		B50:         Quantile(beta, eta, 0.50),
		MTBF:        MeanLife(beta, eta),
		Pattern:     m.Classify(beta),
		Failures:    failures,
		Suspensions: len(sorted) - failures,
	}, nil
}

// leastSquares fits y = slope*x + intercept and returns the coefficient of determination.
func leastSquares(xs, ys []float64) (slope, intercept, r2 float64) {
	n := float64(len(xs))
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n

	var sxx, sxy, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return 0, my, 0
	}
	slope = sxy / sxx
	intercept = my - slope*mx
	if syy == 0 {
		return slope, intercept, 1
	}
	return slope, intercept, (sxy * sxy) / (sxx * syy)
}
