package estimate

import (
	"math"
	"sort"
	"time"

	"github.com/psantana5/hls-server/pkg/models"
)

// Numeric guards for the regression. denomEpsilon rejects sample sets whose
// timestamps are near-identical (the slope denominator blows up); slopeEpsilon
// rejects slopes that are positive only through floating noise.
const (
	denomEpsilon = 1e-9
	slopeEpsilon = 1e-12
)

// EstimateRemaining fits an ordinary least-squares line through the progress
// samples (elapsed seconds -> percentage) and extrapolates to 100%. The input
// is never mutated; calling twice on the same samples yields the same result.
// Success=false carries a reason instead of an error: estimation failures are
// expected during a job's early life and must not fail the poll request.
func EstimateRemaining(samples []models.ProgressPoint) models.EstimationResult {
	if samples == nil {
		return failure("samples is nil")
	}

	// Drop non-finite percentages, clamp the rest to [0,100], sort by time.
	// Ticks can arrive with jittery or duplicate timestamps.
	pts := make([]models.ProgressPoint, 0, len(samples))
	for _, p := range samples {
		if math.IsNaN(p.Percentage) || math.IsInf(p.Percentage, 0) {
			continue
		}
		pts = append(pts, models.ProgressPoint{
			Percentage: math.Max(0, math.Min(100, p.Percentage)),
			Time:       p.Time,
		})
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Time.Before(pts[j].Time) })

	if len(pts) < 2 {
		return failure("need at least 2 samples to estimate")
	}

	last := pts[len(pts)-1]
	if last.Percentage >= 100.0 {
		return models.EstimationResult{
			Success:       true,
			Remaining:     0,
			Eta:           last.Time,
			RatePerSecond: math.Inf(1),
		}
	}

	// Re-base time to seconds since the first sample.
	t0 := pts[0].Time
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = p.Time.Sub(t0).Seconds()
		ys[i] = p.Percentage
	}

	n := float64(len(pts))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}

	denom := n*sumXX - sumX*sumX
	if math.Abs(denom) < denomEpsilon {
		return failure("insufficient time variation among samples")
	}

	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	if !(slope > slopeEpsilon) {
		// Stalled or regressing fit. Fall back to the average rate between
		// the first and last sample before giving up.
		deltaPerc := ys[len(ys)-1] - ys[0]
		deltaSec := xs[len(xs)-1] - xs[0]
		fallbackRate := 0.0
		if deltaSec > 0 {
			fallbackRate = deltaPerc / deltaSec
		}
		if !(fallbackRate > slopeEpsilon) {
			return failure("non-positive progress rate (can't estimate)")
		}
		slope = fallbackRate
		intercept = ys[0] - slope*xs[0]
	}

	t100 := (100.0 - intercept) / slope
	lastX := xs[len(xs)-1]
	eta := t0.Add(time.Duration(t100 * float64(time.Second)))

	// Regression can place 100% before the last observed sample when the
	// data is noisy; report immediate completion rather than negative time.
	if t100 <= lastX {
		return models.EstimationResult{
			Success:       true,
			Remaining:     0,
			Eta:           eta,
			RatePerSecond: slope,
		}
	}

	return models.EstimationResult{
		Success:       true,
		Remaining:     time.Duration((t100 - lastX) * float64(time.Second)),
		Eta:           eta,
		RatePerSecond: slope,
	}
}

func failure(reason string) models.EstimationResult {
	return models.EstimationResult{Success: false, ErrorReason: reason}
}
