package stats

import (
	"math"

	"github.com/splitkit/splitkit/internal/store"
)

const (
	confidenceLevel = 0.95
	winnerAlpha     = 0.05 // p-value threshold for declaring a winner
)

// VariantResult contains statistics for a single variant. Rates, interval
// bounds and uplift are percentages.
type VariantResult struct {
	VariantID      string  `json:"variant_id"`
	IsControl      bool    `json:"is_control"`
	Visitors       int     `json:"visitors"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
	CILower        float64 `json:"ci_lower"`
	CIUpper        float64 `json:"ci_upper"`
	Uplift         float64 `json:"uplift"`  // relative to control, 0 for control
	PValue         float64 `json:"p_value"` // 1 for control vs itself
}

// ExperimentResults is the full analysis of an experiment.
type ExperimentResults struct {
	Variants         []VariantResult `json:"variants"`
	Winner           *string         `json:"winner,omitempty"` // variant ID
	Confidence       float64         `json:"confidence"`       // percent, (1-p)*100 for the winner
	Improvement      float64         `json:"improvement"`      // winner's uplift, percent
	Significant      bool            `json:"significant"`
	TotalVisitors    int             `json:"total_visitors"`
	TotalConversions int             `json:"total_conversions"`
	DurationDays     int             `json:"duration_days"` // span of recorded daily data
}

// Compute analyzes per-variant counts against the control. It returns nil
// when the input has no single control variant — the caller treats that as
// "not enough configuration to report", not a failure. The computation is
// pure: identical input yields identical output.
func Compute(counts []store.VariantCounts) *ExperimentResults {
	control := findControl(counts)
	if control == nil {
		return nil
	}

	controlRate := proportion(control.Conversions, control.Visitors)

	results := &ExperimentResults{
		Variants: make([]VariantResult, len(counts)),
	}

	var winner *VariantResult
	for i, c := range counts {
		rate := proportion(c.Conversions, c.Visitors)
		lower, upper := waldInterval(rate, c.Visitors)

		r := VariantResult{
			VariantID:      c.VariantID,
			IsControl:      c.IsControl,
			Visitors:       c.Visitors,
			Conversions:    c.Conversions,
			ConversionRate: rate * 100,
			CILower:        lower * 100,
			CIUpper:        upper * 100,
			PValue:         1,
		}

		if !c.IsControl {
			if controlRate > 0 {
				r.Uplift = (rate - controlRate) / controlRate * 100
			}
			r.PValue = TwoProportionPValue(c.Conversions, c.Visitors, control.Conversions, control.Visitors)
		}

		results.Variants[i] = r
		results.TotalVisitors += c.Visitors
		results.TotalConversions += c.Conversions

		if !r.IsControl && r.PValue < winnerAlpha && r.Uplift > 0 {
			if winner == nil || r.Uplift > winner.Uplift {
				winner = &results.Variants[i]
			}
		}
	}

	if winner != nil {
		id := winner.VariantID
		results.Winner = &id
		results.Confidence = (1 - winner.PValue) * 100
		results.Improvement = winner.Uplift
		results.Significant = true
	}

	results.DurationDays = durationDays(counts)
	return results
}

// TwoProportionPValue runs a pooled two-proportion z-test and returns the
// two-sided p-value. With no data on either side there is nothing to
// test and the p-value is 1.
func TwoProportionPValue(aConv, aVisitors, bConv, bVisitors int) float64 {
	if aVisitors == 0 || bVisitors == 0 {
		return 1
	}

	pA := proportion(aConv, aVisitors)
	pB := proportion(bConv, bVisitors)

	// Pooled proportion under the null hypothesis pA = pB
	pooled := float64(aConv+bConv) / float64(aVisitors+bVisitors)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(aVisitors) + 1/float64(bVisitors)))
	if se == 0 {
		// Pooled rate of exactly 0 or 1 means both observed rates are
		// identical; no evidence of a difference.
		return 1
	}

	z := math.Abs(pA-pB) / se
	return 2 * (1 - NormalCDF(z))
}

// waldInterval is the normal-approximation confidence interval around a
// proportion, clipped at 0 on the low side.
func waldInterval(rate float64, visitors int) (lower, upper float64) {
	if visitors == 0 {
		return 0, 0
	}
	margin := ZScore(confidenceLevel) * math.Sqrt(rate*(1-rate)/float64(visitors))
	lower = rate - margin
	if lower < 0 {
		lower = 0
	}
	return lower, rate + margin
}

func proportion(conversions, visitors int) float64 {
	if visitors == 0 {
		return 0
	}
	return float64(conversions) / float64(visitors)
}

// findControl returns the single control variant, or nil when zero or
// several variants are flagged as control.
func findControl(counts []store.VariantCounts) *store.VariantCounts {
	var control *store.VariantCounts
	for i := range counts {
		if counts[i].IsControl {
			if control != nil {
				return nil
			}
			control = &counts[i]
		}
	}
	return control
}

// durationDays spans the earliest to the latest recorded day across all
// variants, inclusive. Zero when no daily data was recorded.
func durationDays(counts []store.VariantCounts) int {
	var first, last *store.DailyCount
	for i := range counts {
		for j := range counts[i].Daily {
			d := &counts[i].Daily[j]
			if first == nil || d.Date.Before(first.Date) {
				first = d
			}
			if last == nil || d.Date.After(last.Date) {
				last = d
			}
		}
	}
	if first == nil {
		return 0
	}
	return int(last.Date.Sub(first.Date).Hours()/24) + 1
}
