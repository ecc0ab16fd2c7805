package experiment

import "math"

// Significance runs a two-sided chi-square test on the 2x2 conversion
// contingency table between control and treatment (spec §4.4). If total
// impressions across both variants is below minSampleSize, it returns
// Insufficient=true instead of a verdict.
func Significance(control, treatment VariantStats, minSampleSize int) SignificanceResult {
	result := SignificanceResult{VariantID: treatment.VariantID}

	total := control.Impressions + treatment.Impressions
	if total < minSampleSize {
		result.Insufficient = true
		return result
	}

	result.ControlRate = control.ConversionRate()
	result.TreatmentRate = treatment.ConversionRate()
	if result.ControlRate != 0 {
		result.Lift = (result.TreatmentRate - result.ControlRate) / result.ControlRate
	}

	stat := chiSquare2x2(control, treatment)
	result.PValue = chiSquarePValue1DF(stat)
	result.Confidence = 1 - result.PValue
	return result
}

// chiSquare2x2 computes Pearson's chi-square statistic for the 2x2 table
// {control converted, control not, treatment converted, treatment not},
// grounded on the Python original's ab_testing.py _chi_square_test
// contingency-table construction.
func chiSquare2x2(control, treatment VariantStats) float64 {
	a := float64(control.Conversions)
	b := float64(control.Impressions - control.Conversions)
	c := float64(treatment.Conversions)
	d := float64(treatment.Impressions - treatment.Conversions)
	n := a + b + c + d
	if n == 0 {
		return 0
	}
	// Standard 2x2 closed form with Yates' continuity correction.
	numerator := n * math.Pow(math.Abs(a*d-b*c)-n/2, 2)
	denominator := (a + b) * (c + d) * (a + c) * (b + d)
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// chiSquarePValue1DF returns the upper-tail p-value for a chi-square
// statistic with one degree of freedom. This resolves spec.md §9's Open
// Question in favor of "a proper implementation" rather than the Python
// original's coarse bucketed lookup table: for df=1, a chi-square variate
// is the square of a standard normal variate, so its upper tail is exactly
// erfc(sqrt(stat/2)) — a standard closed form requiring only math.Erfc.
func chiSquarePValue1DF(stat float64) float64 {
	if stat <= 0 {
		return 1
	}
	return math.Erfc(math.Sqrt(stat / 2))
}
