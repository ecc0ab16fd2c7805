package experiment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/hermes/experiment"
)

// TestSignificanceDetectsWinner implements spec.md scenario S5: control
// 100/1000, treatment 150/1000, minSampleSize 1000 yields a significant
// result with lift +50%.
func TestSignificanceDetectsWinner(t *testing.T) {
	control := experiment.VariantStats{VariantID: "A", Impressions: 1000, Conversions: 100}
	treatment := experiment.VariantStats{VariantID: "B", Impressions: 1000, Conversions: 150}

	result := experiment.Significance(control, treatment, 1000)
	require.False(t, result.Insufficient)
	require.InDelta(t, 0.10, result.ControlRate, 1e-9)
	require.InDelta(t, 0.15, result.TreatmentRate, 1e-9)
	require.InDelta(t, 0.5, result.Lift, 1e-9)
	require.Less(t, result.PValue, 0.01)
	require.GreaterOrEqual(t, result.Confidence, 0.95)
}

func TestSignificanceInsufficientSamples(t *testing.T) {
	control := experiment.VariantStats{VariantID: "A", Impressions: 10, Conversions: 1}
	treatment := experiment.VariantStats{VariantID: "B", Impressions: 10, Conversions: 2}

	result := experiment.Significance(control, treatment, 1000)
	require.True(t, result.Insufficient)
}
