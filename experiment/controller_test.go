package experiment_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/hermes/experiment"
)

func recordN(t *testing.T, c *experiment.Controller, experimentID, variantID string, impressions, conversions int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < impressions; i++ {
		require.NoError(t, c.RecordImpression(ctx, experimentID, variantID, "u-"+variantID+strconv.Itoa(i)))
	}
	for i := 0; i < conversions; i++ {
		require.NoError(t, c.RecordConversion(ctx, experimentID, variantID, "u-"+variantID+strconv.Itoa(i), 1))
	}
}

type fakePromoter struct {
	deployedPromptID, deployedVersion string
}

func (f *fakePromoter) Deploy(ctx context.Context, promptID, version, authorID string) error {
	f.deployedPromptID, f.deployedVersion = promptID, version
	return nil
}

func newTestExperiment(t *testing.T, autoPromote bool) (*experiment.Controller, *experiment.Experiment, *fakePromoter) {
	promoter := &fakePromoter{}
	c := experiment.New(nil, promoter)
	exp, err := c.Create(&experiment.Experiment{
		Name:                "button color",
		TrafficSplit:        experiment.StrategyEqual,
		TrafficPercentage:   100,
		MinSampleSize:       1000,
		ConfidenceThreshold: 0.95,
		AutoPromote:         autoPromote,
		Variants: []experiment.Variant{
			{ID: "A", Weight: 0.5, IsControl: true, PromptID: "p1", PromptVersion: "1.0.0"},
			{ID: "B", Weight: 0.5, PromptID: "p1", PromptVersion: "1.0.1"},
		},
	})
	require.NoError(t, err)
	_, err = c.Start(exp.ID)
	require.NoError(t, err)
	return c, exp, promoter
}

func TestCreateRejectsMultipleControls(t *testing.T) {
	c := experiment.New(nil, nil)
	_, err := c.Create(&experiment.Experiment{
		Variants: []experiment.Variant{
			{ID: "A", Weight: 0.5, IsControl: true},
			{ID: "B", Weight: 0.5, IsControl: true},
		},
	})
	require.Error(t, err)
}

func TestCreateNormalizesWeights(t *testing.T) {
	c := experiment.New(nil, nil)
	exp, err := c.Create(&experiment.Experiment{
		Variants: []experiment.Variant{
			{ID: "A", Weight: 2, IsControl: true},
			{ID: "B", Weight: 2},
		},
	})
	require.NoError(t, err)
	require.InDelta(t, 0.5, exp.Variants[0].Weight, 1e-9)
	require.InDelta(t, 0.5, exp.Variants[1].Weight, 1e-9)
}

// TestCheckAndPromotePromotesWinner implements spec.md scenario S5's
// end-to-end recommendation: a significant treatment wins and, with
// autoPromote, the controller deploys it and completes the experiment.
func TestCheckAndPromotePromotesWinner(t *testing.T) {
	ctx := context.Background()
	c, exp, promoter := newTestExperiment(t, true)

	recordN(t, c, exp.ID, "A", 1000, 100)
	recordN(t, c, exp.ID, "B", 1000, 150)

	result, err := c.CheckAndPromote(ctx, exp.ID)
	require.NoError(t, err)
	require.Equal(t, experiment.RecommendationPromoteWinner, result.Recommendation)
	require.Equal(t, "p1", promoter.deployedPromptID)
	require.Equal(t, "1.0.1", promoter.deployedVersion)
	require.Equal(t, experiment.StatusCompleted, exp.Status)
}
