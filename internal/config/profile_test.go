package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsToSimulationWithoutEvaluator(t *testing.T) {
	p := &Profile{Driver: "sqlite", DSN: "test.db", MaxConcurrentTasks: 5, CycleIntervalMinutes: 15}
	require.NoError(t, p.Validate())
	assert.True(t, p.SimulationOnly)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	p := &Profile{Driver: "oracle", DSN: "x", MaxConcurrentTasks: 1, CycleIntervalMinutes: 1}
	require.Error(t, p.Validate())
}

func TestValidateNormalizesUnknownMode(t *testing.T) {
	p := &Profile{Mode: "bogus", Driver: "sqlite", DSN: "x", MaxConcurrentTasks: 1, CycleIntervalMinutes: 1}
	require.NoError(t, p.Validate())
	assert.Equal(t, "demo", p.Mode)
}
