package benchmark_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/hermes/benchmark"
)

func TestSimulateIsDeterministic(t *testing.T) {
	suite := benchmark.StandardSuites()["default"]
	a := benchmark.Simulate("p1", "1.0.0", "abc123", "default", suite)
	b := benchmark.Simulate("p1", "1.0.0", "abc123", "default", suite)
	require.Equal(t, a.Overall, b.Overall)
	require.Equal(t, a.Dimensions, b.Dimensions)
	require.Equal(t, "simulation", a.Environment)
}

func TestSimulateDiffersByFingerprint(t *testing.T) {
	suite := benchmark.StandardSuites()["default"]
	a := benchmark.Simulate("p1", "1.0.0", "fingerprint-one", "default", suite)
	b := benchmark.Simulate("p1", "1.0.0", "fingerprint-two", "default", suite)
	require.NotEqual(t, a.Overall, b.Overall)
}
