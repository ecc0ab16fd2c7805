package gate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/hermes/benchmark"
	"github.com/hrygo/hermes/gate"
)

func TestCustomRegistryEvalsPredicate(t *testing.T) {
	reg, err := gate.NewCustomRegistry()
	require.NoError(t, err)
	require.NoError(t, reg.Register("safety-floor", `dimensions["safety"] >= 0.9 && !is_regression`))

	ok, _, err := reg.Eval("safety-floor", &benchmark.Result{Dimensions: map[string]float64{"safety": 0.95}})
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, err = reg.Eval("safety-floor", &benchmark.Result{Dimensions: map[string]float64{"safety": 0.5}})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCustomRegistryRejectsNonBoolExpression(t *testing.T) {
	reg, err := gate.NewCustomRegistry()
	require.NoError(t, err)
	require.Error(t, reg.Register("bad", `overall + 1.0`))
}
