package gate

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/hrygo/hermes/benchmark"
)

// CustomRegistry compiles and caches CEL predicates for Kind=Custom gates
// (spec §4.3 "custom | pluggable predicate"). Grounded on spec.md §9's note
// that custom gates need "a pluggable predicate", and on google/cel-go
// being a direct teacher dependency with no other natural home in this
// spec than exactly this class of problem.
type CustomRegistry struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCustomRegistry builds a CEL environment exposing the benchmark
// result's overall score, per-dimension scores, and regression flag as
// variables a predicate can reference.
func NewCustomRegistry() (*CustomRegistry, error) {
	env, err := cel.NewEnv(
		cel.Variable("overall", cel.DoubleType),
		cel.Variable("dimensions", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("is_regression", cel.BoolType),
		cel.Variable("gate_threshold", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("build CEL environment: %w", err)
	}
	return &CustomRegistry{env: env, programs: make(map[string]cel.Program)}, nil
}

// Register compiles expr (a CEL boolean expression) under name, failing
// fast if it does not type-check to bool.
func (c *CustomRegistry) Register(name, expr string) error {
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile custom gate %q: %w", name, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("custom gate %q must evaluate to bool, got %s", name, ast.OutputType())
	}
	program, err := c.env.Program(ast)
	if err != nil {
		return fmt.Errorf("build program for custom gate %q: %w", name, err)
	}
	c.mu.Lock()
	c.programs[name] = program
	c.mu.Unlock()
	return nil
}

// Eval runs the named predicate against r, returning its boolean result and
// a human-readable message.
func (c *CustomRegistry) Eval(name string, r *benchmark.Result) (bool, string, error) {
	c.mu.RLock()
	program, ok := c.programs[name]
	c.mu.RUnlock()
	if !ok {
		return false, "", fmt.Errorf("custom gate %q not registered", name)
	}

	out, _, err := program.Eval(map[string]any{
		"overall":        r.Overall,
		"dimensions":     r.Dimensions,
		"is_regression":  r.IsRegression,
		"gate_threshold": r.GateThreshold,
	})
	if err != nil {
		return false, "", fmt.Errorf("evaluate custom gate %q: %w", name, err)
	}
	ok2, isBool := out.Value().(bool)
	if !isBool {
		return false, "", fmt.Errorf("custom gate %q did not return bool (got %T)", name, out.Value())
	}
	if ok2 {
		return true, fmt.Sprintf("custom predicate %q satisfied", name), nil
	}
	return false, fmt.Sprintf("custom predicate %q not satisfied", name), nil
}
