package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/hrygo/hermes/benchmark"
)

// ResultLookup is the narrow slice of benchmark.Driver the Evaluator needs:
// the latest result for a prompt.
type ResultLookup interface {
	LatestResult(ctx context.Context, promptID string) (*benchmark.Result, error)
}

// Evaluator implements spec §4.3: it reads the latest benchmark result for
// a prompt and runs a Config pipeline against it.
type Evaluator struct {
	results ResultLookup
	custom  *CustomRegistry
}

// New constructs an Evaluator. custom may be nil if no Kind=Custom gates
// are configured.
func New(results ResultLookup, custom *CustomRegistry) *Evaluator {
	return &Evaluator{results: results, custom: custom}
}

// Evaluate runs gates against promptID's latest benchmark result and
// produces a Report, per spec §4.3's aggregation rule. The report is a
// pure function of its inputs and is never persisted here.
func (e *Evaluator) Evaluate(ctx context.Context, promptID, version string, gates []Config) (*Report, error) {
	result, err := e.results.LatestResult(ctx, promptID)
	noResult := err != nil

	evaluations := make([]Evaluation, 0, len(gates))
	var enabledCount int
	for _, g := range gates {
		if !g.Enabled {
			evaluations = append(evaluations, Evaluation{GateID: g.ID, Kind: g.Kind, Status: StatusSkipped, Blocking: g.Blocking})
			continue
		}
		enabledCount++
		if noResult {
			evaluations = append(evaluations, Evaluation{GateID: g.ID, Kind: g.Kind, Status: StatusPending, Blocking: g.Blocking, Message: "no benchmark result for prompt"})
			continue
		}
		evaluations = append(evaluations, e.evaluateGate(g, result))
	}

	report := &Report{PromptID: promptID, Version: version, Evaluations: evaluations}
	aggregate(report, enabledCount)
	return report, nil
}

func (e *Evaluator) evaluateGate(g Config, r *benchmark.Result) Evaluation {
	switch g.Kind {
	case KindScoreThreshold:
		if r.Overall >= g.Threshold {
			return pass(g, fmt.Sprintf("overall %.3f >= threshold %.3f", r.Overall, g.Threshold))
		}
		return fail(g, fmt.Sprintf("overall %.3f < threshold %.3f", r.Overall, g.Threshold))

	case KindRegression:
		pct := g.Pct
		if pct == 0 {
			pct = 0.05
		}
		if r.IsRegression {
			return fail(g, "benchmark result flagged as regression")
		}
		if r.Delta != nil && *r.Delta < -pct {
			return fail(g, fmt.Sprintf("delta %.3f below -%.3f", *r.Delta, pct))
		}
		return pass(g, "no regression")

	case KindFreshness:
		maxAge := time.Duration(g.MaxAgeS) * time.Second
		if maxAge <= 0 {
			maxAge = 24 * time.Hour
		}
		age := time.Since(r.ExecutedAt)
		if age <= maxAge {
			return pass(g, fmt.Sprintf("result age %s within %s", age.Round(time.Minute), maxAge))
		}
		return warn(g, fmt.Sprintf("result age %s exceeds %s", age.Round(time.Minute), maxAge))

	case KindDimensionMinimum:
		score, ok := r.Dimensions[g.Dimension]
		if !ok {
			return Evaluation{GateID: g.ID, Kind: g.Kind, Status: StatusSkipped, Blocking: g.Blocking, Message: fmt.Sprintf("dimension %q absent", g.Dimension)}
		}
		if score >= g.Threshold {
			return pass(g, fmt.Sprintf("%s %.3f >= threshold %.3f", g.Dimension, score, g.Threshold))
		}
		return fail(g, fmt.Sprintf("%s %.3f < threshold %.3f", g.Dimension, score, g.Threshold))

	case KindCustom:
		if e.custom == nil {
			return Evaluation{GateID: g.ID, Kind: g.Kind, Status: StatusSkipped, Blocking: g.Blocking, Message: "no custom predicate registry configured"}
		}
		ok, msg, err := e.custom.Eval(g.Custom, r)
		if err != nil {
			return Evaluation{GateID: g.ID, Kind: g.Kind, Status: StatusSkipped, Blocking: g.Blocking, Message: err.Error()}
		}
		if ok {
			return pass(g, msg)
		}
		return fail(g, msg)

	default:
		return Evaluation{GateID: g.ID, Kind: g.Kind, Status: StatusSkipped, Blocking: g.Blocking, Message: "unknown gate kind"}
	}
}

func pass(g Config, msg string) Evaluation {
	return Evaluation{GateID: g.ID, Kind: g.Kind, Status: StatusPassed, Blocking: g.Blocking, Message: msg}
}
func fail(g Config, msg string) Evaluation {
	return Evaluation{GateID: g.ID, Kind: g.Kind, Status: StatusFailed, Blocking: g.Blocking, Message: msg}
}
func warn(g Config, msg string) Evaluation {
	return Evaluation{GateID: g.ID, Kind: g.Kind, Status: StatusWarning, Blocking: g.Blocking, Message: msg}
}

// aggregate implements spec §4.3's aggregation rule exactly.
func aggregate(report *Report, enabledCount int) {
	var blockingFailures, anyFailures, warnings, pending int
	for _, e := range report.Evaluations {
		switch e.Status {
		case StatusFailed:
			anyFailures++
			if e.Blocking {
				blockingFailures++
			}
		case StatusWarning:
			warnings++
		case StatusPending:
			pending++
		}
	}

	switch {
	case blockingFailures > 0:
		report.Overall, report.CanDeploy = StatusFailed, false
	case anyFailures > 0:
		report.Overall, report.CanDeploy = StatusWarning, true
	case warnings > 0:
		report.Overall, report.CanDeploy = StatusWarning, true
	case pending > 0 && pending == enabledCount:
		report.Overall, report.CanDeploy = StatusPending, false
	default:
		report.Overall, report.CanDeploy = StatusPassed, true
	}

	report.Summary = summarize(report, blockingFailures, anyFailures, warnings, pending)
}

// summarize renders a one-line human summary, grounded on quality_gates.py's
// _generate_summary.
func summarize(report *Report, blocking, failures, warnings, pending int) string {
	switch report.Overall {
	case StatusFailed:
		return fmt.Sprintf("%d blocking failure(s) of %d gate(s); deploy blocked", blocking, len(report.Evaluations))
	case StatusWarning:
		return fmt.Sprintf("%d failure(s), %d warning(s) of %d gate(s); deploy permitted", failures, warnings, len(report.Evaluations))
	case StatusPending:
		return fmt.Sprintf("%d gate(s) pending: no benchmark result yet", pending)
	default:
		return fmt.Sprintf("all %d gate(s) passed", len(report.Evaluations))
	}
}
