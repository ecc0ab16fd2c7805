package experiment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/hermes/internal/herrors"
)

// Controller implements C4: experiment lifecycle, variant assignment,
// metric recording, significance, and stop/auto-promote (spec §4.4).
// Grounded on the Python original's ABTestingManager.
type Controller struct {
	driver   Driver
	promoter PromptPromoter

	mu          sync.RWMutex
	experiments map[string]*Experiment
	stats       map[string]map[string]VariantStats // experimentID -> variantID -> stats
	epsilon     float64
}

// New constructs a Controller. promoter may be nil if auto-promotion is
// never used.
func New(driver Driver, promoter PromptPromoter) *Controller {
	return &Controller{
		driver:      driver,
		promoter:    promoter,
		experiments: make(map[string]*Experiment),
		stats:       make(map[string]map[string]VariantStats),
		epsilon:     0.1,
	}
}

// Create validates and registers a new Experiment in StatusDraft
// (spec §4.4 invariants: weights normalized to sum 1, exactly one control).
func (c *Controller) Create(exp *Experiment) (*Experiment, error) {
	if len(exp.Variants) == 0 {
		return nil, herrors.Invalidf("experiment requires at least one variant")
	}
	var controlCount int
	var weightSum float64
	for _, v := range exp.Variants {
		if v.IsControl {
			controlCount++
		}
		weightSum += v.Weight
	}
	if controlCount != 1 {
		return nil, herrors.Invalidf("exactly one variant must be isControl, got %d", controlCount)
	}
	if weightSum <= 0 {
		return nil, herrors.Invalidf("variant weights must sum to a positive value")
	}
	for i := range exp.Variants {
		exp.Variants[i].Weight /= weightSum
		if exp.Variants[i].ID == "" {
			exp.Variants[i].ID = uuid.NewString()
		}
	}

	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	exp.Status = StatusDraft
	exp.CreatedAt = time.Now().UTC()
	if exp.TrafficPercentage <= 0 {
		exp.TrafficPercentage = 100
	}
	if exp.ConfidenceThreshold <= 0 {
		exp.ConfidenceThreshold = 0.95
	}

	c.mu.Lock()
	c.experiments[exp.ID] = exp
	c.stats[exp.ID] = make(map[string]VariantStats)
	for _, v := range exp.Variants {
		c.stats[exp.ID][v.ID] = VariantStats{VariantID: v.ID}
	}
	c.mu.Unlock()
	return exp, nil
}

// transitionStatus applies a validated status move under the experiment's
// own lock scope, per spec §4.4's invariant table.
func (c *Controller) transitionStatus(id string, to Status) (*Experiment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.experiments[id]
	if !ok {
		return nil, herrors.NotFoundf("experiment %q not found", id)
	}
	if !CanTransition(exp.Status, to) {
		return nil, herrors.Policyf("illegal experiment transition %s -> %s", exp.Status, to)
	}
	exp.Status = to
	now := time.Now().UTC()
	switch to {
	case StatusRunning:
		if exp.StartedAt == nil {
			exp.StartedAt = &now
		}
	case StatusCompleted, StatusCancelled:
		exp.EndedAt = &now
	}
	return exp, nil
}

func (c *Controller) Start(id string) (*Experiment, error)  { return c.transitionStatus(id, StatusRunning) }
func (c *Controller) Pause(id string) (*Experiment, error)  { return c.transitionStatus(id, StatusPaused) }
func (c *Controller) Resume(id string) (*Experiment, error) { return c.transitionStatus(id, StatusRunning) }
func (c *Controller) Cancel(id string) (*Experiment, error) { return c.transitionStatus(id, StatusCancelled) }

func (c *Controller) get(id string) (*Experiment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	exp, ok := c.experiments[id]
	if !ok {
		return nil, herrors.NotFoundf("experiment %q not found", id)
	}
	return exp, nil
}

// statsLookupFor implements StatsLookup for one experiment's assignment
// strategies; its Stats method takes the Controller's read lock itself, so
// callers must not already hold the Controller's lock.
type statsLookupFor struct {
	c            *Controller
	experimentID string
}

func (s statsLookupFor) Stats(variantID string) VariantStats {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	return s.c.stats[s.experimentID][variantID]
}

// Assign implements spec §4.4 assignVariant for experimentID/userID.
func (c *Controller) Assign(exp *Experiment, userID string) *Variant {
	return AssignVariant(exp, userID, statsLookupFor{c: c, experimentID: exp.ID}, c.epsilon)
}

// RecordImpression appends an impression ExperimentEvent and updates the
// in-memory variant statistics (spec §4.4).
func (c *Controller) RecordImpression(ctx context.Context, experimentID, variantID, userID string) error {
	return c.record(ctx, experimentID, variantID, userID, EventImpression, "", 0, func(s *VariantStats) {
		s.Impressions++
	})
}

// RecordConversion appends a conversion event (spec §4.4).
func (c *Controller) RecordConversion(ctx context.Context, experimentID, variantID, userID string, value float64) error {
	return c.record(ctx, experimentID, variantID, userID, EventConversion, "", value, func(s *VariantStats) {
		s.Conversions++
		s.TotalValue += value
	})
}

// RecordMetric appends a custom metric event (spec §4.4).
func (c *Controller) RecordMetric(ctx context.Context, experimentID, variantID, userID, metricID string, value float64) error {
	return c.record(ctx, experimentID, variantID, userID, EventCustom, metricID, value, func(s *VariantStats) {
		s.TotalLatency += value
	})
}

func (c *Controller) record(ctx context.Context, experimentID, variantID, userID string, eventType EventType, metricID string, value float64, apply func(*VariantStats)) error {
	event := &ExperimentEvent{
		ExperimentID: experimentID,
		VariantID:    variantID,
		UserID:       userID,
		EventType:    eventType,
		Value:        value,
		MetricID:     metricID,
		Timestamp:    time.Now().UTC(),
	}
	if c.driver != nil {
		if err := c.driver.InsertEvent(ctx, event); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	byVariant, ok := c.stats[experimentID]
	if !ok {
		return herrors.NotFoundf("experiment %q not found", experimentID)
	}
	s := byVariant[variantID]
	s.VariantID = variantID
	apply(&s)
	byVariant[variantID] = s
	return nil
}

// CheckAndPromote evaluates significance between control and every
// treatment variant, returning a Recommendation the caller (typically the
// Agent) can act on. The experiment keeps running unless AutoPromote is set
// and the recommendation is to promote a winner: then the winner is deployed
// and the experiment is marked completed.
func (c *Controller) CheckAndPromote(ctx context.Context, experimentID string) (*Result, error) {
	exp, err := c.get(experimentID)
	if err != nil {
		return nil, err
	}
	result := c.computeResult(exp)
	if exp.AutoPromote && result.Recommendation == RecommendationPromoteWinner && c.promoter != nil {
		winner := findVariant(exp.Variants, *result.WinnerVariantID)
		if winner != nil {
			if err := c.promoter.Deploy(ctx, winner.PromptID, winner.PromptVersion, "experiment-controller"); err != nil {
				return result, err
			}
			if _, err := c.transitionStatus(experimentID, StatusCompleted); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// StopExperiment implements spec §4.4 stopExperiment: transitions to
// completed and computes the final result.
func (c *Controller) StopExperiment(ctx context.Context, experimentID string) (*Result, error) {
	exp, err := c.get(experimentID)
	if err != nil {
		return nil, err
	}
	result := c.computeResult(exp)

	c.mu.Lock()
	exp.Result = result
	exp.WinnerVariantID = result.WinnerVariantID
	c.mu.Unlock()

	if _, err := c.transitionStatus(experimentID, StatusCompleted); err != nil {
		return result, err
	}
	return result, nil
}

func (c *Controller) computeResult(exp *Experiment) *Result {
	c.mu.RLock()
	statsByVariant := c.stats[exp.ID]
	c.mu.RUnlock()

	control := findControl(exp.Variants)
	if control == nil {
		return &Result{Recommendation: RecommendationNoWinner}
	}
	controlStats := statsByVariant[control.ID]

	var significances []SignificanceResult
	var bestRate float64 = controlStats.ConversionRate()
	var winnerID *string
	for _, v := range exp.Variants {
		if v.ID == control.ID {
			continue
		}
		treatmentStats := statsByVariant[v.ID]
		sig := Significance(controlStats, treatmentStats, exp.MinSampleSize)
		sig.VariantID = v.ID
		sig.Significant = !sig.Insufficient && sig.Confidence >= exp.ConfidenceThreshold
		significances = append(significances, sig)

		if sig.Significant && treatmentStats.ConversionRate() > bestRate {
			bestRate = treatmentStats.ConversionRate()
			id := v.ID
			winnerID = &id
		}
	}

	recommendation := RecommendationNoWinner
	if winnerID != nil {
		recommendation = RecommendationPromoteWinner
	} else if anyInsufficient(significances) {
		recommendation = RecommendationKeepRunning
	}

	return &Result{WinnerVariantID: winnerID, Significances: significances, Recommendation: recommendation}
}

func findControl(variants []Variant) *Variant {
	for i := range variants {
		if variants[i].IsControl {
			return &variants[i]
		}
	}
	return nil
}

func findVariant(variants []Variant, id string) *Variant {
	for i := range variants {
		if variants[i].ID == id {
			return &variants[i]
		}
	}
	return nil
}

func anyInsufficient(sigs []SignificanceResult) bool {
	for _, s := range sigs {
		if s.Insufficient {
			return true
		}
	}
	return false
}
