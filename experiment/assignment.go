package experiment

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
)

// StatsLookup gives the assignment strategies read access to current
// variant statistics, supplied by the Controller.
type StatsLookup interface {
	Stats(variantID string) VariantStats
}

// toFloat01 maps an MD5 digest onto [0,1), grounded on the Python
// original's ab_testing.py _hash_for_traffic/_hash_for_variant (first 8
// bytes of the digest interpreted as an unsigned integer, normalised by
// 2^64).
func toFloat01(input string) float64 {
	sum := md5.Sum([]byte(input))
	v := binary.BigEndian.Uint64(sum[:8])
	return float64(v) / float64(math.MaxUint64)
}

// AssignVariant implements spec §4.4's assignVariant: deterministic and
// side-effect-free variant selection for a user within a running
// experiment.
func AssignVariant(exp *Experiment, userID string, stats StatsLookup, epsilon float64) *Variant {
	if exp.Status != StatusRunning {
		return nil
	}
	trafficHash := toFloat01(fmt.Sprintf("%s:%s", userID, exp.ID))
	if trafficHash > exp.TrafficPercentage/100 {
		return nil
	}
	if len(exp.Variants) == 0 {
		return nil
	}

	variantHash := toFloat01(fmt.Sprintf("variant:%s:%s", userID, exp.ID))

	switch exp.TrafficSplit {
	case StrategyWeighted:
		return assignWeighted(exp.Variants, variantHash)
	case StrategyEpsilonGreedy:
		return assignEpsilonGreedy(exp.Variants, stats, epsilon)
	case StrategyThompson:
		return assignThompson(exp.Variants, stats)
	case StrategyUCB1:
		return assignUCB1(exp.Variants, stats)
	default: // StrategyEqual
		return assignEqual(exp.Variants, variantHash)
	}
}

func assignEqual(variants []Variant, variantHash float64) *Variant {
	idx := int(variantHash * float64(len(variants)))
	if idx >= len(variants) {
		idx = len(variants) - 1
	}
	return &variants[idx]
}

func assignWeighted(variants []Variant, variantHash float64) *Variant {
	var cumulative float64
	for i := range variants {
		cumulative += variants[i].Weight
		if variantHash <= cumulative {
			return &variants[i]
		}
	}
	return &variants[len(variants)-1]
}

// assignEpsilonGreedy picks uniformly at random with probability epsilon,
// else the variant with the best current conversion rate. Randomness here
// is intentionally non-deterministic per call (spec §4.4: "with
// probability ε (random at call time)").
func assignEpsilonGreedy(variants []Variant, stats StatsLookup, epsilon float64) *Variant {
	if epsilon <= 0 {
		epsilon = 0.1
	}
	if rand.Float64() < epsilon {
		return &variants[rand.Intn(len(variants))]
	}
	best := 0
	bestRate := -1.0
	for i := range variants {
		rate := stats.Stats(variants[i].ID).ConversionRate()
		if rate > bestRate {
			bestRate = rate
			best = i
		}
	}
	return &variants[best]
}

// assignThompson samples from Beta(conversions+1, impressions-conversions+1)
// per variant and picks the maximum draw (spec §4.4 thompson-sampling).
func assignThompson(variants []Variant, stats StatsLookup) *Variant {
	best := 0
	bestDraw := -1.0
	for i := range variants {
		s := stats.Stats(variants[i].ID)
		failures := s.Impressions - s.Conversions
		if failures < 0 {
			failures = 0
		}
		draw := sampleBeta(float64(s.Conversions+1), float64(failures+1))
		if draw > bestDraw {
			bestDraw = draw
			best = i
		}
	}
	return &variants[best]
}

// assignUCB1 picks argmax(p + c*sqrt(ln(N)/n)); variants with zero
// impressions are tried first (spec §4.4 ucb(c)).
func assignUCB1(variants []Variant, stats StatsLookup) *Variant {
	const c = 2.0
	var total int
	statsByVariant := make([]VariantStats, len(variants))
	for i := range variants {
		statsByVariant[i] = stats.Stats(variants[i].ID)
		total += statsByVariant[i].Impressions
	}
	for i, s := range statsByVariant {
		if s.Impressions == 0 {
			return &variants[i]
		}
	}

	best := 0
	bestScore := math.Inf(-1)
	for i, s := range statsByVariant {
		score := s.ConversionRate() + c*math.Sqrt(math.Log(float64(total))/float64(s.Impressions))
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return &variants[best]
}

// sampleBeta draws from Beta(alpha, beta) via two Gamma(alpha,1) and
// Gamma(beta,1) draws (X/(X+Y) ~ Beta(alpha,beta)). Stdlib-only per
// DESIGN.md: no distribution library appears anywhere in the example pack.
func sampleBeta(alpha, beta float64) float64 {
	x := sampleGamma(alpha)
	y := sampleGamma(beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) via the Marsaglia-Tsang method,
// valid for shape >= 1; shape < 1 is boosted via the standard
// Gamma(shape+1)*U^(1/shape) transform.
func sampleGamma(shape float64) float64 {
	if shape < 1 {
		u := rand.Float64()
		return sampleGamma(shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rand.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rand.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
