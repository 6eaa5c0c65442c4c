package ranking

import (
	"math"
	"time"
)

// RawSignals holds the three normalized inputs to the rank score.
// Each value is expected in [0, 1]; out-of-range or NaN values are
// clamped before weighting.
type RawSignals struct {
	Relevance float64 `json:"relevance"` // Engagement/similarity signal [0, 1]
	Trust     float64 `json:"trust"`     // Protocol trust score [0, 1]
	Freshness float64 `json:"freshness"` // Time-decay signal [0, 1]
}

// Breakdown exposes the raw and weighted intermediate values of a rank
// score computation alongside the final score.
type Breakdown struct {
	RelevanceRaw float64 `json:"relevance_raw"`
	TrustRaw     float64 `json:"trust_raw"`
	FreshnessRaw float64 `json:"freshness_raw"`

	RelevanceWeighted float64 `json:"relevance_weighted"`
	TrustWeighted     float64 `json:"trust_weighted"`
	FreshnessWeighted float64 `json:"freshness_weighted"`

	RankScore float64 `json:"rank_score"`
}

// Clamp01 normalizes a raw signal into [0, 1].
// NaN is treated as 0 (undefined inputs are never propagated).
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.0
	}
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

// Score computes the composite rank score for a set of raw signals.
// If weights is nil, the default 0.60/0.25/0.15 configuration is used.
//
// The returned Breakdown carries the clamped raw values and each weighted
// component so callers can inspect or reweigh without recomputing.
// The score is strictly monotonic in each raw input (holding the others
// fixed) as long as every weight is positive.
func Score(raw RawSignals, weights *Weights) Breakdown {
	if weights == nil {
		weights = DefaultWeights()
	}

	b := Breakdown{
		RelevanceRaw: Clamp01(raw.Relevance),
		TrustRaw:     Clamp01(raw.Trust),
		FreshnessRaw: Clamp01(raw.Freshness),
	}

	b.RelevanceWeighted = b.RelevanceRaw * weights.Relevance
	b.TrustWeighted = b.TrustRaw * weights.Trust
	b.FreshnessWeighted = b.FreshnessRaw * weights.Freshness
	b.RankScore = b.RelevanceWeighted + b.TrustWeighted + b.FreshnessWeighted

	return b
}

// Reweigh applies an alternative weight set to the raw values already
// captured in the breakdown, producing a new breakdown without
// renormalizing the inputs. If weights is nil, defaults are used.
func (b Breakdown) Reweigh(weights *Weights) Breakdown {
	return Score(RawSignals{
		Relevance: b.RelevanceRaw,
		Trust:     b.TrustRaw,
		Freshness: b.FreshnessRaw,
	}, weights)
}

// RelevanceSignal derives the normalized relevance input from engagement
// and similarity data.
//
// Formula: relevance = (ctr * 0.45) + (similarity * 0.35) + (featured_bonus)
// where ctr = clicks/impressions (0 when there are no impressions) and
// featured opportunities receive a flat 0.20 bonus. The result is clamped
// to [0, 1].
func RelevanceSignal(impressions, clicks int64, featured bool, similarity float64) float64 {
	ctr := 0.0
	if impressions > 0 && clicks > 0 {
		ctr = float64(clicks) / float64(impressions)
		if ctr > 1.0 {
			ctr = 1.0
		}
	}

	score := (ctr * 0.45) + (Clamp01(similarity) * 0.35)
	if featured {
		score += 0.20
	}

	return Clamp01(score)
}

// FreshnessSignal computes a time-decay score normalized to [0, 1].
// Recently published opportunities receive higher scores.
//
// Formula: 1 - (age / decayWindow) clamped to [0, 1], evaluated at now.
// Opportunities published in the future score 1.0 until their publish time
// passes. A non-positive decay window treats every opportunity as fresh.
func FreshnessSignal(publishedAt time.Time, decayWindow time.Duration, now time.Time) float64 {
	if decayWindow <= 0 {
		return 1.0
	}

	age := now.Sub(publishedAt)
	if age <= 0 {
		return 1.0
	}

	weight := 1.0 - (float64(age) / float64(decayWindow))
	if weight < 0.0 {
		return 0.0
	}
	return weight
}
