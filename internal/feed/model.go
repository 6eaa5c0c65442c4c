// Package feed implements the opportunity feed: ranked retrieval with
// seek-based cursor pagination, filter validation, and the sponsored
// density cap.
package feed

import (
	"time"

	"github.com/venzalabs/oppfeed/internal/ranking"
)

// Trust level buckets derived from the protocol trust score.
const (
	TrustLevelHigh   = "high"
	TrustLevelMedium = "medium"
	TrustLevelLow    = "low"
)

// Urgency buckets derived from the expiry horizon.
const (
	UrgencyEndingSoon = "ending_soon" // Expires within 72 hours
	UrgencyActive     = "active"      // Expires later than 72 hours out
	UrgencyEvergreen  = "evergreen"   // No expiry
)

// endingSoonHorizon is the expiry window that marks an opportunity as
// ending soon.
const endingSoonHorizon = 72 * time.Hour

// Opportunity is a DeFi opportunity as stored by the refresh job.
type Opportunity struct {
	ID     string   `json:"id"`
	Slug   string   `json:"slug"`
	Type   string   `json:"type"` // e.g. "airdrop", "staking", "lending", "lp"
	Chains []string `json:"chains"`

	TrustScore float64 `json:"trust_score"` // [0, 1]
	TrustLevel string  `json:"trust_level"`

	PublishedAt time.Time  `json:"published_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	Sponsored  bool     `json:"sponsored"`
	Difficulty string   `json:"difficulty"` // "beginner", "intermediate", "advanced"
	RewardMin  *float64 `json:"reward_min,omitempty"` // USD estimate
	RewardMax  *float64 `json:"reward_max,omitempty"`

	// Relevance inputs consumed by the ranking refresh.
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Featured    bool    `json:"featured"`
	Similarity  float64 `json:"similarity"` // [0, 1]

	// EffectiveUpdatedAt is set by the refresh job on every write and is
	// the column the snapshot watermark predicate runs against.
	EffectiveUpdatedAt time.Time `json:"effective_updated_at"`
}

// Urgency returns the urgency bucket for the opportunity at the given
// reference time.
func (o *Opportunity) Urgency(now time.Time) string {
	if o.ExpiresAt == nil {
		return UrgencyEvergreen
	}
	if o.ExpiresAt.Sub(now) <= endingSoonHorizon {
		return UrgencyEndingSoon
	}
	return UrgencyActive
}

// Expired reports whether the opportunity's expiry has passed at the given
// reference time. Opportunities without an expiry never expire.
func (o *Opportunity) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !o.ExpiresAt.After(now)
}

// rewardMax returns the sortable reward upper bound. NULL rewards sort as
// zero so the total order stays strict.
func (o *Opportunity) rewardMax() float64 {
	if o.RewardMax == nil {
		return 0
	}
	return *o.RewardMax
}

// TrustLevelFor maps a trust score to its display bucket.
func TrustLevelFor(score float64) string {
	switch {
	case score >= 0.75:
		return TrustLevelHigh
	case score >= 0.45:
		return TrustLevelMedium
	default:
		return TrustLevelLow
	}
}

// RankedRow is the scored record the refresh job writes for each
// opportunity: the raw signals, the weighted components, and the final
// rank score.
type RankedRow struct {
	OpportunityID string            `json:"opportunity_id"`
	Breakdown     ranking.Breakdown `json:"breakdown"`
	ComputedAt    time.Time         `json:"computed_at"`
}

// Row is one feed candidate: an opportunity joined with its ranked scores.
// This is the unit the repository returns and the pager emits.
type Row struct {
	Opportunity Opportunity `json:"opportunity"`
	Ranked      RankedRow   `json:"ranked"`
}
