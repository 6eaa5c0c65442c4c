// Package eligibility computes a wallet's eligibility score and label for
// an opportunity from on-chain activity signals.
package eligibility

import "fmt"

// Component weights. The allowlist bonus is additive on top of the base
// components, so a fully qualified wallet scores 1.05.
const (
	WeightChainPresence = 0.40
	WeightWalletAge     = 0.25
	WeightTxCount       = 0.20
	WeightHoldings      = 0.15
	AllowlistBonus      = 0.05
)

// Signal saturation points: wallet age and transaction count contribute
// linearly up to these caps and are flat beyond them.
const (
	WalletAgeCapDays = 30.0
	TxCountCap       = 10.0
)

// Label thresholds.
const (
	LikelyThreshold = 0.70
	MaybeThreshold  = 0.40
)

// labelEpsilon absorbs floating-point drift at the exact thresholds: a
// score within epsilon of a boundary takes the higher label.
const labelEpsilon = 1e-9

// Eligibility labels, from strongest to weakest.
const (
	LabelLikely   = "likely"
	LabelMaybe    = "maybe"
	LabelUnlikely = "unlikely"
)

// Signals are the per-wallet inputs to the scorer. Negative or oversized
// numeric inputs are clamped during scoring, never rejected.
type Signals struct {
	WalletAgeDays   float64  `json:"wallet_age_days"`
	TxCount         int64    `json:"tx_count"`
	HoldsOnChain    bool     `json:"holds_on_chain"`
	ActiveChains    []string `json:"active_chains"`
	AllowlistProofs int      `json:"allowlist_proofs"`
	RequiredChain   string   `json:"required_chain"`
}

// HasActivityOnChain reports whether the wallet has activity on the given
// chain.
func (s *Signals) HasActivityOnChain(chain string) bool {
	for _, c := range s.ActiveChains {
		if c == chain {
			return true
		}
	}
	return false
}

// Breakdown holds the weighted contribution of each component.
type Breakdown struct {
	ChainPresence float64 `json:"chain_presence"`
	WalletAge     float64 `json:"wallet_age"`
	TxCount       float64 `json:"tx_count"`
	Holdings      float64 `json:"holdings"`
	Allowlist     float64 `json:"allowlist"`
}

// Sum returns the total of all component contributions.
func (b Breakdown) Sum() float64 {
	return b.ChainPresence + b.WalletAge + b.TxCount + b.Holdings + b.Allowlist
}

// Result is the scored eligibility of one (wallet, opportunity) pair.
// Score is in [0, 1.05]; Reasons holds one entry per nonzero component.
type Result struct {
	Score     float64   `json:"score"`
	Label     string    `json:"label"`
	Breakdown Breakdown `json:"breakdown"`
	Reasons   []string  `json:"reasons"`
}

// Score computes the eligibility result for the given signals. Pure and
// deterministic: identical signals always yield the identical result, so
// results are cacheable per (wallet, opportunity) pair.
func Score(s Signals) Result {
	ageDays := clamp(s.WalletAgeDays, 0, WalletAgeCapDays)
	txCount := clamp(float64(s.TxCount), 0, TxCountCap)

	var b Breakdown
	var reasons []string

	if s.HasActivityOnChain(s.RequiredChain) {
		b.ChainPresence = WeightChainPresence
		reasons = append(reasons, fmt.Sprintf("active on required chain %s", s.RequiredChain))
	}
	if ageDays > 0 {
		b.WalletAge = WeightWalletAge * ageDays / WalletAgeCapDays
		reasons = append(reasons, fmt.Sprintf("wallet age %.0f of %.0f days", ageDays, WalletAgeCapDays))
	}
	if txCount > 0 {
		b.TxCount = WeightTxCount * txCount / TxCountCap
		reasons = append(reasons, fmt.Sprintf("%.0f of %.0f transactions", txCount, TxCountCap))
	}
	if s.HoldsOnChain {
		b.Holdings = WeightHoldings
		reasons = append(reasons, "holds assets on chain")
	}
	if s.AllowlistProofs > 0 {
		b.Allowlist = AllowlistBonus
		reasons = append(reasons, fmt.Sprintf("%d allowlist proof(s)", s.AllowlistProofs))
	}

	score := b.Sum()
	return Result{
		Score:     score,
		Label:     LabelFor(score),
		Breakdown: b,
		Reasons:   reasons,
	}
}

// LabelFor maps a score to its eligibility label. Scores within epsilon of
// a threshold take the higher label so floating-point drift never flips a
// boundary case downward.
func LabelFor(score float64) string {
	switch {
	case score >= LikelyThreshold-labelEpsilon:
		return LabelLikely
	case score >= MaybeThreshold-labelEpsilon:
		return LabelMaybe
	default:
		return LabelUnlikely
	}
}

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
