package feed

import (
	"errors"
	"testing"
	"time"
)

func TestParseFilters_AllKeys(t *testing.T) {
	raw := map[string]interface{}{
		"type":          []interface{}{"airdrop", "staking"},
		"chain":         "ethereum",
		"trust_min":     0.5,
		"reward_min":    100.0,
		"reward_max":    5000.0,
		"urgency":       []interface{}{"ending_soon", "active"},
		"eligible_only": true,
		"difficulty":    []interface{}{"beginner"},
		"sort":          "expires_at",
	}

	f, sortKey, err := ParseFilters(raw)
	if err != nil {
		t.Fatalf("ParseFilters returned error: %v", err)
	}

	if len(f.Types) != 2 || f.Types[0] != "airdrop" {
		t.Errorf("Types = %v", f.Types)
	}
	if len(f.Chains) != 1 || f.Chains[0] != "ethereum" {
		t.Errorf("Chains = %v", f.Chains)
	}
	if f.TrustMin != 0.5 {
		t.Errorf("TrustMin = %v", f.TrustMin)
	}
	if f.RewardMin == nil || *f.RewardMin != 100.0 {
		t.Errorf("RewardMin = %v", f.RewardMin)
	}
	if f.RewardMax == nil || *f.RewardMax != 5000.0 {
		t.Errorf("RewardMax = %v", f.RewardMax)
	}
	if !f.EligibleOnly {
		t.Error("EligibleOnly = false, want true")
	}
	if sortKey != SortExpiresAt {
		t.Errorf("sort = %v, want %v", sortKey, SortExpiresAt)
	}
}

func TestParseFilters_EmptyDefaults(t *testing.T) {
	f, sortKey, err := ParseFilters(map[string]interface{}{})
	if err != nil {
		t.Fatalf("ParseFilters returned error: %v", err)
	}
	if sortKey != DefaultSort {
		t.Errorf("sort = %v, want default %v", sortKey, DefaultSort)
	}
	if f.TrustMin != 0 || len(f.Types) != 0 {
		t.Errorf("expected zero filters, got %+v", f)
	}
}

func TestParseFilters_UnknownKeyRejected(t *testing.T) {
	_, _, err := ParseFilters(map[string]interface{}{"trsut_min": 0.5})
	if !errors.Is(err, ErrUnknownFilterKey) {
		t.Fatalf("expected ErrUnknownFilterKey, got %v", err)
	}
}

func TestParseFilters_TypeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
	}{
		{"trust_min not a number", map[string]interface{}{"trust_min": "high"}},
		{"eligible_only not a bool", map[string]interface{}{"eligible_only": "yes"}},
		{"type list with non-string", map[string]interface{}{"type": []interface{}{1}}},
		{"chain not a list", map[string]interface{}{"chain": 42}},
		{"sort not a string", map[string]interface{}{"sort": 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseFilters(tt.raw)
			if !errors.Is(err, ErrInvalidFilterType) {
				t.Errorf("expected ErrInvalidFilterType, got %v", err)
			}
		})
	}
}

func TestParseFilters_RangeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
	}{
		{"trust_min above one", map[string]interface{}{"trust_min": 1.5}},
		{"trust_min negative", map[string]interface{}{"trust_min": -0.1}},
		{"negative reward_min", map[string]interface{}{"reward_min": -5.0}},
		{"inverted reward range", map[string]interface{}{"reward_min": 10.0, "reward_max": 5.0}},
		{"bad urgency bucket", map[string]interface{}{"urgency": "panic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseFilters(tt.raw)
			if !errors.Is(err, ErrFilterOutOfRange) {
				t.Errorf("expected ErrFilterOutOfRange, got %v", err)
			}
		})
	}
}

func TestParseFilters_InvalidSort(t *testing.T) {
	_, _, err := ParseFilters(map[string]interface{}{"sort": "alphabetical"})
	if !errors.Is(err, ErrInvalidSort) {
		t.Fatalf("expected ErrInvalidSort, got %v", err)
	}
}

func TestFilters_Match(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	soon := now.Add(24 * time.Hour)
	later := now.Add(30 * 24 * time.Hour)
	reward := 500.0

	opp := Opportunity{
		ID:         "opp-1",
		Type:       "airdrop",
		Chains:     []string{"ethereum", "arbitrum"},
		TrustScore: 0.8,
		ExpiresAt:  &soon,
		Difficulty: "beginner",
		RewardMax:  &reward,
	}

	tests := []struct {
		name    string
		filters Filters
		want    bool
	}{
		{"zero filters match", Filters{}, true},
		{"type match", Filters{Types: []string{"airdrop"}}, true},
		{"type mismatch", Filters{Types: []string{"staking"}}, false},
		{"chain overlap", Filters{Chains: []string{"arbitrum", "base"}}, true},
		{"chain disjoint", Filters{Chains: []string{"solana"}}, false},
		{"trust_min below score", Filters{TrustMin: 0.7}, true},
		{"trust_min above score", Filters{TrustMin: 0.9}, false},
		{"reward in range", Filters{RewardMin: floatPtr(100), RewardMax: floatPtr(1000)}, true},
		{"reward below min", Filters{RewardMin: floatPtr(1000)}, false},
		{"urgency ending_soon", Filters{Urgency: []string{UrgencyEndingSoon}}, true},
		{"urgency evergreen mismatch", Filters{Urgency: []string{UrgencyEvergreen}}, false},
		{"difficulty match", Filters{Difficulty: []string{"beginner", "advanced"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filters.Match(&opp, now)
			if got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("urgency active for later expiry", func(t *testing.T) {
		laterOpp := opp
		laterOpp.ExpiresAt = &later
		f := Filters{Urgency: []string{UrgencyActive}}
		if !f.Match(&laterOpp, now) {
			t.Error("expected active urgency to match 30-day expiry")
		}
	})
}

func TestOpportunity_Urgency(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("evergreen without expiry", func(t *testing.T) {
		o := Opportunity{}
		if got := o.Urgency(now); got != UrgencyEvergreen {
			t.Errorf("Urgency = %q, want %q", got, UrgencyEvergreen)
		}
	})

	t.Run("ending soon inside 72h", func(t *testing.T) {
		at := now.Add(71 * time.Hour)
		o := Opportunity{ExpiresAt: &at}
		if got := o.Urgency(now); got != UrgencyEndingSoon {
			t.Errorf("Urgency = %q, want %q", got, UrgencyEndingSoon)
		}
	})

	t.Run("active beyond 72h", func(t *testing.T) {
		at := now.Add(73 * time.Hour)
		o := Opportunity{ExpiresAt: &at}
		if got := o.Urgency(now); got != UrgencyActive {
			t.Errorf("Urgency = %q, want %q", got, UrgencyActive)
		}
	})
}

func TestTrustLevelFor(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.9, TrustLevelHigh},
		{0.75, TrustLevelHigh},
		{0.6, TrustLevelMedium},
		{0.45, TrustLevelMedium},
		{0.2, TrustLevelLow},
		{0, TrustLevelLow},
	}

	for _, tt := range tests {
		if got := TrustLevelFor(tt.score); got != tt.want {
			t.Errorf("TrustLevelFor(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
