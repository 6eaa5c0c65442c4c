package feed

import (
	"errors"
	"fmt"
	"time"
)

// Sort selects the primary ordering key for a feed page. The remaining
// keys are always appended as fixed tiebreaks, so every sort yields a
// strict total order.
type Sort string

// Supported primary sort keys.
const (
	SortRankScore   Sort = "rank_score"
	SortExpiresAt   Sort = "expires_at"
	SortRewardMax   Sort = "reward_max"
	SortPublishedAt Sort = "published_at"
	SortTrustScore  Sort = "trust_score"
)

// DefaultSort orders by the composite rank score.
const DefaultSort = SortRankScore

// ValidSort reports whether s is a supported primary sort key.
func ValidSort(s Sort) bool {
	switch s {
	case SortRankScore, SortExpiresAt, SortRewardMax, SortPublishedAt, SortTrustScore:
		return true
	}
	return false
}

// Errors for filter parsing and validation. Unknown keys are rejected
// rather than ignored: a typo'd filter silently matching everything would
// be indistinguishable from a working one.
var (
	ErrUnknownFilterKey  = errors.New("unknown filter key")
	ErrInvalidFilterType = errors.New("filter value has invalid type")
	ErrFilterOutOfRange  = errors.New("filter value out of range")
	ErrInvalidSort       = errors.New("invalid sort key")
)

// Filters is the tagged configuration of every recognized feed filter.
// The zero value matches everything.
type Filters struct {
	Types        []string `json:"types,omitempty"`
	Chains       []string `json:"chains,omitempty"`
	TrustMin     float64  `json:"trust_min,omitempty"` // [0, 1]
	RewardMin    *float64 `json:"reward_min,omitempty"`
	RewardMax    *float64 `json:"reward_max,omitempty"`
	Urgency      []string `json:"urgency,omitempty"`
	EligibleOnly bool     `json:"eligible_only,omitempty"`
	Difficulty   []string `json:"difficulty,omitempty"`
}

// Validate checks filter ranges. Unknown keys are handled at parse time;
// this guards values that arrived through typed construction.
func (f *Filters) Validate() error {
	if f.TrustMin < 0 || f.TrustMin > 1 {
		return fmt.Errorf("%w: trust_min %v not in [0, 1]", ErrFilterOutOfRange, f.TrustMin)
	}
	if f.RewardMin != nil && *f.RewardMin < 0 {
		return fmt.Errorf("%w: reward_min %v negative", ErrFilterOutOfRange, *f.RewardMin)
	}
	if f.RewardMax != nil && *f.RewardMax < 0 {
		return fmt.Errorf("%w: reward_max %v negative", ErrFilterOutOfRange, *f.RewardMax)
	}
	if f.RewardMin != nil && f.RewardMax != nil && *f.RewardMin > *f.RewardMax {
		return fmt.Errorf("%w: reward_min %v exceeds reward_max %v",
			ErrFilterOutOfRange, *f.RewardMin, *f.RewardMax)
	}
	for _, u := range f.Urgency {
		switch u {
		case UrgencyEndingSoon, UrgencyActive, UrgencyEvergreen:
		default:
			return fmt.Errorf("%w: urgency %q", ErrFilterOutOfRange, u)
		}
	}
	return nil
}

// ParseFilters maps a dynamic filter object from the calling layer into a
// validated Filters value plus the requested sort. Every recognized key is
// enumerated here; anything else fails with ErrUnknownFilterKey naming the
// offending key.
func ParseFilters(raw map[string]interface{}) (*Filters, Sort, error) {
	f := &Filters{}
	sort := DefaultSort

	for key, value := range raw {
		switch key {
		case "type":
			list, err := stringList(key, value)
			if err != nil {
				return nil, "", err
			}
			f.Types = list
		case "chain":
			list, err := stringList(key, value)
			if err != nil {
				return nil, "", err
			}
			f.Chains = list
		case "trust_min":
			n, ok := asFloat(value)
			if !ok {
				return nil, "", fmt.Errorf("%w: %s must be a number", ErrInvalidFilterType, key)
			}
			f.TrustMin = n
		case "reward_min":
			n, ok := asFloat(value)
			if !ok {
				return nil, "", fmt.Errorf("%w: %s must be a number", ErrInvalidFilterType, key)
			}
			f.RewardMin = &n
		case "reward_max":
			n, ok := asFloat(value)
			if !ok {
				return nil, "", fmt.Errorf("%w: %s must be a number", ErrInvalidFilterType, key)
			}
			f.RewardMax = &n
		case "urgency":
			list, err := stringList(key, value)
			if err != nil {
				return nil, "", err
			}
			f.Urgency = list
		case "eligible_only":
			b, ok := value.(bool)
			if !ok {
				return nil, "", fmt.Errorf("%w: %s must be a boolean", ErrInvalidFilterType, key)
			}
			f.EligibleOnly = b
		case "difficulty":
			list, err := stringList(key, value)
			if err != nil {
				return nil, "", err
			}
			f.Difficulty = list
		case "sort":
			s, ok := value.(string)
			if !ok {
				return nil, "", fmt.Errorf("%w: sort must be a string", ErrInvalidFilterType)
			}
			sort = Sort(s)
			if !ValidSort(sort) {
				return nil, "", fmt.Errorf("%w: %q", ErrInvalidSort, s)
			}
		default:
			return nil, "", fmt.Errorf("%w: %q", ErrUnknownFilterKey, key)
		}
	}

	if err := f.Validate(); err != nil {
		return nil, "", err
	}

	return f, sort, nil
}

// stringList coerces a filter value into a string slice. Accepts a single
// string or a []string / []interface{} of strings (the JSON decoder
// produces the latter).
func stringList(key string, value interface{}) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s entries must be strings", ErrInvalidFilterType, key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a string or list of strings", ErrInvalidFilterType, key)
	}
}

// asFloat coerces JSON-decoded numbers (float64) and native ints.
func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Match reports whether an opportunity passes the filters at the given
// reference time. EligibleOnly is resolved by the caller (it needs wallet
// context the repository does not have), so it does not participate here.
func (f *Filters) Match(o *Opportunity, now time.Time) bool {
	if len(f.Types) > 0 && !contains(f.Types, o.Type) {
		return false
	}
	if len(f.Chains) > 0 && !containsAny(f.Chains, o.Chains) {
		return false
	}
	if o.TrustScore < f.TrustMin {
		return false
	}
	if f.RewardMin != nil && o.rewardMax() < *f.RewardMin {
		return false
	}
	if f.RewardMax != nil && o.rewardMax() > *f.RewardMax {
		return false
	}
	if len(f.Urgency) > 0 && !contains(f.Urgency, o.Urgency(now)) {
		return false
	}
	if len(f.Difficulty) > 0 && !contains(f.Difficulty, o.Difficulty) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// containsAny reports whether any of the wanted values appears in have.
func containsAny(wanted, have []string) bool {
	for _, w := range wanted {
		if contains(have, w) {
			return true
		}
	}
	return false
}
