package feed

import (
	"github.com/venzalabs/oppfeed/internal/cursor"
)

// noExpiryEpoch is the sort sentinel for opportunities without an expiry:
// they order after every real expiry under the soonest-ending-first rule.
// Cursors store 0 for "no expiry"; the comparison maps 0 to this sentinel.
const noExpiryEpoch = int64(253402300799) // 9999-12-31T23:59:59Z

// sortKey is one numeric key in the comparison chain.
type sortKey struct {
	value float64
	desc  bool
}

// The comparison chain for a given primary sort is the primary key
// followed by the fixed tiebreaks (rank_score DESC, trust_score DESC,
// expires_at ASC) minus the primary itself, then id ASC, then slug_hash
// ASC. id is unique, so the chain is a strict total order; slug_hash
// backstops the ordering even against duplicate ids.

// expiryEpoch returns the sortable expiry of an opportunity.
func expiryEpoch(o *Opportunity) float64 {
	if o.ExpiresAt == nil {
		return float64(noExpiryEpoch)
	}
	return float64(o.ExpiresAt.Unix())
}

// cursorExpiryEpoch maps the cursor's expires_at field (0 = no expiry) to
// the sortable value.
func cursorExpiryEpoch(v int64) float64 {
	if v == 0 {
		return float64(noExpiryEpoch)
	}
	return float64(v)
}

// primaryRowValue returns the row's value for the primary sort key.
func primaryRowValue(s Sort, r *Row) float64 {
	switch s {
	case SortExpiresAt:
		return expiryEpoch(&r.Opportunity)
	case SortRewardMax:
		return r.Opportunity.rewardMax()
	case SortPublishedAt:
		return float64(r.Opportunity.PublishedAt.Unix())
	case SortTrustScore:
		return r.Opportunity.TrustScore
	default:
		return r.Ranked.Breakdown.RankScore
	}
}

// primaryTupleValue returns the cursor's value for the primary sort key.
// reward_max and published_at live in the cursor's sort_value extension;
// the other sorts reuse the named tuple fields.
func primaryTupleValue(s Sort, t *cursor.Tuple) float64 {
	switch s {
	case SortExpiresAt:
		return cursorExpiryEpoch(t.ExpiresAt)
	case SortRewardMax, SortPublishedAt:
		return t.SortValue
	case SortTrustScore:
		return t.TrustScore
	default:
		return t.RankScore
	}
}

// primaryDesc reports the direction of the primary key: scores, rewards
// and publish times order high/new first; expiry orders soonest first.
func primaryDesc(s Sort) bool {
	return s != SortExpiresAt
}

// rowKeys builds the numeric comparison chain for a row.
func rowKeys(s Sort, r *Row) []sortKey {
	keys := make([]sortKey, 0, 4)
	keys = append(keys, sortKey{primaryRowValue(s, r), primaryDesc(s)})
	if s != SortRankScore {
		keys = append(keys, sortKey{r.Ranked.Breakdown.RankScore, true})
	}
	if s != SortTrustScore {
		keys = append(keys, sortKey{r.Opportunity.TrustScore, true})
	}
	if s != SortExpiresAt {
		keys = append(keys, sortKey{expiryEpoch(&r.Opportunity), false})
	}
	return keys
}

// tupleKeys builds the numeric comparison chain for a decoded cursor.
// The chain must mirror rowKeys exactly.
func tupleKeys(s Sort, t *cursor.Tuple) []sortKey {
	keys := make([]sortKey, 0, 4)
	keys = append(keys, sortKey{primaryTupleValue(s, t), primaryDesc(s)})
	if s != SortRankScore {
		keys = append(keys, sortKey{t.RankScore, true})
	}
	if s != SortTrustScore {
		keys = append(keys, sortKey{t.TrustScore, true})
	}
	if s != SortExpiresAt {
		keys = append(keys, sortKey{cursorExpiryEpoch(t.ExpiresAt), false})
	}
	return keys
}

// compareKeys compares two equal-length key chains. Returns -1 if a
// orders before b, +1 if after, 0 if every numeric key ties.
func compareKeys(a, b []sortKey) int {
	for i := range a {
		av, bv := a[i].value, b[i].value
		if av == bv {
			continue
		}
		less := av < bv
		if a[i].desc {
			less = !less
		}
		if less {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether row a orders strictly before row b under sort s.
func Less(s Sort, a, b *Row) bool {
	if c := compareKeys(rowKeys(s, a), rowKeys(s, b)); c != 0 {
		return c < 0
	}
	if a.Opportunity.ID != b.Opportunity.ID {
		return a.Opportunity.ID < b.Opportunity.ID
	}
	return cursor.SlugHash(a.Opportunity.Slug) < cursor.SlugHash(b.Opportunity.Slug)
}

// After reports whether row r orders strictly after the cursor position t
// under sort s — the seek pagination predicate.
func After(s Sort, r *Row, t *cursor.Tuple) bool {
	if c := compareKeys(rowKeys(s, r), tupleKeys(s, t)); c != 0 {
		return c > 0
	}
	if r.Opportunity.ID != t.ID {
		return r.Opportunity.ID > t.ID
	}
	return cursor.SlugHash(r.Opportunity.Slug) > t.SlugHash
}

// TupleFor builds the cursor tuple marking a row as a page boundary within
// the session identified by snapshot.
func TupleFor(s Sort, r *Row, snapshot int64) cursor.Tuple {
	t := cursor.Tuple{
		RankScore:  r.Ranked.Breakdown.RankScore,
		TrustScore: r.Opportunity.TrustScore,
		ID:         r.Opportunity.ID,
		SnapshotTS: snapshot,
		SlugHash:   cursor.SlugHash(r.Opportunity.Slug),
		Sort:       string(s),
	}
	if r.Opportunity.ExpiresAt != nil {
		t.ExpiresAt = r.Opportunity.ExpiresAt.Unix()
	}
	switch s {
	case SortRewardMax, SortPublishedAt:
		t.SortValue = primaryRowValue(s, r)
	}
	return t
}
