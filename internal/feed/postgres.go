package feed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/venzalabs/oppfeed/internal/cursor"
	"github.com/venzalabs/oppfeed/internal/tracing"
)

// PostgresRepository implements Repository over the opportunities and
// ranked_rows tables maintained by the refresh job. It is read-only: the
// snapshot watermark, not locking, provides consistency against the job's
// concurrent rewrites.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository over an open connection pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// selectColumns are the joined columns scanned into a Row.
const selectColumns = `
	o.id, o.slug, o.type, o.chains,
	o.trust_score, o.trust_level,
	o.published_at, o.expires_at,
	o.sponsored, o.difficulty, o.reward_min, o.reward_max,
	o.impressions, o.clicks, o.featured, o.similarity,
	o.effective_updated_at,
	r.relevance_raw, r.trust_raw, r.freshness_raw,
	r.relevance_weighted, r.trust_weighted, r.freshness_weighted,
	r.rank_score, r.computed_at`

// keyExpr is one ordering key as a SQL expression with its direction and,
// when used in a seek predicate, the cursor's boundary value.
type keyExpr struct {
	expr string
	desc bool
	val  interface{}
}

// orderKeys returns the comparison chain for a sort as SQL expressions,
// mirroring order.go exactly. after supplies boundary values when building
// a seek predicate; it may be nil for ORDER BY construction.
//
// id terminates the chain: it is unique, so the slug_hash tiebreak never
// has to be evaluated in SQL.
func orderKeys(s Sort, after *cursor.Tuple) []keyExpr {
	var primary keyExpr
	switch s {
	case SortExpiresAt:
		primary = keyExpr{expr: expiryExpr, desc: false}
	case SortRewardMax:
		primary = keyExpr{expr: "COALESCE(o.reward_max, 0)", desc: true}
	case SortPublishedAt:
		primary = keyExpr{expr: "FLOOR(EXTRACT(EPOCH FROM o.published_at))", desc: true}
	case SortTrustScore:
		primary = keyExpr{expr: "o.trust_score", desc: true}
	default:
		primary = keyExpr{expr: "r.rank_score", desc: true}
	}

	keys := make([]keyExpr, 0, 5)
	keys = append(keys, primary)
	if s != SortRankScore {
		keys = append(keys, keyExpr{expr: "r.rank_score", desc: true})
	}
	if s != SortTrustScore {
		keys = append(keys, keyExpr{expr: "o.trust_score", desc: true})
	}
	if s != SortExpiresAt {
		keys = append(keys, keyExpr{expr: expiryExpr, desc: false})
	}
	keys = append(keys, keyExpr{expr: "o.id", desc: false})

	if after != nil {
		vals := make([]interface{}, 0, len(keys))
		vals = append(vals, primaryTupleValue(s, after))
		if s != SortRankScore {
			vals = append(vals, after.RankScore)
		}
		if s != SortTrustScore {
			vals = append(vals, after.TrustScore)
		}
		if s != SortExpiresAt {
			vals = append(vals, cursorExpiryEpoch(after.ExpiresAt))
		}
		vals = append(vals, after.ID)
		for i := range keys {
			keys[i].val = vals[i]
		}
	}

	return keys
}

// expiryExpr sorts NULL expiries last under soonest-ending-first, matching
// the in-memory sentinel. FLOOR keeps the key at the same whole-second
// resolution as the cursor tuple.
const expiryExpr = "COALESCE(FLOOR(EXTRACT(EPOCH FROM o.expires_at)), 253402300799)"

// seekPredicate expands the strict tuple inequality "row is after the
// cursor position" into SQL:
//
//	(k1 < v1) OR (k1 = v1 AND (k2 < v2 OR (k2 = v2 AND ...)))
//
// with < flipped to > for ascending keys. args are appended to in place;
// placeholders continue from the current length.
func seekPredicate(keys []keyExpr, args *[]interface{}) string {
	clauses := make([]string, 0, len(keys))
	for i, k := range keys {
		var parts []string
		for _, prev := range keys[:i] {
			*args = append(*args, prev.val)
			parts = append(parts, fmt.Sprintf("%s = $%d", prev.expr, len(*args)))
		}
		op := ">"
		if k.desc {
			op = "<"
		}
		*args = append(*args, k.val)
		parts = append(parts, fmt.Sprintf("%s %s $%d", k.expr, op, len(*args)))
		clauses = append(clauses, "("+strings.Join(parts, " AND ")+")")
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

// ListRanked implements Repository with one seek-paginated query.
func (r *PostgresRepository) ListRanked(ctx context.Context, q Query) ([]Row, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "ranked_rows", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	var (
		conds []string
		args  []interface{}
	)

	// Snapshot watermark: the sole mutation-safety mechanism.
	args = append(args, q.Snapshot)
	conds = append(conds, fmt.Sprintf("o.effective_updated_at <= to_timestamp($%d)", len(args)))

	// Rows already expired at the watermark never surface.
	args = append(args, q.Snapshot)
	conds = append(conds, fmt.Sprintf("(o.expires_at IS NULL OR o.expires_at > to_timestamp($%d))", len(args)))

	if f := q.Filters; f != nil {
		if len(f.Types) > 0 {
			args = append(args, pq.Array(f.Types))
			conds = append(conds, fmt.Sprintf("o.type = ANY($%d)", len(args)))
		}
		if len(f.Chains) > 0 {
			args = append(args, pq.Array(f.Chains))
			conds = append(conds, fmt.Sprintf("o.chains && $%d", len(args)))
		}
		if f.TrustMin > 0 {
			args = append(args, f.TrustMin)
			conds = append(conds, fmt.Sprintf("o.trust_score >= $%d", len(args)))
		}
		if f.RewardMin != nil {
			args = append(args, *f.RewardMin)
			conds = append(conds, fmt.Sprintf("COALESCE(o.reward_max, 0) >= $%d", len(args)))
		}
		if f.RewardMax != nil {
			args = append(args, *f.RewardMax)
			conds = append(conds, fmt.Sprintf("COALESCE(o.reward_max, 0) <= $%d", len(args)))
		}
		if len(f.Urgency) > 0 {
			conds = append(conds, urgencyPredicate(f.Urgency, q.Snapshot, &args))
		}
		if len(f.Difficulty) > 0 {
			args = append(args, pq.Array(f.Difficulty))
			conds = append(conds, fmt.Sprintf("o.difficulty = ANY($%d)", len(args)))
		}
	}

	keys := orderKeys(q.Sort, q.After)
	if q.After != nil {
		conds = append(conds, seekPredicate(keys, &args))
	}

	orderBy := make([]string, len(keys))
	for i, k := range keys {
		dir := "ASC"
		if k.desc {
			dir = "DESC"
		}
		orderBy[i] = k.expr + " " + dir
	}

	args = append(args, q.Limit)
	query := fmt.Sprintf(`SELECT %s
FROM opportunities o
JOIN ranked_rows r ON r.opportunity_id = o.id
WHERE %s
ORDER BY %s
LIMIT $%d`,
		selectColumns,
		strings.Join(conds, " AND "),
		strings.Join(orderBy, ", "),
		len(args))

	rows, qerr := r.db.QueryContext(ctx, query, args...)
	if qerr != nil {
		err = fmt.Errorf("ranked rows query failed: %w", qerr)
		return nil, err
	}
	defer rows.Close()

	var results []Row
	for rows.Next() {
		row, serr := scanRow(rows)
		if serr != nil {
			err = serr
			return nil, err
		}
		results = append(results, row)
	}
	if rerr := rows.Err(); rerr != nil {
		err = fmt.Errorf("ranked rows iteration failed: %w", rerr)
		return nil, err
	}

	return results, nil
}

// urgencyPredicate translates urgency buckets into expiry-horizon
// predicates evaluated at the snapshot watermark.
func urgencyPredicate(buckets []string, snapshot int64, args *[]interface{}) string {
	horizon := time.Unix(snapshot, 0).Add(endingSoonHorizon).Unix()

	var clauses []string
	for _, b := range buckets {
		switch b {
		case UrgencyEndingSoon:
			*args = append(*args, horizon)
			clauses = append(clauses, fmt.Sprintf("(o.expires_at IS NOT NULL AND o.expires_at <= to_timestamp($%d))", len(*args)))
		case UrgencyActive:
			*args = append(*args, horizon)
			clauses = append(clauses, fmt.Sprintf("(o.expires_at IS NOT NULL AND o.expires_at > to_timestamp($%d))", len(*args)))
		case UrgencyEvergreen:
			clauses = append(clauses, "(o.expires_at IS NULL)")
		}
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

// scanRow scans one joined result row.
func scanRow(rows *sql.Rows) (Row, error) {
	var (
		row       Row
		chains    pq.StringArray
		expiresAt sql.NullTime
		rewardMin sql.NullFloat64
		rewardMax sql.NullFloat64
	)

	err := rows.Scan(
		&row.Opportunity.ID, &row.Opportunity.Slug, &row.Opportunity.Type, &chains,
		&row.Opportunity.TrustScore, &row.Opportunity.TrustLevel,
		&row.Opportunity.PublishedAt, &expiresAt,
		&row.Opportunity.Sponsored, &row.Opportunity.Difficulty, &rewardMin, &rewardMax,
		&row.Opportunity.Impressions, &row.Opportunity.Clicks, &row.Opportunity.Featured, &row.Opportunity.Similarity,
		&row.Opportunity.EffectiveUpdatedAt,
		&row.Ranked.Breakdown.RelevanceRaw, &row.Ranked.Breakdown.TrustRaw, &row.Ranked.Breakdown.FreshnessRaw,
		&row.Ranked.Breakdown.RelevanceWeighted, &row.Ranked.Breakdown.TrustWeighted, &row.Ranked.Breakdown.FreshnessWeighted,
		&row.Ranked.Breakdown.RankScore, &row.Ranked.ComputedAt,
	)
	if err != nil {
		return Row{}, fmt.Errorf("failed to scan ranked row: %w", err)
	}

	row.Opportunity.Chains = []string(chains)
	if expiresAt.Valid {
		t := expiresAt.Time
		row.Opportunity.ExpiresAt = &t
	}
	if rewardMin.Valid {
		v := rewardMin.Float64
		row.Opportunity.RewardMin = &v
	}
	if rewardMax.Valid {
		v := rewardMax.Float64
		row.Opportunity.RewardMax = &v
	}
	row.Ranked.OpportunityID = row.Opportunity.ID

	return row, nil
}
