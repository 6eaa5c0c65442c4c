package feed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/venzalabs/oppfeed/internal/cursor"
)

// Common errors for repository operations.
var (
	ErrOpportunityNotFound = errors.New("opportunity not found")
)

// Query describes one candidate fetch against the ranked-row source.
type Query struct {
	Filters *Filters
	Sort    Sort

	// After is the exclusive lower bound: only rows strictly after this
	// position in the total order are returned. Nil starts at the top.
	After *cursor.Tuple

	// Snapshot is the session watermark: only rows whose effective update
	// time is at or before it are visible.
	Snapshot int64

	// Limit caps the number of rows returned.
	Limit int
}

// Repository is the injected read-only view of the ranked dataset. The
// refresh job owns writes; the feed core only reads point-in-time
// snapshots through this interface.
type Repository interface {
	// ListRanked returns up to q.Limit rows visible at q.Snapshot, ordered
	// under q.Sort with the fixed tiebreaks, strictly after q.After.
	ListRanked(ctx context.Context, q Query) ([]Row, error)
}

// InMemoryRepository is an in-memory implementation of Repository used by
// tests and as the fallback store when no database is configured.
// Thread-safe via RWMutex; writers play the role of the refresh job.
type InMemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]*Row // opportunity ID -> row
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		rows: make(map[string]*Row),
	}
}

// Upsert inserts or replaces a row, stamping its effective update time.
// A zero effectiveAt means "now". Missing IDs are generated so tests can
// build rows tersely.
func (r *InMemoryRepository) Upsert(row Row, effectiveAt time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row.Opportunity.ID == "" {
		row.Opportunity.ID = uuid.New().String()
	}
	if row.Ranked.OpportunityID == "" {
		row.Ranked.OpportunityID = row.Opportunity.ID
	}
	if effectiveAt.IsZero() {
		effectiveAt = time.Now()
	}
	row.Opportunity.EffectiveUpdatedAt = effectiveAt

	rowCopy := row
	r.rows[row.Opportunity.ID] = &rowCopy
	return row.Opportunity.ID
}

// Delete removes a row. Returns ErrOpportunityNotFound if absent.
func (r *InMemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return ErrOpportunityNotFound
	}
	delete(r.rows, id)
	return nil
}

// GetByID retrieves a row copy by opportunity ID.
func (r *InMemoryRepository) GetByID(id string) (*Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, ErrOpportunityNotFound
	}
	rowCopy := *row
	return &rowCopy, nil
}

// ListRanked implements Repository over the in-memory store.
func (r *InMemoryRepository) ListRanked(ctx context.Context, q Query) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshotTime := time.Unix(q.Snapshot, 0)

	var candidates []*Row
	for _, row := range r.rows {
		// Snapshot watermark: rows written after the session started are
		// invisible to it.
		if row.Opportunity.EffectiveUpdatedAt.After(snapshotTime) {
			continue
		}

		// Rows already expired at the watermark never surface.
		if row.Opportunity.Expired(snapshotTime) {
			continue
		}

		if q.Filters != nil && !q.Filters.Match(&row.Opportunity, snapshotTime) {
			continue
		}

		if q.After != nil && !After(q.Sort, row, q.After) {
			continue
		}

		candidates = append(candidates, row)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return Less(q.Sort, candidates[i], candidates[j])
	})

	if q.Limit > 0 && len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}

	// Return copies to prevent external mutation.
	results := make([]Row, len(candidates))
	for i, row := range candidates {
		results[i] = *row
	}
	return results, nil
}
