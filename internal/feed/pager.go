package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/venzalabs/oppfeed/internal/cursor"
)

// Page size bounds. Requests outside the bounds are clamped rather than
// rejected; zero means "use the default".
const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// capOverfetch is how many extra candidates each repository fetch requests
// beyond the page size, so the sponsored cap can drop candidates without
// starving the page. One full cap window absorbs the worst realistic
// sponsored clustering per fetch; the pager loops if that was not enough.
const capOverfetch = SponsoredWindow

// Page is one feed page: the accepted items in order plus the continuation
// cursor. NextCursor is nil exactly when the feed is exhausted.
type Page struct {
	Items      []Row   `json:"items"`
	NextCursor *string `json:"next_cursor"`
}

// Pager orchestrates seek-based paged retrieval over the ranked dataset.
// It is stateless: every request is fully described by (filters, sort,
// cursor, page size), so instances are safe for concurrent use and
// horizontally scalable.
type Pager struct {
	repo    Repository
	metrics *Metrics
}

// NewPager creates a Pager over the given repository. metrics may be nil.
func NewPager(repo Repository, metrics *Metrics) *Pager {
	return &Pager{repo: repo, metrics: metrics}
}

// GetPage returns the next page of the feed.
//
// An empty cursorToken starts a new session: a fresh snapshot watermark is
// captured and every later cursor of the session carries it unchanged. A
// non-empty token resumes the session at the encoded position; a damaged
// token surfaces as a cursor.DecodeError, and a token minted under a
// different sort is rejected as a validation error.
//
// Offset pagination is deliberately not offered: under the refresh job's
// concurrent rewrites an offset skips or duplicates rows, while the strict
// tuple predicate plus the snapshot watermark cannot.
func (p *Pager) GetPage(ctx context.Context, filters *Filters, sortKey Sort, cursorToken string, pageSize int) (*Page, error) {
	start := time.Now()

	if sortKey == "" {
		sortKey = DefaultSort
	}
	if !ValidSort(sortKey) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, sortKey)
	}
	if filters != nil {
		if err := filters.Validate(); err != nil {
			return nil, err
		}
	}
	pageSize = clampPageSize(pageSize)

	var (
		after    *cursor.Tuple
		snapshot int64
	)
	if cursorToken == "" {
		snapshot = cursor.NewSnapshot()
	} else {
		t, err := cursor.Decode(cursorToken)
		if err != nil {
			return nil, err
		}
		if t.Sort != "" && Sort(t.Sort) != sortKey {
			return nil, fmt.Errorf("%w: cursor was created for sort %q", ErrInvalidSort, t.Sort)
		}
		after = &t
		snapshot = t.SnapshotTS
	}

	accepted := make([]Row, 0, pageSize)
	filter := newCapFilter(pageSize)
	dropped := 0
	pos := after

	for !filter.full() {
		batch, err := p.repo.ListRanked(ctx, Query{
			Filters:  filters,
			Sort:     sortKey,
			After:    pos,
			Snapshot: snapshot,
			Limit:    pageSize + capOverfetch,
		})
		if err != nil {
			// Never return a short page on a source failure: the caller
			// could mistake it for end-of-feed.
			if p.metrics != nil {
				p.metrics.IncPageErrors()
			}
			return nil, fmt.Errorf("feed page query failed: %w", err)
		}

		for i := range batch {
			if filter.full() {
				break
			}
			if filter.offer(batch[i].Opportunity.Sponsored) {
				accepted = append(accepted, batch[i])
			} else {
				dropped++
			}
		}

		// Fewer rows than requested means the source is exhausted past
		// the last scanned position.
		if len(batch) < pageSize+capOverfetch {
			break
		}

		last := TupleFor(sortKey, &batch[len(batch)-1], snapshot)
		pos = &last
	}

	page := &Page{Items: accepted}

	// A full page may continue; anything shorter is the end of the feed.
	// This is the only end-of-feed signal.
	if len(accepted) == pageSize {
		boundary := TupleFor(sortKey, &accepted[len(accepted)-1], snapshot)
		token, err := cursor.Encode(boundary)
		if err != nil {
			return nil, fmt.Errorf("failed to encode continuation cursor: %w", err)
		}
		page.NextCursor = &token
	}

	if p.metrics != nil {
		p.metrics.IncPages()
		p.metrics.AddSponsoredDropped(dropped)
		p.metrics.ObservePageDuration(time.Since(start).Seconds())
	}

	slog.DebugContext(ctx, "served feed page",
		"sort", sortKey,
		"page_size", pageSize,
		"items", len(accepted),
		"sponsored_dropped", dropped,
		"has_next", page.NextCursor != nil,
		"snapshot", snapshot)

	return page, nil
}

// clampPageSize normalizes a requested page size into [1, MaxPageSize],
// defaulting when unset.
func clampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
