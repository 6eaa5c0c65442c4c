package feed

// Sponsored density cap: no contiguous window of SponsoredWindow items in
// the output stream may contain more than MaxSponsoredPerWindow sponsored
// items, independent of how the client lays the feed out.
const (
	SponsoredWindow       = 12
	MaxSponsoredPerWindow = 2
)

// capFilter enforces the sponsored density cap in a single forward pass.
// It tracks only the sponsored flags of the last SponsoredWindow-1
// accepted items in a fixed ring, so the pass is O(n) time and O(1) extra
// space. A rejected sponsored candidate is dropped for good: the pager's
// continuation cursor advances past it, so it is never re-offered on a
// later page. (Deferring it instead would force the cursor to carry
// rejected-candidate state and stop being a pure position.)
type capFilter struct {
	pageSize  int
	accepted  int
	recent    [SponsoredWindow - 1]bool // ring of last accepted sponsor flags
	ringStart int
	ringLen   int
	sponsored int // sponsored count within the ring
}

func newCapFilter(pageSize int) *capFilter {
	return &capFilter{pageSize: pageSize}
}

// full reports whether the page has been filled.
func (f *capFilter) full() bool {
	return f.accepted >= f.pageSize
}

// offer decides a single candidate. Non-sponsored candidates are always
// accepted; a sponsored candidate is accepted only while the trailing
// window holds fewer than MaxSponsoredPerWindow sponsored items.
func (f *capFilter) offer(sponsored bool) bool {
	if f.full() {
		return false
	}
	if sponsored && f.sponsored >= MaxSponsoredPerWindow {
		return false
	}

	// Record the acceptance in the ring, evicting the oldest flag once
	// the window is full.
	if f.ringLen == len(f.recent) {
		if f.recent[f.ringStart] {
			f.sponsored--
		}
		f.recent[f.ringStart] = sponsored
		f.ringStart = (f.ringStart + 1) % len(f.recent)
	} else {
		f.recent[(f.ringStart+f.ringLen)%len(f.recent)] = sponsored
		f.ringLen++
	}
	if sponsored {
		f.sponsored++
	}

	f.accepted++
	return true
}

// ApplySponsoredCap trims a candidate stream so that no contiguous
// SponsoredWindow-item window of the output holds more than
// MaxSponsoredPerWindow sponsored items, stopping once pageSize items are
// accepted. Relative order is preserved and the result is deterministic
// for a given input order.
func ApplySponsoredCap(candidates []Row, pageSize int) []Row {
	if pageSize <= 0 {
		return nil
	}

	f := newCapFilter(pageSize)
	out := make([]Row, 0, min(pageSize, len(candidates)))
	for i := range candidates {
		if f.full() {
			break
		}
		if f.offer(candidates[i].Opportunity.Sponsored) {
			out = append(out, candidates[i])
		}
	}
	return out
}
