// Package cursor implements the opaque pagination cursor for the
// opportunity feed.
//
// A cursor encodes an exact position in the feed's strict total order as a
// 6-tuple (rank_score, trust_score, expires_at, id, snapshot_ts, slug_hash).
// The tuple is CBOR-encoded and wrapped in unpadded URL-safe base64, so the
// token can travel in a query parameter without escaping. Cursors are fully
// self-contained: no server-side session state exists, and abandoning a
// scroll session requires no cleanup.
//
// snapshot_ts is the mutation-safety watermark. It is captured once when a
// session starts and carried unchanged into every subsequent cursor; the
// pager restricts rows to effective_updated_at <= snapshot_ts, which is the
// sole mechanism preventing duplicates, gaps, and reorders while the refresh
// job rewrites the underlying dataset.
package cursor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// Version is the current cursor payload version. Tokens carrying a
// different version fail decoding so stale clients fall back to a fresh
// first page instead of resuming from an incompatible position.
const Version = 1

// Tuple is the strictly ordered 6-tuple identifying a feed position.
// SlugHash is the final tiebreaker: ids are unique, but the hash guarantees
// the comparison never has to fall through past a tied key pair even if an
// upstream bug ever produced duplicate ids.
type Tuple struct {
	RankScore  float64 `cbor:"1,keyasint"`
	TrustScore float64 `cbor:"2,keyasint"`
	ExpiresAt  int64   `cbor:"3,keyasint"` // Unix seconds; 0 means no expiry
	ID         string  `cbor:"4,keyasint"`
	SnapshotTS int64   `cbor:"5,keyasint"` // Unix seconds, constant per scroll session
	SlugHash   uint32  `cbor:"6,keyasint"`

	// Sort names the primary sort key this cursor was minted under. A
	// cursor resumed under a different sort would describe a position in
	// the wrong order, so the pager rejects the mismatch.
	Sort string `cbor:"8,keyasint,omitempty"`

	// SortValue carries the boundary row's primary key value for sorts
	// whose key is not already one of the named tuple fields
	// (reward_max, published_at). Zero otherwise.
	SortValue float64 `cbor:"9,keyasint,omitempty"`
}

// payload is the wire form of a cursor: the tuple plus a version tag.
type payload struct {
	Version int   `cbor:"0,keyasint"`
	Tuple   Tuple `cbor:"7,keyasint"`
}

// ValidationError reports a tuple field that failed validation during
// encoding. Validation errors indicate a caller bug, never token damage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid cursor field %s: %s", e.Field, e.Reason)
}

// DecodeError reports a token that could not be decoded back into a valid
// tuple: tampering, truncation, or version skew. It is distinct from
// ValidationError so the transport layer can tell clients to refresh the
// feed rather than surface a generic failure.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cursor decode failed at %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("cursor decode failed at %s", e.Field)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err (or anything it wraps) is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// tokenEncoding is unpadded URL-safe base64: the output alphabet is
// [A-Za-z0-9_-] only, so tokens never need percent-escaping.
var tokenEncoding = base64.RawURLEncoding

// Validate checks the tuple fields that must hold for a cursor to name a
// real feed position.
func (t *Tuple) Validate() error {
	if math.IsNaN(t.RankScore) {
		return &ValidationError{Field: "rank_score", Reason: "must not be NaN"}
	}
	if math.IsNaN(t.TrustScore) {
		return &ValidationError{Field: "trust_score", Reason: "must not be NaN"}
	}
	if math.IsNaN(t.SortValue) {
		return &ValidationError{Field: "sort_value", Reason: "must not be NaN"}
	}
	if t.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if t.SnapshotTS <= 0 {
		return &ValidationError{Field: "snapshot_ts", Reason: "must be positive"}
	}
	return nil
}

// Encode serializes a validated tuple into an opaque URL-safe token.
func Encode(t Tuple) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	data, err := cbor.Marshal(payload{Version: Version, Tuple: t})
	if err != nil {
		return "", fmt.Errorf("failed to encode cursor payload: %w", err)
	}

	return tokenEncoding.EncodeToString(data), nil
}

// Decode is the exact inverse of Encode. Any token that Encode did not
// produce — wrong alphabet, damaged CBOR, unknown version, or a payload
// whose fields fail validation — yields a DecodeError naming the first
// field that failed.
func Decode(token string) (Tuple, error) {
	if token == "" {
		return Tuple{}, &DecodeError{Field: "token", Err: errors.New("empty token")}
	}

	data, err := tokenEncoding.DecodeString(token)
	if err != nil {
		return Tuple{}, &DecodeError{Field: "token", Err: err}
	}

	var p payload
	if err := cbor.Unmarshal(data, &p); err != nil {
		return Tuple{}, &DecodeError{Field: "payload", Err: err}
	}

	if p.Version != Version {
		return Tuple{}, &DecodeError{Field: "version",
			Err: fmt.Errorf("unsupported cursor version %d", p.Version)}
	}

	// Re-run field validation so a structurally valid payload with
	// impossible values is still rejected as a decode failure. A decoded
	// token with bad fields means tampering, not a caller bug.
	if err := p.Tuple.Validate(); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return Tuple{}, &DecodeError{Field: ve.Field, Err: errors.New(ve.Reason)}
		}
		return Tuple{}, &DecodeError{Field: "payload", Err: err}
	}

	return p.Tuple, nil
}

// SlugHash computes the deterministic 32-bit tiebreak hash of an
// opportunity slug using FNV-1a. It is used only to make the feed ordering
// strict; it carries no meaning beyond tie-breaking.
func SlugHash(slug string) uint32 {
	h := fnv.New32a()
	// fnv.Write never returns an error.
	_, _ = h.Write([]byte(slug))
	return h.Sum32()
}
