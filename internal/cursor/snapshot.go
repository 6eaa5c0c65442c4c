package cursor

import "time"

// NewSnapshot returns the watermark for a fresh scroll session: the current
// time in Unix seconds. Rows whose effective update time is at or before
// this instant are visible to the session; later refresh-job writes are not.
func NewSnapshot() int64 {
	return time.Now().Unix()
}

// Snapshot extracts the session watermark from an existing cursor token.
// Returns a DecodeError if the token is not a valid cursor.
func Snapshot(token string) (int64, error) {
	t, err := Decode(token)
	if err != nil {
		return 0, err
	}
	return t.SnapshotTS, nil
}

// ResolveSnapshot returns the watermark for a page request: the one carried
// by the cursor when present, or a fresh snapshot when the request starts a
// new session (empty token).
func ResolveSnapshot(token string) (int64, error) {
	if token == "" {
		return NewSnapshot(), nil
	}
	return Snapshot(token)
}
