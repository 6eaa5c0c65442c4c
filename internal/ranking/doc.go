// Package ranking computes the composite rank score that orders the
// opportunity feed.
//
// The score combines three normalized signals:
//
//	rank_score = (relevance * 0.60) + (trust * 0.25) + (freshness * 0.15)
//
// All raw inputs are clamped to [0, 1] before weighting; undefined inputs
// (NaN) are treated as 0 rather than propagated. The weights are fixed by
// default but can be overridden through a JSON calibration file, which is
// merged over defaults so partial overrides are safe.
//
// Score returns a Breakdown carrying both the raw and the weighted component
// values alongside the final score. Keeping the intermediates allows an
// alternative weight set to be applied to the same raw signals with
// Breakdown.Reweigh, without recomputing normalization. This is used when
// comparing calibration candidates over a fixed signal snapshot.
//
// The scorer is a pure function with no internal state and is safe for
// concurrent use.
package ranking
