package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
)

// Weights defines the rank score component weights.
// The three weights must sum to 1.0; the defaults are fixed product
// constants and calibration overrides are validated against that invariant.
type Weights struct {
	Relevance float64 `json:"relevance"` // Weight for the relevance signal (default: 0.60)
	Trust     float64 `json:"trust"`     // Weight for the trust signal (default: 0.25)
	Freshness float64 `json:"freshness"` // Weight for the freshness signal (default: 0.15)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight overrides
}

// weightSumTolerance absorbs float accumulation error when validating that
// the weights sum to 1.0.
const weightSumTolerance = 1e-9

// DefaultWeights returns the default rank score weight configuration:
//
//	rank_score = (relevance * 0.60) + (trust * 0.25) + (freshness * 0.15)
//
// Relevance dominates so engagement drives ordering, trust guards against
// low-quality protocols, and freshness keeps the feed from going stale.
func DefaultWeights() *Weights {
	return &Weights{
		Relevance: 0.60,
		Trust:     0.25,
		Freshness: 0.15,
	}
}

// Validate checks that every weight is positive and that the weights sum
// to 1.0 within tolerance. A zero or negative weight would break the
// strict monotonicity of the rank score in that component.
func (w *Weights) Validate() error {
	if w.Relevance <= 0 || w.Trust <= 0 || w.Freshness <= 0 {
		return fmt.Errorf("all weights must be positive: relevance=%.4f trust=%.4f freshness=%.4f",
			w.Relevance, w.Trust, w.Freshness)
	}
	sum := w.Relevance + w.Trust + w.Freshness
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

// LoadCalibration loads rank score weights from a JSON calibration file.
// If the file is missing, unparseable, or fails validation, the defaults
// are returned along with the error so callers degrade gracefully.
// Partial configurations are merged with defaults before validation.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read rank calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse rank calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	if err := merged.Validate(); err != nil {
		slog.Warn("invalid rank calibration, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("invalid calibration: %w", err)
	}

	logCalibrationOverrides(defaults, merged)
	return merged, nil
}

// MergeCalibration merges override weights with base weights.
// Only non-zero values from the override are applied, allowing partial
// overrides in the calibration file.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base

	if override.Relevance != 0 {
		result.Relevance = override.Relevance
	}
	if override.Trust != 0 {
		result.Trust = override.Trust
	}
	if override.Freshness != 0 {
		result.Freshness = override.Freshness
	}

	return &result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	if loaded.Relevance != defaults.Relevance {
		overrides = append(overrides, fmt.Sprintf("relevance: %.2f -> %.2f",
			defaults.Relevance, loaded.Relevance))
	}
	if loaded.Trust != defaults.Trust {
		overrides = append(overrides, fmt.Sprintf("trust: %.2f -> %.2f",
			defaults.Trust, loaded.Trust))
	}
	if loaded.Freshness != defaults.Freshness {
		overrides = append(overrides, fmt.Sprintf("freshness: %.2f -> %.2f",
			defaults.Freshness, loaded.Freshness))
	}

	if len(overrides) > 0 {
		slog.Info("loaded rank calibration with overrides", "overrides", overrides)
	} else {
		slog.Info("loaded rank calibration (using all defaults)")
	}
}
