// Package validate provides centralized input validation utilities for the
// feed API: identifier, wallet, and chain-name checks applied before
// requests reach the core.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Character count, not byte count
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}

	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

var (
	walletPattern      = regexp.MustCompile(`^[A-Za-z0-9:._-]+$`)
	opportunityPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	chainPattern       = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// WalletAddress validates a wallet address. Addresses are chain-specific
// (0x-hex, base58, bech32), so the check is shape-level only: 4-128
// characters from the union of common address alphabets.
func WalletAddress(addr string) (string, error) {
	return String(addr, StringConstraints{
		MinLength:      4,
		MaxLength:      128,
		AllowedPattern: walletPattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}

// OpportunityID validates an opportunity identifier:
// - 1-64 characters
// - Letters, numbers, dash, underscore only
func OpportunityID(id string) (string, error) {
	return String(id, StringConstraints{
		MinLength:      1,
		MaxLength:      64,
		AllowedPattern: opportunityPattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}

// ChainName validates a chain name:
// - 1-32 characters
// - Lowercase letters, numbers, dash only (e.g. "ethereum", "arbitrum-one")
func ChainName(chain string) (string, error) {
	return String(chain, StringConstraints{
		MinLength:      1,
		MaxLength:      32,
		AllowedPattern: chainPattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}
