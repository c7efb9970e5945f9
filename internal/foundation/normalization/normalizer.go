// Package normalization maps free-form user input (config values, env vars,
// CLI flags) onto closed enum sets. Lookup is case-insensitive and
// whitespace-tolerant so "Debug", " debug " and "DEBUG" all resolve the same.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Normalizer resolves raw strings to values of a closed enum set, falling
// back to a default for unrecognized input.
type Normalizer[T comparable] struct {
	values       map[string]T
	defaultValue T
	keys         []string
}

// NewNormalizer builds a normalizer from a map of accepted spellings to enum
// values. Map keys are canonicalized, so callers may list them in any case.
func NewNormalizer[T comparable](values map[string]T, defaultValue T) *Normalizer[T] {
	canonical := make(map[string]T, len(values))
	keys := make([]string, 0, len(values))
	for k, v := range values {
		ck := canonicalize(k)
		canonical[ck] = v
		keys = append(keys, ck)
	}
	sort.Strings(keys)

	return &Normalizer[T]{values: canonical, defaultValue: defaultValue, keys: keys}
}

// Normalize resolves raw to its enum value, or the default when unrecognized.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[canonicalize(raw)]; ok {
		return v
	}
	return n.defaultValue
}

// NormalizeStrict resolves raw to its enum value, erroring on unrecognized
// input instead of defaulting. Used on validation paths where silently
// substituting a default would mask a typo.
func (n *Normalizer[T]) NormalizeStrict(raw string) (T, error) {
	if v, ok := n.values[canonicalize(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid value %q, valid options: %v", raw, n.keys)
}

// ValidKeys returns the accepted canonical spellings, sorted.
func (n *Normalizer[T]) ValidKeys() []string {
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

func canonicalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
