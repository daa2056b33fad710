// Package enums holds the closed string sets stored in text columns and
// carried on the wire.
package enums

import (
	"fmt"
	"slices"
)

// set is the full membership of one enum type.
type set[T ~string] []T

func (s set[T]) has(v T) bool {
	return slices.Contains(s, v)
}

func (s set[T]) parse(kind, raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
