package enums

import (
	"fmt"
	"slices"
)

// parse matches value exactly against the known members of an enum.
func parse[T ~string](kind, value string, known []T) (T, error) {
	if i := slices.Index(known, T(value)); i >= 0 {
		return known[i], nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
