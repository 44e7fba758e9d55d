package version

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Compare orders two release versions: 1 when a is newer, -1 when b is newer, 0 when equal.
// A leading "v" and any pre-release or build suffix are ignored. A missing patch counts as 0.
func Compare(a, b string) (int, error) {
	av, err := parse(a)
	if err != nil {
		return 0, err
	}
	bv, err := parse(b)
	if err != nil {
		return 0, err
	}
	return slices.Compare(av[:], bv[:]), nil
}

func parse(raw string) ([3]int, error) {
	var v [3]int

	core, _, _ := strings.Cut(strings.TrimPrefix(raw, "v"), "-")
	core, _, _ = strings.Cut(core, "+")

	parts := strings.Split(core, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return v, fmt.Errorf("version %q: want major.minor[.patch]", raw)
	}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return v, fmt.Errorf("version %q: bad component %q", raw, part)
		}
		v[i] = n
	}
	return v, nil
}
