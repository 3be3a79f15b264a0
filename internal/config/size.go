package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// unlimitedSize disables the upload limit, like "0".
const unlimitedSize = "unlimited"

// sizeUnits maps upper-cased suffixes to multipliers, longest first so
// "MIB" is tried before "B". SI units are powers of 1000, IEC of 1024.
var sizeUnits = []struct {
	suffix string
	mult   float64
}{
	{"TIB", 1 << 40},
	{"GIB", 1 << 30},
	{"MIB", 1 << 20},
	{"KIB", 1 << 10},
	{"TB", 1e12},
	{"GB", 1e9},
	{"MB", 1e6},
	{"KB", 1e3},
	{"B", 1},
}

// ParseSize converts a size such as "1GiB", "500MB" or "1048576" to bytes.
// "", "0" and "unlimited" all yield 0, which callers treat as no limit.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" || strings.EqualFold(s, unlimitedSize) {
		return 0, nil
	}

	num, mult := s, 1.0

	upper := strings.ToUpper(s)
	for _, u := range sizeUnits {
		if strings.HasSuffix(upper, u.suffix) {
			num, mult = strings.TrimSpace(s[:len(s)-len(u.suffix)]), u.mult
			break
		}
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	if n < 0 {
		return 0, fmt.Errorf("invalid size %q: must be non-negative", s)
	}

	bytes := n * mult
	if bytes >= math.MaxInt64 {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}

	return int64(bytes), nil
}
