package connectors

import (
	"fmt"
	"math"
	"strings"
)

// ParseCents parses a decimal money string ("25.00", "-3.5", "1200") into
// minor currency units. Upstream APIs that serialize money as strings keep
// exact decimals, so this stays in integer arithmetic end to end.
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	switch {
	case len(frac) == 0:
		frac = "00"
	case len(frac) == 1:
		frac += "0"
	case len(frac) > 2:
		// Sub-cent precision never appears in these APIs; reject rather
		// than silently round.
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}

	var cents int64
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		cents = cents*10 + int64(r-'0')
	}
	if neg {
		cents = -cents
	}
	return cents, nil
}

// CentsFromFloat converts a float money value into minor currency units,
// rounding to the nearest cent. For upstreams that serialize money as JSON
// numbers.
func CentsFromFloat(v float64) int64 {
	return int64(math.Round(v * 100))
}
