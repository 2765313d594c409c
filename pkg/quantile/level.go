package quantile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseLevel parses a quantile level from p-notation (p25, p90), a percent
// suffix (25%) or decimal notation (0.25).
//
// Examples:
//   - "p50" → 0.50
//   - "p2.5" → 0.025
//   - "75%" → 0.75
//   - "0.9" → 0.90
func ParseLevel(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty level", ErrInvalidQuantile)
	}

	var percentStr string
	switch {
	case strings.HasPrefix(strings.ToLower(s), "p"):
		percentStr = s[1:]
	case strings.HasSuffix(s, "%"):
		percentStr = strings.TrimSuffix(s, "%")
	}

	if percentStr != "" {
		p, err := strconv.ParseFloat(percentStr, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid percentile %q: %w", s, err)
		}
		if p < 0 || p > 100 {
			return 0, fmt.Errorf("%w: percentile %v not in [0, 100]", ErrInvalidQuantile, p)
		}
		return p / 100, nil
	}

	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantile %q: %w", s, err)
	}
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidQuantile, q)
	}
	return q, nil
}

// ParseLevels parses a comma separated list of levels.
func ParseLevels(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		q, err := ParseLevel(part)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// FormatLevel formats a quantile level as p-notation for display.
//
// Examples:
//   - 0.25 → "p25"
//   - 0.975 → "p97.5"
func FormatLevel(q float64) string {
	percentile := math.Round(q*100*1e6) / 1e6
	if percentile == math.Trunc(percentile) {
		return fmt.Sprintf("p%d", int(percentile))
	}
	return "p" + strconv.FormatFloat(percentile, 'f', -1, 64)
}
