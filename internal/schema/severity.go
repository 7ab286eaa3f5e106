package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Severity is the Nessus risk level of a finding, ordered Other < Low < Med < High.
type Severity int

const (
	SeverityOther Severity = iota
	SeverityLow
	SeverityMed
	SeverityHigh
)

// Severities lists every level from most to least severe.
var Severities = []Severity{SeverityHigh, SeverityMed, SeverityLow, SeverityOther}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMed:
		return "Med"
	case SeverityHigh:
		return "High"
	default:
		return "Other"
	}
}

// Plural is the bucket label used by viewers ("Highs", "Meds", ...).
func (s Severity) Plural() string {
	return s.String() + "s"
}

// SeverityFromInt maps the numeric severity attribute of a scan file.
// Critical (4) folds into High; anything unknown is Other.
func SeverityFromInt(n int) Severity {
	switch {
	case n >= 3:
		return SeverityHigh
	case n == 2:
		return SeverityMed
	case n == 1:
		return SeverityLow
	default:
		return SeverityOther
	}
}

// ParseSeverity parses a severity name or number case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 4 {
		return SeverityFromInt(n), nil
	}
	switch v {
	case "high", "highs", "critical":
		return SeverityHigh, nil
	case "med", "meds", "medium", "moderate":
		return SeverityMed, nil
	case "low", "lows":
		return SeverityLow, nil
	case "other", "others", "info", "none":
		return SeverityOther, nil
	default:
		return SeverityOther, fmt.Errorf("invalid severity: %s", s)
	}
}
