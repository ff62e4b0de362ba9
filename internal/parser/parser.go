// Package parser provides the immutable pattern catalog for game-server
// log lines, plus mission-name normalization and tier classification.
package parser

import (
	"strings"
	"time"
)

// Match is one pattern hit on a line. Groups holds the capture groups in
// order, excluding the full match.
type Match struct {
	Name   string
	Groups []string
}

// Catalog evaluates every rule against a line. Rules are not mutually
// exclusive: a single line can produce several matches.
type Catalog struct{}

// NewCatalog returns the catalog. The rule set is compiled once at
// package init and shared; Catalog carries no state.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Match returns every pattern that hits the line, in catalog order.
func (c *Catalog) Match(line string) []Match {
	// Trim trailing CR for Windows CRLF compatibility
	line = strings.TrimRight(line, "\r")

	var matches []Match
	for _, rule := range rules {
		m := rule.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		matches = append(matches, Match{Name: rule.name, Groups: m[1:]})
	}
	return matches
}

// Timestamp extracts the bracketed log timestamp from a line, if present.
func (c *Catalog) Timestamp(line string) (time.Time, bool) {
	m := timestampPattern.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	// Millisecond suffix is dropped; second precision is enough for
	// presence tracking.
	raw := m[1]
	if idx := strings.LastIndex(raw, ":"); idx >= 0 {
		raw = raw[:idx]
	}
	ts, err := time.ParseInLocation(timestampLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
