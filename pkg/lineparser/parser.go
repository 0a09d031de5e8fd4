package lineparser

import (
	"strings"
	"time"

	"github.com/aretw0/umlsync/pkg/domain"
)

const (
	// SafeModeLines caps the lines read by ParseSafe.
	SafeModeLines = 100
	// MinimalScanLines caps the lines read by the degraded actor scan.
	MinimalScanLines = 50
)

// Parse recognizes every supported construct in text. It never fails.
func Parse(text string) domain.ParseResult {
	s := NewScanner(text, All)
	for !s.Done() {
		s.Step(len(s.lines))
	}
	return s.Result()
}

// ParseSafe is the capped parse used in safe mode: only the first 100 lines,
// actors and messages only.
func ParseSafe(text string) domain.ParseResult {
	lines := splitLines(text)
	acc := newAccumulator(len(lines))
	for i, line := range lines {
		if i >= SafeModeLines {
			break
		}
		acc.line(line, i, Actors|Messages)
	}
	acc.res.SafeMode = true
	acc.res.Timestamp = time.Now()
	return acc.res
}

// ScanActors is the last-resort tier: actor declarations within the first
// limit lines. The result is marked degraded.
func ScanActors(text string, limit int) domain.ParseResult {
	if limit <= 0 {
		limit = MinimalScanLines
	}
	lines := splitLines(text)
	acc := newAccumulator(len(lines))
	for i, line := range lines {
		if i >= limit {
			break
		}
		acc.line(line, i, Actors)
	}
	acc.res.Degraded = true
	acc.res.Timestamp = time.Now()
	return acc.res
}

// Scanner parses text incrementally so callers can yield between chunks.
type Scanner struct {
	lines    []string
	next     int
	features Features
	acc      *accumulator
}

// NewScanner prepares an incremental parse of text with the given recognizers.
func NewScanner(text string, features Features) *Scanner {
	lines := splitLines(text)
	return &Scanner{
		lines:    lines,
		features: features,
		acc:      newAccumulator(len(lines)),
	}
}

// Step consumes up to n lines in index order and returns how many were consumed.
func (s *Scanner) Step(n int) int {
	consumed := 0
	for consumed < n && s.next < len(s.lines) {
		s.acc.line(s.lines[s.next], s.next, s.features)
		s.next++
		consumed++
	}
	return consumed
}

// Done reports whether every line has been consumed.
func (s *Scanner) Done() bool {
	return s.next >= len(s.lines)
}

// Remaining returns the number of lines not yet consumed.
func (s *Scanner) Remaining() int {
	return len(s.lines) - s.next
}

// Result returns the accumulated result, stamped with the current time.
func (s *Scanner) Result() domain.ParseResult {
	res := s.acc.res.Clone()
	res.Timestamp = time.Now()
	return res
}

func splitLines(text string) []string {
	return strings.Split(text, "\n")
}
