package umlsync

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxLineSize bounds a single runner input line.
	DefaultMaxLineSize = 4096
	// EnvMaxLineSize overrides DefaultMaxLineSize.
	EnvMaxLineSize = "UMLSYNC_MAX_LINE_SIZE"
)

var (
	ErrLineTooLarge = errors.New("line exceeds maximum allowed size")
	ErrInvalidUTF8  = errors.New("line contains invalid UTF-8 sequences")
)

// SanitizeLine rejects oversized or non-UTF-8 input and strips control
// characters other than tab, so escape sequences never reach the draft.
func SanitizeLine(line string) (string, error) {
	limit := maxLineSize()
	if len(line) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrLineTooLarge, len(line), limit)
	}
	if !utf8.ValidString(line) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range line {
		if unicode.IsControl(r) && r != '\t' {
			clean = false
			break
		}
	}
	if clean {
		return line, nil
	}

	var b strings.Builder
	b.Grow(len(line))
	for _, r := range line {
		if !unicode.IsControl(r) || r == '\t' {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func maxLineSize() int {
	if val := os.Getenv(EnvMaxLineSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxLineSize
}
