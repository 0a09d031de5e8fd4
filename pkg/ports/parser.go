package ports

import (
	"context"

	"github.com/aretw0/umlsync/pkg/domain"
)

// Parser turns description text into a structured document.
type Parser interface {
	// SafeParse parses text. An error means the text could not be interpreted at all;
	// malformed lines are skipped rather than reported.
	SafeParse(ctx context.Context, text string) (*domain.Document, error)

	// Validate reports structural problems without modifying anything.
	Validate(text string) domain.Validation
}

// LineParser produces the line-level view of a text. The dispatcher implements it.
type LineParser interface {
	Parse(ctx context.Context, text string) (domain.ParseResult, error)
}
