package dispatch

import (
	"context"
	"time"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/lineparser"
)

// parseCooperative parses on the caller's goroutine in chunks, yielding between
// them. A chunk ends after ChunkLines lines, or when IdleBudget is spent if one
// is configured.
func (d *Dispatcher) parseCooperative(ctx context.Context, text string) (domain.ParseResult, error) {
	s := lineparser.NewScanner(text, lineparser.All)
	for !s.Done() {
		if err := ctx.Err(); err != nil {
			return domain.ParseResult{}, err
		}
		if d.cfg.IdleBudget > 0 {
			deadline := time.Now().Add(d.cfg.IdleBudget)
			for !s.Done() && time.Now().Before(deadline) {
				s.Step(1)
			}
		} else {
			s.Step(d.cfg.ChunkLines)
		}
		if !s.Done() {
			d.yield()
		}
	}
	return s.Result(), nil
}
