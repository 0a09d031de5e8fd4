package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

type redactionMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks text matching the patterns
// in the description text, the title, message texts and notes before persisting.
// Actor names are left alone so that the model stays consistent.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) Save(ctx context.Context, sessionID string, export *domain.Export) error {
	// Clone so the engine's own export is not modified.
	cloned := export.Clone()
	if cloned.State != nil {
		cloned.State.Code = m.mask(cloned.State.Code)
		cloned.State.Title = m.mask(cloned.State.Title)
		m.maskActions(cloned.State.Actions)
		for i := range cloned.State.ParseErrors {
			cloned.State.ParseErrors[i].Code = m.mask(cloned.State.ParseErrors[i].Code)
		}
		for i := range cloned.State.ParseWarnings {
			cloned.State.ParseWarnings[i].Code = m.mask(cloned.State.ParseWarnings[i].Code)
		}
	}
	for i := range cloned.History {
		cloned.History[i].Code = m.mask(cloned.History[i].Code)
		cloned.History[i].Title = m.mask(cloned.History[i].Title)
		m.maskActions(cloned.History[i].Actions)
	}
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, sessionID string) (*domain.Export, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactionMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}

func (m *redactionMiddleware) maskActions(actions []domain.Action) {
	for i := range actions {
		a := &actions[i]
		a.Text = m.mask(a.Text)
		a.Condition = m.mask(a.Condition)
		a.ConditionName = m.mask(a.ConditionName)
		a.ElseCondition = m.mask(a.ElseCondition)
		a.Label = m.mask(a.Label)
		m.maskActions(a.Actions)
		m.maskActions(a.TrueBranch)
		m.maskActions(a.FalseBranch)
		for _, b := range a.Branches {
			m.maskActions(b)
		}
	}
}
