package runtime_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/umlsync/internal/presentation/plantuml"
	"github.com/aretw0/umlsync/internal/runtime"
	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/structured"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginCode = `@startuml
title Login
actor User
participant Login System
User -> Login System: login
Login System --> User: result
@enduml`

func newEngine(opts ...runtime.Option) *runtime.Engine {
	return runtime.NewEngine(structured.New(), opts...)
}

func TestEngine_InitialState(t *testing.T) {
	e := newEngine()
	s := e.State()

	assert.Equal(t, domain.InitialCode, s.Code)
	assert.Empty(t, s.Actors)
	assert.Empty(t, s.Actions)
	assert.Equal(t, 1, e.HistoryLen())
	assert.False(t, e.CanUndo())
	assert.False(t, e.CanRedo())
	assert.Equal(t, "@startuml\n\n\n@enduml", e.GeneratePlantUMLCode())
}

func TestEngine_UpdateFromCode(t *testing.T) {
	e := newEngine()

	var events []domain.Event
	e.On(domain.EventUpdate, func(ev domain.Event) error {
		events = append(events, ev)
		return nil
	})

	res, err := e.UpdateFromCode(context.Background(), loginCode, runtime.UpdateOptions{})
	require.NoError(t, err)

	s := e.State()
	assert.Equal(t, loginCode, s.Code)
	assert.Equal(t, "Login", s.Title)
	assert.Equal(t, []string{"User", "Login System"}, s.Actors)
	require.Len(t, s.Actions, 2)
	assert.True(t, s.Actions[1].Async)
	assert.False(t, s.IsDirty)
	assert.NotNil(t, s.LastSync)
	assert.Empty(t, s.ParseErrors)
	assert.Equal(t, 2, s.Stats.TotalActors)
	assert.Equal(t, 2, s.Stats.TotalActions)

	assert.True(t, res.Validation.Valid)
	assert.False(t, res.Fallback)
	require.NotNil(t, res.Diff)
	assert.Equal(t, []string{"User", "Login System"}, res.Diff.ActorsAdded)

	require.Len(t, events, 1)
	assert.Equal(t, domain.SourceCode, events[0].Source)
	assert.NotNil(t, events[0].Snapshot)
	assert.Equal(t, 2, e.HistoryLen())
	assert.True(t, e.CanUndo())
}

func TestEngine_UpdateFromCode_RecordsValidationIssues(t *testing.T) {
	e := newEngine()

	res, err := e.UpdateFromCode(context.Background(), "actor A\nloop forever", runtime.UpdateOptions{})
	require.NoError(t, err)
	assert.False(t, res.Validation.Valid)

	s := e.State()
	require.Len(t, s.ParseErrors, 1)
	assert.Equal(t, "line 2: unclosed loop block", s.ParseErrors[0].Message)
	assert.Len(t, s.ParseWarnings, 2)
	assert.Equal(t, []string{"A"}, s.Actors)
}

func TestEngine_UpdateFromCode_PreserveComplex(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.UpdateFromCode(ctx, "actor A\nactor B\nloop retry\nA -> B: ping\nend", runtime.UpdateOptions{})
	require.NoError(t, err)

	_, err = e.UpdateFromCode(ctx, "actor A\nactor B\nB -> A: pong", runtime.UpdateOptions{PreserveComplex: true})
	require.NoError(t, err)

	actions := e.State().Actions
	require.Len(t, actions, 2)
	assert.Equal(t, "pong", actions[0].Text)
	assert.Equal(t, domain.ActionLoop, actions[1].Type)
}

func TestEngine_UpdateFromCode_PreserveComplexKeepsOnlyMessages(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.UpdateFromCode(ctx, "actor A\nactor B\n== start ==\nloop retry\nA -> B: ping\nend", runtime.UpdateOptions{})
	require.NoError(t, err)

	text := "actor A\nactor B\n== phase ==\nnote left of A: hi\n...later...\nB -> A: pong"
	_, err = e.UpdateFromCode(ctx, text, runtime.UpdateOptions{PreserveComplex: true})
	require.NoError(t, err)

	actions := e.State().Actions
	kinds := make([]domain.ActionType, len(actions))
	for i, a := range actions {
		kinds[i] = a.Kind()
	}
	assert.Equal(t, []domain.ActionType{domain.ActionMessage, domain.ActionLoop}, kinds)
	assert.Equal(t, "pong", actions[0].Text)
}

func TestEngine_UpdateFromCode_RollsBackOnFailure(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	_, err := e.UpdateFromCode(ctx, loginCode, runtime.UpdateOptions{})
	require.NoError(t, err)

	var failures []domain.Event
	e.On(domain.EventError, func(ev domain.Event) error {
		failures = append(failures, ev)
		return nil
	})

	_, err = e.UpdateFromCode(ctx, "actor \xff", runtime.UpdateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidEncoding)

	s := e.State()
	assert.Equal(t, loginCode, s.Code)
	assert.Equal(t, []string{"User", "Login System"}, s.Actors)
	require.Len(t, s.ParseErrors, 1)
	assert.Equal(t, domain.ErrInvalidEncoding.Error(), s.ParseErrors[0].Message)
	assert.Equal(t, 2, e.HistoryLen())

	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, domain.ErrInvalidEncoding)
}

type fallbackParser struct{}

func (fallbackParser) SafeParse(ctx context.Context, text string) (*domain.Document, error) {
	lines := domain.NewParseResult()
	lines.Degraded = true
	lines.Notice = "worker timed out"
	return &domain.Document{Actors: []string{"Partial"}, Lines: lines, IsFallback: true}, nil
}

func (fallbackParser) Validate(text string) domain.Validation {
	return domain.Validation{Valid: true, Errors: []string{}, Warnings: []string{}}
}

func TestEngine_UpdateFromCode_FallbackKeepsModel(t *testing.T) {
	e := runtime.NewEngine(fallbackParser{})
	_, err := e.UpdateFromUI(context.Background(), runtime.Changes{Actors: &[]string{"Kept"}})
	require.NoError(t, err)

	res, err := e.UpdateFromCode(context.Background(), "actor Partial", runtime.UpdateOptions{})
	require.NoError(t, err)
	assert.True(t, res.Fallback)

	s := e.State()
	assert.Equal(t, "actor Partial", s.Code)
	assert.Equal(t, []string{"Kept"}, s.Actors)
	assert.Equal(t, []string{"worker timed out"}, res.Validation.Warnings)
}

type countingFallbackParser struct {
	fallbackParser
	validations *int
}

func (p countingFallbackParser) Validate(text string) domain.Validation {
	*p.validations++
	return p.fallbackParser.Validate(text)
}

func TestEngine_UpdateFromCode_FallbackSkipsValidationAndStats(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.UpdateFromCode(ctx, "actor A\nA -> Ghost: boo", runtime.UpdateOptions{})
	require.NoError(t, err)
	before := e.State()
	require.NotEmpty(t, before.ParseWarnings)
	require.NotZero(t, before.Stats.TotalActions)

	calls := 0
	fb := runtime.NewEngine(countingFallbackParser{validations: &calls})
	require.NoError(t, fb.Import(e.Export()))
	_, err = fb.UpdateFromCode(ctx, "actor Partial", runtime.UpdateOptions{})
	require.NoError(t, err)

	after := fb.State()
	assert.Zero(t, calls, "validation must not run on a degraded parse")
	assert.Equal(t, before.Stats, after.Stats)
	assert.Equal(t, before.ParseWarnings, after.ParseWarnings)
	assert.Equal(t, before.ParseErrors, after.ParseErrors)
}

func TestEngine_UpdateFromUI(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := newEngine(runtime.WithClock(func() time.Time { return now }))

	actions := []domain.Action{domain.NewMessage("User", "Order System", "order")}
	res, err := e.UpdateFromUI(context.Background(), runtime.Changes{
		Actors:         &[]string{"User", "Order System", "User"},
		SelectedActors: &[]string{"User", "Ghost"},
		Actions:        &actions,
	})
	require.NoError(t, err)

	s := e.State()
	assert.Equal(t, []string{"User", "Order System"}, s.Actors)
	assert.Equal(t, []string{"User"}, s.SelectedActors)
	assert.Equal(t, plantuml.Generate("", s.Actors, s.Actions), s.Code)
	assert.Contains(t, s.Code, "User -> Order System: order")
	assert.True(t, s.IsDirty)
	require.NotNil(t, s.LastModified)
	assert.Equal(t, now, *s.LastModified)
	require.NotNil(t, res.Diff)
	assert.NotNil(t, res.Diff.Code)
}

func TestEngine_UpdateFromUI_RejectsInvalidActions(t *testing.T) {
	e := newEngine()
	var failed atomic.Int32
	e.On(domain.EventError, func(domain.Event) error {
		failed.Add(1)
		return nil
	})

	bad := []domain.Action{{Type: "teleport"}}
	_, err := e.UpdateFromUI(context.Background(), runtime.Changes{
		Actors:  &[]string{"A"},
		Actions: &bad,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action type")

	s := e.State()
	assert.Empty(t, s.Actors)
	assert.Len(t, s.ParseErrors, 1)
	assert.Equal(t, int32(1), failed.Load())
}

func TestDecodeChanges(t *testing.T) {
	c, err := runtime.DecodeChanges(map[string]any{
		"title":  "Checkout",
		"actors": []any{"A", "B"},
		"actions": []any{
			map[string]any{"type": "message", "from": "A", "to": "B", "text": "pay"},
			map[string]any{
				"type":      "loop",
				"condition": "until done",
				"actions":   []any{map[string]any{"from": "B", "to": "A", "text": "ack"}},
			},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, c.Title)
	assert.Equal(t, "Checkout", *c.Title)
	assert.Equal(t, []string{"A", "B"}, *c.Actors)
	assert.Nil(t, c.SelectedActors)
	require.Len(t, *c.Actions, 2)
	assert.Equal(t, "ack", (*c.Actions)[1].Actions[0].Text)

	_, err = runtime.DecodeChanges(map[string]any{"colour": "red"})
	assert.Error(t, err)

	empty, err := runtime.DecodeChanges(map[string]any{})
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestEngine_UndoRedo(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	var restores int
	e.On(domain.EventRestore, func(domain.Event) error {
		restores++
		return nil
	})

	for _, code := range []string{"actor A", "actor A\nactor B", "actor A\nactor B\nactor C"} {
		_, err := e.UpdateFromCode(ctx, code, runtime.UpdateOptions{})
		require.NoError(t, err)
	}

	require.True(t, e.Undo())
	assert.Equal(t, "actor A\nactor B", e.State().Code)
	require.True(t, e.Undo())
	require.True(t, e.Undo())
	assert.Equal(t, domain.InitialCode, e.State().Code)
	assert.False(t, e.Undo())

	require.True(t, e.Redo())
	assert.Equal(t, []string{"A"}, e.State().Actors)
	assert.True(t, e.CanRedo())

	// A new update drops the redo branch.
	_, err := e.UpdateFromCode(ctx, "actor Z", runtime.UpdateOptions{})
	require.NoError(t, err)
	assert.False(t, e.CanRedo())
	assert.False(t, e.Redo())
	assert.Equal(t, 3, e.HistoryLen())
	assert.Equal(t, 4, restores)
}

func TestEngine_HistoryLimit(t *testing.T) {
	e := newEngine(runtime.WithHistoryLimit(3))
	ctx := context.Background()

	for _, code := range []string{"actor A", "actor B", "actor C", "actor D"} {
		_, err := e.UpdateFromCode(ctx, code, runtime.UpdateOptions{})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, e.HistoryLen())
	require.True(t, e.Undo())
	require.True(t, e.Undo())
	assert.False(t, e.Undo())
	assert.Equal(t, "actor B", e.State().Code)
}

func TestEngine_Listeners(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	var order []string
	e.On(domain.EventUpdate, func(domain.Event) error {
		order = append(order, "first")
		return errors.New("ignored")
	})
	e.On(domain.EventUpdate, func(domain.Event) error {
		order = append(order, "second")
		panic("listener bug")
	})
	third := e.On(domain.EventUpdate, func(domain.Event) error {
		order = append(order, "third")
		// Listeners run outside the lock and may read the engine.
		_ = e.State()
		return nil
	})

	_, err := e.UpdateFromCode(ctx, "actor A", runtime.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, order)

	assert.True(t, e.Off(domain.EventUpdate, third))
	assert.False(t, e.Off(domain.EventUpdate, third))

	order = nil
	_, err = e.UpdateFromCode(ctx, "actor B", runtime.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEngine_ExportImport(t *testing.T) {
	src := newEngine()
	ctx := context.Background()
	_, err := src.UpdateFromCode(ctx, loginCode, runtime.UpdateOptions{})
	require.NoError(t, err)

	data := src.Export()
	assert.Equal(t, domain.ExportVersion, data.Version)
	require.Len(t, data.History, 2)

	dst := newEngine()
	var imported bool
	dst.On(domain.EventImport, func(domain.Event) error {
		imported = true
		return nil
	})
	require.NoError(t, dst.Import(data))
	assert.True(t, imported)

	assert.Equal(t, src.State().Actors, dst.State().Actors)
	assert.Equal(t, loginCode, dst.State().Code)
	assert.Equal(t, 2, dst.HistoryLen())
	assert.True(t, dst.Undo())
	assert.Equal(t, domain.InitialCode, dst.State().Code)

	// The export is a copy.
	data.State.Actors[0] = "Mutated"
	assert.Equal(t, "User", src.State().Actors[0])

	assert.ErrorIs(t, dst.Import(nil), domain.ErrInvalidImport)
	assert.ErrorIs(t, dst.Import(&domain.Export{Version: domain.ExportVersion}), domain.ErrInvalidImport)
}

func TestEngine_Reset(t *testing.T) {
	e := newEngine()
	_, err := e.UpdateFromCode(context.Background(), loginCode, runtime.UpdateOptions{})
	require.NoError(t, err)

	var reset bool
	e.On(domain.EventReset, func(domain.Event) error {
		reset = true
		return nil
	})
	e.Reset()

	assert.True(t, reset)
	assert.Equal(t, domain.InitialCode, e.State().Code)
	assert.Empty(t, e.State().Actors)
	assert.Equal(t, 1, e.HistoryLen())
	assert.False(t, e.CanUndo())
}

func TestEngine_AutoBackup(t *testing.T) {
	e := newEngine()
	_, err := e.UpdateFromCode(context.Background(), "actor A", runtime.UpdateOptions{})
	require.NoError(t, err)

	var saved atomic.Int32
	var failures atomic.Int32
	sink := func(ctx context.Context, data *domain.Export) error {
		if saved.Add(1) == 1 {
			failures.Add(1)
			return errors.New("store offline")
		}
		if data.State.Code != "actor A" {
			return errors.New("unexpected export")
		}
		return nil
	}

	e.StartAutoBackup(context.Background(), sink, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return saved.Load() >= 3 }, time.Second, 5*time.Millisecond)

	e.Destroy()
	stopped := saved.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, saved.Load())
	assert.Equal(t, int32(1), failures.Load())
}
