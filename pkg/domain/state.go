package domain

import (
	"slices"
	"time"
)

// InitialCode is the description text of an empty diagram.
const InitialCode = "@startuml\n\n@enduml"

// issueCodeLimit bounds the offending text stored with an Issue.
const issueCodeLimit = 100

// Issue is an entry of the parse error or warning log.
type Issue struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
}

// NewIssue builds an Issue, truncating code to its first 100 characters.
func NewIssue(at time.Time, message, code string) Issue {
	r := []rune(code)
	if len(r) > issueCodeLimit {
		code = string(r[:issueCodeLimit])
	}
	return Issue{Timestamp: at, Message: message, Code: code}
}

// Stats summarizes the canonical model.
type Stats struct {
	TotalActors  int           `json:"totalActors"`
	TotalActions int           `json:"totalActions"`
	TotalNotes   int           `json:"totalNotes"`
	ParseTime    time.Duration `json:"parseTime"`
}

// EditorState is the canonical, editable model.
type EditorState struct {
	// Actors is ordered and holds no duplicates.
	Actors []string `json:"actors"`
	// SelectedActors is a set kept as a subset of Actors.
	SelectedActors []string `json:"selectedActors"`
	Actions        []Action `json:"actions"`
	Code           string   `json:"code"`
	// Title is empty when the diagram has none.
	Title string `json:"title,omitempty"`

	LastSync     *time.Time `json:"lastSync,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	IsDirty      bool       `json:"isDirty"`

	ParseErrors   []Issue `json:"parseErrors"`
	ParseWarnings []Issue `json:"parseWarnings"`
	Stats         Stats   `json:"stats"`
}

// NewEditorState returns the state of an empty diagram.
func NewEditorState() *EditorState {
	return &EditorState{
		Actors:         []string{},
		SelectedActors: []string{},
		Actions:        []Action{},
		Code:           InitialCode,
		ParseErrors:    []Issue{},
		ParseWarnings:  []Issue{},
	}
}

// Clone deep-copies the state.
func (s *EditorState) Clone() *EditorState {
	if s == nil {
		return nil
	}
	out := *s
	out.Actors = slices.Clone(s.Actors)
	out.SelectedActors = slices.Clone(s.SelectedActors)
	out.Actions = CloneActions(s.Actions)
	out.ParseErrors = slices.Clone(s.ParseErrors)
	out.ParseWarnings = slices.Clone(s.ParseWarnings)
	if s.LastSync != nil {
		t := *s.LastSync
		out.LastSync = &t
	}
	if s.LastModified != nil {
		t := *s.LastModified
		out.LastModified = &t
	}
	return &out
}

// SetActors replaces the actor list, dropping duplicates and pruning the selection.
func (s *EditorState) SetActors(actors []string) {
	s.Actors = UniqueStrings(actors)
	s.PruneSelection()
}

// PruneSelection removes selected actors that are no longer declared.
func (s *EditorState) PruneSelection() {
	kept := make([]string, 0, len(s.SelectedActors))
	for _, name := range UniqueStrings(s.SelectedActors) {
		if slices.Contains(s.Actors, name) {
			kept = append(kept, name)
		}
	}
	s.SelectedActors = kept
}

// IsSelected reports whether the actor is part of the selection.
func (s *EditorState) IsSelected(actor string) bool {
	return slices.Contains(s.SelectedActors, actor)
}

// Snapshot captures the undoable part of the state.
func (s *EditorState) Snapshot(at time.Time) Snapshot {
	return Snapshot{
		Actors:         slices.Clone(s.Actors),
		Actions:        CloneActions(s.Actions),
		Code:           s.Code,
		Title:          s.Title,
		SelectedActors: slices.Clone(s.SelectedActors),
		Timestamp:      at,
	}
}

// Restore applies a snapshot. The snapshot itself is left untouched.
func (s *EditorState) Restore(snap Snapshot) {
	s.Actors = slices.Clone(snap.Actors)
	s.Actions = CloneActions(snap.Actions)
	s.Code = snap.Code
	s.Title = snap.Title
	s.SelectedActors = slices.Clone(snap.SelectedActors)
	if s.Actors == nil {
		s.Actors = []string{}
	}
	if s.Actions == nil {
		s.Actions = []Action{}
	}
	if s.SelectedActors == nil {
		s.SelectedActors = []string{}
	}
}

// Snapshot is an immutable deep copy of the undoable state.
type Snapshot struct {
	Actors         []string  `json:"actors"`
	Actions        []Action  `json:"actions"`
	Code           string    `json:"code"`
	Title          string    `json:"title,omitempty"`
	SelectedActors []string  `json:"selectedActors"`
	Timestamp      time.Time `json:"timestamp"`
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Actors = slices.Clone(s.Actors)
	out.Actions = CloneActions(s.Actions)
	out.SelectedActors = slices.Clone(s.SelectedActors)
	return out
}

// UniqueStrings returns values in order with duplicates and empty strings removed.
func UniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
