package domain

import (
	"reflect"
	"slices"
)

// StateDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// ActorsAdded and ActorsRemoved are computed as set differences.
	ActorsAdded   []string `json:"actorsAdded,omitempty"`
	ActorsRemoved []string `json:"actorsRemoved,omitempty"`

	Code  *string `json:"code,omitempty"`
	Title *string `json:"title,omitempty"`

	// Actions carries the whole new tree when anything in it changed.
	Actions []Action `json:"actions,omitempty"`

	// Selection carries the new selection when it changed.
	Selection []string `json:"selection,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap (initial load).
func Diff(oldSnap, newSnap *Snapshot) *StateDiff {
	if newSnap == nil {
		return nil
	}

	diff := &StateDiff{}

	if oldSnap == nil {
		diff.ActorsAdded = slices.Clone(newSnap.Actors)
		diff.Code = &newSnap.Code
		if newSnap.Title != "" {
			diff.Title = &newSnap.Title
		}
		diff.Actions = CloneActions(newSnap.Actions)
		diff.Selection = slices.Clone(newSnap.SelectedActors)
	} else {
		diff.ActorsAdded = difference(newSnap.Actors, oldSnap.Actors)
		diff.ActorsRemoved = difference(oldSnap.Actors, newSnap.Actors)
		if oldSnap.Code != newSnap.Code {
			diff.Code = &newSnap.Code
		}
		if oldSnap.Title != newSnap.Title {
			diff.Title = &newSnap.Title
		}
		if !reflect.DeepEqual(oldSnap.Actions, newSnap.Actions) {
			diff.Actions = CloneActions(newSnap.Actions)
			if diff.Actions == nil {
				diff.Actions = []Action{}
			}
		}
		if !slices.Equal(oldSnap.SelectedActors, newSnap.SelectedActors) {
			diff.Selection = slices.Clone(newSnap.SelectedActors)
			if diff.Selection == nil {
				diff.Selection = []string{}
			}
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// difference returns the items of a missing from b, preserving a's order.
func difference(a, b []string) []string {
	var out []string
	for _, v := range a {
		if !slices.Contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return len(d.ActorsAdded) == 0 &&
		len(d.ActorsRemoved) == 0 &&
		d.Code == nil &&
		d.Title == nil &&
		d.Actions == nil &&
		d.Selection == nil
}
