package domain

import "time"

// ActorDecl is an actor declaration recognized on a single line.
type ActorDecl struct {
	Type string `json:"type" msgpack:"type"`
	Name string `json:"name" msgpack:"name"`
	Line int    `json:"line" msgpack:"line"`
	ID   string `json:"id" msgpack:"id"`
}

// MessageLine is a message arrow recognized on a single line.
type MessageLine struct {
	From  string `json:"from" msgpack:"from"`
	To    string `json:"to" msgpack:"to"`
	Text  string `json:"text" msgpack:"text"`
	Arrow string `json:"arrow" msgpack:"arrow"`
	Line  int    `json:"line" msgpack:"line"`
	ID    string `json:"id" msgpack:"id"`
}

// NoteLine is a note recognized on a single line.
type NoteLine struct {
	Position string `json:"position" msgpack:"position"`
	Text     string `json:"text" msgpack:"text"`
	Line     int    `json:"line" msgpack:"line"`
	ID       string `json:"id" msgpack:"id"`
}

// GroupLine is the opening line of a group-like block (group, alt, loop).
type GroupLine struct {
	Type  string `json:"type" msgpack:"type"`
	Label string `json:"label" msgpack:"label"`
	Line  int    `json:"line" msgpack:"line"`
	ID    string `json:"id" msgpack:"id"`
}

// ParseResult is the line-level view of a description text.
// It is treated as immutable once produced; use Clone before modifying a copy.
type ParseResult struct {
	Actors    []ActorDecl   `json:"actors" msgpack:"actors"`
	Messages  []MessageLine `json:"messages" msgpack:"messages"`
	Notes     []NoteLine    `json:"notes" msgpack:"notes"`
	Groups    []GroupLine   `json:"groups" msgpack:"groups"`
	LineCount int           `json:"lineCount" msgpack:"lineCount"`
	Timestamp time.Time     `json:"timestamp" msgpack:"timestamp"`

	// Degraded marks results produced by a lower fallback tier.
	Degraded bool `json:"degraded,omitempty" msgpack:"degraded,omitempty"`
	// SafeMode marks results produced by the capped safe-mode parse.
	SafeMode bool `json:"safeMode,omitempty" msgpack:"safeMode,omitempty"`
	// Notice explains why a degraded tier was used.
	Notice string `json:"notice,omitempty" msgpack:"notice,omitempty"`
}

// NewParseResult returns an empty result with non-nil slices.
func NewParseResult() ParseResult {
	return ParseResult{
		Actors:   []ActorDecl{},
		Messages: []MessageLine{},
		Notes:    []NoteLine{},
		Groups:   []GroupLine{},
	}
}

// Clone returns a copy that shares no slices with r.
func (r ParseResult) Clone() ParseResult {
	out := r
	out.Actors = append([]ActorDecl{}, r.Actors...)
	out.Messages = append([]MessageLine{}, r.Messages...)
	out.Notes = append([]NoteLine{}, r.Notes...)
	out.Groups = append([]GroupLine{}, r.Groups...)
	return out
}

// ActorNames returns the declared actor names in order of appearance.
func (r ParseResult) ActorNames() []string {
	names := make([]string, 0, len(r.Actors))
	for _, a := range r.Actors {
		names = append(names, a.Name)
	}
	return names
}
