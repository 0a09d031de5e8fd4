package domain

import "time"

// ExportVersion is the format version written by Export.
const ExportVersion = "2.0.0"

// Export is the serialized form of an editor: state plus history.
type Export struct {
	Version   string       `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
	State     *EditorState `json:"state,omitempty"`
	History   []Snapshot   `json:"history,omitempty"`

	// Sealed holds an encrypted envelope of the other fields.
	// It is set only by storage middleware; State and History are empty then.
	Sealed string `json:"sealed,omitempty"`
}

// Clone deep-copies the export.
func (e *Export) Clone() *Export {
	if e == nil {
		return nil
	}
	out := *e
	out.State = e.State.Clone()
	if e.History != nil {
		out.History = make([]Snapshot, len(e.History))
		for i, s := range e.History {
			out.History[i] = s.Clone()
		}
	}
	return &out
}
