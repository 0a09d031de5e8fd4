package runtime

import "github.com/aretw0/umlsync/pkg/domain"

// DefaultHistoryLimit bounds the undo history.
const DefaultHistoryLimit = 50

// history is an arena of snapshots with a cursor. index is -1 when empty.
type history struct {
	entries []domain.Snapshot
	index   int
	limit   int
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &history{index: -1, limit: limit}
}

// add drops everything after the cursor and pushes snap. When the bound is
// exceeded the oldest entry is evicted and the cursor stays put.
func (h *history) add(snap domain.Snapshot) {
	if h.index < len(h.entries)-1 {
		h.entries = h.entries[:h.index+1]
	}
	h.entries = append(h.entries, snap.Clone())
	if len(h.entries) > h.limit {
		h.entries = append([]domain.Snapshot(nil), h.entries[1:]...)
		return
	}
	h.index++
}

func (h *history) undo() (domain.Snapshot, bool) {
	if h.index <= 0 {
		return domain.Snapshot{}, false
	}
	h.index--
	return h.entries[h.index].Clone(), true
}

func (h *history) redo() (domain.Snapshot, bool) {
	if h.index >= len(h.entries)-1 {
		return domain.Snapshot{}, false
	}
	h.index++
	return h.entries[h.index].Clone(), true
}

func (h *history) canUndo() bool { return h.index > 0 }
func (h *history) canRedo() bool { return h.index < len(h.entries)-1 }

func (h *history) reset() {
	h.entries = nil
	h.index = -1
}

// replace loads entries from an import, keeping the newest ones that fit.
func (h *history) replace(entries []domain.Snapshot) {
	if len(entries) > h.limit {
		entries = entries[len(entries)-h.limit:]
	}
	h.entries = make([]domain.Snapshot, len(entries))
	for i, s := range entries {
		h.entries[i] = s.Clone()
	}
	h.index = len(h.entries) - 1
}

func (h *history) snapshots() []domain.Snapshot {
	out := make([]domain.Snapshot, len(h.entries))
	for i, s := range h.entries {
		out[i] = s.Clone()
	}
	return out
}
