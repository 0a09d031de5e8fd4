// Package runtime holds the synchronization engine: the canonical editor
// state, kept consistent between the description text and the structured
// model, with bounded undo/redo history, change listeners and periodic backup.
package runtime
