/*
Package domain contains the core data model of the umlsync editor.

It defines the two representations kept in sync by the engine: the line-level
ParseResult produced from description text, and the canonical EditorState whose
Actions form a tree of sequence-diagram constructs. The package is pure and free
of I/O so every adapter and runtime can share it.

# Key Entities

  - ParseResult: actors, messages, notes and groups recognized line by line.
  - Action: a tagged variant (message, loop, condition, parallel, group, divider, delay, note).
  - EditorState: the canonical, editable model owned by the synchronization engine.
  - Snapshot: an immutable deep copy used for undo/redo and rollback.
  - Export: the serialized form of a state plus its history.
*/
package domain
