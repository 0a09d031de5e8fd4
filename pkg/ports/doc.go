/*
Package ports defines the driven ports (interfaces) for the umlsync editor.

These interfaces decouple the dispatcher and the synchronization engine from
external implementations, allowing them to work with various parsers, storage
backends, diagram libraries and telemetry sinks.

# Key Interfaces

  - Parser: The grammar-aware parser used by the engine (SafeParse and Validate).
  - SnapshotStore: Responsible for persisting and loading editor exports.
  - DiagramLibrary: A source of named description texts (e.g., Loam or Memory).
  - DistributedLocker: Provides distributed locking for concurrent session access.
  - Telemetry: Optional sink for logs, performance marks and captured errors.
*/
package ports
