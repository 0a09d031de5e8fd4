/*
Package dispatch routes description text to the cheapest parser that can serve it.

A Dispatcher answers Parse calls from, in order: the capped safe-mode parse (when
configured), its FIFO cache, an isolated worker context managed by a Manager, a
cooperative chunked parse on the caller's goroutine, and finally a degraded
actor-only scan. Every tier runs the recognizers of package lineparser.

The worker speaks a msgpack request/response protocol ({id, code} -> {id, result,
error}) over a byte stream, so the same ServeWorker loop runs in a goroutine behind
io.Pipe or in a child process behind stdin/stdout.
*/
package dispatch
