/*
Package observability provides tools for monitoring the umlsync dispatcher and engine.

It includes Prometheus metrics for parse tiers, cache efficiency and worker health,
and a bounded diagnostic Recorder that captures logs, performance marks and errors
for later inspection.
*/
package observability
