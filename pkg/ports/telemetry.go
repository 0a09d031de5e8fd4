package ports

import "time"

// Telemetry receives optional diagnostics from the dispatcher and the engine.
type Telemetry interface {
	Log(category, message string, attrs ...any)
	Mark(label string)
	// Measure returns the time elapsed between two marks, or zero if one is missing.
	Measure(name, startMark, endMark string) time.Duration
	CaptureError(err error, attrs ...any)
}

// NopTelemetry discards everything.
type NopTelemetry struct{}

func (NopTelemetry) Log(string, string, ...any)                    {}
func (NopTelemetry) Mark(string)                                    {}
func (NopTelemetry) Measure(string, string, string) time.Duration { return 0 }
func (NopTelemetry) CaptureError(error, ...any)                     {}
