package synth

import "errors"

// Error classes for a synthesis call. Callers match with errors.Is;
// every failure of Synthesize wraps exactly one of these.
var (
	// ErrConfiguration covers bad input or config caught before any
	// network call (unknown language code, missing credentials).
	ErrConfiguration = errors.New("synthesis configuration invalid")

	// ErrNetwork is a transport-level failure during the provider POST.
	ErrNetwork = errors.New("synthesis provider unreachable")

	// ErrSynthesis means the provider never returned success within
	// the attempt budget.
	ErrSynthesis = errors.New("all synthesis attempts returned non-success status")

	// ErrTranscode is an external decoder failure or unparsable
	// decoder output.
	ErrTranscode = errors.New("synthesized audio transcode failed")

	// ErrIO is a filesystem failure writing the requested output file.
	ErrIO = errors.New("synthesized audio write failed")
)
