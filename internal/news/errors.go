package news

import "errors"

var (
	// ErrUnknownTicker means the ticker has no registry entry.
	ErrUnknownTicker = errors.New("unknown ticker")

	// ErrNotFound means no stored document matches the given id.
	ErrNotFound = errors.New("document not found")

	// ErrAnalysisRejected means the model response failed validation and the
	// caller should use the fallback analysis.
	ErrAnalysisRejected = errors.New("analysis rejected")
)
