package core

import "errors"

// Sentinel errors shared across the ingestion and query paths. Callers wrap
// them with fmt.Errorf("...: %w", Err...) and the HTTP layer maps each to a
// status code.
var (
	// ErrExtraction: the byte content could not be parsed by the declared
	// format. Surfaced as a rejected ingestion, never retried automatically.
	ErrExtraction = errors.New("extraction failed")

	// ErrUnsupportedFormat: file extension or URL type not recognized;
	// rejected before any extraction attempt.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExternalService: a generation, transcription, or fetch call failed
	// or timed out.
	ErrExternalService = errors.New("external service failed")

	// ErrNotFound: an unknown source identifier or tenant was referenced.
	ErrNotFound = errors.New("not found")

	// ErrPermission: a cross-tenant access attempt. Never silently downgraded
	// to empty results.
	ErrPermission = errors.New("permission denied")
)
