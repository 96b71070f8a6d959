package models

import "errors"

// Failure taxonomy shared by every stage. Wrap with fmt.Errorf("...: %w", ...)
// and match with errors.Is.
var (
	// ErrUpstreamUnavailable: the comment source kept failing after the
	// bounded retry budget. Run-level.
	ErrUpstreamUnavailable = errors.New("upstream comment source unavailable")

	// ErrMalformedPayload: a single raw payload could not be normalized.
	// Logged and skipped, never fatal to the run.
	ErrMalformedPayload = errors.New("malformed raw payload")

	// ErrAnalysisUnavailable: the analysis collaborator failed for an entire
	// batch after retries. Batch-level; later batches still run.
	ErrAnalysisUnavailable = errors.New("analysis service unavailable")

	// ErrStorageWriteFailed: an upsert failed after its retry. The item is
	// dropped and counted.
	ErrStorageWriteFailed = errors.New("storage write failed")
)
