package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAcquisitionTimeout marks a download that exhausted its transient
	// retries (timeouts, connection resets, 5xx responses).
	ErrAcquisitionTimeout = errors.New("acquisition timeout")
	// ErrAcquisitionRejected marks a non-retryable download failure (4xx).
	ErrAcquisitionRejected = errors.New("acquisition rejected")
	// ErrAcquisitionCorrupt marks a downloaded file that failed size or
	// content-type validation.
	ErrAcquisitionCorrupt = errors.New("acquisition corrupt")
	// ErrBackendUnavailable marks a transcription backend that cannot run at
	// all (missing credentials, missing binary, unsupported format). Triggers
	// fallback to the next backend, never pipeline failure.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrBackendTransient marks a hard failure on an otherwise-available
	// backend (network blip). Retried against the same backend a bounded
	// number of times before falling through.
	ErrBackendTransient = errors.New("backend transient failure")
	// ErrLedgerConflict marks an illegal or lost status transition.
	ErrLedgerConflict = errors.New("ledger conflict")
	// ErrDownstreamFailure marks summarizer or renderer errors, opaque to the
	// pipeline core.
	ErrDownstreamFailure = errors.New("downstream failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrDownstreamFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStep names the pipeline step responsible for an error, used when
// recording a failed episode for operator diagnosis.
func FailureStep(err error) string {
	switch {
	case errors.Is(err, ErrAcquisitionTimeout),
		errors.Is(err, ErrAcquisitionRejected),
		errors.Is(err, ErrAcquisitionCorrupt):
		return "download"
	case errors.Is(err, ErrBackendUnavailable), errors.Is(err, ErrBackendTransient):
		return "transcribe"
	case errors.Is(err, ErrLedgerConflict):
		return "ledger"
	case errors.Is(err, ErrDownstreamFailure):
		return "downstream"
	default:
		return "pipeline"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
