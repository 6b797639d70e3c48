package services_test

import (
	"errors"
	"fmt"
	"testing"

	"podscribe/internal/services"
)

func TestWrapPreservesMarkerAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := services.Wrap(services.ErrAcquisitionTimeout, "downloader", "get", "after 3 attempts", cause)

	if !errors.Is(err, services.ErrAcquisitionTimeout) {
		t.Fatalf("expected marker to survive wrapping: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to survive wrapping: %v", err)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "renderer", "write", "", nil)
	if !errors.Is(err, services.ErrDownstreamFailure) {
		t.Fatalf("expected downstream default, got %v", err)
	}
}

func TestFailureStep(t *testing.T) {
	cases := []struct {
		err  error
		step string
	}{
		{services.Wrap(services.ErrAcquisitionRejected, "downloader", "get", "404", nil), "download"},
		{services.Wrap(services.ErrAcquisitionCorrupt, "downloader", "validate", "too small", nil), "download"},
		{services.Wrap(services.ErrBackendTransient, "openai", "transcribe", "timeout", nil), "transcribe"},
		{services.Wrap(services.ErrLedgerConflict, "ledger", "advance", "status changed", nil), "ledger"},
		{services.Wrap(services.ErrDownstreamFailure, "summary", "complete", "quota", nil), "downstream"},
		{fmt.Errorf("unclassified"), "pipeline"},
	}
	for _, tc := range cases {
		if got := services.FailureStep(tc.err); got != tc.step {
			t.Fatalf("FailureStep(%v) = %q, want %q", tc.err, got, tc.step)
		}
	}
}
