// Package services defines the error kinds shared by the episode pipeline.
// Every failure that crosses a component boundary is tagged with one of the
// sentinel markers so callers can decide between retry, backend fallback, and
// surfacing the error to the operator.
package services
