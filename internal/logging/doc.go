// Package logging wires log/slog with podscribe's console and JSON handlers
// and the attribute helpers shared across the repository.
package logging
