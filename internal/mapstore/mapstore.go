// Package mapstore defines the durable conference-to-code mapping store,
// a factory over its backends, and the in-memory backend used as the
// default and as the test double.
package mapstore

import (
	"context"
	"time"
)

// ConferenceStore is the durable bidirectional mapping between
// conference identifiers and room codes.
type ConferenceStore interface {
	// FindByConference returns the live code for the identifier,
	// allocating and durably inserting a new mapping on first sight.
	// Repeated calls return the same code until the entry expires.
	FindByConference(ctx context.Context, conference string) (int64, error)

	// FindByCode returns the identifier mapped to code, or
	// model.ErrNotFound. It never creates anything.
	FindByCode(ctx context.Context, code int64) (string, error)

	// SweepExpired removes every entry created before now minus the
	// retention window and reports how many rows it removed. Sweeping
	// twice in a row removes nothing the second time.
	SweepExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error)

	// Close releases the backing storage connection.
	Close() error
}
