// Package storage persists analysis output: sessions, power-spectrum
// frames and completed signal events, backed by SQLite.
package storage

import (
	"context"

	"github.com/roman-kulish/signal-analysis/internal/spectrum"
)

// Store provides persistence for analysis runs. All write operations are
// atomic; implementations must be safe for use from a single writer
// goroutine and any number of readers.
type Store interface {
	// CreateSession initializes a new analysis session and returns its
	// unique identifier. Config can be a string, []byte or any
	// JSON-serializable object, and is stored verbatim for provenance.
	CreateSession(ctx context.Context, source string, sampleRate float64, config any) (sessionID int64, err error)

	// Session retrieves a single session by ID.
	Session(ctx context.Context, id int64) (*spectrum.Session, error)

	// Sessions returns all sessions ordered by start time.
	Sessions(ctx context.Context) ([]*spectrum.Session, error)

	// StoreFrame persists one power-spectrum frame for a session.
	StoreFrame(ctx context.Context, sessionID int64, frame *spectrum.Frame) error

	// StoreEvent persists one completed event for a session.
	StoreEvent(ctx context.Context, sessionID int64, ev spectrum.Event) error

	// Events returns a session's events ordered by start time.
	Events(ctx context.Context, sessionID int64) ([]spectrum.Event, error)

	// ReadFrames returns an iterator over a session's frames in time
	// order. The iterator must be closed after use.
	ReadFrames(ctx context.Context, sessionID int64) (*FrameIterator, error)

	// Close releases all database connections. Safe to call repeatedly.
	Close() error
}
