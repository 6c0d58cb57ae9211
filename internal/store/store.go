// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/voicecall/internal/domain"
)

// CallSummary is what a session reports when it ends.
type CallSummary struct {
	Participants        int
	TranscriptTurns     int
	TranscriptForwarded bool
	Error               string
}

// Repository defines the interface for the call log.
type Repository interface {
	// CreateCall inserts a new call record.
	CreateCall(ctx context.Context, call *domain.CallSession) error

	// AttachRoom records the provisioned room and moves the call to room_provisioned.
	AttachRoom(ctx context.Context, id, roomName, roomURL string) error

	// UpdateCallState moves a call to state.
	UpdateCallState(ctx context.Context, id string, state domain.CallState) error

	// EndCall marks a call ended with its summary. It retries on SQLITE_BUSY.
	EndCall(ctx context.Context, id string, summary CallSummary) error

	// GetCall retrieves a call by id. It returns nil, nil when there is none.
	GetCall(ctx context.Context, id string) (*domain.CallSession, error)

	// ListCalls returns the most recent calls, newest first.
	ListCalls(ctx context.Context, limit int) ([]*domain.CallSession, error)

	// DeleteEndedBefore removes ended calls that finished before cutoff.
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
