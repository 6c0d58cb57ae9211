package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/voicecall/internal/domain"
	"github.com/ashureev/voicecall/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	endCallAttempts  = 3
	endCallBaseDelay = 100 * time.Millisecond
	defaultListLimit = 50
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	return newSQLite(dbPath, time.Now)
}

func newSQLite(dbPath string, now func() time.Time) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: now}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS call_sessions (
		id TEXT PRIMARY KEY,
		room_name TEXT,
		room_url TEXT,
		state TEXT NOT NULL,
		participants INTEGER NOT NULL DEFAULT 0,
		transcript_turns INTEGER NOT NULL DEFAULT 0,
		transcript_forwarded INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		ended_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_call_sessions_created ON call_sessions(created_at);
	CREATE INDEX IF NOT EXISTS idx_call_sessions_ended ON call_sessions(ended_at) WHERE ended_at IS NOT NULL;
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateCall inserts a new call record.
func (s *SQLiteStore) CreateCall(ctx context.Context, call *domain.CallSession) error {
	query := `
	INSERT INTO call_sessions (id, room_name, room_url, state, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	now := s.now()
	if call.CreatedAt.IsZero() {
		call.CreatedAt = now
	}
	call.UpdatedAt = now
	if call.State == "" {
		call.State = domain.CallCreated
	}

	_, err := s.db.ExecContext(ctx, query,
		call.ID, nullString(call.RoomName), nullString(call.RoomURL), string(call.State),
		call.CreatedAt.UnixMilli(), call.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// AttachRoom records the provisioned room.
func (s *SQLiteStore) AttachRoom(ctx context.Context, id, roomName, roomURL string) error {
	query := `UPDATE call_sessions SET room_name = ?, room_url = ?, state = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query,
		roomName, roomURL, string(domain.CallRoomProvisioned), s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("attach room: %w", err)
	}
	return checkAffected(result, "AttachRoom", id)
}

// UpdateCallState moves a call to state. Ended calls are left untouched.
func (s *SQLiteStore) UpdateCallState(ctx context.Context, id string, state domain.CallState) error {
	query := `UPDATE call_sessions SET state = ?, updated_at = ? WHERE id = ? AND ended_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, string(state), s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update call state: %w", err)
	}
	return checkAffected(result, "UpdateCallState", id)
}

// EndCall marks a call ended. Implements retry logic with exponential
// backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) EndCall(ctx context.Context, id string, summary CallSummary) error {
	err := shared.RetryOnConflict(ctx, "EndCall", endCallAttempts, endCallBaseDelay, func() error {
		return s.endCallOnce(ctx, id, summary)
	})
	if err != nil {
		return fmt.Errorf("end call %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) endCallOnce(ctx context.Context, id string, summary CallSummary) error {
	query := `
	UPDATE call_sessions SET
		state = ?,
		participants = ?,
		transcript_turns = ?,
		transcript_forwarded = ?,
		error = ?,
		updated_at = ?,
		ended_at = COALESCE(ended_at, ?)
	WHERE id = ?`

	now := s.now().UnixMilli()
	result, err := s.db.ExecContext(ctx, query,
		string(domain.CallEnded), summary.Participants, summary.TranscriptTurns,
		summary.TranscriptForwarded, nullString(summary.Error), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("update ended call: %w", err)
	}
	return checkAffected(result, "EndCall", id)
}

const selectCall = `
	SELECT id, room_name, room_url, state, participants, transcript_turns,
	       transcript_forwarded, error, created_at, updated_at, ended_at
	FROM call_sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (*domain.CallSession, error) {
	var call domain.CallSession
	var roomName, roomURL, callErr sql.NullString
	var state string
	var createdAt, updatedAt int64
	var endedAt sql.NullInt64

	err := row.Scan(
		&call.ID, &roomName, &roomURL, &state, &call.Participants, &call.TranscriptTurns,
		&call.TranscriptForwarded, &callErr, &createdAt, &updatedAt, &endedAt,
	)
	if err != nil {
		return nil, err
	}

	call.RoomName = roomName.String
	call.RoomURL = roomURL.String
	call.State = domain.CallState(state)
	call.Error = callErr.String
	call.CreatedAt = time.UnixMilli(createdAt)
	call.UpdatedAt = time.UnixMilli(updatedAt)
	if endedAt.Valid {
		ts := time.UnixMilli(endedAt.Int64)
		call.EndedAt = &ts
	}
	return &call, nil
}

// GetCall retrieves a call by id.
func (s *SQLiteStore) GetCall(ctx context.Context, id string) (*domain.CallSession, error) {
	call, err := scanCall(s.db.QueryRowContext(ctx, selectCall+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan call row: %w", err)
	}
	return call, nil
}

// ListCalls returns the most recent calls, newest first.
func (s *SQLiteStore) ListCalls(ctx context.Context, limit int) ([]*domain.CallSession, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, selectCall+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close call rows", "error", closeErr)
		}
	}()

	calls := make([]*domain.CallSession, 0)
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call row: %w", err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

// DeleteEndedBefore removes ended calls that finished before cutoff.
func (s *SQLiteStore) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM call_sessions WHERE ended_at IS NOT NULL AND ended_at < ?`
	result, err := s.db.ExecContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete ended calls: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// ErrCallNotFound is returned by updates that match no call.
var ErrCallNotFound = errors.New("call not found")

func checkAffected(result sql.Result, op, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn(op+" affected 0 rows", "call_id", id)
		return ErrCallNotFound
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
