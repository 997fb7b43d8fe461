// File: internal/store/store.go

// Package store archives completed sessions and their reports in a local
// SQLite database so report retrieval survives process restarts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	device       TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	ended_at     TEXT NOT NULL,
	session_json TEXT NOT NULL,
	report_json  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_device ON sessions(device);
`

// Archive is a SQLite-backed repository of terminal sessions. Only terminal
// sessions are persisted; running state lives with the orchestrator.
type Archive struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates or opens the archive database at path and applies the schema.
func Open(path string, logger *zap.Logger) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent session completions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply archive schema: %w", err)
	}

	return &Archive{
		db:  db,
		log: logger.Named("store"),
	}, nil
}

// Save persists a terminal session together with its synthesized report.
// Saving the same session ID again replaces the previous row.
func (a *Archive) Save(ctx context.Context, session *schemas.TaskSession, report *schemas.Report) error {
	if !session.Status.Terminal() {
		return fmt.Errorf("refusing to archive non-terminal session %s (status %s)", session.ID, session.Status)
	}

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, device, status, started_at, ended_at, session_json, report_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.Device,
		string(session.Status),
		session.StartedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		session.EndedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		string(sessionJSON),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to archive session %s: %w", session.ID, err)
	}

	a.log.Debug("session archived",
		zap.String("session_id", session.ID),
		zap.String("status", string(session.Status)),
	)
	return nil
}

// GetReport retrieves the report for a session ID.
func (a *Archive) GetReport(ctx context.Context, sessionID string) (*schemas.Report, error) {
	var raw string
	err := a.db.QueryRowContext(ctx,
		`SELECT report_json FROM sessions WHERE id = ?`, sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", schemas.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report for %s: %w", sessionID, err)
	}

	var report schemas.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report for %s: %w", sessionID, err)
	}
	return &report, nil
}

// GetSession retrieves the full archived trace for a session ID.
func (a *Archive) GetSession(ctx context.Context, sessionID string) (*schemas.TaskSession, error) {
	var raw string
	err := a.db.QueryRowContext(ctx,
		`SELECT session_json FROM sessions WHERE id = ?`, sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", schemas.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var session schemas.TaskSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", sessionID, err)
	}
	return &session, nil
}

// ListRecent returns the most recently finished sessions, newest first.
func (a *Archive) ListRecent(ctx context.Context, limit int) ([]*schemas.TaskSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT session_json FROM sessions ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*schemas.TaskSession
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var session schemas.TaskSession
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal archived session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
