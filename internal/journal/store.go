package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heimdex/heimdex-editor/internal/edit"
)

// maxSessionEntries bounds how many session versions are kept per job.
const maxSessionEntries = 200

type Repository interface {
	RecordSession(ctx context.Context, s edit.Session, reason string) error
	ListSessionEntries(ctx context.Context, jobID string, limit int) ([]*SessionEntry, error)

	RecordExport(ctx context.Context, e *ExportEntry) error
	ListExportEntries(ctx context.Context, jobID string, limit int) ([]*ExportEntry, error)
	GetExport(ctx context.Context, jobID string) (*ExportEntry, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// RecordSession appends a committed session version and prunes the job's
// oldest entries beyond maxSessionEntries.
func (r *SQLiteStore) RecordSession(ctx context.Context, s edit.Session, reason string) error {
	actions := s.Actions
	if actions == nil {
		actions = []edit.Action{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_entries (job_id, session_id, reason, status, action_count, actions_json, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.JobID, s.ID, reason, string(s.Status), len(actions), string(data), r.timestamp()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM session_entries
		WHERE job_id = ? AND id NOT IN (
			SELECT id FROM session_entries WHERE job_id = ? ORDER BY id DESC LIMIT ?
		)
	`, s.JobID, s.JobID, maxSessionEntries); err != nil {
		return err
	}

	return tx.Commit()
}

// ListSessionEntries returns the newest entries first.
func (r *SQLiteStore) ListSessionEntries(ctx context.Context, jobID string, limit int) ([]*SessionEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, session_id, reason, status, action_count, actions_json, recorded_at
		FROM session_entries WHERE job_id = ? ORDER BY id DESC LIMIT ?
	`, jobID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*SessionEntry
	for rows.Next() {
		var e SessionEntry
		var actionsJSON, recordedAt string
		if err := rows.Scan(&e.ID, &e.JobID, &e.SessionID, &e.Reason, &e.Status, &e.ActionCount, &actionsJSON, &recordedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(actionsJSON), &e.Actions); err != nil {
			return nil, fmt.Errorf("decode actions for entry %d: %w", e.ID, err)
		}
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// RecordExport appends e to the export log and makes it the job's latest
// known export state.
func (r *SQLiteStore) RecordExport(ctx context.Context, e *ExportEntry) error {
	ts := r.timestamp()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO export_entries (job_id, export_id, status, progress, error_message, download_url, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.JobID, nullString(e.ExportID), e.Status, e.Progress, nullString(e.ErrorMessage), nullString(e.DownloadURL), ts)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO exports (job_id, export_id, status, progress, error_message, download_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			export_id = excluded.export_id,
			status = excluded.status,
			progress = excluded.progress,
			error_message = excluded.error_message,
			download_url = excluded.download_url,
			updated_at = excluded.updated_at
	`, e.JobID, nullString(e.ExportID), e.Status, e.Progress, nullString(e.ErrorMessage), nullString(e.DownloadURL), ts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	e.RecordedAt, _ = time.Parse(time.RFC3339Nano, ts)
	return nil
}

func (r *SQLiteStore) ListExportEntries(ctx context.Context, jobID string, limit int) ([]*ExportEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, export_id, status, progress, error_message, download_url, recorded_at
		FROM export_entries WHERE job_id = ? ORDER BY id DESC LIMIT ?
	`, jobID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ExportEntry
	for rows.Next() {
		var e ExportEntry
		var exportID, errMsg, downloadURL sql.NullString
		var recordedAt string
		if err := rows.Scan(&e.ID, &e.JobID, &exportID, &e.Status, &e.Progress, &errMsg, &downloadURL, &recordedAt); err != nil {
			return nil, err
		}
		e.ExportID = exportID.String
		e.ErrorMessage = errMsg.String
		e.DownloadURL = downloadURL.String
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// GetExport returns the latest known export state for jobID, or nil.
func (r *SQLiteStore) GetExport(ctx context.Context, jobID string) (*ExportEntry, error) {
	var e ExportEntry
	var exportID, errMsg, downloadURL sql.NullString
	var updatedAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT job_id, export_id, status, progress, error_message, download_url, updated_at
		FROM exports WHERE job_id = ?
	`, jobID).Scan(&e.JobID, &exportID, &e.Status, &e.Progress, &errMsg, &downloadURL, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.ExportID = exportID.String
	e.ErrorMessage = errMsg.String
	e.DownloadURL = downloadURL.String
	e.RecordedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &e, nil
}

func (r *SQLiteStore) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteStore) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (r *SQLiteStore) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
