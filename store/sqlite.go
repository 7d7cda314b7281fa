package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-orchestrator"
)

// SQLite is a Store over database/sql with a sqlite driver. The schema is
// bootstrapped lazily; request-id uniqueness and the version compare-and-set
// are enforced by the database itself.
type SQLite struct {
	db    *sql.DB
	table string

	schemaOnce sync.Once
	schemaErr  error
}

// NewSQLite builds a store using the given DB and table name.
func NewSQLite(db *sql.DB, table string) *SQLite {
	if table == "" {
		table = "job_executions"
	}
	return &SQLite{db: db, table: table}
}

func (s *SQLite) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL UNIQUE,
			target TEXT NOT NULL,
			resource_type TEXT NOT NULL DEFAULT '',
			resource_id TEXT NOT NULL,
			execution_payload TEXT,
			execution_response TEXT,
			status TEXT NOT NULL,
			backend_job_id TEXT NOT NULL DEFAULT '',
			backend_status_raw TEXT NOT NULL DEFAULT '',
			launch_attempts INTEGER NOT NULL DEFAULT 0,
			last_launch_error TEXT NOT NULL DEFAULT '',
			next_launch_attempt_at TEXT NOT NULL DEFAULT '',
			polling_attempts INTEGER NOT NULL DEFAULT 0,
			last_polled_at TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			sent_at TEXT NOT NULL DEFAULT '',
			completed_at TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`, s.table)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			s.schemaErr = err
			return
		}
		idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_status ON %s (status)`, s.table, s.table)
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			s.schemaErr = err
		}
	})
	return s.schemaErr
}

const selectColumns = `id, request_id, target, resource_type, resource_id,
	execution_payload, execution_response, status, backend_job_id,
	backend_status_raw, launch_attempts, last_launch_error,
	next_launch_attempt_at, polling_attempts, last_polled_at, error_message,
	version, created_at, sent_at, completed_at, updated_at`

func (s *SQLite) Create(ctx context.Context, rec *orchestrator.JobExecution) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not configured")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	rec.UpdatedAt = time.Now().UTC()

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.table, selectColumns)
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.RequestID,
		string(rec.Target),
		rec.ResourceType,
		rec.ResourceID,
		nullableBlob(rec.ExecutionPayload),
		nullableBlob(rec.ExecutionResponse),
		string(rec.Status),
		rec.BackendJobID,
		rec.BackendStatusRaw,
		rec.LaunchAttempts,
		rec.LastLaunchError,
		fmtTime(rec.NextLaunchAttemptAt),
		rec.PollingAttempts,
		fmtTime(rec.LastPolledAt),
		rec.ErrorMessage,
		rec.Version,
		fmtTime(rec.CreatedAt),
		fmtTime(rec.SentAt),
		fmtTime(rec.CompletedAt),
		fmtTime(rec.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateRequest
		}
		return err
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*orchestrator.JobExecution, error) {
	return s.getOne(ctx, "id", id)
}

func (s *SQLite) GetByRequestID(ctx context.Context, requestID string) (*orchestrator.JobExecution, error) {
	return s.getOne(ctx, "request_id", requestID)
}

func (s *SQLite) getOne(ctx context.Context, column, value string) (*orchestrator.JobExecution, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not configured")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, selectColumns, s.table, column)
	row := s.db.QueryRowContext(ctx, query, value)
	rec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLite) List(ctx context.Context, opts ListOptions) ([]*orchestrator.JobExecution, int, error) {
	if s == nil || s.db == nil {
		return nil, 0, errors.New("sqlite store not configured")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, 0, err
	}
	opts = normalizeListOptions(opts)

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if opts.RequestID != "" {
		where = append(where, "request_id = ?")
		args = append(args, opts.RequestID)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, s.table, clause)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`,
		selectColumns, s.table, clause)
	args = append(args, opts.PerPage, (opts.Page-1)*opts.PerPage)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records, err := scanExecutions(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *SQLite) ListDue(ctx context.Context) ([]*orchestrator.JobExecution, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not configured")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE status IN ('pending', 'running', 'retry_pending')
		ORDER BY created_at ASC, id ASC`, selectColumns, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExecutions(rows)
}

func (s *SQLite) Update(ctx context.Context, rec *orchestrator.JobExecution, expectedVersion int) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not configured")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	now := time.Now().UTC()

	query := fmt.Sprintf(`UPDATE %s SET
		execution_payload = ?,
		execution_response = ?,
		status = ?,
		backend_job_id = ?,
		backend_status_raw = ?,
		launch_attempts = ?,
		last_launch_error = ?,
		next_launch_attempt_at = ?,
		polling_attempts = ?,
		last_polled_at = ?,
		error_message = ?,
		version = version + 1,
		sent_at = ?,
		completed_at = ?,
		updated_at = ?
		WHERE id = ? AND version = ?`, s.table)
	res, err := s.db.ExecContext(ctx, query,
		nullableBlob(rec.ExecutionPayload),
		nullableBlob(rec.ExecutionResponse),
		string(rec.Status),
		rec.BackendJobID,
		rec.BackendStatusRaw,
		rec.LaunchAttempts,
		rec.LastLaunchError,
		fmtTime(rec.NextLaunchAttemptAt),
		rec.PollingAttempts,
		fmtTime(rec.LastPolledAt),
		rec.ErrorMessage,
		fmtTime(rec.SentAt),
		fmtTime(rec.CompletedAt),
		fmtTime(now),
		rec.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, rec.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	rec.Version = expectedVersion + 1
	rec.UpdatedAt = now
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*orchestrator.JobExecution, error) {
	var rec orchestrator.JobExecution
	var target, status string
	var payload, response sql.NullString
	var nextAttempt, lastPolled, createdAt, sentAt, completedAt, updatedAt string

	err := row.Scan(
		&rec.ID,
		&rec.RequestID,
		&target,
		&rec.ResourceType,
		&rec.ResourceID,
		&payload,
		&response,
		&status,
		&rec.BackendJobID,
		&rec.BackendStatusRaw,
		&rec.LaunchAttempts,
		&rec.LastLaunchError,
		&nextAttempt,
		&rec.PollingAttempts,
		&lastPolled,
		&rec.ErrorMessage,
		&rec.Version,
		&createdAt,
		&sentAt,
		&completedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Target = orchestrator.TargetType(target)
	rec.Status = orchestrator.Status(status)
	if payload.Valid && payload.String != "" {
		rec.ExecutionPayload = []byte(payload.String)
	}
	if response.Valid && response.String != "" {
		rec.ExecutionResponse = []byte(response.String)
	}
	rec.NextLaunchAttemptAt = parseTime(nextAttempt)
	rec.LastPolledAt = parseTime(lastPolled)
	rec.CreatedAt = parseTime(createdAt)
	rec.SentAt = parseTime(sentAt)
	rec.CompletedAt = parseTime(completedAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

func scanExecutions(rows *sql.Rows) ([]*orchestrator.JobExecution, error) {
	records := make([]*orchestrator.JobExecution, 0)
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func nullableBlob(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: len(b) > 0}
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
