package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/complyops/autopilot/internal/scan"
)

// Compile-time check: *PGStore implements scan.Store.
var _ scan.Store = (*PGStore)(nil)

// PGStore persists scans in PostgreSQL. Summary and result are stored as
// JSONB so the schema survives evaluator model changes.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PGStore. The pool is expected to have run the
// pgmigrations schema (see internal/platform/postgres).
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Save upserts a scan record.
func (s *PGStore) Save(ctx context.Context, job scan.Scan) error {
	frameworks, err := json.Marshal(job.Frameworks)
	if err != nil {
		return fmt.Errorf("marshal frameworks: %w", err)
	}
	summary, err := marshalNullable(job.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	result, err := marshalNullable(job.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO scans (id, project_path, frameworks, status, started_at, completed_at, error, summary, result)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   completed_at = EXCLUDED.completed_at,
		   error = EXCLUDED.error,
		   summary = EXCLUDED.summary,
		   result = EXCLUDED.result`,
		job.ID, job.ProjectPath, frameworks, job.Status, job.StartedAt,
		job.CompletedAt, job.Error, summary, result)
	if err != nil {
		return fmt.Errorf("save scan %q: %w", job.ID, err)
	}
	return nil
}

// Get retrieves a scan by ID, returning nil when not found.
func (s *PGStore) Get(ctx context.Context, id string) (*scan.Scan, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, project_path, frameworks, status, started_at, completed_at, error, summary, result
		 FROM scans WHERE id = $1`, id)

	job, err := scanRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get scan %q: %w", id, err)
	}
	return job, nil
}

// List returns all scans, most recently started first.
func (s *PGStore) List(ctx context.Context) ([]scan.Scan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_path, frameworks, status, started_at, completed_at, error, summary, result
		 FROM scans ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var scans []scan.Scan
	for rows.Next() {
		job, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		scans = append(scans, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return scans, nil
}

func scanRow(row pgx.Row) (*scan.Scan, error) {
	var (
		job         scan.Scan
		frameworks  []byte
		completedAt *time.Time
		summary     []byte
		result      []byte
	)
	if err := row.Scan(&job.ID, &job.ProjectPath, &frameworks, &job.Status,
		&job.StartedAt, &completedAt, &job.Error, &summary, &result); err != nil {
		return nil, err
	}
	job.CompletedAt = completedAt

	if err := json.Unmarshal(frameworks, &job.Frameworks); err != nil {
		return nil, fmt.Errorf("unmarshal frameworks: %w", err)
	}
	if summary != nil {
		if err := json.Unmarshal(summary, &job.Summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
	}
	if result != nil {
		if err := json.Unmarshal(result, &job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return &job, nil
}

// marshalNullable keeps NULL columns NULL for absent payloads instead of
// storing the JSON literal "null".
func marshalNullable(v any) ([]byte, error) {
	switch t := v.(type) {
	case *scan.Summary:
		if t == nil {
			return nil, nil
		}
	case *scan.Result:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
