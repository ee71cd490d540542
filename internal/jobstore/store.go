// Package jobstore persists job records for the queue runtime and the API.
package jobstore

import (
	"context"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"wanworker/internal/pkg/errors"
	"wanworker/internal/worker/processor"
)

//go:embed schema.sql
var schemaSQL string

// maxErrorText bounds error_text.
const maxErrorText = 2000

type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusError     Status = "ERROR"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type Record struct {
	ID          string         `json:"id"`
	Status      Status         `json:"status"`
	Input       map[string]any `json:"input,omitempty"`
	ProgressPct int            `json:"progress_pct"`
	ProgressMsg string         `json:"progress_msg,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate creates the jobs table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "jobstore.migrate", "failed to create jobs table")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Create inserts a QUEUED job.
func (s *Store) Create(ctx context.Context, id string, input map[string]any) (Record, error) {
	if input == nil {
		input = map[string]any{}
	}
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return Record{}, errors.WrapWithCode(err, errors.CodeValidation, "jobstore.create", "input is not serializable")
	}

	createdAt := time.Now().UTC()
	_, err = s.db.Exec(ctx,
		`INSERT INTO jobs (id, status, input_json, created_at)
		 VALUES ($1,$2,$3,$4)`,
		id, string(StatusQueued), inputJSON, createdAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return Record{}, errors.Newf(errors.CodeConflict, "job already exists: %s", id).
				WithOp("jobstore.create").
				WithField("id", id)
		}
		return Record{}, wrapDB(err, "jobstore.create", "db insert failed")
	}

	return Record{ID: id, Status: StatusQueued, Input: input, CreatedAt: createdAt}, nil
}

func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var (
		rec                   Record
		status                string
		inputJSON, outputJSON []byte
	)

	err := s.db.QueryRow(ctx,
		`SELECT id, status, input_json, progress_pct, COALESCE(progress_msg,''),
		        output_json, COALESCE(error_text,''), created_at, started_at, finished_at
		 FROM jobs WHERE id=$1`,
		id,
	).Scan(&rec.ID, &status, &inputJSON, &rec.ProgressPct, &rec.ProgressMsg,
		&outputJSON, &rec.Error, &rec.CreatedAt, &rec.StartedAt, &rec.FinishedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return Record{}, errors.NotFound("job", id)
		}
		return Record{}, wrapDB(err, "jobstore.get", "db query failed")
	}

	rec.Status = Status(status)
	if len(inputJSON) > 0 {
		_ = json.Unmarshal(inputJSON, &rec.Input)
	}
	if len(outputJSON) > 0 {
		_ = json.Unmarshal(outputJSON, &rec.Output)
	}
	return rec, nil
}

// MarkRunning moves a job to RUNNING and clears any previous outcome.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE jobs SET status=$2, started_at=NOW(), finished_at=NULL,
		        progress_pct=0, progress_msg=NULL, output_json=NULL, error_text=NULL
		 WHERE id=$1`,
		id, string(StatusRunning),
	)
	return wrapDB(err, "jobstore.running", "failed to mark job as running")
}

func (s *Store) SetProgress(ctx context.Context, id string, pct int, msg string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE jobs SET progress_pct=$2, progress_msg=$3 WHERE id=$1`,
		id, pct, msg,
	)
	return wrapDB(err, "jobstore.progress", "failed to update progress")
}

// Finish stores the job output and the terminal status it implies.
func (s *Store) Finish(ctx context.Context, id string, res processor.Result) error {
	outputJSON, err := json.Marshal(res.ToMap())
	if err != nil {
		return errors.Wrap(err, "jobstore.finish", "output is not serializable")
	}

	status, errText := StatusCompleted, ""
	if res.Status != processor.StatusCompleted {
		status = StatusError
		errText = truncate(res.Error, maxErrorText)
	}

	_, err = s.db.Exec(ctx,
		`UPDATE jobs SET status=$2, output_json=$3, error_text=NULLIF($4,''), finished_at=NOW()
		 WHERE id=$1`,
		id, string(status), outputJSON, errText,
	)
	return wrapDB(err, "jobstore.finish", "failed to save job output")
}

func wrapDB(err error, op, msg string) error {
	if err == nil {
		return nil
	}
	if IsUndefinedTable(err) {
		return errors.WrapWithCode(err, errors.CodeUnavailable, op, "jobs table missing; run migrations")
	}
	return errors.Wrap(err, op, msg)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
