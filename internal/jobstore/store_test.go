package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"wanworker/internal/pkg/errors"
	"wanworker/internal/pkg/logger"
	"wanworker/internal/worker/processor"
)

type execCall struct {
	sql  string
	args []any
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d dest for %d values", len(dest), len(r.values))
	}
	for i, v := range r.values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeDB struct {
	execs   []execCall
	execErr error
	row     fakeRow
	pingErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

func TestCreate(t *testing.T) {
	db := &fakeDB{}
	rec, err := New(db).Create(context.Background(), "job-1", map[string]any{"prompt": "a cat"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID != "job-1" || rec.Status != StatusQueued || rec.CreatedAt.IsZero() {
		t.Errorf("unexpected record %+v", rec)
	}

	if len(db.execs) != 1 || !strings.Contains(db.execs[0].sql, "INSERT INTO jobs") {
		t.Fatalf("expected one insert, got %+v", db.execs)
	}
	var stored map[string]any
	if err := json.Unmarshal(db.execs[0].args[2].([]byte), &stored); err != nil || stored["prompt"] != "a cat" {
		t.Errorf("unexpected stored input %s", db.execs[0].args[2])
	}
}

func TestCreateErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.Code
	}{
		{"duplicate id", &pgconn.PgError{Code: "23505"}, errors.CodeConflict},
		{"missing table", &pgconn.PgError{Code: "42P01"}, errors.CodeUnavailable},
		{"other", fmt.Errorf("connection refused"), errors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(&fakeDB{execErr: tt.err}).Create(context.Background(), "job-1", nil)
			if !errors.IsCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestGet(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	started := created.Add(time.Second)

	db := &fakeDB{row: fakeRow{values: []any{
		"job-1", "RUNNING", []byte(`{"prompt":"a cat"}`), 25, "Generating video… (this can take minutes)",
		[]byte(nil), "", created, &started, nil,
	}}}

	rec, err := New(db).Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != StatusRunning || rec.ProgressPct != 25 || rec.Input["prompt"] != "a cat" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Output != nil || rec.FinishedAt != nil {
		t.Errorf("expected no output or finish time, got %+v", rec)
	}
	if rec.StartedAt == nil || !rec.StartedAt.Equal(started) {
		t.Errorf("started_at = %v", rec.StartedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	_, err := New(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}}).Get(context.Background(), "nope")
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestFinish(t *testing.T) {
	tests := []struct {
		name    string
		res     processor.Result
		status  string
		errText string
	}{
		{
			name:   "completed",
			res:    processor.Result{Status: processor.StatusCompleted, Task: "ti2v-5B", Size: "1280*704", VideoURL: "https://x"},
			status: "COMPLETED",
		},
		{
			name:    "error",
			res:     processor.Result{Status: processor.StatusError, Error: "WAN CLI failed (1). Check logs."},
			status:  "ERROR",
			errText: "WAN CLI failed (1). Check logs.",
		},
		{
			name:    "long error is truncated",
			res:     processor.Result{Status: processor.StatusError, Error: strings.Repeat("x", 5000)},
			status:  "ERROR",
			errText: strings.Repeat("x", 2000),
		},
		{
			name:    "truncation keeps runes whole",
			res:     processor.Result{Status: processor.StatusError, Error: strings.Repeat("x", 1999) + "→ Image→Video"},
			status:  "ERROR",
			errText: strings.Repeat("x", 1999),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{}
			if err := New(db).Finish(context.Background(), "job-1", tt.res); err != nil {
				t.Fatalf("Finish: %v", err)
			}
			args := db.execs[0].args
			if args[1] != tt.status || args[3] != tt.errText {
				t.Errorf("status=%v errText=%v", args[1], args[3])
			}
			var out map[string]any
			if err := json.Unmarshal(args[2].([]byte), &out); err != nil {
				t.Fatal(err)
			}
			if out["status"] != tt.res.Status {
				t.Errorf("output status = %v", out["status"])
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"a→b", 2, "a"},
		{"a→b", 3, "a"},
		{"a→b", 4, "a→"},
		{"→", 1, ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.in, tt.n), func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestMarkRunningAndProgress(t *testing.T) {
	db := &fakeDB{}
	s := New(db)

	if err := s.MarkRunning(context.Background(), "job-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetProgress(context.Background(), "job-1", 12, "Loading / preparing models"); err != nil {
		t.Fatal(err)
	}

	if len(db.execs) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(db.execs))
	}
	if db.execs[0].args[1] != "RUNNING" {
		t.Errorf("running args = %v", db.execs[0].args)
	}
	if db.execs[1].args[1] != 12 || db.execs[1].args[2] != "Loading / preparing models" {
		t.Errorf("progress args = %v", db.execs[1].args)
	}
}

func TestMigrate(t *testing.T) {
	db := &fakeDB{}
	if err := New(db).Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(db.execs[0].sql, "CREATE TABLE IF NOT EXISTS jobs") {
		t.Errorf("unexpected migration %q", db.execs[0].sql)
	}
}

func TestReporterSwallowsErrors(t *testing.T) {
	db := &fakeDB{execErr: fmt.Errorf("db down")}
	r := NewReporter(New(db), logger.Discard())

	r.Progress(context.Background(), "job-1", 85, "Uploading result")

	if len(db.execs) != 1 {
		t.Errorf("expected an update attempt, got %d", len(db.execs))
	}
}
