package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"olymp/internal/common/db"
	"olymp/internal/common/storage"
	"olymp/internal/judge/model"
	"olymp/internal/judge/report"
	"olymp/internal/judge/sandbox/result"
	appErr "olymp/pkg/errors"
	pkgrepo "olymp/pkg/repository"
)

type execCall struct {
	query string
	args  []interface{}
}

type fakeDB struct {
	driver   string
	rowErr   error
	rowValue string
	execs    []execCall
	queries  []execCall
	total    int64
	payloads []string
}

func (f *fakeDB) Driver() string                 { return f.driver }
func (f *fakeDB) Ping(ctx context.Context) error { return nil }
func (f *fakeDB) Close() error                   { return nil }

func (f *fakeDB) Exec(_ context.Context, query string, args ...interface{}) (db.Result, error) {
	f.execs = append(f.execs, execCall{query, args})
	return fakeResult{}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, query string, args ...interface{}) db.Row {
	f.queries = append(f.queries, execCall{query, args})
	return fakeRow{total: f.total, value: f.rowValue, err: f.rowErr}
}

func (f *fakeDB) Query(_ context.Context, query string, args ...interface{}) (db.Rows, error) {
	f.queries = append(f.queries, execCall{query, args})
	return &fakeRows{payloads: f.payloads, pos: -1}, nil
}

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

type fakeRow struct {
	total int64
	value string
	err   error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *int64:
		*d = r.total
	case *string:
		*d = r.value
	}
	return nil
}

type fakeRows struct {
	payloads []string
	pos      int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.payloads)
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	*(dest[0].(*string)) = r.payloads[r.pos]
	return nil
}

func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }

func TestRunArchiveSave(t *testing.T) {
	for _, driver := range []string{db.DriverMySQL, db.DriverPostgres} {
		t.Run(driver, func(t *testing.T) {
			fdb := &fakeDB{driver: driver}
			archive := NewRunArchive(fdb)
			ctx := context.Background()
			if err := archive.EnsureSchema(ctx); err != nil {
				t.Fatalf("schema: %v", err)
			}
			status := model.RunStatus{RunID: "r1", Problem: "aplusb", Status: result.StatusFinished, FinishedAt: 42}
			if err := archive.Save(ctx, status); err != nil {
				t.Fatalf("save: %v", err)
			}
			last := fdb.execs[len(fdb.execs)-1]
			if last.args[0] != "r1" || last.args[1] != "aplusb" || last.args[2] != "Finished" || last.args[5] != int64(42) {
				t.Fatalf("unexpected args %v", last.args)
			}
			if driver == db.DriverPostgres && (!strings.Contains(last.query, "$7") || !strings.Contains(last.query, "ON CONFLICT")) {
				t.Fatalf("postgres upsert expected, got %s", last.query)
			}
			if driver == db.DriverMySQL && !strings.Contains(last.query, "ON DUPLICATE KEY UPDATE") {
				t.Fatalf("mysql upsert expected, got %s", last.query)
			}
			var decoded model.RunStatus
			if err := json.Unmarshal([]byte(last.args[6].(string)), &decoded); err != nil || decoded.RunID != "r1" {
				t.Fatalf("unexpected payload %v: %v", last.args[6], err)
			}
		})
	}

	archive := NewRunArchive(&fakeDB{driver: "sqlite"})
	if err := archive.Save(context.Background(), model.RunStatus{RunID: "r1"}); !appErr.Is(err, appErr.DatabaseError) {
		t.Fatalf("expected DatabaseError for unknown driver, got %v", err)
	}
}

func TestRunArchiveList(t *testing.T) {
	payload, _ := json.Marshal(model.RunStatus{RunID: "r2", Problem: "aplusb", Status: result.StatusFailed})
	fdb := &fakeDB{driver: db.DriverPostgres, total: 11, payloads: []string{string(payload)}}
	archive := NewRunArchive(fdb)

	opts := pkgrepo.ListOptions{OrderDesc: true}
	opts.SetPagination(2, 10)
	runs, total, err := archive.List(context.Background(), "aplusb", opts)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 11 || len(runs) != 1 || runs[0].RunID != "r2" {
		t.Fatalf("unexpected list %d %+v", total, runs)
	}
	list := fdb.queries[1]
	want := "SELECT payload FROM judge_runs WHERE problem = $1 ORDER BY finished_at DESC, run_id DESC LIMIT $2 OFFSET $3"
	if list.query != want {
		t.Fatalf("unexpected query %q", list.query)
	}
	if list.args[1] != 10 || list.args[2] != 10 {
		t.Fatalf("unexpected paging args %v", list.args)
	}

	empty := &fakeDB{driver: db.DriverMySQL}
	runs, total, err = NewRunArchive(empty).List(context.Background(), "", pkgrepo.ListOptions{})
	if err != nil || total != 0 || runs != nil || len(empty.queries) != 1 {
		t.Fatalf("empty archive must skip the page query: %v %d %v", runs, total, err)
	}
	if strings.Contains(empty.queries[0].query, "WHERE") {
		t.Fatalf("unexpected filter %q", empty.queries[0].query)
	}
}

func TestRunArchiveGet(t *testing.T) {
	payload, _ := json.Marshal(model.RunStatus{RunID: "r3", Status: result.StatusFinished})
	fdb := &fakeDB{driver: db.DriverMySQL, rowValue: string(payload)}
	st, err := NewRunArchive(fdb).Get(context.Background(), "r3")
	if err != nil || st.RunID != "r3" {
		t.Fatalf("unexpected run %+v, %v", st, err)
	}
	if fdb.queries[0].query != "SELECT payload FROM judge_runs WHERE run_id = ?" {
		t.Fatalf("unexpected query %q", fdb.queries[0].query)
	}

	missing := &fakeDB{driver: db.DriverMySQL, rowErr: sql.ErrNoRows}
	if _, err := NewRunArchive(missing).Get(context.Background(), "none"); !appErr.Is(err, appErr.RunNotFound) {
		t.Fatalf("expected RunNotFound, got %v", err)
	}
}

type memoryObjects struct {
	buckets map[string]bool
	objects map[string][]byte
}

func (m *memoryObjects) EnsureBucket(_ context.Context, bucket string) error {
	m.buckets[bucket] = true
	return nil
}

func (m *memoryObjects) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return io.ErrShortWrite
	}
	m.objects[bucket+"/"+key] = data
	return nil
}

func (m *memoryObjects) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) StatObject(_ context.Context, bucket, key string) (storage.ObjectStat, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectStat{}, storage.ErrObjectNotFound
	}
	return storage.ObjectStat{SizeBytes: int64(len(data))}, nil
}

func TestReportStore(t *testing.T) {
	objects := &memoryObjects{buckets: map[string]bool{}, objects: map[string][]byte{}}
	store := NewReportStore(objects, "reports")
	ctx := context.Background()
	if err := store.Init(ctx); err != nil || !objects.buckets["reports"] {
		t.Fatalf("init: %v", err)
	}

	tests := []result.TestcaseResult{{TestID: "1", RunResult: result.RunResult{Verdict: result.VerdictAC}}}
	rep := report.Report{
		GeneratedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Limits:      "TL = 1.00 s, ML = none",
		Results:     []result.SolutionResult{{Solution: "sol_a", Tests: tests, Summary: result.Summarize(tests)}},
	}
	if err := store.Put(ctx, "r1", rep); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := objects.objects["reports/runs/r1.json.zst"]; !ok {
		t.Fatalf("unexpected keys %v", objects.objects)
	}
	got, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Limits != rep.Limits || len(got.Results) != 1 || got.Results[0].Summary.Verdict != result.VerdictAC {
		t.Fatalf("unexpected report %+v", got)
	}
	if _, err := store.Get(ctx, "missing"); !appErr.Is(err, appErr.ReportNotFound) {
		t.Fatalf("expected ReportNotFound, got %v", err)
	}
}
