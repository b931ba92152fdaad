package repository

import (
	"context"
	"encoding/json"

	"olymp/internal/common/db"
	"olymp/internal/judge/model"
	appErr "olymp/pkg/errors"
	pkgrepo "olymp/pkg/repository"
)

var runArchiveSchema = map[string][]string{
	db.DriverMySQL: {
		`CREATE TABLE IF NOT EXISTS judge_runs (
	run_id VARCHAR(64) NOT NULL PRIMARY KEY,
	problem VARCHAR(255) NOT NULL,
	status VARCHAR(16) NOT NULL,
	error_code INT NOT NULL DEFAULT 0,
	received_at BIGINT NOT NULL,
	finished_at BIGINT NOT NULL,
	payload MEDIUMTEXT NOT NULL,
	INDEX idx_judge_runs_problem (problem, finished_at)
)`,
	},
	db.DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS judge_runs (
	run_id VARCHAR(64) NOT NULL PRIMARY KEY,
	problem VARCHAR(255) NOT NULL,
	status VARCHAR(16) NOT NULL,
	error_code INT NOT NULL DEFAULT 0,
	received_at BIGINT NOT NULL,
	finished_at BIGINT NOT NULL,
	payload TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_judge_runs_problem ON judge_runs (problem, finished_at)`,
	},
}

const runArchiveColumns = "run_id, problem, status, error_code, received_at, finished_at, payload"

var runArchiveUpsert = map[string]string{
	db.DriverMySQL: `INSERT INTO judge_runs (` + runArchiveColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE status = VALUES(status), error_code = VALUES(error_code),
finished_at = VALUES(finished_at), payload = VALUES(payload)`,
	db.DriverPostgres: `INSERT INTO judge_runs (` + runArchiveColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (run_id) DO UPDATE SET status = EXCLUDED.status, error_code = EXCLUDED.error_code,
finished_at = EXCLUDED.finished_at, payload = EXCLUDED.payload`,
}

// RunArchive keeps final run states in SQL so they outlive the cached status.
type RunArchive struct {
	db db.Database
}

// NewRunArchive creates an archive on database.
func NewRunArchive(database db.Database) *RunArchive {
	return &RunArchive{db: database}
}

// EnsureSchema creates the archive table when missing.
func (r *RunArchive) EnsureSchema(ctx context.Context) error {
	stmts, ok := runArchiveSchema[r.db.Driver()]
	if !ok {
		return appErr.Newf(appErr.DatabaseError, "unsupported driver %q", r.db.Driver())
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return appErr.Wrapf(err, appErr.DatabaseError, "create run archive failed")
		}
	}
	return nil
}

// Save stores a final run state. Saving the same run again overwrites it.
func (r *RunArchive) Save(ctx context.Context, status model.RunStatus) error {
	if status.RunID == "" {
		return appErr.ValidationError("run_id", "required")
	}
	query, ok := runArchiveUpsert[r.db.Driver()]
	if !ok {
		return appErr.Newf(appErr.DatabaseError, "unsupported driver %q", r.db.Driver())
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "encode run status failed")
	}
	_, err = r.db.Exec(ctx, db.Rebind(r.db.Driver(), query),
		status.RunID,
		status.Problem,
		string(status.Status),
		status.ErrorCode,
		status.ReceivedAt,
		status.FinishedAt,
		string(payload),
	)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "archive run failed")
	}
	return nil
}

// Get returns one archived run.
func (r *RunArchive) Get(ctx context.Context, runID string) (model.RunStatus, error) {
	if runID == "" {
		return model.RunStatus{}, appErr.ValidationError("run_id", "required")
	}
	var payload string
	query := db.Rebind(r.db.Driver(), "SELECT payload FROM judge_runs WHERE run_id = ?")
	if err := r.db.QueryRow(ctx, query, runID).Scan(&payload); err != nil {
		if db.IsNoRows(err) {
			return model.RunStatus{}, appErr.New(appErr.RunNotFound).WithMessage("run status not found")
		}
		return model.RunStatus{}, appErr.Wrapf(err, appErr.DatabaseError, "get archived run failed")
	}
	var st model.RunStatus
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return model.RunStatus{}, appErr.Wrapf(err, appErr.DatabaseError, "decode archived run failed")
	}
	return st, nil
}

// List returns archived runs, newest first, optionally restricted to one problem.
func (r *RunArchive) List(ctx context.Context, problem string, opts pkgrepo.ListOptions) ([]model.RunStatus, int64, error) {
	if err := opts.Validate(); err != nil {
		return nil, 0, appErr.Wrap(err, appErr.InvalidParams)
	}
	where := ""
	var args []interface{}
	if problem != "" {
		where = " WHERE problem = ?"
		args = append(args, problem)
	}

	var total int64
	countQuery := db.Rebind(r.db.Driver(), "SELECT COUNT(*) FROM judge_runs"+where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, appErr.Wrapf(err, appErr.DatabaseError, "count archived runs failed")
	}
	if total == 0 {
		return nil, 0, nil
	}

	order := "ASC"
	if opts.OrderDesc {
		order = "DESC"
	}
	listQuery := db.Rebind(r.db.Driver(),
		"SELECT payload FROM judge_runs"+where+" ORDER BY finished_at "+order+", run_id "+order+" LIMIT ? OFFSET ?")
	rows, err := r.db.Query(ctx, listQuery, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, appErr.Wrapf(err, appErr.DatabaseError, "list archived runs failed")
	}
	defer rows.Close()

	var out []model.RunStatus
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, 0, appErr.Wrapf(err, appErr.DatabaseError, "scan archived run failed")
		}
		var st model.RunStatus
		if err := json.Unmarshal([]byte(payload), &st); err != nil {
			return nil, 0, appErr.Wrapf(err, appErr.DatabaseError, "decode archived run failed")
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, appErr.Wrapf(err, appErr.DatabaseError, "iterate archived runs failed")
	}
	return out, total, nil
}
