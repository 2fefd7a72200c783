// Package tracker persists batch job records so long-running jobs survive
// process restarts and can be inspected or resumed later. Concurrent
// writers from the folder driver serialize through database/sql.
package tracker

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Job is one tracked batch job.
type Job struct {
	RunID          string
	InputFile      string
	JobID          string
	Status         string
	TargetLanguage string
	OutputFile     string
	CreatedAtUTC   string
	UpdatedAtUTC   string
}

const createBatchJobsTableSQL = `
CREATE TABLE IF NOT EXISTS batch_jobs (
	run_id TEXT NOT NULL,
	input_file TEXT NOT NULL,
	job_id TEXT NOT NULL,
	status TEXT NOT NULL,
	target_language TEXT NOT NULL,
	output_file TEXT NOT NULL DEFAULT '',
	created_at_utc TEXT NOT NULL,
	updated_at_utc TEXT NOT NULL,
	PRIMARY KEY (job_id)
)`

var createBatchJobsIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_batch_jobs_status ON batch_jobs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_batch_jobs_run_id ON batch_jobs(run_id)`,
}

const dropBatchJobsSQL = `DROP TABLE IF EXISTS batch_jobs`

const insertBatchJobSQL = `
INSERT INTO batch_jobs (
	run_id,
	input_file,
	job_id,
	status,
	target_language,
	output_file,
	created_at_utc,
	updated_at_utc
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const updateBatchJobSQL = `
UPDATE batch_jobs SET status = ?, output_file = ?, updated_at_utc = ? WHERE job_id = ?`

// Store wraps the tracking database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the tracking database at path and
// ensures the schema is usable.
func Open(path string) (*Store, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := ensureBatchJobsSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Setup drops and recreates the tracking schema.
func Setup(path string) error {
	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(dropBatchJobsSQL); err != nil {
		return fmt.Errorf("drop batch_jobs table: %w", err)
	}
	return ensureBatchJobsSchema(db)
}

// Insert records a freshly submitted job.
func (s *Store) Insert(job Job) error {
	if strings.TrimSpace(job.JobID) == "" {
		return errors.New("job id is required")
	}
	now := nowUTC()
	if job.CreatedAtUTC == "" {
		job.CreatedAtUTC = now
	}
	if job.UpdatedAtUTC == "" {
		job.UpdatedAtUTC = now
	}
	_, err := s.db.Exec(insertBatchJobSQL,
		job.RunID,
		job.InputFile,
		job.JobID,
		job.Status,
		job.TargetLanguage,
		job.OutputFile,
		job.CreatedAtUTC,
		job.UpdatedAtUTC,
	)
	if err != nil {
		return fmt.Errorf("insert batch job %s: %w", job.JobID, err)
	}
	return nil
}

// UpdateStatus moves a job to a new status, optionally recording where the
// final output landed.
func (s *Store) UpdateStatus(jobID, status, outputFile string) error {
	res, err := s.db.Exec(updateBatchJobSQL, status, outputFile, nowUTC(), jobID)
	if err != nil {
		return fmt.Errorf("update batch job %s: %w", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update batch job %s: %w", jobID, err)
	}
	if affected == 0 {
		return fmt.Errorf("no batch job record for %s", jobID)
	}
	return nil
}

// Get looks up one job record by its provider job id.
func (s *Store) Get(jobID string) (Job, bool, error) {
	row := s.db.QueryRow(`
		SELECT run_id, input_file, job_id, status, target_language, output_file, created_at_utc, updated_at_utc
		FROM batch_jobs WHERE job_id = ?`, jobID)

	var job Job
	err := row.Scan(&job.RunID, &job.InputFile, &job.JobID, &job.Status,
		&job.TargetLanguage, &job.OutputFile, &job.CreatedAtUTC, &job.UpdatedAtUTC)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("query batch job %s: %w", jobID, err)
	}
	return job, true, nil
}

// List returns job records newest first, optionally filtered by status.
func (s *Store) List(statusFilter string) ([]Job, error) {
	query := `
		SELECT run_id, input_file, job_id, status, target_language, output_file, created_at_utc, updated_at_utc
		FROM batch_jobs`
	args := []any{}
	if strings.TrimSpace(statusFilter) != "" {
		query += ` WHERE status = ?`
		args = append(args, statusFilter)
	}
	query += ` ORDER BY created_at_utc DESC, job_id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query batch jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.RunID, &job.InputFile, &job.JobID, &job.Status,
			&job.TargetLanguage, &job.OutputFile, &job.CreatedAtUTC, &job.UpdatedAtUTC); err != nil {
			return nil, fmt.Errorf("scan batch job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch jobs: %w", err)
	}
	return jobs, nil
}

// StatusCounts returns job counts per status.
func (s *Store) StatusCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM batch_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count batch jobs: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan batch job counts: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch job counts: %w", err)
	}
	return counts, nil
}

func openSQLite(dbPath string) (*sql.DB, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("db path is required")
	}
	if parent := filepath.Dir(dbPath); parent != "." && parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir for db: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

func ensureBatchJobsSchema(db *sql.DB) error {
	if _, err := db.Exec(createBatchJobsTableSQL); err != nil {
		return fmt.Errorf("create batch_jobs table: %w", err)
	}
	missing, err := missingBatchJobsColumns(db)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf(
			"incompatible batch_jobs schema, missing columns: %s; run `diagtranslate setup --db <path>`",
			strings.Join(missing, ", "),
		)
	}
	for _, stmt := range createBatchJobsIndexesSQL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create batch_jobs index: %w", err)
		}
	}
	return nil
}

func missingBatchJobsColumns(db *sql.DB) ([]string, error) {
	required := []string{
		"run_id",
		"input_file",
		"job_id",
		"status",
		"target_language",
		"output_file",
		"created_at_utc",
		"updated_at_utc",
	}

	rows, err := db.Query(`PRAGMA table_info(batch_jobs)`)
	if err != nil {
		return nil, fmt.Errorf("inspect batch_jobs schema: %w", err)
	}
	defer rows.Close()

	existing := map[string]struct{}{}
	for rows.Next() {
		var cid int
		var name string
		var colType string
		var notNull int
		var defaultValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, fmt.Errorf("scan batch_jobs schema: %w", err)
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch_jobs schema: %w", err)
	}

	var missing []string
	for _, col := range required {
		if _, ok := existing[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing, nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
