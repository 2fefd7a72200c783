// Package pipeline wires the full translation run: load records, partition
// into token-budgeted batches, submit one batch job, wait, download the raw
// replies, reconcile, and write the aligned output CSV. One bad batch never
// aborts a run; degraded batches surface through the anomaly report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orugallu/diagtranslate/internal/batchapi"
	"github.com/orugallu/diagtranslate/internal/batching"
	"github.com/orugallu/diagtranslate/internal/reconcile"
	"github.com/orugallu/diagtranslate/internal/record"
	"github.com/orugallu/diagtranslate/internal/tracker"
)

// Defaults matching the provider's gpt-4o batch profile.
const (
	DefaultModel        = "gpt-4o"
	DefaultTokenBudget  = 16000
	DefaultOutputRatio  = 1.2
	DefaultPollInterval = 5 * time.Minute
)

// Job tracker statuses.
const (
	JobStatusSubmitted = "submitted"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Config describes one translation run.
type Config struct {
	InputCSV       string
	OutputCSV      string
	TargetLanguage string
	Model          string
	TokenBudget    int
	OutputRatio    float64
	PollInterval   time.Duration
	TokenizerPath  string
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultTokenBudget
	}
	if cfg.OutputRatio <= 0 {
		cfg.OutputRatio = DefaultOutputRatio
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return cfg
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.InputCSV) == "" {
		return errors.New("input csv path is required")
	}
	if strings.TrimSpace(c.OutputCSV) == "" {
		return errors.New("output csv path is required")
	}
	if strings.TrimSpace(c.TargetLanguage) == "" {
		return errors.New("target language is required")
	}
	return nil
}

// Submitter is the external batch job collaborator the pipeline consumes.
type Submitter interface {
	Submit(ctx context.Context, reqs []batchapi.Request) (string, error)
	Wait(ctx context.Context, jobID string, interval time.Duration, onPoll func(batchapi.JobStatus)) (batchapi.JobStatus, error)
	FetchResults(ctx context.Context, fileID string) (map[string]string, error)
	FetchErrors(ctx context.Context, fileID string) (string, error)
}

// Summary is the outcome of one run.
type Summary struct {
	RunID     string
	JobID     string
	Records   int
	Batches   int
	OutputCSV string
	Report    *reconcile.Report
	Rows      []reconcile.OutputRow
}

// Run executes the end-to-end pipeline for one input file. The tracker is
// optional; when present, the job record follows every status transition.
func Run(ctx context.Context, cfg Config, client Submitter, jobs *tracker.Store) (Summary, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return Summary{}, err
	}

	store, batches, err := prepare(cfg)
	if err != nil {
		return Summary{}, err
	}
	log.Printf("loaded %d records into %d batches from %s", store.Len(), len(batches), cfg.InputCSV)

	requests := buildRequests(cfg.TargetLanguage, batches, store)
	jobID, err := client.Submit(ctx, requests)
	if err != nil {
		return Summary{}, fmt.Errorf("submit batch job: %w", err)
	}

	runID := uuid.NewString()
	log.Printf("batch job submitted: job_id=%s run_id=%s", jobID, runID)
	trackInsert(jobs, tracker.Job{
		RunID:          runID,
		InputFile:      cfg.InputCSV,
		JobID:          jobID,
		Status:         JobStatusSubmitted,
		TargetLanguage: cfg.TargetLanguage,
	})

	status, err := client.Wait(ctx, jobID, cfg.PollInterval, func(s batchapi.JobStatus) {
		log.Printf("job %s: status=%s completed=%d/%d", jobID, s.Status, s.Completed, s.Total)
		if !s.Status.Terminal() {
			trackUpdate(jobs, jobID, JobStatusRunning, "")
		}
	})
	if err != nil {
		trackUpdate(jobs, jobID, JobStatusFailed, "")
		return Summary{}, fmt.Errorf("wait for batch job %s: %w", jobID, err)
	}

	replies := map[string]string{}
	switch status.Status {
	case batchapi.StatusCompleted:
		replies, err = client.FetchResults(ctx, status.OutputFileID)
		if err != nil {
			trackUpdate(jobs, jobID, JobStatusFailed, "")
			return Summary{}, fmt.Errorf("fetch results for job %s: %w", jobID, err)
		}
	case batchapi.StatusFailed:
		// Every member of every batch degrades to a failure marker; the
		// run still writes a full-length output table.
		log.Printf("job %s failed; writing failure markers for all records", jobID)
	}
	logErrorFile(ctx, client, status)

	rows, report := reconcile.Reconcile(store, batches, replies)
	if err := WriteOutputCSV(cfg.OutputCSV, rows); err != nil {
		trackUpdate(jobs, jobID, JobStatusFailed, "")
		return Summary{}, err
	}

	trackerStatus := JobStatusCompleted
	if status.Status == batchapi.StatusFailed {
		trackerStatus = JobStatusFailed
	}
	trackUpdate(jobs, jobID, trackerStatus, cfg.OutputCSV)

	return Summary{
		RunID:     runID,
		JobID:     jobID,
		Records:   store.Len(),
		Batches:   len(batches),
		OutputCSV: cfg.OutputCSV,
		Report:    report,
		Rows:      rows,
	}, nil
}

// Reprocess reconciles a previously downloaded raw-reply JSONL against the
// input CSV without submitting anything. Batch membership is recomputed
// deterministically from the same input and batching parameters used at
// submission time.
func Reprocess(cfg Config, repliesPath string) (Summary, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.InputCSV) == "" {
		return Summary{}, errors.New("input csv path is required")
	}
	if strings.TrimSpace(cfg.OutputCSV) == "" {
		return Summary{}, errors.New("output csv path is required")
	}

	store, batches, err := prepare(cfg)
	if err != nil {
		return Summary{}, err
	}

	file, err := os.Open(repliesPath)
	if err != nil {
		return Summary{}, fmt.Errorf("open replies %q: %w", repliesPath, err)
	}
	defer file.Close()

	replies, skipped, err := batchapi.ParseReplies(file)
	if err != nil {
		return Summary{}, fmt.Errorf("parse replies %q: %w", repliesPath, err)
	}
	if skipped > 0 {
		log.Printf("replies file %s: %d entries had no usable content", repliesPath, skipped)
	}

	rows, report := reconcile.Reconcile(store, batches, replies)
	if err := WriteOutputCSV(cfg.OutputCSV, rows); err != nil {
		return Summary{}, err
	}

	return Summary{
		Records:   store.Len(),
		Batches:   len(batches),
		OutputCSV: cfg.OutputCSV,
		Report:    report,
		Rows:      rows,
	}, nil
}

// prepare loads the record store and partitions it with the configured
// estimator and budget.
func prepare(cfg Config) (*record.Store, []batching.Batch, error) {
	store, err := record.Load(cfg.InputCSV)
	if err != nil {
		return nil, nil, err
	}

	estimate := batching.HeuristicEstimator
	if strings.TrimSpace(cfg.TokenizerPath) != "" {
		estimate, err = batching.NewTokenizerEstimator(cfg.TokenizerPath)
		if err != nil {
			return nil, nil, err
		}
	}

	limits := batching.Limits{
		TokenBudget:    cfg.TokenBudget,
		PromptOverhead: estimate(SystemPrompt(cfg.TargetLanguage)),
		OutputRatio:    cfg.OutputRatio,
	}
	batches, err := batching.Partition(store.Records(), limits, estimate)
	if err != nil {
		return nil, nil, err
	}
	return store, batches, nil
}

func buildRequests(lang string, batches []batching.Batch, store *record.Store) []batchapi.Request {
	system := SystemPrompt(lang)
	requests := make([]batchapi.Request, 0, len(batches))
	for _, batch := range batches {
		requests = append(requests, batchapi.Request{
			GroupID: batch.ID,
			System:  system,
			User:    BatchUserContent(batch, store),
		})
	}
	return requests
}

func logErrorFile(ctx context.Context, client Submitter, status batchapi.JobStatus) {
	if status.ErrorFileID == "" {
		return
	}
	detail, err := client.FetchErrors(ctx, status.ErrorFileID)
	if err != nil {
		log.Printf("job %s: could not download error file %s: %v", status.JobID, status.ErrorFileID, err)
		return
	}
	log.Printf("job %s reported errors:\n%s", status.JobID, strings.TrimSpace(detail))
}

func trackInsert(jobs *tracker.Store, job tracker.Job) {
	if jobs == nil {
		return
	}
	if err := jobs.Insert(job); err != nil {
		log.Printf("tracker: %v", err)
	}
}

func trackUpdate(jobs *tracker.Store, jobID, status, outputFile string) {
	if jobs == nil {
		return
	}
	if err := jobs.UpdateStatus(jobID, status, outputFile); err != nil {
		log.Printf("tracker: %v", err)
	}
}
