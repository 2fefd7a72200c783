package tracker

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertAndGet(t *testing.T) {
	store := openTestStore(t)

	job := Job{
		RunID:          "run-1",
		InputFile:      "in/sentences.csv",
		JobID:          "batch_abc",
		Status:         "submitted",
		TargetLanguage: "Telugu",
	}
	if err := store.Insert(job); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok, err := store.Get("batch_abc")
	if err != nil || !ok {
		t.Fatalf("Get: %v, %v", ok, err)
	}
	if got.RunID != "run-1" || got.Status != "submitted" || got.TargetLanguage != "Telugu" {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAtUTC == "" || got.UpdatedAtUTC == "" {
		t.Errorf("timestamps not set: %+v", got)
	}

	if _, ok, err := store.Get("no-such-job"); err != nil || ok {
		t.Errorf("unknown job: ok=%v err=%v", ok, err)
	}
}

func TestInsertRequiresJobID(t *testing.T) {
	store := openTestStore(t)
	if err := store.Insert(Job{RunID: "run-1"}); err == nil {
		t.Error("insert without job id should fail")
	}
}

func TestInsertRejectsDuplicateJobID(t *testing.T) {
	store := openTestStore(t)
	job := Job{RunID: "run-1", JobID: "batch_dup", Status: "submitted"}
	if err := store.Insert(job); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(job); err == nil {
		t.Error("duplicate job id should fail")
	}
}

func TestUpdateStatus(t *testing.T) {
	store := openTestStore(t)
	if err := store.Insert(Job{RunID: "run-1", JobID: "batch_upd", Status: "submitted"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := store.UpdateStatus("batch_upd", "completed", "out/result.csv"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, _, err := store.Get("batch_upd")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != "completed" || got.OutputFile != "out/result.csv" {
		t.Errorf("got %+v", got)
	}

	if err := store.UpdateStatus("missing", "completed", ""); err == nil {
		t.Error("updating an unknown job should fail")
	}
}

func TestListAndStatusCounts(t *testing.T) {
	store := openTestStore(t)
	jobs := []Job{
		{RunID: "run-1", JobID: "batch_a", Status: "completed", CreatedAtUTC: "2026-01-01T00:00:00Z", UpdatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "run-1", JobID: "batch_b", Status: "running", CreatedAtUTC: "2026-01-02T00:00:00Z", UpdatedAtUTC: "2026-01-02T00:00:00Z"},
		{RunID: "run-2", JobID: "batch_c", Status: "completed", CreatedAtUTC: "2026-01-03T00:00:00Z", UpdatedAtUTC: "2026-01-03T00:00:00Z"},
	}
	for _, job := range jobs {
		if err := store.Insert(job); err != nil {
			t.Fatalf("Insert %s: %v", job.JobID, err)
		}
	}

	all, err := store.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].JobID != "batch_c" || all[2].JobID != "batch_a" {
		t.Errorf("List order wrong: %+v", all)
	}

	completed, err := store.List("completed")
	if err != nil {
		t.Fatalf("List(completed): %v", err)
	}
	if len(completed) != 2 {
		t.Errorf("completed = %d, want 2", len(completed))
	}

	counts, err := store.StatusCounts()
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if counts["completed"] != 2 || counts["running"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestSetupResetsSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Insert(Job{RunID: "run-1", JobID: "batch_x", Status: "submitted"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	store.Close()

	if err := Setup(path); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	if _, ok, err := store.Get("batch_x"); err != nil || ok {
		t.Errorf("record survived setup: ok=%v err=%v", ok, err)
	}
}
