package batching

import (
	"strings"
	"testing"

	"github.com/orugallu/diagtranslate/internal/record"
)

func makeRecords(texts ...string) []record.Record {
	recs := make([]record.Record, len(texts))
	for i, text := range texts {
		recs[i] = record.Record{ID: recordID(i), Text: text}
	}
	return recs
}

func recordID(i int) string {
	return string(rune('1' + i))
}

func TestPartitionKeepsOrderAndCoversAll(t *testing.T) {
	recs := makeRecords(
		"Check the engine oil level.",
		"Inspect the serpentine belt for cracks.",
		"Bleed the brake lines at all four corners.",
		"Measure battery voltage with the engine off.",
		"Rotate the tires front to back.",
	)
	limits := Limits{TokenBudget: 60, PromptOverhead: 10, OutputRatio: 1.0}

	batches, err := Partition(recs, limits, HeuristicEstimator)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if len(batches) < 2 {
		t.Fatalf("expected budget to split records, got %d batch(es)", len(batches))
	}

	var flattened []string
	for i, b := range batches {
		if len(b.MemberIDs) == 0 {
			t.Fatalf("batch %d is empty", i)
		}
		flattened = append(flattened, b.MemberIDs...)
	}
	if len(flattened) != len(recs) {
		t.Fatalf("covered %d records, want %d", len(flattened), len(recs))
	}
	for i, id := range flattened {
		if id != recs[i].ID {
			t.Errorf("position %d: got %q, want %q (order must be preserved)", i, id, recs[i].ID)
		}
	}
}

func TestPartitionBatchIDs(t *testing.T) {
	recs := makeRecords("First sentence here.", "Second sentence here.", "Third sentence here.")
	limits := Limits{TokenBudget: 15, OutputRatio: 1.0}

	batches, err := Partition(recs, limits, HeuristicEstimator)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	for i, b := range batches {
		want := []string{"batch-0001", "batch-0002", "batch-0003"}[i]
		if b.ID != want {
			t.Errorf("batch %d id = %q, want %q", i, b.ID, want)
		}
	}
}

func TestPartitionOversizedRecordGetsOwnBatch(t *testing.T) {
	recs := makeRecords(
		"Short line.",
		strings.Repeat("Adjust the idle air control valve until the engine settles. ", 20),
		"Short line again.",
	)
	limits := Limits{TokenBudget: 40, OutputRatio: 1.0}

	batches, err := Partition(recs, limits, HeuristicEstimator)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	found := false
	total := 0
	for _, b := range batches {
		total += len(b.MemberIDs)
		if len(b.MemberIDs) == 1 && b.MemberIDs[0] == recs[1].ID {
			found = true
		}
	}
	if !found {
		t.Errorf("oversized record should land in its own batch: %+v", batches)
	}
	if total != len(recs) {
		t.Errorf("covered %d records, want %d", total, len(recs))
	}
}

func TestPartitionValidation(t *testing.T) {
	recs := makeRecords("Anything at all.")
	if _, err := Partition(recs, Limits{TokenBudget: 0, OutputRatio: 1}, HeuristicEstimator); err == nil {
		t.Error("zero budget should fail")
	}
	if _, err := Partition(recs, Limits{TokenBudget: 10, OutputRatio: 0}, HeuristicEstimator); err == nil {
		t.Error("zero output ratio should fail")
	}
	if _, err := Partition(recs, Limits{TokenBudget: 10, OutputRatio: 1}, nil); err == nil {
		t.Error("nil estimator should fail")
	}
	batches, err := Partition(nil, Limits{TokenBudget: 10, OutputRatio: 1}, HeuristicEstimator)
	if err != nil || batches != nil {
		t.Errorf("empty input: got %v, %v", batches, err)
	}
}

func TestHeuristicEstimator(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 1},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 40), 10},
	}
	for _, tc := range cases {
		if got := HeuristicEstimator(tc.text); got != tc.want {
			t.Errorf("HeuristicEstimator(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestNewTokenizerEstimatorMissingFile(t *testing.T) {
	if _, err := NewTokenizerEstimator("testdata/does-not-exist.json"); err == nil {
		t.Error("missing tokenizer file should fail")
	}
}
