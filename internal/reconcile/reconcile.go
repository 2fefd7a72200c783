package reconcile

import (
	"sort"

	"github.com/orugallu/diagtranslate/internal/batching"
	"github.com/orugallu/diagtranslate/internal/extract"
	"github.com/orugallu/diagtranslate/internal/record"
)

// FailureMarker is written in place of a translation that never came back.
const FailureMarker = "[TRANSLATION_FAILED]"

// Anomaly kinds. Anomalies are observational: they annotate the report for
// human triage and never change an output row.
const (
	AnomalyMissing    = "missing_translation"
	AnomalyExtra      = "extra_translation"
	AnomalyShifted    = "shifted_translation"
	AnomalySuspicious = "suspicious_translation"
)

// OutputRow is the final artifact for one record, in record order.
type OutputRow struct {
	ID          string
	SourceText  string
	Translation string
}

// Failed reports whether the row carries the failure marker.
func (r OutputRow) Failed() bool { return r.Translation == FailureMarker }

// Anomaly describes one reconciliation finding.
type Anomaly struct {
	Kind        string
	BatchID     string
	ID          string
	SourceText  string
	Translation string
	// ShiftedFromID names the row whose translation likely belongs to ID.
	// Set only for AnomalyShifted.
	ShiftedFromID string
}

// Report aggregates per-run reconciliation results.
type Report struct {
	Success    int
	Missing    int
	Extra      int
	Suspicious int
	Shifted    int
	Repaired   int
	Anomalies  []Anomaly
}

// Clean reports whether every expected translation came back intact.
func (r *Report) Clean() bool {
	return r.Missing == 0 && r.Extra == 0 && r.Suspicious == 0 && r.Shifted == 0
}

// SuccessRate is the share of records that got a real translation,
// in percent.
func (r *Report) SuccessRate() float64 {
	total := r.Success + r.Missing
	if total == 0 {
		return 0
	}
	return float64(r.Success) / float64(total) * 100
}

func (r *Report) add(a Anomaly) {
	r.Anomalies = append(r.Anomalies, a)
	switch a.Kind {
	case AnomalyMissing:
		r.Missing++
	case AnomalyExtra:
		r.Extra++
	case AnomalyShifted:
		r.Shifted++
	case AnomalySuspicious:
		r.Suspicious++
	}
}

// Reconcile aligns extracted translations against batch membership.
// replies maps batch id to raw reply content; a missing or empty entry
// means the provider returned nothing for that batch. The returned rows
// always cover every record, in original record order; degraded batches
// produce failure markers, never an aborted run.
func Reconcile(store *record.Store, batches []batching.Batch, replies map[string]string) ([]OutputRow, *Report) {
	rows := make([]OutputRow, 0, store.Len())
	report := &Report{}

	for _, batch := range batches {
		content := replies[batch.ID]
		extracted := extractBatch(content, report)
		batchRows := alignBatch(batch, store, extracted, report)
		detectShifts(batch.ID, batchRows, report)
		rows = append(rows, batchRows...)
	}
	return rows, report
}

// extractBatch runs truncation repair ahead of the extraction cascade.
func extractBatch(content string, report *Report) map[string]string {
	if content == "" {
		return map[string]string{}
	}
	if extract.IsTruncated(content) {
		if m, ok := extract.Repair(content); ok {
			report.Repaired++
			return m
		}
	}
	return extract.Extract(content)
}

// alignBatch emits one row per member identifier, in membership order, and
// records missing, suspicious, and extra anomalies.
func alignBatch(batch batching.Batch, store *record.Store, extracted map[string]string, report *Report) []OutputRow {
	members := make(map[string]struct{}, len(batch.MemberIDs))
	rows := make([]OutputRow, 0, len(batch.MemberIDs))

	for _, id := range batch.MemberIDs {
		members[id] = struct{}{}
		source, _ := store.Text(id)

		text, ok := extracted[id]
		if !ok {
			rows = append(rows, OutputRow{ID: id, SourceText: source, Translation: FailureMarker})
			report.add(Anomaly{Kind: AnomalyMissing, BatchID: batch.ID, ID: id, SourceText: source})
			continue
		}

		rows = append(rows, OutputRow{ID: id, SourceText: source, Translation: text})
		report.Success++
		if extract.IsSuspicious(text) {
			report.add(Anomaly{
				Kind:        AnomalySuspicious,
				BatchID:     batch.ID,
				ID:          id,
				SourceText:  source,
				Translation: text,
			})
		}
	}

	// Identifiers the model returned that this batch never asked for.
	// They are reported, never reassigned to another batch's rows.
	extras := make([]string, 0)
	for id := range extracted {
		if _, ok := members[id]; !ok {
			extras = append(extras, id)
		}
	}
	sort.Strings(extras)
	for _, id := range extras {
		report.add(Anomaly{
			Kind:        AnomalyExtra,
			BatchID:     batch.ID,
			ID:          id,
			Translation: extracted[id],
		})
	}
	return rows
}

// detectShifts flags the off-by-one pattern where the model skips one
// sentence and prints the next translation under the wrong slot: a failed
// or suspicious row followed by a clean one. Advisory only.
func detectShifts(batchID string, rows []OutputRow, report *Report) {
	clean := func(r OutputRow) bool {
		return !r.Failed() && !extract.IsSuspicious(r.Translation)
	}
	degraded := func(r OutputRow) bool {
		return r.Failed() || extract.IsSuspicious(r.Translation)
	}

	for i := 0; i+1 < len(rows); i++ {
		if degraded(rows[i]) && clean(rows[i+1]) {
			report.add(Anomaly{
				Kind:          AnomalyShifted,
				BatchID:       batchID,
				ID:            rows[i].ID,
				SourceText:    rows[i].SourceText,
				Translation:   rows[i+1].Translation,
				ShiftedFromID: rows[i+1].ID,
			})
		}
	}

	// The last row has no successor; pair it with its predecessor instead.
	if n := len(rows); n > 1 && degraded(rows[n-1]) && clean(rows[n-2]) {
		report.add(Anomaly{
			Kind:          AnomalyShifted,
			BatchID:       batchID,
			ID:            rows[n-1].ID,
			SourceText:    rows[n-1].SourceText,
			Translation:   rows[n-2].Translation,
			ShiftedFromID: rows[n-2].ID,
		})
	}
}
