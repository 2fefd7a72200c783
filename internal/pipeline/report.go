package pipeline

import (
	"fmt"
	"strings"

	"github.com/orugallu/diagtranslate/internal/reconcile"
)

const excerptLen = 40

// FormatReport renders the anomaly report for human triage: what is
// missing (with its source sentence), what came back unasked-for, what
// looks suspicious, and which rows are likely shifted.
func FormatReport(summary Summary) string {
	report := summary.Report

	var b strings.Builder
	fmt.Fprintf(&b, "[SUMMARY] %d/%d translations recovered (%.1f%%) across %d batches\n",
		report.Success, summary.Records, report.SuccessRate(), summary.Batches)
	if report.Repaired > 0 {
		fmt.Fprintf(&b, "[SUMMARY] %d truncated replies repaired\n", report.Repaired)
	}

	writeSection(&b, report, reconcile.AnomalyMissing,
		fmt.Sprintf("[MISSING] %d missing translations:", report.Missing),
		func(a reconcile.Anomaly) string {
			return fmt.Sprintf("  - batch %s, %s: %s", a.BatchID, a.ID, excerpt(a.SourceText))
		})

	writeSection(&b, report, reconcile.AnomalyExtra,
		fmt.Sprintf("[EXTRA] %d unexpected identifiers returned:", report.Extra),
		func(a reconcile.Anomaly) string {
			return fmt.Sprintf("  - batch %s, %s: %s", a.BatchID, a.ID, excerpt(a.Translation))
		})

	writeSection(&b, report, reconcile.AnomalySuspicious,
		fmt.Sprintf("[SUSPICIOUS] %d suspicious translations:", report.Suspicious),
		func(a reconcile.Anomaly) string {
			return fmt.Sprintf("  - batch %s, %s: %q (English: %s)", a.BatchID, a.ID, a.Translation, excerpt(a.SourceText))
		})

	writeSection(&b, report, reconcile.AnomalyShifted,
		fmt.Sprintf("[SHIFT WARNING] %d possible shifted translations:", report.Shifted),
		func(a reconcile.Anomaly) string {
			return fmt.Sprintf("  - batch %s: translation for %s (%s) may have been output for %s: %s",
				a.BatchID, a.ID, excerpt(a.SourceText), a.ShiftedFromID, excerpt(a.Translation))
		})

	if report.Clean() {
		b.WriteString("[SUMMARY] All translations matched by description_id.\n")
	}
	return b.String()
}

func writeSection(b *strings.Builder, report *reconcile.Report, kind, header string, line func(reconcile.Anomaly) string) {
	wrote := false
	for _, a := range report.Anomalies {
		if a.Kind != kind {
			continue
		}
		if !wrote {
			b.WriteString(header)
			b.WriteByte('\n')
			wrote = true
		}
		b.WriteString(line(a))
		b.WriteByte('\n')
	}
}

func excerpt(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= excerptLen {
		return string(runes)
	}
	return string(runes[:excerptLen]) + "..."
}
