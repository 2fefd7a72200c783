package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/orugallu/diagtranslate/internal/reconcile"
)

var outputHeader = []string{"description_id", "english_sentence", "translated_sentence"}

// WriteOutputCSV writes the aligned output table. The file starts with a
// UTF-8 byte-order mark so spreadsheet tools pick the right encoding.
func WriteOutputCSV(path string, rows []reconcile.OutputRow) error {
	if parent := filepath.Dir(path); parent != "." && parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("mkdir for output: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output %q: %w", path, err)
	}
	defer file.Close()

	bom := transform.NewWriter(file, unicode.UTF8BOM.NewEncoder())
	writer := csv.NewWriter(bom)

	if err := writer.Write(outputHeader); err != nil {
		return fmt.Errorf("write output header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.ID, row.SourceText, row.Translation}); err != nil {
			return fmt.Errorf("write output row %s: %w", row.ID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if err := bom.Close(); err != nil {
		return fmt.Errorf("finish output: %w", err)
	}
	return nil
}
