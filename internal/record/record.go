package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is one source sentence keyed by its description identifier.
type Record struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Store holds records in input order. Identifiers are normalized and
// unique; membership lookups go through the index.
type Store struct {
	records []Record
	index   map[string]int
}

// NormalizeID converts an identifier to its canonical form: surrounding
// whitespace and quotes trimmed, historical "desc_" prefix stripped.
// Historical CSVs carried both "21" and "desc_21" for the same row.
func NormalizeID(raw string) string {
	id := strings.TrimSpace(raw)
	id = strings.Trim(id, `"'`)
	id = strings.TrimPrefix(id, "desc_")
	return strings.TrimSpace(id)
}

// Load reads an input CSV of (identifier, sentence) rows. The first row is
// a header and is skipped; rows with a blank second column are dropped.
// A duplicate identifier keeps the first occurrence.
func Load(path string) (*Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer file.Close()

	store, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", path, err)
	}
	return store, nil
}

// Parse reads records from r. See Load for row handling rules.
func Parse(r io.Reader) (*Store, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty csv")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	store := &Store{index: map[string]int{}}
	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		text := strings.TrimSpace(row[1])
		if text == "" {
			continue
		}
		id := NormalizeID(strings.TrimPrefix(row[0], "\ufeff"))
		if id == "" {
			continue
		}
		if _, seen := store.index[id]; seen {
			continue
		}
		store.index[id] = len(store.records)
		store.records = append(store.records, Record{ID: id, Text: text})
	}

	if len(store.records) == 0 {
		return nil, errors.New("no usable rows")
	}
	return store, nil
}

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// Records returns all records in input order. The slice must not be mutated.
func (s *Store) Records() []Record { return s.records }

// Text returns the source sentence for a normalized identifier.
func (s *Store) Text(id string) (string, bool) {
	i, ok := s.index[id]
	if !ok {
		return "", false
	}
	return s.records[i].Text, true
}

// Contains reports whether the store holds the normalized identifier.
func (s *Store) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}
