package artifact

import (
	"encoding/csv"
	"fmt"
	"os"

	"market-pipeline/internal/domain"
)

// RawTable is the uninterpreted content of a raw artifact: two header
// rows (outer ticker level, inner metric level) plus data rows whose
// first cell is the date. The Normalizer owns shape validation, so the
// reader hands the headers back verbatim.
type RawTable struct {
	Header1 []string   // ticker per column, first cell empty
	Header2 []string   // metric per column, first cell "date"
	Rows    [][]string // date followed by one cell per column
}

// WriteRaw serializes a wide payload to the run's raw artifact.
func (s *Store) WriteRaw(runID string, table *domain.WideTable) (string, error) {
	path := s.RawPath(runID)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create raw artifact: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header1 := make([]string, 1, len(table.Columns)+1)
	header2 := make([]string, 1, len(table.Columns)+1)
	header2[0] = "date"
	for _, col := range table.Columns {
		header1 = append(header1, col.Ticker)
		header2 = append(header2, col.Metric)
	}
	if err := w.Write(header1); err != nil {
		return "", fmt.Errorf("write raw header: %w", err)
	}
	if err := w.Write(header2); err != nil {
		return "", fmt.Errorf("write raw header: %w", err)
	}

	for i, date := range table.Dates {
		row := make([]string, 1, len(table.Columns)+1)
		row[0] = date
		for _, col := range table.Columns {
			var cell string
			if i < len(col.Cells) {
				cell = col.Cells[i]
			}
			row = append(row, cell)
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write raw row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush raw artifact: %w", err)
	}
	return path, nil
}

// ReadRaw loads a raw artifact without interpreting its shape.
// Returns ErrNotFound if the file is missing.
func (s *Store) ReadRaw(path string) (*RawTable, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // shape is validated downstream
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read raw artifact: %w", err)
	}

	table := &RawTable{}
	if len(records) > 0 {
		table.Header1 = records[0]
	}
	if len(records) > 1 {
		table.Header2 = records[1]
	}
	if len(records) > 2 {
		table.Rows = records[2:]
	}
	return table, nil
}
