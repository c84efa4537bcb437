package ingestion

import (
	"encoding/csv"
	"errors"
	"io"
	"slices"
	"strings"
)

// DefaultNameColumn is the product name column of the FDA NDC product export.
const DefaultNameColumn = "PROPRIETARYNAME"

// ReadNames reads a CSV with a header row and returns the unique, trimmed,
// non-blank values of column in first-seen order. An empty column selects
// DefaultNameColumn. If the header has no such column the first column is used.
func ReadNames(r io.Reader, column string) ([]string, error) {
	if column == "" {
		column = DefaultNameColumn
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	index := slices.IndexFunc(header, func(h string) bool {
		return strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), column)
	})
	if index < 0 {
		index = 0
	}

	seen := make(map[string]struct{})
	names := []string{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if index >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[index])
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// WriteNames writes names one per row under a single header.
func WriteNames(w io.Writer, header string, names []string) error {
	if header == "" {
		header = DefaultNameColumn
	}
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{header}); err != nil {
		return err
	}
	for _, name := range names {
		if err := writer.Write([]string{name}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
