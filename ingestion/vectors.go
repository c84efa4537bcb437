package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/poiesic/medimatch/core"
)

// ReadVectorCSV parses rows of the form name,v0,v1,...,vn. There is no header.
// Rows with fewer than two cells are skipped and blank vector cells are
// ignored. A cell that is not a number fails with ErrMalformedRow naming the line.
func ReadVectorCSV(r io.Reader) ([]core.Medication, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	meds := []core.Medication{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 2 {
			continue
		}

		line, _ := reader.FieldPos(0)
		vector := make([]float32, 0, len(row)-1)
		for col, cell := range row[1:] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %q is not a number", ErrMalformedRow, line, col+2, cell)
			}
			vector = append(vector, float32(v))
		}

		name := strings.TrimSpace(row[0])
		meds = append(meds, core.Medication{
			Id:     core.IDFromContent(name),
			Name:   name,
			Vector: vector,
		})
	}
	return meds, nil
}

// WriteVectorCSV writes each medication as name,v0,...,vn.
func WriteVectorCSV(w io.Writer, meds []core.Medication) error {
	writer := csv.NewWriter(w)
	var row []string
	for _, med := range meds {
		row = append(row[:0], med.Name)
		for _, v := range med.Vector {
			row = append(row, strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
