package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Section groups plan rows under one semester heading. Renderers that page
// their output (PDF) emit the heading; flat formats rely on the semester
// column inside the rows instead.
type Section struct {
	Heading string
	Rows    [][]string
}

// Table is the ordered tabular form of the study plan.
type Table struct {
	Columns  []string
	Sections []Section
}

// CSVExporter renders a plan table into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render writes the column header followed by every section's rows. Rows
// shorter than the column set are padded so the output stays rectangular.
func (e *CSVExporter) Render(table Table) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one column")
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(table.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, section := range table.Sections {
		for _, row := range section.Rows {
			record := make([]string, len(table.Columns))
			for i := range record {
				if i < len(row) {
					record[i] = row[i]
				}
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
