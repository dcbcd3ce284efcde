package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes d as comma-delimited CSV with a header row and "\n" line
// endings. Fields are quoted only when they need to be. Output for a given
// dataset is byte-for-byte stable.
func WriteCSV(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(d.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, d.NumCols())
	for i := 0; i < d.NumRows(); i++ {
		for j, c := range d.cols {
			record[j] = c.Values[i].String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
