package format

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/datacleaner/internal/dataset"
)

// loadExcel reads the first sheet. The first non-empty row is the header;
// short rows are padded with empty cells and values are typed per column.
// Legacy binary .xls workbooks are not readable by excelize and fail here.
func loadExcel(ctx context.Context, src Source, opts Options) (*dataset.Dataset, error) {
	f, err := excelize.OpenFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets found in workbook")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return sheetDataset(rows)
}

func sheetDataset(rows [][]string) (*dataset.Dataset, error) {
	start := 0
	for start < len(rows) && blankRow(rows[start]) {
		start++
	}
	if start == len(rows) {
		return dataset.New(nil, nil)
	}

	header := make([]string, 0, len(rows[start]))
	for i, h := range rows[start] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		header = append(header, h)
	}
	header = dedupeHeader(header)

	body := rows[start+1:]
	width := len(header)
	for _, r := range body {
		if len(r) > width {
			width = len(r)
		}
	}
	for i := len(header); i < width; i++ {
		header = append(header, "Unnamed: "+strconv.Itoa(i))
	}

	padded := make([][]string, len(body))
	for i, r := range body {
		p := make([]string, width)
		copy(p, r)
		padded[i] = p
	}
	return dataset.InferRows(header, padded)
}

func blankRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
