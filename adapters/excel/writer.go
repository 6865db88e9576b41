package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gorla/domain/tally"
)

// WriteTable writes t as CSV or XLSX depending on the extension of path
func WriteTable(path string, t *tally.Table) error {
	if strings.ToLower(filepath.Ext(path)) == ".xlsx" {
		return WriteXLSX(path, "Sheet1", t)
	}
	return WriteCSV(path, t)
}

func records(t *tally.Table) [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make([]string, len(t.Columns))
		for i, column := range t.Columns {
			switch column {
			case tally.ColumnVotes:
				rec[i] = strconv.FormatInt(row.Votes, 10)
			case tally.ColumnTable, tally.ColumnCandidate, tally.ColumnParty:
				rec[i] = row.Key(column)
			}
		}
		out = append(out, rec)
	}
	return out
}

// WriteCSV writes the header and rows of t to a CSV file
func WriteCSV(path string, t *tally.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(t.Columns); err != nil {
		return err
	}
	for _, rec := range records(t) {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteXLSX writes t to sheet of a new workbook. Votes are stored as numbers.
func WriteXLSX(path, sheet string, t *tally.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	for i, h := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for r, row := range t.Rows {
		for c, column := range t.Columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			var v any
			switch column {
			case tally.ColumnVotes:
				v = row.Votes
			case tally.ColumnTable, tally.ColumnCandidate, tally.ColumnParty:
				v = row.Key(column)
			default:
				continue
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("cell %s: %w", cell, err)
			}
		}
	}

	return f.SaveAs(path)
}
