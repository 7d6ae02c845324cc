package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/examdrill/backend/internal/domain/bank"
)

const sheetName = "题库"

// ReadXLSX loads a spreadsheet bank: the first row of the first sheet
// declares the columns, every following row is one question record.
// Short rows are padded with empty cells (absent options are valid).
func ReadXLSX(r io.Reader) (*bank.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &bank.Table{}, nil
	}

	t := &bank.Table{Columns: rows[0]}
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// WriteXLSX writes a table back out as a spreadsheet bank, with the
// column widths the extraction pipeline uses for its own output.
func WriteXLSX(w io.Writer, t *bank.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	if err := f.SetSheetRow(sheetName, "A1", &t.Columns); err != nil {
		return err
	}
	for i, rec := range t.Records {
		row := make([]any, len(t.Columns))
		for j, col := range t.Columns {
			row[j] = rec[col]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}

	for i, col := range t.Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, name, name, columnWidth(col)); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func columnWidth(col string) float64 {
	switch col {
	case bank.ColPrompt:
		return 80
	case bank.ColOptionA, bank.ColOptionB, bank.ColOptionC, bank.ColOptionD, bank.ColEvalPoint:
		return 30
	default:
		return 10
	}
}
