// Package emit writes tabular run artefacts as CSV and XLSX twins.
//
// Every emitted file follows the same invariants: UTF-8 without BOM, comma
// separators and LF terminators for CSV, one sheet per workbook for XLSX,
// and cell values preformatted as strings so the two formats carry
// identical content. Writes are atomic; a crash never leaves a truncated
// artefact behind.
package emit

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"upi-reconciliation-service/pkg/atomicfile"
	"upi-reconciliation-service/pkg/errors"
)

// Sheet names beyond this length are rejected by the XLSX format.
const maxSheetName = 31

// Table is one emitted artefact: a named grid with a single header row.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string

	// Stamp, when set, pins the workbook's document properties so
	// re-emitting the same cycle produces identical metadata.
	Stamp time.Time
}

// AppendRow adds one row of preformatted cells.
func (t *Table) AppendRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// WriteCSV atomically writes the table to path.
func WriteCSV(path string, t *Table) error {
	if err := validate(t); err != nil {
		return err
	}

	err := atomicfile.WriteWith(path, 0o644, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(t.Header); err != nil {
			return err
		}
		for _, row := range t.Rows {
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return errors.FileError(errors.CodeWriteFailed, path, err)
	}
	return nil
}

// WriteXLSX atomically writes the table to path as a one-sheet workbook.
func WriteXLSX(path string, t *Table) error {
	if err := validate(t); err != nil {
		return err
	}

	err := atomicfile.WriteWith(path, 0o644, func(w io.Writer) error {
		f := excelize.NewFile()
		defer f.Close()

		sheet := sheetName(t.Name)
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}

		if err := writeRow(f, sheet, 1, t.Header); err != nil {
			return err
		}
		for i, row := range t.Rows {
			if err := writeRow(f, sheet, i+2, row); err != nil {
				return err
			}
		}

		if !t.Stamp.IsZero() {
			stamp := t.Stamp.UTC().Format(time.RFC3339)
			if err := f.SetDocProps(&excelize.DocProperties{
				Created:  stamp,
				Modified: stamp,
			}); err != nil {
				return err
			}
		}

		return f.Write(w)
	})
	if err != nil {
		return errors.FileError(errors.CodeWriteFailed, path, err)
	}
	return nil
}

// WriteTwins writes base.csv and base.xlsx under dir and returns both
// paths.
func WriteTwins(dir, base string, t *Table) (string, string, error) {
	csvPath := filepath.Join(dir, base+".csv")
	if err := WriteCSV(csvPath, t); err != nil {
		return "", "", err
	}
	xlsxPath := filepath.Join(dir, base+".xlsx")
	if err := WriteXLSX(xlsxPath, t); err != nil {
		return "", "", err
	}
	return csvPath, xlsxPath, nil
}

func validate(t *Table) error {
	if t == nil || len(t.Header) == 0 {
		return errors.ValidationError(errors.CodeMissingField, "header", nil,
			fmt.Errorf("emitted tables need a header row"))
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return errors.ValidationError(errors.CodeOutOfRange, "row", i,
				fmt.Errorf("row %d has %d cells, header has %d", i, len(row), len(t.Header)))
		}
	}
	return nil
}

func sheetName(name string) string {
	if name == "" {
		return "Sheet1"
	}
	if len(name) > maxSheetName {
		return name[:maxSheetName]
	}
	return name
}

func writeRow(f *excelize.File, sheet string, rowNum int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return f.SetSheetRow(sheet, cell, &values)
}
