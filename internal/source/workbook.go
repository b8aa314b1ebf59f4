package source

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReadWorkbook reads every worksheet of an .xlsx file. Row 1 is the header.
// Cells are read raw, so date cells arrive as serial day numbers and money
// cells without display formatting.
func ReadWorkbook(path string) ([]Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: open workbook: %w", err)
	}
	defer f.Close()
	return readSheets(f)
}

// ReadWorkbookFrom is ReadWorkbook over an already-open stream.
func ReadWorkbookFrom(r io.Reader) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("source: open workbook: %w", err)
	}
	defer f.Close()
	return readSheets(f)
}

func readSheets(f *excelize.File) ([]Sheet, error) {
	var out []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("source: sheet %q: %w", name, err)
		}
		sh := Sheet{Name: name}
		if len(rows) > 0 {
			cols := header(rows[0])
			for _, cells := range rows[1:] {
				if row, ok := rowOf(cols, cells, true); ok {
					sh.Rows = append(sh.Rows, row)
				}
			}
		}
		out = append(out, sh)
	}
	return out, nil
}
