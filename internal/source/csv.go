package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// CSVOptions configures ReadCSV. The zero value reads comma-separated input
// without trimming.
type CSVOptions struct {
	Comma     rune
	TrimSpace bool
}

// ReadCSV reads a header-first CSV stream into a sheet named name. Quoting is
// lenient and rows may have fewer or more cells than the header; extra cells
// are dropped.
func ReadCSV(r io.Reader, name string, opt CSVOptions) (Sheet, error) {
	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	sh := Sheet{Name: name}
	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return sh, nil
	}
	if err != nil {
		return sh, fmt.Errorf("source: %s: header: %w", name, err)
	}
	first = append([]string(nil), first...)
	first[0] = strings.TrimPrefix(first[0], utf8BOM)
	cols := header(first)

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return sh, nil
		}
		if err != nil {
			return sh, fmt.Errorf("source: %s: %w", name, err)
		}
		if row, ok := rowOf(cols, rec, opt.TrimSpace); ok {
			sh.Rows = append(sh.Rows, row)
		}
	}
}
