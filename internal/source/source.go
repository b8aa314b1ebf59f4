// Package source reads spreadsheet exports into raw rows. Every reader yields
// Sheets whose rows carry the file's own column names; mapping those names to
// logical fields happens later, in canonicalization.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"salesetl/pkg/records"
)

// Kinds accepted by Open.
const (
	KindXLSX   = "xlsx"
	KindCSV    = "csv"
	KindNDJSON = "ndjson"
)

// Sheet is one named table of raw rows.
type Sheet struct {
	Name string
	Rows []records.Row
}

// KindOf guesses the kind from a file extension.
func KindOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return KindXLSX
	case ".csv", ".tsv", ".txt":
		return KindCSV
	case ".ndjson", ".jsonl":
		return KindNDJSON
	}
	return ""
}

// Open reads path as kind, or as KindOf(path) when kind is empty. CSV and
// NDJSON files produce a single sheet named after the file.
func Open(path, kind string) ([]Sheet, error) {
	return OpenWith(path, kind, nil)
}

// OpenWith is Open with CSV options; nil picks the delimiter from the file
// extension and trims cells.
func OpenWith(path, kind string, csvOpt *CSVOptions) ([]Sheet, error) {
	if kind == "" {
		kind = KindOf(path)
	}
	if kind == KindXLSX {
		return ReadWorkbook(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var sh Sheet
	switch kind {
	case KindCSV:
		opt := CSVOptions{TrimSpace: true}
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			opt.Comma = '\t'
		}
		if csvOpt != nil {
			opt = *csvOpt
		}
		sh, err = ReadCSV(f, name, opt)
	case KindNDJSON:
		sh, err = ReadNDJSON(f, name)
	default:
		return nil, fmt.Errorf("source: unsupported kind %q for %s", kind, path)
	}
	if err != nil {
		return nil, err
	}
	return []Sheet{sh}, nil
}

// header turns raw header cells into unique, non-empty column names. Blank
// cells become column_N; repeats get a " (n)" suffix so first-match
// resolution still sees the leftmost one under the plain name.
func header(cells []string) []string {
	out := make([]string, len(cells))
	seen := make(map[string]int, len(cells))
	for i, c := range cells {
		name := strings.TrimSpace(c)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s (%d)", name, n+1)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

// rowOf zips cells with cols. Missing trailing cells are absent from the row;
// empty cells are kept as "" so the column still exists. It reports false for
// a row whose cells are all blank.
func rowOf(cols, cells []string, trim bool) (records.Row, bool) {
	var (
		row   records.Row
		blank = true
	)
	for i, c := range cells {
		if i >= len(cols) {
			break
		}
		if trim {
			c = strings.TrimSpace(c)
		}
		if strings.TrimSpace(c) != "" {
			blank = false
		}
		row.Set(cols[i], c)
	}
	return row, !blank
}
