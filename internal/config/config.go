// Package config defines the JSON pipeline model for import runs and the
// process settings shared by the commands.
//
// Example (trimmed):
//
//	{
//	  "job": "books-q1",
//	  "source":  { "kind": "xlsx", "path": "sales.xlsx",
//	               "sheets": { "Amazon": "marketplace", "Website": "storefront" },
//	               "default_category": "direct" },
//	  "aliases": { "amount": ["Settlement Amount"] },
//	  "coerce":  { "serial_min": 1, "serial_max": 73050, "reject_out_of_range": true },
//	  "storage": { "kind": "postgres", "dsn": "postgresql://...", "auto_create_table": true },
//	  "runtime": { "chunk_size": 500, "workers": 1, "error_dir": "./import-errors" }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"salesetl/internal/coerce"
	"salesetl/internal/fields"
	"salesetl/internal/sale"
	"salesetl/internal/storage"
)

// Pipeline describes one import run. It is the top-level object decoded from
// a pipeline file.
type Pipeline struct {
	// Job labels logs and metrics.
	Job string `json:"job"`

	Source Source `json:"source"`

	// Aliases adds column names per logical field on top of the built-in
	// alias table, keyed by field name (e.g. "amount").
	Aliases map[string][]string `json:"aliases"`

	Coerce  Coerce        `json:"coerce"`
	Storage Storage       `json:"storage"`
	Runtime RuntimeConfig `json:"runtime"`
}

// Source names the input file and maps its sheets to sale categories.
type Source struct {
	// Kind is "xlsx", "csv" or "ndjson"; empty infers it from Path.
	Kind string `json:"kind"`
	Path string `json:"path"`

	// Sheets maps sheet names to categories. CSV and NDJSON inputs have a
	// single sheet named after the file.
	Sheets map[string]string `json:"sheets"`

	// DefaultCategory applies to sheets missing from Sheets. Empty means
	// such sheets are an error.
	DefaultCategory string `json:"default_category"`

	// Options carries reader-specific settings, e.g. "comma" for CSV.
	Options Options `json:"options"`
}

// Coerce configures the serial-date policy.
type Coerce struct {
	SerialMin        float64  `json:"serial_min"`
	SerialMax        float64  `json:"serial_max"`
	RejectOutOfRange bool     `json:"reject_out_of_range"`
	DateLayouts      []string `json:"date_layouts"`
}

// Storage selects the backend records are written to.
type Storage struct {
	// Kind is a registered storage kind: postgres, mssql, mysql, sqlite, memory.
	Kind  string `json:"kind"`
	DSN   string `json:"dsn"`
	Table string `json:"table"`

	// AutoCreateTable creates the sale table when it does not exist.
	AutoCreateTable bool `json:"auto_create_table"`
}

// RuntimeConfig controls chunking and concurrency.
type RuntimeConfig struct {
	ChunkSize int    `json:"chunk_size"`
	Workers   int    `json:"workers"`
	RowCap    int    `json:"row_cap"`
	ErrorDir  string `json:"error_dir"`
}

// Defaults used by WithDefaults.
const (
	DefaultChunkSize = 500
	DefaultWorkers   = 1
	DefaultRowCap    = 100_000
	DefaultErrorDir  = "./import-errors"
)

// Load decodes the pipeline file at path. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: %w", err)
	}
	return Decode(b)
}

// Decode parses a pipeline document.
func Decode(b []byte) (Pipeline, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var p Pipeline
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("config: decode pipeline: %w", err)
	}
	return p, nil
}

// WithDefaults returns a copy of p with zero runtime values filled in.
func (p Pipeline) WithDefaults() Pipeline {
	if p.Job == "" {
		p.Job = "salesimport"
	}
	if p.Storage.Kind == "" {
		p.Storage.Kind = "memory"
	}
	if p.Runtime.ChunkSize <= 0 {
		p.Runtime.ChunkSize = DefaultChunkSize
	}
	if p.Runtime.Workers <= 0 {
		p.Runtime.Workers = DefaultWorkers
	}
	if p.Runtime.RowCap <= 0 {
		p.Runtime.RowCap = DefaultRowCap
	}
	if p.Runtime.ErrorDir == "" {
		p.Runtime.ErrorDir = DefaultErrorDir
	}
	return p
}

// CategoryFor resolves a sheet's category: an exact Sheets entry, then a
// case-insensitive one, then DefaultCategory.
func (s Source) CategoryFor(sheet string) (sale.Category, error) {
	if c, ok := s.Sheets[sheet]; ok {
		return sale.ParseCategory(c)
	}
	for name, c := range s.Sheets {
		if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(sheet)) {
			return sale.ParseCategory(c)
		}
	}
	if s.DefaultCategory != "" {
		return sale.ParseCategory(s.DefaultCategory)
	}
	return "", fmt.Errorf("sheet %q has no category mapping and no default_category is set", sheet)
}

// Coercer builds the coercer for this pipeline.
func (c Coerce) Coercer() coerce.Coercer {
	return coerce.Coercer{
		SerialMin:        c.SerialMin,
		SerialMax:        c.SerialMax,
		RejectOutOfRange: c.RejectOutOfRange,
		Layouts:          c.DateLayouts,
	}
}

// AliasTable returns the built-in alias table extended with p.Aliases.
func (p Pipeline) AliasTable() *fields.Table {
	t := fields.DefaultAliases()
	if len(p.Aliases) == 0 {
		return t
	}
	return t.Merge(p.Aliases)
}

// StorageConfig converts the storage block for storage.New.
func (s Storage) StorageConfig() storage.Config {
	return storage.Config{Kind: s.Kind, DSN: s.DSN, Table: s.Table}
}

// Options fetches typed values from a free-form JSON object, returning the
// default when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64, which is accepted and truncated.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if s, ok := o[key].(string); ok && s != "" {
		return []rune(s)[0]
	}
	return def
}

// UnmarshalJSON decodes a missing or null object to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
