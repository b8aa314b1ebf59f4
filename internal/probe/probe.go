// Package probe samples a source file and reports how its columns map onto
// the logical sale fields. It also proposes a starter pipeline that can be
// hand-edited and then run with salesimport.
package probe

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"salesetl/internal/coerce"
	"salesetl/internal/config"
	"salesetl/internal/fields"
	"salesetl/internal/sale"
	"salesetl/internal/source"
)

// Options control sampling and the generated pipeline.
type Options struct {
	Path string
	Kind string // "" infers from Path

	// SampleRows caps how many rows per sheet are inspected; <= 0 means 200.
	SampleRows int

	// Aliases extends the built-in alias table, as in a pipeline file.
	Aliases map[string][]string

	// Backend and DSN go into the generated storage block. Backend defaults
	// to "sqlite".
	Backend string
	DSN     string

	// Job defaults to the normalized file name.
	Job string
}

// Column is one source column and what it resolves to.
type Column struct {
	Name  string       `json:"name"`
	Field fields.Field `json:"field,omitempty"`
	// Shadowed marks a column whose field is already taken by a column
	// further left; resolution never reads it.
	Shadowed bool     `json:"shadowed,omitempty"`
	NonEmpty int      `json:"non_empty"`
	Parsed   int      `json:"parsed"` // values the coercer accepts for Field
	Samples  []string `json:"samples,omitempty"`
}

// Sheet summarizes one sheet.
type Sheet struct {
	Name     string         `json:"name"`
	Rows     int            `json:"rows"`
	Sampled  int            `json:"sampled"`
	Category sale.Category  `json:"category,omitempty"` // guessed from the name
	Columns  []Column       `json:"columns"`
	Missing  []fields.Field `json:"missing,omitempty"` // identifying fields with no column
}

// Result is the probe output.
type Result struct {
	Sheets   []Sheet         `json:"sheets"`
	Pipeline config.Pipeline `json:"pipeline"`
}

const (
	defaultSampleRows = 200
	maxSamples        = 3
)

// identifying are the fields a sheet should carry for stable row hashes and
// useful aggregates.
var identifying = []fields.Field{fields.OrderID, fields.Date, fields.Amount, fields.Title}

// categoryHints maps sheet-name keywords to categories, checked in order.
var categoryHints = []struct {
	cat   sale.Category
	words []string
}{
	{sale.Marketplace, []string{"amazon", "flipkart", "meesho", "marketplace", "market place"}},
	{sale.Storefront, []string{"website", "web", "shopify", "storefront", "online", "store"}},
	{sale.Distributor, []string{"distributor", "wholesale", "dealer", "trade", "stockist"}},
	{sale.Direct, []string{"counter", "pos", "direct", "offline", "ledger", "retail"}},
}

// Probe reads the source at opt.Path and reports every sheet.
func Probe(opt Options) (Result, error) {
	if strings.TrimSpace(opt.Path) == "" {
		return Result{}, fmt.Errorf("probe: path must not be empty")
	}
	sheets, err := source.Open(opt.Path, opt.Kind)
	if err != nil {
		return Result{}, err
	}
	return Sheets(sheets, opt), nil
}

// Sheets reports already-read sheets; Probe calls it after reading.
func Sheets(sheets []source.Sheet, opt Options) Result {
	table := fields.DefaultAliases()
	if len(opt.Aliases) > 0 {
		table = table.Merge(opt.Aliases)
	}
	byName := reverseAliases(table)
	limit := opt.SampleRows
	if limit <= 0 {
		limit = defaultSampleRows
	}

	res := Result{Sheets: make([]Sheet, 0, len(sheets))}
	for _, sh := range sheets {
		res.Sheets = append(res.Sheets, inspect(sh, byName, limit))
	}
	res.Pipeline = pipelineFor(res.Sheets, opt)
	return res
}

// reverseAliases maps normalized column names to the first field, in
// fields.All order, that lists them.
func reverseAliases(t *fields.Table) map[string]fields.Field {
	out := map[string]fields.Field{}
	for _, f := range fields.All {
		for _, a := range t.Aliases(f) {
			n := fields.NormalizeName(a)
			if _, taken := out[n]; !taken {
				out[n] = f
			}
		}
	}
	return out
}

func inspect(sh source.Sheet, byName map[string]fields.Field, limit int) Sheet {
	out := Sheet{Name: sh.Name, Rows: len(sh.Rows), Category: guessCategory(sh.Name)}
	sample := sh.Rows
	if len(sample) > limit {
		sample = sample[:limit]
	}
	out.Sampled = len(sample)

	index := map[string]int{}
	for _, row := range sample {
		for _, name := range row.Columns() {
			if _, ok := index[name]; !ok {
				index[name] = len(out.Columns)
				out.Columns = append(out.Columns, Column{Name: name})
			}
		}
	}

	claimed := map[fields.Field]bool{}
	for i := range out.Columns {
		c := &out.Columns[i]
		f, ok := byName[fields.NormalizeName(c.Name)]
		if !ok {
			continue
		}
		c.Field = f
		c.Shadowed = claimed[f]
		claimed[f] = true
	}

	for _, row := range sample {
		row.Each(func(name string, v any) bool {
			c := &out.Columns[index[name]]
			s := strings.TrimSpace(fmt.Sprint(v))
			if v == nil || s == "" {
				return true
			}
			c.NonEmpty++
			if parses(c.Field, v) {
				c.Parsed++
			}
			if len(c.Samples) < maxSamples && !contains(c.Samples, s) {
				c.Samples = append(c.Samples, s)
			}
			return true
		})
	}

	for _, f := range identifying {
		if !claimed[f] {
			out.Missing = append(out.Missing, f)
		}
	}
	return out
}

// parses reports whether the coercer accepts v for f. Text fields accept
// anything non-empty.
func parses(f fields.Field, v any) bool {
	switch f {
	case "":
		return false
	case fields.Date:
		return coerce.ToDate(v) != nil
	case fields.Month, fields.Year, fields.Quantity:
		return coerce.ToInt(v) != nil
	case fields.Rate, fields.Amount, fields.Discount, fields.Tax, fields.Shipping:
		return coerce.ToDecimal(v) != nil
	}
	return coerce.ToTrimmedStringOrNull(v) != nil
}

func guessCategory(sheet string) sale.Category {
	name := strings.ToLower(sheet)
	for _, h := range categoryHints {
		for _, w := range h.words {
			if strings.Contains(name, w) {
				return h.cat
			}
		}
	}
	return ""
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// jobName lower-cases s and joins its words with underscores.
func jobName(s string) string {
	s = strings.Trim(nonWord.ReplaceAllString(strings.ToLower(s), "_"), "_")
	if s == "" {
		return "salesimport"
	}
	return s
}

func pipelineFor(sheets []Sheet, opt Options) config.Pipeline {
	job := opt.Job
	if job == "" {
		job = jobName(strings.TrimSuffix(filepath.Base(opt.Path), filepath.Ext(opt.Path)))
	}
	backend := opt.Backend
	if backend == "" {
		backend = "sqlite"
	}
	dsn := opt.DSN
	if dsn == "" && backend == "sqlite" {
		dsn = job + ".db"
	}

	p := config.Pipeline{
		Job: job,
		Source: config.Source{
			Kind:   opt.Kind,
			Path:   opt.Path,
			Sheets: map[string]string{},
		},
		Aliases: opt.Aliases,
		Storage: config.Storage{Kind: backend, DSN: dsn, AutoCreateTable: true},
		Runtime: config.RuntimeConfig{ChunkSize: config.DefaultChunkSize, Workers: config.DefaultWorkers},
	}
	if p.Source.Kind == "" {
		p.Source.Kind = source.KindOf(opt.Path)
	}
	for _, sh := range sheets {
		if sh.Category != "" {
			p.Source.Sheets[sh.Name] = string(sh.Category)
		} else {
			p.Source.DefaultCategory = string(sale.Direct)
		}
	}
	return p
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
