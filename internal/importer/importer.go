// Package importer runs batch imports of raw sale rows: map each row to a
// canonical record, drop in-batch duplicates, insert the rest in chunks with
// skip-on-conflict semantics, and report row-level failures in a side file.
//
// A row that cannot be mapped, or whose chunk fails to insert, is recorded in
// the Outcome and never aborts the run. Because records are keyed by content
// hash, a run can be repeated from scratch without creating duplicates.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"salesetl/internal/canonical"
	"salesetl/internal/metrics"
	"salesetl/internal/sale"
	"salesetl/internal/storage"
	"salesetl/pkg/records"
)

const (
	// DefaultChunkSize is the number of records per insert call.
	DefaultChunkSize = 500
	// DefaultErrorDir receives error reports when Importer.ErrorDir is empty.
	DefaultErrorDir = "import-errors"
	// DefaultJob labels metrics when Importer.Job is empty.
	DefaultJob = "salesimport"

	// reasonsShown is how many distinct failure reasons the summary logs.
	reasonsShown = 3
)

// ErrNoRepository is returned when an Importer has no Repo.
var ErrNoRepository = errors.New("importer: no repository configured")

// RowMapper turns one raw row into a canonical record.
type RowMapper interface {
	Canonicalize(cat sale.Category, row records.Row) (sale.Record, error)
}

// Importer holds the collaborators and knobs of an import run. Repo is
// required; a nil Mapper uses canonical.Mapper with default aliases.
type Importer struct {
	Repo   storage.Repository
	Mapper RowMapper

	ChunkSize int    // <= 0 means DefaultChunkSize
	Workers   int    // > 1 inserts chunks concurrently
	ErrorDir  string // "" means DefaultErrorDir
	Job       string

	// Now stamps records and report names; tests override it.
	Now func() time.Time
}

// Batch is one sheet's worth of rows sharing a category.
type Batch struct {
	Sheet    string
	Category sale.Category
	Rows     []records.Row
}

// Outcome summarizes one import run.
type Outcome struct {
	ImportID        string     `json:"import_id"`
	TotalRows       int        `json:"total_rows"`
	Inserted        int64      `json:"inserted"`
	Skipped         int64      `json:"skipped"`
	Errors          []RowError `json:"errors"`
	ErrorReportPath string     `json:"error_report_path,omitempty"`
}

// Failed returns the number of rows that were neither inserted nor skipped.
func (o Outcome) Failed() int { return len(o.Errors) }

// RowError is one failed row. Index is the row's zero-based position within
// its sheet.
type RowError struct {
	Sheet string `json:"sheet"`
	Index int    `json:"index"`
	Error string `json:"error"`

	Err error `json:"-"`
}

// MappingError reports a row that could not be assembled into a record.
type MappingError struct {
	Sheet string
	Index int
	Err   error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("map row %d: %v", e.Index, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// ChunkError reports a failed insert call; every row of the chunk fails
// with it.
type ChunkError struct {
	Chunk int // 1-based
	Size  int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("insert chunk %d (%d rows): %v", e.Chunk, e.Size, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

type rowRef struct {
	sheet string
	index int
}

// ImportBatch imports rows of a single category read from sheet.
func (im *Importer) ImportBatch(ctx context.Context, rows []records.Row, cat sale.Category, sheet string) (Outcome, error) {
	return im.Import(ctx, Batch{Sheet: sheet, Category: cat, Rows: rows})
}

// Import runs one import over batches under a single import id. Row and
// chunk failures are collected in the Outcome; the returned error is
// reserved for unusable input and for ctx cancellation, in which case the
// partial Outcome is still returned.
func (im *Importer) Import(ctx context.Context, batches ...Batch) (Outcome, error) {
	if im.Repo == nil {
		return Outcome{}, ErrNoRepository
	}
	for _, b := range batches {
		if !b.Category.Valid() {
			return Outcome{}, fmt.Errorf("importer: sheet %q: invalid category %q", b.Sheet, b.Category)
		}
	}

	var (
		start = time.Now()
		now   = im.now().UTC()
		job   = im.job()
		out   = Outcome{ImportID: uuid.NewString(), Errors: []RowError{}}
		recs  []sale.Record
		refs  []rowRef
		seen  = map[string]int{} // row hash -> position in recs
		// dups holds in-batch duplicates by the position of the record
		// kept for them; they share that record's fate in the store.
		dups = map[int][]rowRef{}

		mappingFailed, insertFailed int
	)

	for _, b := range batches {
		out.TotalRows += len(b.Rows)
		for i, row := range b.Rows {
			rec, err := im.mapRow(b.Category, row)
			if err != nil {
				out.Errors = append(out.Errors, rowError(b.Sheet, i, &MappingError{Sheet: b.Sheet, Index: i, Err: err}))
				mappingFailed++
				continue
			}
			if k, dup := seen[rec.RowHash]; dup {
				out.Skipped++
				dups[k] = append(dups[k], rowRef{sheet: b.Sheet, index: i})
				continue
			}
			seen[rec.RowHash] = len(recs)
			rec.ImportID = out.ImportID
			rec.SourceSheet = b.Sheet
			rec.ImportedAt = now
			recs = append(recs, rec)
			refs = append(refs, rowRef{sheet: b.Sheet, index: i})
		}
	}
	log.Printf("import: mapped id=%s rows=%s records=%s mapping_failed=%d duplicates=%d",
		out.ImportID, humanize.Comma(int64(out.TotalRows)), humanize.Comma(int64(len(recs))), mappingFailed, out.Skipped)

	var (
		results []storage.ChunkResult
		loadErr error
	)
	if len(recs) > 0 {
		results, loadErr = storage.LoadChunks(ctx, recs, im.chunkSize(), im.Workers, im.Repo.InsertSkipConflict)
	}

	var failedChunks int64
	for _, r := range results {
		if r.Err == nil {
			out.Inserted += r.Inserted
			out.Skipped += int64(r.Size) - r.Inserted
			continue
		}
		failedChunks++
		insertFailed += r.Size
		cerr := &ChunkError{Chunk: r.Index + 1, Size: r.Size, Err: r.Err}
		for k := r.Offset; k < r.Offset+r.Size; k++ {
			out.Errors = append(out.Errors, rowError(refs[k].sheet, refs[k].index, cerr))
			for _, d := range dups[k] {
				out.Errors = append(out.Errors, rowError(d.sheet, d.index, cerr))
				out.Skipped--
				insertFailed++
			}
		}
	}
	sortErrors(out.Errors, batches)

	if len(out.Errors) > 0 {
		path, err := WriteReport(im.errorDir(), now, out.ImportID, out.Errors)
		if err != nil {
			log.Printf("import: error report not written id=%s err=%v", out.ImportID, err)
		} else {
			out.ErrorReportPath = path
		}
	}

	metrics.RecordRow(job, "total", int64(out.TotalRows))
	metrics.RecordRow(job, "inserted", out.Inserted)
	metrics.RecordRow(job, "skipped", out.Skipped)
	metrics.RecordRow(job, "mapping_failed", int64(mappingFailed))
	metrics.RecordRow(job, "insert_failed", int64(insertFailed))
	metrics.RecordChunks(job, int64(len(results)), failedChunks)
	metrics.RecordStep(job, "import", loadErr, time.Since(start))

	logSummary(out, time.Since(start))
	return out, loadErr
}

// mapRow canonicalizes one row, turning a panic into a mapping error.
func (im *Importer) mapRow(cat sale.Category, row records.Row) (rec sale.Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if im.Mapper == nil {
		return canonical.Canonicalize(cat, row)
	}
	return im.Mapper.Canonicalize(cat, row)
}

func rowError(sheet string, index int, err error) RowError {
	return RowError{Sheet: sheet, Index: index, Error: err.Error(), Err: err}
}

// sortErrors orders errors by sheet position in batches, then row index.
func sortErrors(errs []RowError, batches []Batch) {
	pos := make(map[string]int, len(batches))
	for i, b := range batches {
		if _, ok := pos[b.Sheet]; !ok {
			pos[b.Sheet] = i
		}
	}
	sort.SliceStable(errs, func(i, j int) bool {
		if pi, pj := pos[errs[i].Sheet], pos[errs[j].Sheet]; pi != pj {
			return pi < pj
		}
		return errs[i].Index < errs[j].Index
	})
}

func (im *Importer) now() time.Time {
	if im.Now != nil {
		return im.Now()
	}
	return time.Now()
}

func (im *Importer) job() string {
	if im.Job == "" {
		return DefaultJob
	}
	return im.Job
}

func (im *Importer) chunkSize() int {
	if im.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return im.ChunkSize
}

func (im *Importer) errorDir() string {
	if im.ErrorDir == "" {
		return DefaultErrorDir
	}
	return im.ErrorDir
}
