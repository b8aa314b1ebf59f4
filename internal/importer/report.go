package importer

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// reportTimeLayout keeps report names sortable and free of path separators.
const reportTimeLayout = "20060102T150405Z"

// Report is the on-disk shape of an error report.
type Report struct {
	Errors []RowError `json:"errors"`
}

// ReportPath returns the report file path for an import run.
func ReportPath(dir string, at time.Time, importID string) string {
	name := fmt.Sprintf("import-errors-%s-%s.json", at.UTC().Format(reportTimeLayout), importID)
	return filepath.Join(dir, name)
}

// WriteReport writes errs to a new timestamped file under dir and returns its
// path. The file is written to a temporary name first and renamed into place.
func WriteReport(dir string, at time.Time, importID string, errs []RowError) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir %s: %w", dir, err)
	}
	path := ReportPath(dir, at, importID)
	tmp, err := os.CreateTemp(dir, ".import-errors-*")
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Report{Errors: errs}); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("encode report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename report: %w", err)
	}
	return path, nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (Report, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Report{}, err
	}
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		return Report{}, fmt.Errorf("decode report %s: %w", path, err)
	}
	return r, nil
}

// reasons counts failures per message and keeps the first few distinct ones.
type reasons struct {
	limit   int
	count   int
	first   []string
	buckets map[string]int
}

func newReasons(limit int) *reasons {
	return &reasons{limit: limit, buckets: make(map[string]int)}
}

func (r *reasons) add(msg string) {
	if _, ok := r.buckets[msg]; !ok && len(r.first) < r.limit {
		r.first = append(r.first, msg)
	}
	r.buckets[msg]++
	r.count++
}

// reasonOf strips the row prefix so identical causes group together.
func reasonOf(e RowError) string {
	if me, ok := e.Err.(*MappingError); ok {
		return me.Err.Error()
	}
	return strings.TrimSpace(e.Error)
}

func logSummary(out Outcome, elapsed time.Duration) {
	log.Printf("import: done id=%s total=%s inserted=%s skipped=%s failed=%s elapsed=%s",
		out.ImportID,
		humanize.Comma(int64(out.TotalRows)),
		humanize.Comma(out.Inserted),
		humanize.Comma(out.Skipped),
		humanize.Comma(int64(out.Failed())),
		elapsed.Truncate(time.Millisecond),
	)
	if out.Failed() == 0 {
		return
	}
	agg := newReasons(reasonsShown)
	for _, e := range out.Errors {
		agg.add(reasonOf(e))
	}
	log.Printf("import: failures=%d distinct=%d report=%s (showing first %d)", agg.count, len(agg.buckets), out.ErrorReportPath, len(agg.first))
	for i, s := range agg.first {
		log.Printf("  #%03d x%d: %s", i+1, agg.buckets[s], s)
	}
}
