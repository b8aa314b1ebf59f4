package config

import (
	"fmt"
	"strings"

	"salesetl/internal/fields"
	"salesetl/internal/sale"
	"salesetl/internal/source"
	"salesetl/internal/source/remote"
	"salesetl/internal/storage"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding. Path is a dotted path into the pipeline
// document, e.g. "source.sheets.Amazon".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline statically checks p without mutating it. Storage kinds
// are checked against the backends registered with the storage package, so
// callers should link in the backends they intend to use first.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{SeverityWarning, "job", "job is empty; metrics and logs will use the default job name"})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateAliases(p.Aliases)...)
	issues = append(issues, validateCoerce(p.Coerce)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	return issues
}

// ValidateMapping checks only the aliases and coerce sections. Processes that
// borrow a pipeline for its field mapping, like salesapi, use it instead of
// ValidatePipeline.
func ValidateMapping(p Pipeline) []Issue {
	return append(validateAliases(p.Aliases), validateCoerce(p.Coerce)...)
}

func validateSource(s Source) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Path) == "" {
		issues = append(issues, Issue{SeverityError, "source.path", "source.path must not be empty"})
	}
	kind := s.Kind
	if kind == "" {
		name := s.Path
		if remote.IsURL(name) {
			name = remote.FileName(name)
		}
		kind = source.KindOf(name)
	}
	switch kind {
	case source.KindXLSX, source.KindCSV, source.KindNDJSON:
	case "":
		if s.Path != "" {
			issues = append(issues, Issue{SeverityError, "source.kind", fmt.Sprintf("cannot infer kind from %q; set source.kind", s.Path)})
		}
	default:
		issues = append(issues, Issue{SeverityError, "source.kind", fmt.Sprintf("unknown source kind %q (want xlsx, csv or ndjson)", s.Kind)})
	}

	for name, c := range s.Sheets {
		if _, err := sale.ParseCategory(c); err != nil {
			issues = append(issues, Issue{SeverityError, "source.sheets." + name, err.Error()})
		}
	}
	if s.DefaultCategory != "" {
		if _, err := sale.ParseCategory(s.DefaultCategory); err != nil {
			issues = append(issues, Issue{SeverityError, "source.default_category", err.Error()})
		}
	} else if len(s.Sheets) == 0 {
		issues = append(issues, Issue{SeverityError, "source.sheets", "no sheet mapping and no default_category; no sheet can be imported"})
	}
	return issues
}

func validateAliases(m map[string][]string) []Issue {
	known := make(map[fields.Field]bool, len(fields.All))
	for _, f := range fields.All {
		known[f] = true
	}
	var issues []Issue
	for name, list := range m {
		path := "aliases." + name
		if !known[fields.Field(strings.TrimSpace(name))] {
			issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf("unknown field %q; its aliases will not be used", name)})
		}
		if len(list) == 0 {
			issues = append(issues, Issue{SeverityWarning, path, "empty alias list"})
		}
	}
	return issues
}

func validateCoerce(c Coerce) []Issue {
	var issues []Issue
	if c.SerialMin < 0 || c.SerialMax < 0 {
		issues = append(issues, Issue{SeverityError, "coerce", "serial bounds must not be negative"})
	}
	if c.SerialMax > 0 && c.SerialMin > c.SerialMax {
		issues = append(issues, Issue{SeverityError, "coerce.serial_min", "serial_min is greater than serial_max"})
	}
	if (c.SerialMin > 0 || c.SerialMax > 0) && !c.RejectOutOfRange {
		issues = append(issues, Issue{SeverityWarning, "coerce.reject_out_of_range", "serial bounds are set but reject_out_of_range is false; they have no effect"})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	}
	registered := false
	for _, k := range storage.ListKinds() {
		if k == s.Kind {
			registered = true
		}
	}
	if !registered {
		issues = append(issues, Issue{SeverityError, "storage.kind", fmt.Sprintf("storage kind %q is not registered (have %v)", s.Kind, storage.ListKinds())})
	}
	if s.Kind != "memory" && strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.dsn", "storage.dsn must not be empty"})
	}
	if s.Kind == "memory" && s.AutoCreateTable {
		issues = append(issues, Issue{SeverityWarning, "storage.auto_create_table", "memory storage has no table to create"})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.ChunkSize < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.chunk_size", "chunk_size must not be negative"})
	}
	if r.ChunkSize > 10_000 {
		issues = append(issues, Issue{SeverityWarning, "runtime.chunk_size", fmt.Sprintf("chunk_size=%d; very large chunks widen the failure domain of one insert", r.ChunkSize)})
	}
	if r.Workers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.workers", "workers must not be negative"})
	}
	if r.RowCap < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.row_cap", "row_cap must not be negative"})
	}
	return issues
}
