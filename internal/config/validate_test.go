package config

import (
	"strings"
	"testing"

	_ "salesetl/internal/storage/memory"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validPipeline() Pipeline {
	return Pipeline{
		Job: "books",
		Source: Source{
			Path:   "sales.xlsx",
			Sheets: map[string]string{"Amazon": "marketplace"},
		},
		Storage: Storage{Kind: "memory"},
	}
}

/*
TestValidatePipeline_ValidMinimal verifies that a well-formed pipeline produces
no issues (errors or warnings).
*/
func TestValidatePipeline_ValidMinimal(t *testing.T) {
	if issues := ValidatePipeline(validPipeline()); len(issues) != 0 {
		t.Fatalf("expected no issues; got %+v", issues)
	}
}

func TestValidatePipeline_MissingJobWarns(t *testing.T) {
	p := validPipeline()
	p.Job = " "
	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityWarning, "job", "job is empty") {
		t.Fatalf("expected warning for job; got %+v", issues)
	}
	if HasErrors(issues) {
		t.Fatalf("empty job must not block; got %+v", issues)
	}
}

func TestValidateSource_Cases(t *testing.T) {
	t.Run("missing_path", func(t *testing.T) {
		issues := validateSource(Source{Kind: "csv", DefaultCategory: "direct"})
		if !hasIssue(t, issues, SeverityError, "source.path", "must not be empty") {
			t.Fatalf("got %+v", issues)
		}
	})

	t.Run("uninferable_kind", func(t *testing.T) {
		issues := validateSource(Source{Path: "sales.dat", DefaultCategory: "direct"})
		if !hasIssue(t, issues, SeverityError, "source.kind", "cannot infer kind") {
			t.Fatalf("got %+v", issues)
		}
	})

	t.Run("unknown_kind", func(t *testing.T) {
		issues := validateSource(Source{Kind: "parquet", Path: "x", DefaultCategory: "direct"})
		if !hasIssue(t, issues, SeverityError, "source.kind", "unknown source kind") {
			t.Fatalf("got %+v", issues)
		}
	})

	t.Run("bad_categories", func(t *testing.T) {
		issues := validateSource(Source{
			Path:            "x.csv",
			Sheets:          map[string]string{"Trade": "wholesale"},
			DefaultCategory: "retail",
		})
		if !hasIssue(t, issues, SeverityError, "source.sheets.Trade", "unknown sale category") {
			t.Fatalf("got %+v", issues)
		}
		if !hasIssue(t, issues, SeverityError, "source.default_category", "unknown sale category") {
			t.Fatalf("got %+v", issues)
		}
	})

	t.Run("no_mapping", func(t *testing.T) {
		issues := validateSource(Source{Path: "x.ndjson"})
		if !hasIssue(t, issues, SeverityError, "source.sheets", "no sheet can be imported") {
			t.Fatalf("got %+v", issues)
		}
	})
}

func TestValidateAliases(t *testing.T) {
	issues := validateAliases(map[string][]string{"amount": {"Net"}, "colour": {"Colour"}, "title": nil})
	if !hasIssue(t, issues, SeverityWarning, "aliases.colour", "unknown field") {
		t.Fatalf("got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "aliases.title", "empty alias list") {
		t.Fatalf("got %+v", issues)
	}
	if hasIssue(t, issues, SeverityWarning, "aliases.amount", "") {
		t.Fatalf("amount must be accepted; got %+v", issues)
	}
}

func TestValidateCoerce(t *testing.T) {
	if issues := validateCoerce(Coerce{SerialMin: 10, SerialMax: 5, RejectOutOfRange: true}); !hasIssue(t, issues, SeverityError, "coerce.serial_min", "greater than") {
		t.Fatalf("got %+v", issues)
	}
	if issues := validateCoerce(Coerce{SerialMax: 5}); !hasIssue(t, issues, SeverityWarning, "coerce.reject_out_of_range", "no effect") {
		t.Fatalf("got %+v", issues)
	}
	if issues := validateCoerce(Coerce{SerialMin: -1, RejectOutOfRange: true}); !hasIssue(t, issues, SeverityError, "coerce", "negative") {
		t.Fatalf("got %+v", issues)
	}
}

func TestValidateStorage_Cases(t *testing.T) {
	t.Run("missing_kind", func(t *testing.T) {
		issues := validateStorage(Storage{})
		if !hasIssue(t, issues, SeverityError, "storage.kind", "must not be empty") {
			t.Fatalf("got %+v", issues)
		}
	})

	t.Run("unregistered_kind", func(t *testing.T) {
		issues := validateStorage(Storage{Kind: "weird", DSN: "x"})
		if !hasIssue(t, issues, SeverityError, "storage.kind", "not registered") {
			t.Fatalf("got %+v", issues)
		}
	})

	t.Run("missing_dsn", func(t *testing.T) {
		issues := validateStorage(Storage{Kind: "postgres"})
		if !hasIssue(t, issues, SeverityError, "storage.dsn", "must not be empty") {
			t.Fatalf("got %+v", issues)
		}
	})

	t.Run("memory_auto_create", func(t *testing.T) {
		issues := validateStorage(Storage{Kind: "memory", AutoCreateTable: true})
		if !hasIssue(t, issues, SeverityWarning, "storage.auto_create_table", "no table") {
			t.Fatalf("got %+v", issues)
		}
		if HasErrors(issues) {
			t.Fatalf("got %+v", issues)
		}
	})
}

func TestValidateRuntime_Cases(t *testing.T) {
	t.Run("negatives", func(t *testing.T) {
		issues := validateRuntime(RuntimeConfig{ChunkSize: -1, Workers: -2, RowCap: -3})
		for _, path := range []string{"runtime.chunk_size", "runtime.workers", "runtime.row_cap"} {
			if !hasIssue(t, issues, SeverityError, path, "must not be negative") {
				t.Fatalf("expected error for %s; got %+v", path, issues)
			}
		}
	})

	t.Run("huge_chunk", func(t *testing.T) {
		issues := validateRuntime(RuntimeConfig{ChunkSize: 50_000})
		if !hasIssue(t, issues, SeverityWarning, "runtime.chunk_size", "very large") {
			t.Fatalf("got %+v", issues)
		}
	})

	t.Run("zeros_use_defaults", func(t *testing.T) {
		if issues := validateRuntime(RuntimeConfig{}); len(issues) != 0 {
			t.Fatalf("got %+v", issues)
		}
	})
}

func TestIssue_Error(t *testing.T) {
	got := Issue{SeverityError, "storage.dsn", "missing"}.Error()
	if got != "error at storage.dsn: missing" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestValidateSource_RemoteKind(t *testing.T) {
	issues := validateSource(Source{Path: "https://files.example.com/q1/sales.xlsx?token=x", DefaultCategory: "direct"})
	if len(issues) != 0 {
		t.Fatalf("got %+v", issues)
	}
}

func TestValidateMapping(t *testing.T) {
	t.Parallel()

	p := Pipeline{
		Aliases: map[string][]string{"amount": {"Net Payable"}},
		Coerce:  Coerce{SerialMin: 100, SerialMax: 10},
	}
	issues := ValidateMapping(p)
	if !HasErrors(issues) || !hasIssue(t, issues, SeverityError, "coerce.serial_min", "greater") {
		t.Fatalf("issues = %v", issues)
	}
	for _, is := range issues {
		if strings.HasPrefix(is.Path, "source") || strings.HasPrefix(is.Path, "storage") {
			t.Fatalf("mapping validation must ignore %s: %v", is.Path, is)
		}
	}
}
