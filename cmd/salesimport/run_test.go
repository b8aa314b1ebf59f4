package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"salesetl/internal/config"
	"salesetl/internal/importer"
	"salesetl/internal/storage"
)

const ledgerCSV = "Invoice No,Invoice Date,Book Title,Qty,Net Amount,Customer Email,Status\n" +
	"INV-1,2024-02-01,Go in Action,2,1000.00,a@x.io,Delivered\n" +
	"INV-2,2024-02-02,The Go Way,1,450.25,b@x.io,Refunded\n" +
	",,,,,,\n" +
	"INV-3,2024-02-03,Go in Action,1,500.00,a@x.io,Delivered\n"

func pipelineFor(t *testing.T, csv string) config.Pipeline {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "ledger.csv")
	if err := os.WriteFile(src, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	return config.Pipeline{
		Job: "ledger",
		Source: config.Source{
			Path:   src,
			Sheets: map[string]string{"ledger": "direct"},
		},
		Storage: config.Storage{
			Kind:            "sqlite",
			DSN:             filepath.Join(dir, "sales.db"),
			AutoCreateTable: true,
		},
		Runtime: config.RuntimeConfig{ErrorDir: filepath.Join(dir, "errors")},
	}.WithDefaults()
}

func TestRun_SQLiteEndToEnd(t *testing.T) {
	p := pipelineFor(t, ledgerCSV)

	res, err := run(context.Background(), p, true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TotalRows != 3 || res.Inserted != 3 || res.Failed != 0 || res.ErrorReportPath != "" {
		t.Fatalf("first run = %+v", res)
	}
	if res.Store == nil || res.Store.TotalCount != 3 || res.Store.TotalAmount.String() != "1950.25" ||
		res.Store.UniqueCustomers != 2 || res.Store.RefundCount != 1 {
		t.Fatalf("store counts = %+v", res.Store)
	}

	again, err := run(context.Background(), p, false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Inserted != 0 || again.Skipped != 3 || again.Store != nil {
		t.Fatalf("second run = %+v", again)
	}
	if again.ImportID == res.ImportID {
		t.Fatal("import ids must differ between runs")
	}
}

func TestRun_WritesErrorReport(t *testing.T) {
	p := pipelineFor(t, "Invoice No,Net Amount\n,\nINV-9,12\n")
	p.Source.Sheets = nil
	p.Source.DefaultCategory = "distributor"

	res, err := run(context.Background(), p, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Inserted != 1 {
		t.Fatalf("result = %+v", res)
	}

	p2 := pipelineFor(t, "Notes\nhello\nINV-9\n")
	p2.Source.Sheets = map[string]string{"ledger": "direct"}
	res, err = run(context.Background(), p2, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Failed != 2 || res.ErrorReportPath == "" {
		t.Fatalf("result = %+v", res)
	}
	rep, err := importer.ReadReport(res.ErrorReportPath)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if len(rep.Errors) != 2 || rep.Errors[0].Sheet != "ledger" || rep.Errors[1].Index != 1 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestRun_UnmappedSheet(t *testing.T) {
	p := pipelineFor(t, ledgerCSV)
	p.Source.Sheets = map[string]string{"other": "direct"}

	_, err := run(context.Background(), p, false)
	if err == nil || !strings.Contains(err.Error(), "no category mapping") {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_StorageOpenFails(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })
	boom := errors.New("dial tcp: refused")
	newRepository = func(context.Context, storage.Config) (storage.Repository, error) { return nil, boom }

	_, err := run(context.Background(), pipelineFor(t, ledgerCSV), false)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestCSVOptions(t *testing.T) {
	if csvOptions(nil) != nil || csvOptions(config.Options{"insecure_tls": true}) != nil {
		t.Fatal("options without CSV keys must keep reader defaults")
	}
	o := csvOptions(config.Options{"comma": ";"})
	if o == nil || o.Comma != ';' || !o.TrimSpace {
		t.Fatalf("options = %+v", o)
	}
}

func TestSamplePipelinesValidate(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "configs", "pipelines", "*.json"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("glob: %v (found %d)", err, len(paths))
	}
	for _, path := range paths {
		p, err := config.Load(path)
		if err != nil {
			t.Errorf("%s: %v", path, err)
			continue
		}
		if issues := config.ValidatePipeline(p); config.HasErrors(issues) {
			t.Errorf("%s: %+v", path, issues)
		}
	}
}

func TestRun_RemoteSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ledgerCSV))
	}))
	defer srv.Close()

	p := pipelineFor(t, ledgerCSV)
	p.Source.Path = srv.URL + "/exports/ledger.csv?token=abc"

	res, err := run(context.Background(), p, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Inserted != 3 {
		t.Fatalf("result = %+v", res)
	}
}
