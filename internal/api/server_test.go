package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"salesetl/internal/aggregate"
	"salesetl/internal/importer"
	"salesetl/internal/sale"
	"salesetl/internal/storage"
	"salesetl/internal/storage/memory"
)

func init() { gin.SetMode(gin.TestMode) }

type brokenRepo struct{ *memory.Repository }

func (brokenRepo) Query(context.Context, storage.Filter) ([]sale.Record, error) {
	return nil, errors.New("connection refused")
}

func newServer(t *testing.T) (*Server, *memory.Repository) {
	t.Helper()
	repo := memory.New()
	return &Server{
		Agg: &aggregate.Service{Repo: repo, Now: func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }},
		Importer: &importer.Importer{
			Repo:      repo,
			ChunkSize: 2,
			ErrorDir:  t.TempDir(),
			Job:       "api-test",
		},
		Timeout: 5 * time.Second,
	}, repo
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

const importBody = `{
  "category": "Marketplace",
  "sheet": "Amazon",
  "rows": [
    {"Order ID": "A-1", "Order Date": "2024-03-01", "Title": "Go in Action", "Qty": 2, "Amount": "500.00", "Customer Email": "a@x.io"},
    {"Order ID": "A-2", "Order Date": "2024-03-02", "Title": "Go in Action", "Qty": 1, "Amount": "250.50", "Status": "Refunded", "Customer Email": "b@x.io"},
    {"Order ID": "A-3", "Order Date": "2024-03-02", "Title": "The Go Way", "Qty": 1, "Amount": "99.99", "Customer Email": "A@X.IO"},
    {"Order ID": "A-1", "Order Date": "2024-03-01", "Title": "Go in Action", "Qty": 2, "Amount": "500.00", "Customer Email": "a@x.io"},
    {"Notes": {"nested": true}}
  ]
}`

func TestImportThenAggregate(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/sales/import", importBody)
	if w.Code != http.StatusOK {
		t.Fatalf("import status = %d body=%s", w.Code, w.Body)
	}
	var out importer.Outcome
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if out.TotalRows != 5 || out.Inserted != 3 || out.Skipped != 1 || len(out.Errors) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Errors[0].Sheet != "Amazon" || out.Errors[0].Index != 4 || out.ErrorReportPath == "" {
		t.Fatalf("row error = %+v path=%q", out.Errors[0], out.ErrorReportPath)
	}

	w = do(t, h, http.MethodGet, "/api/sales/summary?start=2024-03-01&end=2024-03-02", "")
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d body=%s", w.Code, w.Body)
	}
	const wantSummary = `{"timeSeries":[{"date":"2024-03-01","total":500.00},{"date":"2024-03-02","total":350.49}],` +
		`"topItems":[{"title":"Go in Action","total":750.50,"qty":3},{"title":"The Go Way","total":99.99,"qty":1}]}`
	if got := w.Body.String(); got != wantSummary {
		t.Fatalf("summary = %s\nwant      %s", got, wantSummary)
	}

	w = do(t, h, http.MethodGet, "/api/sales/counts?category=marketplace", "")
	if w.Code != http.StatusOK {
		t.Fatalf("counts status = %d body=%s", w.Code, w.Body)
	}
	const wantCounts = `{"totalCount":3,"totalAmount":850.49,"uniqueCustomers":2,"refundCount":1}`
	if got := w.Body.String(); got != wantCounts {
		t.Fatalf("counts = %s, want %s", got, wantCounts)
	}
}

func TestEndDateIsInclusive(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)
	h := srv.Handler()
	if w := do(t, h, http.MethodPost, "/api/sales/import", importBody); w.Code != http.StatusOK {
		t.Fatalf("import status = %d", w.Code)
	}

	w := do(t, h, http.MethodGet, "/api/sales/counts?start=2024-03-02&end=2024-03-02", "")
	if !strings.Contains(w.Body.String(), `"totalCount":2`) {
		t.Fatalf("counts = %s", w.Body)
	}
	w = do(t, h, http.MethodGet, "/api/sales/counts?start=2024-03-02T00:00:00Z&end=2024-03-02T00:00:00Z", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty RFC3339 window status = %d", w.Code)
	}
}

func TestQueryValidation(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)
	h := srv.Handler()

	for _, target := range []string{
		"/api/sales/summary?start=yesterday",
		"/api/sales/summary?end=03/02/2024",
		"/api/sales/summary?days=ten",
		"/api/sales/summary?top=-1",
		"/api/sales/summary?category=wholesale",
		"/api/sales/counts?days=-3",
		"/api/sales/counts?start=2024-03-01&end=2024-03-05&days=2",
		"/api/sales/counts?start=2024-03-05&end=2024-03-01",
	} {
		w := do(t, h, http.MethodGet, target, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
			continue
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["error"] == "" {
			t.Errorf("%s: body = %s", target, w.Body)
		}
	}
}

func TestImportValidation(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)
	srv.MaxImportRows = 2
	h := srv.Handler()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"category":`, http.StatusBadRequest},
		{"bad category", `{"category":"wholesale","rows":[{"a":1}]}`, http.StatusBadRequest},
		{"no rows", `{"category":"direct","rows":[]}`, http.StatusBadRequest},
		{"negative chunk", `{"category":"direct","chunk_size":-1,"rows":[{"a":1}]}`, http.StatusBadRequest},
		{"too many rows", `{"category":"direct","rows":[{"a":1},{"a":2},{"a":3}]}`, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if w := do(t, h, http.MethodPost, "/api/sales/import", tc.body); w.Code != tc.want {
				t.Fatalf("status = %d, want %d body=%s", w.Code, tc.want, w.Body)
			}
		})
	}
}

func TestNotConfigured(t *testing.T) {
	t.Parallel()
	h := (&Server{}).Handler()

	for _, target := range []string{"/api/sales/summary", "/api/sales/counts", "/readyz"} {
		if w := do(t, h, http.MethodGet, target, ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", target, w.Code)
		}
	}
	if w := do(t, h, http.MethodPost, "/api/sales/import", `{"category":"direct","rows":[{"a":1}]}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("import: status = %d, want 503", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz: status = %d", w.Code)
	}
}

func TestStoreFailure(t *testing.T) {
	t.Parallel()
	repo := brokenRepo{memory.New()}
	h := (&Server{Agg: &aggregate.Service{Repo: repo}}).Handler()

	w := do(t, h, http.MethodGet, "/api/sales/counts", "")
	if w.Code != http.StatusInternalServerError || strings.Contains(w.Body.String(), "refused") {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	if w := do(t, h, http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)
	srv.Limiter = NewLimiter(0.001, 2)
	h := srv.Handler()

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, h, http.MethodGet, "/api/sales/counts", "").Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	if w := do(t, h, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz must bypass the limiter; status = %d", w.Code)
	}
}

func TestNewLimiter(t *testing.T) {
	t.Parallel()
	if NewLimiter(0, 10) != nil {
		t.Fatal("rps 0 must disable limiting")
	}
	if l := NewLimiter(5, 0); l == nil || l.Burst() != 1 {
		t.Fatalf("limiter = %+v", l)
	}
}

func TestParseBound(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in        string
		inclusive bool
		want      string
		wantErr   bool
	}{
		{"", false, "", false},
		{"2024-03-02", false, "2024-03-02T00:00:00Z", false},
		{"2024-03-02", true, "2024-03-03T00:00:00Z", false},
		{"2024-03-02T10:30:00+05:30", true, "2024-03-02T10:30:00+05:30", false},
		{"02-03-2024", false, "", true},
	}
	for _, tc := range tests {
		got, err := parseBound(tc.in, tc.inclusive)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseBound(%q): err = %v", tc.in, err)
			continue
		}
		var s string
		if got != nil {
			s = got.Format(time.RFC3339)
		}
		if s != tc.want {
			t.Errorf("parseBound(%q, %v) = %q, want %q", tc.in, tc.inclusive, s, tc.want)
		}
	}
}

func TestImportChunkOverrideDoesNotLeak(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)
	h := srv.Handler()

	body := bytes.ReplaceAll([]byte(importBody), []byte(`"sheet": "Amazon",`), []byte(`"sheet": "Amazon", "chunk_size": 50,`))
	if w := do(t, h, http.MethodPost, "/api/sales/import", string(body)); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if srv.Importer.ChunkSize != 2 {
		t.Fatalf("template chunk size changed to %d", srv.Importer.ChunkSize)
	}
}
