package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"salesetl/internal/aggregate"
	"salesetl/internal/importer"
	"salesetl/internal/sale"
	"salesetl/internal/storage"
	"salesetl/pkg/records"
)

const dayLayout = "2006-01-02"

// importRequest is the body of POST /api/sales/import.
type importRequest struct {
	Category  string        `json:"category"`
	Sheet     string        `json:"sheet"`
	ChunkSize int           `json:"chunk_size"`
	Rows      []records.Row `json:"rows"`
}

func (s *Server) summary(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	sum, err := s.Agg.Summary(c.Request.Context(), q)
	if err != nil {
		queryFailed(c, "summary", err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) counts(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	cnt, err := s.Agg.Counts(c.Request.Context(), q)
	if err != nil {
		queryFailed(c, "counts", err)
		return
	}
	c.JSON(http.StatusOK, cnt)
}

// importRows answers 200 with the Outcome even when rows failed; partial
// failure is reported in the body.
func (s *Server) importRows(c *gin.Context) {
	if s.Importer == nil || s.Importer.Repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "import is not configured"})
		return
	}
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("decode body: %w", err))
		return
	}
	cat, err := sale.ParseCategory(req.Category)
	if err != nil {
		badRequest(c, err)
		return
	}
	switch {
	case len(req.Rows) == 0:
		badRequest(c, errors.New("rows must not be empty"))
		return
	case len(req.Rows) > s.maxImportRows():
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("at most %d rows per request", s.maxImportRows())})
		return
	case req.ChunkSize < 0:
		badRequest(c, errors.New("chunk_size must not be negative"))
		return
	}
	sheet := strings.TrimSpace(req.Sheet)
	if sheet == "" {
		sheet = "api"
	}

	im := *s.Importer
	if req.ChunkSize > 0 {
		im.ChunkSize = req.ChunkSize
	}
	out, err := im.ImportBatch(c.Request.Context(), req.Rows, cat, sheet)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, out)
	case errors.Is(err, importer.ErrNoRepository):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.Printf("api: import interrupted import_id=%s err=%v", out.ImportID, err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error(), "outcome": out})
	default:
		badRequest(c, err)
	}
}

// ready probes the store with a one-row query.
func (s *Server) ready(c *gin.Context) {
	if s.Agg == nil || s.Agg.Repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": aggregate.ErrNotConfigured.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.Agg.Repo.Query(ctx, storage.Filter{Limit: 1}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// parseQuery reads start, end, days, category and top. Day-only end dates
// are inclusive, so end=2024-01-31 covers the whole of January 31st.
func parseQuery(c *gin.Context) (aggregate.Query, error) {
	var q aggregate.Query
	var err error
	if q.Start, err = parseBound(c.Query("start"), false); err != nil {
		return q, fmt.Errorf("start: %w", err)
	}
	if q.End, err = parseBound(c.Query("end"), true); err != nil {
		return q, fmt.Errorf("end: %w", err)
	}
	if q.Days, err = parseInt(c.Query("days")); err != nil {
		return q, fmt.Errorf("days: %w", err)
	}
	if q.Top, err = parseInt(c.Query("top")); err != nil {
		return q, fmt.Errorf("top: %w", err)
	}
	if v := strings.TrimSpace(c.Query("category")); v != "" {
		if q.Category, err = sale.ParseCategory(v); err != nil {
			return q, err
		}
	}
	return q, nil
}

func parseBound(s string, inclusiveDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dayLayout, s); err == nil {
		if inclusiveDay {
			t = t.AddDate(0, 0, 1)
		}
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("want YYYY-MM-DD or RFC3339, got %q", s)
	}
	return &t, nil
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return n, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func queryFailed(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, aggregate.ErrInvalidQuery):
		badRequest(c, err)
	case errors.Is(err, aggregate.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		log.Printf("api: %s failed err=%v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}
