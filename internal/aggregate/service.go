package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"salesetl/internal/metrics"
	"salesetl/internal/sale"
	"salesetl/internal/storage"
)

const (
	// DefaultRowCap bounds the records read by one query.
	DefaultRowCap = 100_000
	// DefaultTop is the ranking length when Query.Top is zero.
	DefaultTop = 10
	// MaxTop bounds Query.Top.
	MaxTop = 100

	// cancelEvery is how many records are processed between ctx checks.
	cancelEvery = 1024
)

var (
	// ErrNotConfigured means the service lacks a collaborator it needs to
	// answer any query. It is not retryable.
	ErrNotConfigured = errors.New("aggregate: not configured")
	// ErrInvalidQuery rejects malformed caller input.
	ErrInvalidQuery = errors.New("aggregate: invalid query")
	// ErrInvalidWindow rejects a malformed window; it wraps ErrInvalidQuery.
	ErrInvalidWindow = fmt.Errorf("%w: window", ErrInvalidQuery)
)

// Query selects the records to aggregate. The window is half-open
// [Start, End) in UTC. Days, when set, fills in whichever bound is missing;
// with neither bound it means the last Days days including today.
type Query struct {
	Start    *time.Time
	End      *time.Time
	Days     int
	Category sale.Category
	Top      int
}

// SeriesPoint is one day of the time series.
type SeriesPoint struct {
	Date  string `json:"date"`
	Total Money  `json:"total"`
}

// TopItem is one ranked title.
type TopItem struct {
	Title string `json:"title"`
	Total Money  `json:"total"`
	Qty   int64  `json:"qty"`
}

// Summary is the time series plus the ranking.
type Summary struct {
	TimeSeries []SeriesPoint `json:"timeSeries"`
	TopItems   []TopItem     `json:"topItems"`
}

// Counts are the scalar aggregates.
type Counts struct {
	TotalCount      int   `json:"totalCount"`
	TotalAmount     Money `json:"totalAmount"`
	UniqueCustomers int   `json:"uniqueCustomers"`
	RefundCount     int   `json:"refundCount"`
}

// Service answers aggregate queries from a Repository. Each call reads its
// window once and builds fresh accumulators; nothing is shared across calls.
type Service struct {
	Repo     storage.Repository
	Resolver Resolver
	RowCap   int // <= 0 means DefaultRowCap
	Job      string

	// Now anchors Days-only windows; tests override it.
	Now func() time.Time
}

// resolved is a record with its logical values settled.
type resolved struct {
	rec    sale.Record
	date   time.Time
	dated  bool
	amount decimal.Decimal
}

// Summary returns the daily totals (ascending by date) and the top items by
// total. Records without a resolvable date are left out of the series but
// still ranked.
func (s *Service) Summary(ctx context.Context, q Query) (sum Summary, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(s.job(), "summary", err, time.Since(start)) }()

	q, err = s.normalize(q)
	if err != nil {
		return Summary{}, err
	}
	titles, qtys := s.Resolver.TitleChain(), s.Resolver.QuantityChain()

	days := map[string]decimal.Decimal{}
	type item struct {
		total decimal.Decimal
		qty   int64
	}
	items := map[string]*item{}

	n, err := s.each(ctx, q, func(r resolved) {
		if r.dated {
			k := r.date.Format(time.DateOnly)
			days[k] = days[k].Add(r.amount)
		}
		title, _ := titles.Value(r.rec)
		qty, _ := qtys.Value(r.rec)
		it := items[title]
		if it == nil {
			it = &item{}
			items[title] = it
		}
		it.total = it.total.Add(r.amount)
		it.qty += qty
	})
	if err != nil {
		return Summary{}, err
	}

	sum.TimeSeries = make([]SeriesPoint, 0, len(days))
	for d, total := range days {
		sum.TimeSeries = append(sum.TimeSeries, SeriesPoint{Date: d, Total: Money(total)})
	}
	sort.Slice(sum.TimeSeries, func(i, j int) bool { return sum.TimeSeries[i].Date < sum.TimeSeries[j].Date })

	sum.TopItems = make([]TopItem, 0, len(items))
	for title, it := range items {
		sum.TopItems = append(sum.TopItems, TopItem{Title: title, Total: Money(it.total), Qty: it.qty})
	}
	sort.Slice(sum.TopItems, func(i, j int) bool {
		a, b := sum.TopItems[i], sum.TopItems[j]
		if c := a.Total.Decimal().Cmp(b.Total.Decimal()); c != 0 {
			return c > 0
		}
		return a.Title < b.Title
	})
	if len(sum.TopItems) > q.Top {
		sum.TopItems = sum.TopItems[:q.Top]
	}

	log.Printf("aggregate: summary records=%s days=%d items=%d elapsed=%s",
		humanize.Comma(int64(n)), len(sum.TimeSeries), len(items), time.Since(start).Truncate(time.Millisecond))
	return sum, nil
}

// Counts returns record count, amount total, distinct customers and refunds
// for the window.
func (s *Service) Counts(ctx context.Context, q Query) (c Counts, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(s.job(), "counts", err, time.Since(start)) }()

	q, err = s.normalize(q)
	if err != nil {
		return Counts{}, err
	}
	total := decimal.Zero
	customers := map[string]struct{}{}
	n, err := s.each(ctx, q, func(r resolved) {
		total = total.Add(r.amount)
		if k := CustomerKey(r.rec); k != "" {
			customers[k] = struct{}{}
		}
		if r.rec.OrderStatus.IsRefund() {
			c.RefundCount++
		}
	})
	if err != nil {
		return Counts{}, err
	}
	c.TotalCount = n
	c.TotalAmount = Money(total)
	c.UniqueCustomers = len(customers)

	log.Printf("aggregate: counts records=%s customers=%d elapsed=%s",
		humanize.Comma(int64(n)), c.UniqueCustomers, time.Since(start).Truncate(time.Millisecond))
	return c, nil
}

// each reads the window and calls fn for every record that belongs to it,
// returning how many did. In a bounded window a record belongs only when its
// resolved date falls inside; in an unbounded one every record belongs.
func (s *Service) each(ctx context.Context, q Query, fn func(resolved)) (int, error) {
	limit := s.RowCap
	if limit <= 0 {
		limit = DefaultRowCap
	}
	recs, err := s.Repo.Query(ctx, storage.Filter{Start: q.Start, End: q.End, Category: q.Category, Limit: limit})
	if err != nil {
		return 0, fmt.Errorf("aggregate: query: %w", err)
	}
	if len(recs) >= limit {
		log.Printf("aggregate: row cap reached cap=%s; results cover the newest records only", humanize.Comma(int64(limit)))
	}

	dates, amounts := s.Resolver.DateChain(), s.Resolver.AmountChain()
	bounded := q.Start != nil || q.End != nil
	n := 0
	for i, rec := range recs {
		if i%cancelEvery == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		r := resolved{rec: rec}
		r.date, r.dated = dates.Value(rec)
		if bounded && (!r.dated || !inWindow(r.date, q)) {
			continue
		}
		r.amount, _ = amounts.Value(rec)
		fn(r)
		n++
	}
	return n, nil
}

func inWindow(t time.Time, q Query) bool {
	if q.Start != nil && t.Before(*q.Start) {
		return false
	}
	if q.End != nil && !t.Before(*q.End) {
		return false
	}
	return true
}

// normalize checks collaborators and resolves Days into explicit bounds.
func (s *Service) normalize(q Query) (Query, error) {
	if s == nil || s.Repo == nil {
		return q, ErrNotConfigured
	}
	if q.Category != "" && !q.Category.Valid() {
		return q, fmt.Errorf("%w: unknown category %q", ErrInvalidQuery, q.Category)
	}
	switch {
	case q.Top < 0:
		return q, fmt.Errorf("%w: top must not be negative", ErrInvalidQuery)
	case q.Top == 0:
		q.Top = DefaultTop
	case q.Top > MaxTop:
		q.Top = MaxTop
	}

	utc := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		u := t.UTC()
		return &u
	}
	q.Start, q.End = utc(q.Start), utc(q.End)

	if q.Days < 0 {
		return q, fmt.Errorf("%w: days must not be negative", ErrInvalidWindow)
	}
	if q.Days > 0 {
		span := time.Duration(q.Days) * 24 * time.Hour
		switch {
		case q.Start != nil && q.End != nil:
			return q, fmt.Errorf("%w: days cannot be combined with both start and end", ErrInvalidWindow)
		case q.Start != nil:
			end := q.Start.Add(span)
			q.End = &end
		case q.End != nil:
			start := q.End.Add(-span)
			q.Start = &start
		default:
			end := s.now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
			start := end.Add(-span)
			q.Start, q.End = &start, &end
		}
	}
	if q.Start != nil && q.End != nil && !q.Start.Before(*q.End) {
		return q, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidWindow,
			q.Start.Format(time.RFC3339), q.End.Format(time.RFC3339))
	}
	return q, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) job() string {
	if s == nil || s.Job == "" {
		return "salesapi"
	}
	return s.Job
}

// CustomerKey approximates a customer identity as
// lower(email)|digits(mobile)|lower(name). It is empty when all three are.
func CustomerKey(rec sale.Record) string {
	email := strings.ToLower(strings.TrimSpace(sale.Str(rec.CustomerEmail)))
	mobile := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, sale.Str(rec.CustomerMobile))
	name := strings.ToLower(strings.Join(strings.Fields(sale.Str(rec.CustomerName)), " "))
	if email == "" && mobile == "" && name == "" {
		return ""
	}
	return email + "|" + mobile + "|" + name
}
