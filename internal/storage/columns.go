package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salesetl/internal/ddl"
	"salesetl/internal/sale"
	"salesetl/pkg/records"
)

// ColumnKind is the logical type of a persisted column. Backends map kinds to
// their own SQL types.
type ColumnKind int

const (
	KindKey ColumnKind = iota // short, indexable text
	KindText
	KindTime
	KindInt
	KindDecimal
	KindJSON
)

// Column describes one persisted column of the sale table.
type Column struct {
	Name     string
	Kind     ColumnKind
	Nullable bool
}

// Columns is the persisted layout of sale.Record, in insert order.
var Columns = []Column{
	{"row_hash", KindKey, false},
	{"category", KindKey, false},
	{"order_id", KindKey, true},
	{"item_code", KindKey, true},
	{"isbn", KindKey, true},
	{"sale_date", KindTime, true},
	{"sale_month", KindInt, true},
	{"sale_year", KindInt, true},
	{"title", KindText, true},
	{"author", KindText, true},
	{"publisher", KindText, true},
	{"category_label", KindText, true},
	{"quantity", KindInt, true},
	{"rate", KindDecimal, true},
	{"amount", KindDecimal, true},
	{"discount", KindDecimal, true},
	{"tax", KindDecimal, true},
	{"shipping", KindDecimal, true},
	{"payment_mode", KindKey, false},
	{"order_status", KindKey, false},
	{"customer_name", KindText, true},
	{"customer_email", KindText, true},
	{"customer_mobile", KindKey, true},
	{"raw_payload", KindJSON, false},
	{"import_id", KindKey, true},
	{"source_sheet", KindText, true},
	{"imported_at", KindTime, false},
}

// ColumnNames returns the unquoted names of Columns.
func ColumnNames() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Name
	}
	return out
}

// TableDef builds the generic table definition for the sale table, asking
// typeOf for each column's backend SQL type. row_hash is the primary key, so
// every backend gets the uniqueness constraint skip-on-conflict relies on.
func TableDef(table string, typeOf func(Column) string) ddl.TableDef {
	td := ddl.TableDef{FQN: table}
	for _, c := range Columns {
		td.Columns = append(td.Columns, ddl.ColumnDef{
			Name:       c.Name,
			SQLType:    typeOf(c),
			Nullable:   c.Nullable,
			PrimaryKey: c.Name == "row_hash",
		})
	}
	return td
}

// Codec converts records to and from driver values. The zero value passes
// time.Time and decimal strings through, which database/sql drivers accept.
type Codec struct {
	// Time encodes a timestamp; nil passes the UTC time.Time through.
	Time func(time.Time) any
	// Decimal encodes a money value; nil passes its string form.
	Decimal func(decimal.Decimal) any
	// TimeText makes Scan read timestamp columns as text.
	TimeText bool
}

// TimeLayout is the fixed-width UTC layout used where timestamps are stored as
// text, so lexical and chronological order agree.
const TimeLayout = "2006-01-02 15:04:05.000"

// EncodeTime applies c.Time to t.
func (c Codec) EncodeTime(t time.Time) any {
	t = t.UTC()
	if c.Time != nil {
		return c.Time(t)
	}
	return t
}

// Values flattens rec in Columns order.
func (c Codec) Values(rec sale.Record) ([]any, error) {
	payload, err := json.Marshal(rec.RawPayload)
	if err != nil {
		return nil, fmt.Errorf("encode raw payload: %w", err)
	}
	str := func(p *string) any {
		if p == nil {
			return nil
		}
		return *p
	}
	intp := func(p *int) any {
		if p == nil {
			return nil
		}
		return int64(*p)
	}
	dec := func(d *decimal.Decimal) any {
		if d == nil {
			return nil
		}
		if c.Decimal != nil {
			return c.Decimal(*d)
		}
		return d.String()
	}
	var date, qty any
	if rec.SaleDate != nil {
		date = c.EncodeTime(*rec.SaleDate)
	}
	if rec.Quantity != nil {
		qty = *rec.Quantity
	}
	imported := rec.ImportedAt
	if imported.IsZero() {
		imported = time.Now()
	}
	return []any{
		rec.RowHash,
		string(rec.Category),
		str(rec.OrderID),
		str(rec.ItemCode),
		str(rec.ISBN),
		date,
		intp(rec.Month),
		intp(rec.Year),
		str(rec.Title),
		str(rec.Author),
		str(rec.Publisher),
		str(rec.CategoryLabel),
		qty,
		dec(rec.Rate),
		dec(rec.Amount),
		dec(rec.Discount),
		dec(rec.Tax),
		dec(rec.Shipping),
		string(rec.PaymentMode),
		string(rec.OrderStatus),
		str(rec.CustomerName),
		str(rec.CustomerEmail),
		str(rec.CustomerMobile),
		string(payload),
		rec.ImportID,
		rec.SourceSheet,
		c.EncodeTime(imported),
	}, nil
}

// Scanner is satisfied by *sql.Rows and pgx.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Scan reads one row selected in Columns order. Decimal columns must be
// selected as text.
func (c Codec) Scan(s Scanner) (sale.Record, error) {
	var (
		rec                     sale.Record
		category, pay, status   string
		month, year, qty        *int64
		rate, amt, disc, tx, sh *string
		payload                 string
		importID, sheet         *string
		dateT, importedT        *time.Time
		dateS, importedS        *string
	)
	dateDest, importedDest := any(&dateT), any(&importedT)
	if c.TimeText {
		dateDest, importedDest = &dateS, &importedS
	}
	err := s.Scan(
		&rec.RowHash, &category, &rec.OrderID, &rec.ItemCode, &rec.ISBN,
		dateDest, &month, &year,
		&rec.Title, &rec.Author, &rec.Publisher, &rec.CategoryLabel,
		&qty, &rate, &amt, &disc, &tx, &sh,
		&pay, &status,
		&rec.CustomerName, &rec.CustomerEmail, &rec.CustomerMobile,
		&payload, &importID, &sheet, importedDest,
	)
	if err != nil {
		return sale.Record{}, err
	}

	if c.TimeText {
		if dateT, err = parseTimeText(dateS); err != nil {
			return sale.Record{}, fmt.Errorf("sale_date: %w", err)
		}
		if importedT, err = parseTimeText(importedS); err != nil {
			return sale.Record{}, fmt.Errorf("imported_at: %w", err)
		}
	}
	if dateT != nil {
		u := dateT.UTC()
		rec.SaleDate = &u
	}
	if importedT != nil {
		rec.ImportedAt = importedT.UTC()
	}

	rec.Category = sale.Category(category)
	rec.PaymentMode = sale.PaymentMode(pay)
	rec.OrderStatus = sale.OrderStatus(status)
	rec.Month, rec.Year, rec.Quantity = toInt(month), toInt(year), qty
	rec.ImportID, rec.SourceSheet = sale.Str(importID), sale.Str(sheet)

	for _, m := range []struct {
		src *string
		dst **decimal.Decimal
	}{{rate, &rec.Rate}, {amt, &rec.Amount}, {disc, &rec.Discount}, {tx, &rec.Tax}, {sh, &rec.Shipping}} {
		if m.src == nil {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(*m.src))
		if err != nil {
			return sale.Record{}, fmt.Errorf("row %s: decimal %q: %w", rec.RowHash, *m.src, err)
		}
		*m.dst = &d
	}

	var raw records.Row
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return sale.Record{}, fmt.Errorf("row %s: raw payload: %w", rec.RowHash, err)
	}
	rec.RawPayload = raw
	return rec, nil
}

func toInt(p *int64) *int {
	if p == nil {
		return nil
	}
	v := int(*p)
	return &v
}

func parseTimeText(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	for _, l := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(l, *s); err == nil {
			return &t, nil
		}
	}
	if n, err := strconv.ParseInt(*s, 10, 64); err == nil {
		t := time.Unix(n, 0).UTC()
		return &t, nil
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", *s)
}
