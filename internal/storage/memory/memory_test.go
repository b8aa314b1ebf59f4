package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"salesetl/internal/sale"
	"salesetl/internal/storage"
)

func rec(hash string, cat sale.Category, date *time.Time) sale.Record {
	return sale.Record{RowHash: hash, Category: cat, SaleDate: date}
}

func at(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestInsertSkipConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := New()
	n, err := r.InsertSkipConflict(ctx, []sale.Record{
		rec("a", sale.Direct, nil), rec("b", sale.Direct, nil), rec("a", sale.Direct, nil),
	})
	if err != nil || n != 2 {
		t.Fatalf("first insert = %d, %v; want 2, nil", n, err)
	}
	n, err = r.InsertSkipConflict(ctx, []sale.Record{rec("b", sale.Direct, nil), rec("c", sale.Direct, nil)})
	if err != nil || n != 1 {
		t.Fatalf("second insert = %d, %v; want 1, nil", n, err)
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}

	r.Close()
	if _, err := r.InsertSkipConflict(ctx, []sale.Record{rec("d", sale.Direct, nil)}); !errors.Is(err, ErrClosed) {
		t.Fatalf("insert after close err = %v, want ErrClosed", err)
	}
}

func TestQueryFilterAndOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := New()
	_, _ = r.InsertSkipConflict(ctx, []sale.Record{
		rec("jan", sale.Marketplace, at(2024, 1, 10)),
		rec("feb", sale.Marketplace, at(2024, 2, 10)),
		rec("mar", sale.Storefront, at(2024, 3, 10)),
		rec("undated", sale.Marketplace, nil),
	})

	got, err := r.Query(ctx, storage.Filter{Start: at(2024, 2, 1), End: at(2024, 4, 1)})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"mar", "feb", "undated"}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i, h := range want {
		if got[i].RowHash != h {
			t.Errorf("record %d = %s, want %s", i, got[i].RowHash, h)
		}
	}

	got, _ = r.Query(ctx, storage.Filter{Category: sale.Marketplace, Limit: 2})
	if len(got) != 2 || got[0].RowHash != "feb" || got[1].RowHash != "jan" {
		t.Fatalf("category+limit query = %v", got)
	}
}

func TestRegisteredWithFactory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, err := storage.New(ctx, storage.Config{Kind: "memory"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()
	if err := storage.EnsureTable(ctx, storage.Config{Kind: "memory"}, repo); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
}
