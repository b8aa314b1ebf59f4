package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"salesetl/internal/sale"
)

func makeRecs(n int) []sale.Record {
	out := make([]sale.Record, n)
	for i := range out {
		out[i] = sale.Record{RowHash: fmt.Sprintf("h%03d", i)}
	}
	return out
}

// TestLoadChunks_Basic verifies records are partitioned into chunks and the
// insert function sees every record once.
func TestLoadChunks_Basic(t *testing.T) {
	t.Parallel()

	var calls int32
	insert := func(_ context.Context, recs []sale.Record) (int64, error) {
		atomic.AddInt32(&calls, 1)
		return int64(len(recs)), nil
	}

	res, err := LoadChunks(context.Background(), makeRecs(7), 3, 1, insert)
	if err != nil {
		t.Fatalf("LoadChunks error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("insert calls %d, want 3 (3+3+1)", got)
	}
	wantSizes := []int{3, 3, 1}
	for i, r := range res {
		if r.Size != wantSizes[i] || r.Offset != i*3 || r.Inserted != int64(wantSizes[i]) {
			t.Errorf("chunk %d = %+v", i, r)
		}
	}
}

// TestLoadChunks_FailureIsolated ensures a failing chunk does not stop the
// chunks after it.
func TestLoadChunks_FailureIsolated(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("store unavailable")
	var n int
	insert := func(_ context.Context, recs []sale.Record) (int64, error) {
		n++
		if n == 2 {
			return 1, wantErr
		}
		return int64(len(recs)), nil
	}

	res, err := LoadChunks(context.Background(), makeRecs(6), 2, 1, insert)
	if err != nil {
		t.Fatalf("LoadChunks error: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("chunks = %d, want 3", len(res))
	}
	if !errors.Is(res[1].Err, wantErr) || res[1].Inserted != 0 {
		t.Fatalf("chunk 1 = %+v, want failure with 0 inserted", res[1])
	}
	if res[0].Err != nil || res[2].Err != nil || res[2].Inserted != 2 {
		t.Fatalf("neighbouring chunks affected: %+v %+v", res[0], res[2])
	}
}

// TestLoadChunks_Workers runs the pooled path and checks results stay in
// chunk order.
func TestLoadChunks_Workers(t *testing.T) {
	t.Parallel()

	var total int64
	insert := func(_ context.Context, recs []sale.Record) (int64, error) {
		atomic.AddInt64(&total, int64(len(recs)))
		return int64(len(recs)), nil
	}
	res, err := LoadChunks(context.Background(), makeRecs(25), 4, 3, insert)
	if err != nil {
		t.Fatal(err)
	}
	if total != 25 || len(res) != 7 {
		t.Fatalf("total=%d chunks=%d, want 25/7", total, len(res))
	}
	for i, r := range res {
		if r.Index != i {
			t.Fatalf("result %d has index %d", i, r.Index)
		}
	}
}

// TestLoadChunks_ContextCancel checks unstarted chunks carry ctx.Err().
func TestLoadChunks_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	insert := func(_ context.Context, recs []sale.Record) (int64, error) {
		cancel()
		return int64(len(recs)), nil
	}
	res, err := LoadChunks(ctx, makeRecs(4), 2, 1, insert)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res[0].Err != nil || !errors.Is(res[1].Err, context.Canceled) {
		t.Fatalf("results = %+v", res)
	}
}

func TestLoadChunks_BadArgs(t *testing.T) {
	t.Parallel()

	if _, err := LoadChunks(context.Background(), nil, 0, 1, func(context.Context, []sale.Record) (int64, error) { return 0, nil }); err == nil {
		t.Fatalf("expected error for chunkSize=0")
	}
	if _, err := LoadChunks(context.Background(), nil, 1, 1, nil); err == nil {
		t.Fatalf("expected error for nil insert")
	}
}
