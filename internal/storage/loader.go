// This file implements the chunked loader that drives a backend's
// InsertSkipConflict. Chunks run one at a time by default; with workers > 1
// they run on a bounded errgroup pool and results are collected after all
// chunks finish.
//
// Logging: every finished chunk emits a progress line with running totals
// and rows/sec since the previous chunk.

package storage

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"salesetl/internal/sale"
)

// InsertFn inserts one chunk and reports how many rows were written.
type InsertFn func(ctx context.Context, recs []sale.Record) (int64, error)

// ChunkResult is the outcome of one chunk. Offset is the position of the
// chunk's first record in the input slice.
type ChunkResult struct {
	Index    int
	Offset   int
	Size     int
	Inserted int64
	Err      error
}

// LoadChunks partitions recs into chunks of chunkSize and calls insert for
// each. A failing chunk is recorded in its ChunkResult and loading continues
// with the next one. The returned slice has one entry per chunk, in order.
//
// Cancellation: chunks that had not started when ctx was canceled carry
// ctx.Err(), and LoadChunks returns ctx.Err() as well.
func LoadChunks(
	ctx context.Context,
	recs []sale.Record,
	chunkSize int,
	workers int,
	insert InsertFn,
) ([]ChunkResult, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunkSize must be > 0")
	}
	if insert == nil {
		return nil, fmt.Errorf("insert must not be nil")
	}
	if workers < 1 {
		workers = 1
	}

	n := (len(recs) + chunkSize - 1) / chunkSize
	results := make([]ChunkResult, n)
	for i := range results {
		off := i * chunkSize
		end := min(off+chunkSize, len(recs))
		results[i] = ChunkResult{Index: i, Offset: off, Size: end - off}
	}

	var (
		mu          sync.Mutex
		total       int64
		done        int
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)
	progress := func(r ChunkResult) {
		mu.Lock()
		defer mu.Unlock()
		total += r.Inserted
		done++
		if r.Err != nil {
			log.Printf("loader: chunk #%d failed rows=%d offset=%d err=%v", r.Index+1, r.Size, r.Offset, r.Err)
			return
		}
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(total-lastTotal) / sinceLast.Seconds()
		}
		log.Printf(
			"chunk #%d/%d: rps=%.0f inserted=%s skipped=%s total_inserted=%s elapsed=%s since_last=%s",
			r.Index+1,
			n,
			rps,
			humanize.Comma(r.Inserted),
			humanize.Comma(int64(r.Size)-r.Inserted),
			humanize.Comma(total),
			now.Sub(start).Truncate(time.Millisecond),
			sinceLast.Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = total
	}

	run := func(i int) {
		r := &results[i]
		if err := ctx.Err(); err != nil {
			r.Err = err
			return
		}
		r.Inserted, r.Err = insert(ctx, recs[r.Offset:r.Offset+r.Size])
		if r.Err != nil {
			// Backends roll a failed chunk back as a whole.
			r.Inserted = 0
		}
		progress(*r)
	}

	if workers == 1 {
		for i := range results {
			run(i)
		}
	} else {
		g := new(errgroup.Group)
		g.SetLimit(workers)
		for i := range results {
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	log.Printf("loader: done chunks=%d total_inserted=%s elapsed=%s", n, humanize.Comma(total), time.Since(start).Truncate(time.Millisecond))
	return results, ctx.Err()
}
