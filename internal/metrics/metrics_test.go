package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	counters   []counterCall
	histograms []histCall
	flushCount int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

// install swaps in a fake for the duration of the test. Tests using it must
// not run in parallel with each other.
func install(t *testing.T) *fakeBackend {
	t.Helper()
	orig := current()
	fb := &fakeBackend{}
	SetBackend(fb)
	t.Cleanup(func() { SetBackend(orig) })
	return fb
}

func TestRecordStep(t *testing.T) {
	fb := install(t)

	RecordStep("books", "read", nil, 2*time.Second)
	RecordStep("books", "import", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("calls: counters=%d histograms=%d; want 2/2", len(fb.counters), len(fb.histograms))
	}

	c0 := fb.counters[0]
	if c0.name != StepTotal || c0.delta != 1 {
		t.Fatalf("counter[0] = %#v", c0)
	}
	if c0.labels["job"] != "books" || c0.labels["step"] != "read" || c0.labels["status"] != "success" {
		t.Fatalf("counter[0] labels = %v", c0.labels)
	}
	if h := fb.histograms[0]; h.name != StepDuration || h.value < 1.999 || h.value > 2.001 {
		t.Fatalf("hist[0] = %#v; want ~2s", h)
	}
	if got := fb.counters[1].labels["status"]; got != "failure" {
		t.Fatalf("counter[1] status = %q; want failure", got)
	}
}

func TestRecordRowAndChunks(t *testing.T) {
	fb := install(t)

	RecordRow("books", "total", 3)
	RecordRow("books", "inserted", 0) // ignored
	RecordRow("books", "skipped", 2)
	RecordChunks("books", 4, 1)
	RecordChunks("books", 0, 0) // ignored

	want := []counterCall{
		{RecordsTotal, 3, Labels{"job": "books", "kind": "total"}},
		{RecordsTotal, 2, Labels{"job": "books", "kind": "skipped"}},
		{ChunksTotal, 4, Labels{"job": "books"}},
		{ChunkFailsTotal, 1, Labels{"job": "books"}},
	}
	if len(fb.counters) != len(want) {
		t.Fatalf("counters = %#v", fb.counters)
	}
	for i, w := range want {
		got := fb.counters[i]
		if got.name != w.name || got.delta != w.delta {
			t.Fatalf("counter[%d] = %#v; want %#v", i, got, w)
		}
		for k, v := range w.labels {
			if got.labels[k] != v {
				t.Fatalf("counter[%d] label %s=%q; want %q", i, k, got.labels[k], v)
			}
		}
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := install(t)

	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("expected flushCount=1, got %d", fb.flushCount)
	}

	SetBackend(nil)
	if current() != Backend(fb) {
		t.Fatal("SetBackend(nil) should not change backend")
	}
}

func TestReset(t *testing.T) {
	orig := current()
	t.Cleanup(func() { SetBackend(orig) })

	SetBackend(&fakeBackend{})
	Reset()
	if _, ok := current().(nopBackend); !ok {
		t.Fatalf("backend after Reset = %T", current())
	}
}
