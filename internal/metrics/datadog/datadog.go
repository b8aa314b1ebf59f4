// Package datadog sends import and query metrics to a DogStatsD agent.
//
// Metric names drop the shared "salesimport_" prefix and the "_total" suffix
// (the client namespace replaces the first, Datadog counts need no second),
// so salesimport_records_total arrives as <namespace>records. Step durations
// are sent as distributions so percentiles aggregate across hosts.
package datadog

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/DataDog/datadog-go/v5/statsd"

	"salesetl/internal/metrics"
)

// Config selects the agent and the tags shared by every metric.
type Config struct {
	Addr       string   // "127.0.0.1:8125" or "unix:///var/run/datadog/dsd.socket"
	Namespace  string   // e.g. "sales."
	GlobalTags []string // e.g. "job:salesapi", "env:prod"
}

// sender is the part of *statsd.Client the backend uses.
type sender interface {
	Count(name string, value int64, tags []string, rate float64) error
	Distribution(name string, value float64, tags []string, rate float64) error
	Close() error
}

// Backend implements metrics.Backend over DogStatsD. The zero value drops
// everything.
type Backend struct {
	out     sender
	dropped atomic.Int64
}

// NewBackend dials the agent in cfg.Addr.
func NewBackend(cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}
	opts := []statsd.Option{statsd.WithTags(cfg.GlobalTags)}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: dial %s: %w", cfg.Addr, err)
	}
	return &Backend{out: c}, nil
}

// IncCounter sends delta rounded to the nearest whole count.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.out == nil {
		return
	}
	b.track(b.out.Count(metricName(name), int64(math.Round(delta)), tags(labels), 1))
}

// ObserveHistogram sends value as a distribution sample.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.out == nil {
		return
	}
	b.track(b.out.Distribution(metricName(name), value, tags(labels), 1))
}

// Flush closes the client so buffered samples are written. The backend drops
// further samples afterwards.
func (b *Backend) Flush() error {
	if b.out == nil {
		return nil
	}
	err := b.out.Close()
	b.out = nil
	if n := b.dropped.Load(); n > 0 && err == nil {
		err = fmt.Errorf("datadog: %d samples were not sent", n)
	}
	return err
}

// Dropped reports how many samples the client refused.
func (b *Backend) Dropped() int64 { return b.dropped.Load() }

func (b *Backend) track(err error) {
	if err != nil {
		b.dropped.Add(1)
	}
}

func metricName(name string) string {
	name = strings.TrimPrefix(name, "salesimport_")
	return strings.TrimSuffix(name, "_total")
}

// tags renders labels as sorted "key:value" tags. Values are lowercased and
// stripped of the characters DogStatsD uses as separators.
func tags(labels metrics.Labels) []string {
	if len(labels) == 0 {
		return nil
	}
	clean := strings.NewReplacer(" ", "_", ",", "_", "|", "_", "#", "_")
	out := make([]string, 0, len(labels))
	for k, v := range labels {
		out = append(out, k+":"+clean.Replace(strings.ToLower(v)))
	}
	sort.Strings(out)
	return out
}
