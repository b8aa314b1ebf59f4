// Package backends selects and installs a metrics backend by name.
package backends

import (
	"fmt"
	"log"

	"salesetl/internal/metrics"
	"salesetl/internal/metrics/datadog"
	"salesetl/internal/metrics/prompush"
)

// Options carries the per-backend endpoints. Empty endpoints fall back to
// the local defaults.
type Options struct {
	Job            string
	PushgatewayURL string
	DogStatsdAddr  string
}

const (
	defaultPushgateway = "http://localhost:9091"
	defaultDogStatsd   = "127.0.0.1:8125"
)

// Install builds the backend named kind and makes it the process backend.
// It returns the flush func to defer, or nil when metrics stay disabled
// ("" or "none").
func Install(kind string, o Options) (func(), error) {
	var (
		b   metrics.Backend
		err error
	)
	switch kind {
	case "", "none":
		return nil, nil
	case "pushgateway", "prometheus":
		url := o.PushgatewayURL
		if url == "" {
			url = defaultPushgateway
		}
		b, err = prompush.NewBackend(o.Job, url)
		if err == nil {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", url, kind, o.Job)
		}
	case "datadog":
		addr := o.DogStatsdAddr
		if addr == "" {
			addr = defaultDogStatsd
		}
		var tags []string
		if o.Job != "" {
			tags = []string{"job:" + o.Job}
		}
		b, err = datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "sales.", GlobalTags: tags})
		if err == nil {
			log.Printf("metrics: addr=%v, backend=%v, job_name=%v", addr, kind, o.Job)
		}
	default:
		return nil, fmt.Errorf("metrics: unknown backend %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("metrics: init %s backend: %w", kind, err)
	}
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}, nil
}
