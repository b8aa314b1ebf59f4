// Command salesimport runs a pipeline file end to end: it reads the source
// workbook or file, imports every sheet under one import id and prints the
// outcome as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesetl/internal/config"
	"salesetl/internal/metrics/backends"

	// every backend registers itself; the pipeline picks one by kind.
	_ "salesetl/internal/storage/all"
)

func main() {
	config.LoadDotEnv()

	var (
		cfgPath        string
		metricsBackend string
		pushGatewayURL string
		dogstatsdAddr  string
		validate       bool
		withCounts     bool
	)
	flag.StringVar(&cfgPath, "config", "configs/pipelines/sample.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackend, "metrics-backend", os.Getenv("SALES_METRICS"), "metrics backend: pushgateway, datadog or none")
	flag.StringVar(&pushGatewayURL, "pushgateway-url", os.Getenv("SALES_PUSHGATEWAY_URL"), "Pushgateway base URL")
	flag.StringVar(&dogstatsdAddr, "dogstatsd-addr", os.Getenv("SALES_DOGSTATSD_ADDR"), "DogStatsD address")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&withCounts, "counts", false, "print whole-store counts after the import")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}
	p = p.WithDefaults()

	flush, err := backends.Install(metricsBackend, backends.Options{Job: p.Job, PushgatewayURL: pushGatewayURL, DogStatsdAddr: dogstatsdAddr})
	if err != nil {
		log.Printf("%v; metrics disabled", err)
	}
	if flush != nil {
		defer flush()
	} else if *verbose {
		log.Printf("metrics: disabled (backend=%q)", metricsBackend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if *verbose {
		log.Printf("pipeline: job=%s source=%s storage=%s table=%s", p.Job, p.Source.Path, p.Storage.Kind, p.Storage.Table)
	}

	res, err := run(ctx, p, withCounts)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(res); encErr != nil {
		log.Printf("encode outcome: %v", encErr)
	}
	if err != nil {
		log.Printf("%v", err)
		if flush != nil {
			flush()
		}
		stop()
		os.Exit(1)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
