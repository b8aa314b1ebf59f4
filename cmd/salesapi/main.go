// Command salesapi serves the sales aggregate views and the row import
// endpoint over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesetl/internal/aggregate"
	"salesetl/internal/api"
	"salesetl/internal/canonical"
	"salesetl/internal/coerce"
	"salesetl/internal/config"
	"salesetl/internal/fields"
	"salesetl/internal/importer"
	"salesetl/internal/metrics/backends"
	"salesetl/internal/storage"

	_ "salesetl/internal/storage/all"
)

func main() {
	config.LoadDotEnv()

	s, err := config.LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
	if err != nil {
		log.Fatalf("flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, s); err != nil {
		log.Printf("salesapi: %v", err)
		stop()
		os.Exit(1)
	}
}

// serve runs the API until ctx is canceled, then drains in-flight requests.
func serve(ctx context.Context, s *config.Settings) error {
	flush, err := backends.Install(s.MetricsBackend, backends.Options{
		Job:            "salesapi",
		PushgatewayURL: s.PushgatewayURL,
		DogStatsdAddr:  s.DogStatsdAddr,
	})
	if err != nil {
		log.Printf("%v; metrics disabled", err)
	}
	if flush != nil {
		defer flush()
	}

	srv, closeRepo, err := newServer(ctx, s)
	if err != nil {
		return err
	}
	defer closeRepo()

	httpSrv := srv.HTTPServer(s.Addr)
	errCh := make(chan error, 1)
	go func() {
		log.Printf("api: listening addr=%s storage=%s table=%s", s.Addr, s.StorageKind, s.Table)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Printf("api: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// mappingOf returns the alias table and coercer of the pipeline at path, or
// the defaults when path is empty. Import and query share them so a value
// rejected on import is not recovered from the raw payload later.
func mappingOf(path string) (*fields.Table, coerce.Coercer, error) {
	if path == "" {
		return fields.DefaultAliases(), coerce.Default, nil
	}
	p, err := config.Load(path)
	if err != nil {
		return nil, coerce.Coercer{}, err
	}
	for _, is := range config.ValidateMapping(p) {
		if is.Severity == config.SeverityError {
			return nil, coerce.Coercer{}, fmt.Errorf("%s: %w", path, is)
		}
		log.Printf("salesapi: pipeline %s: %v", path, is)
	}
	log.Printf("salesapi: pipeline=%s aliases=%d reject_out_of_range=%v", path, len(p.Aliases), p.Coerce.RejectOutOfRange)
	return p.AliasTable(), p.Coerce.Coercer(), nil
}

// newServer opens the store and wires the services.
func newServer(ctx context.Context, s *config.Settings) (*api.Server, func(), error) {
	aliases, coercer, err := mappingOf(s.Pipeline)
	if err != nil {
		return nil, nil, err
	}
	scfg := s.StorageConfig()
	repo, err := storage.New(ctx, scfg)
	if err != nil {
		return nil, nil, err
	}
	if s.AutoCreateTable {
		if err := storage.EnsureTable(ctx, scfg, repo); err != nil {
			repo.Close()
			return nil, nil, err
		}
	}
	srv := &api.Server{
		Agg: &aggregate.Service{
			Repo:     repo,
			Resolver: aggregate.Resolver{Aliases: aliases, Coercer: coercer},
			RowCap:   s.RowCap,
			Job:      "salesapi",
		},
		Importer: &importer.Importer{
			Repo:      repo,
			Mapper:    canonical.Mapper{Aliases: aliases, Coercer: coercer},
			ChunkSize: s.ChunkSize,
			Workers:   s.Workers,
			ErrorDir:  s.ErrorDir,
			Job:       "salesapi",
		},
		Limiter: api.NewLimiter(s.RateLimit, s.RateBurst),
		Timeout: s.Timeout,
	}
	return srv, repo.Close, nil
}
