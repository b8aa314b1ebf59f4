package config

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"salesetl/internal/storage"
)

// Settings are the process-level knobs shared by salesapi and salesimport.
// Environment values seed each flag's default; explicit flags win.
type Settings struct {
	Addr string // HTTP listen address (salesapi)

	StorageKind     string
	DSN             string
	Table           string
	AutoCreateTable bool

	// Pipeline is a pipeline JSON whose aliases and coerce policy the API
	// applies to imports and to raw-payload fallbacks at query time.
	Pipeline string

	RowCap    int           // max records scanned per aggregate query
	ChunkSize int           // default import chunk size
	Workers   int           // concurrent insert chunks
	ErrorDir  string        // where import error reports are written
	RateLimit float64       // API requests per second; <= 0 disables limiting
	RateBurst int           // API token bucket size
	Timeout   time.Duration // per-request deadline for API handlers

	MetricsBackend string // "", "prometheus" or "datadog"
	PushgatewayURL string
	DogStatsdAddr  string
}

// StorageConfig returns the storage selection for storage.New.
func (s *Settings) StorageConfig() storage.Config {
	return storage.Config{Kind: s.StorageKind, DSN: s.DSN, Table: s.Table}
}

// LoadFromArgs defines the settings flags on fs, seeds their defaults through
// getenv and parses args. fs should use flag.ContinueOnError so the parse
// error is returned rather than exiting.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Settings, error) {
	s := &Settings{}

	envOr := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOr := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	floatEnvOr := func(k string, d float64) float64 {
		if v := getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return d
	}
	boolEnvOr := func(k string, d bool) bool {
		switch strings.ToLower(getenv(k)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return d
	}
	durEnvOr := func(k string, d time.Duration) time.Duration {
		if v := getenv(k); v != "" {
			if dur, err := time.ParseDuration(v); err == nil {
				return dur
			}
		}
		return d
	}

	fs.StringVar(&s.Addr, "addr", envOr("SALES_ADDR", ":8080"), "HTTP listen address")

	fs.StringVar(&s.StorageKind, "storage", envOr("SALES_STORAGE", "memory"), "Storage kind: postgres, mssql, mysql, sqlite or memory")
	fs.StringVar(&s.DSN, "dsn", getenv("SALES_DSN"), "Storage DSN")
	fs.StringVar(&s.Table, "table", envOr("SALES_TABLE", storage.DefaultTable), "Sale table name")
	fs.BoolVar(&s.AutoCreateTable, "auto_create", boolEnvOr("SALES_AUTO_CREATE", false), "Create the sale table if missing")

	fs.StringVar(&s.Pipeline, "pipeline", getenv("SALES_PIPELINE"), "Pipeline JSON supplying aliases and the coerce policy")

	fs.IntVar(&s.RowCap, "row_cap", intEnvOr("SALES_ROW_CAP", DefaultRowCap), "Max records scanned per aggregate query")
	fs.IntVar(&s.ChunkSize, "chunk_size", intEnvOr("SALES_CHUNK_SIZE", DefaultChunkSize), "Rows per insert chunk")
	fs.IntVar(&s.Workers, "workers", intEnvOr("SALES_WORKERS", DefaultWorkers), "Concurrent insert chunks")
	fs.StringVar(&s.ErrorDir, "error_dir", envOr("SALES_ERROR_DIR", DefaultErrorDir), "Directory for import error reports")
	fs.Float64Var(&s.RateLimit, "rate_limit", floatEnvOr("SALES_RATE_LIMIT", 20), "API requests per second (0 disables)")
	fs.IntVar(&s.RateBurst, "rate_burst", intEnvOr("SALES_RATE_BURST", 40), "API burst size")
	fs.DurationVar(&s.Timeout, "timeout", durEnvOr("SALES_TIMEOUT", 30*time.Second), "Per-request timeout")

	fs.StringVar(&s.MetricsBackend, "metrics", getenv("SALES_METRICS"), "Metrics backend: prometheus, datadog or empty")
	fs.StringVar(&s.PushgatewayURL, "pushgateway", getenv("SALES_PUSHGATEWAY_URL"), "Prometheus Pushgateway URL")
	fs.StringVar(&s.DogStatsdAddr, "dogstatsd", envOr("SALES_DOGSTATSD_ADDR", "127.0.0.1:8125"), "DogStatsD address")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env") into
// the process environment. A missing file is not an error.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		log.Printf("config: no .env file found, using process environment")
		return
	}
	if err := godotenv.Load(present...); err != nil {
		log.Printf("config: load %v: %v", present, err)
	}
}
