// Command probe samples a sales workbook or file, reports which columns
// resolve to which logical fields, and prints a starter pipeline for
// salesimport.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"salesetl/internal/probe"
)

func main() {
	var (
		flagPath = flag.String("path", "", "source file (.xlsx, .csv, .tsv, .ndjson)")
		flagKind = flag.String("kind", "", "source kind override: xlsx|csv|ndjson")
		flagRows = flag.Int("rows", 200, "rows per sheet to sample")
		flagJob  = flag.String("job", "", "job name for the generated pipeline; defaults to the file name")

		flagBackend = flag.String("backend", "sqlite", "storage backend for the generated pipeline: postgres|mssql|mysql|sqlite")
		flagDSN     = flag.String("dsn", "", "storage DSN for the generated pipeline")

		flagPipelineOnly = flag.Bool("pipeline", false, "print only the generated pipeline")
		flagPretty       = flag.Bool("pretty", true, "pretty-print JSON output")
	)
	flag.Parse()

	if *flagPath == "" {
		fmt.Fprintln(os.Stderr, "missing -path")
		flag.Usage()
		os.Exit(2)
	}

	res, err := probe.Probe(probe.Options{
		Path:       *flagPath,
		Kind:       *flagKind,
		SampleRows: *flagRows,
		Backend:    *flagBackend,
		DSN:        *flagDSN,
		Job:        *flagJob,
	})
	if err != nil {
		log.Fatalf("probe: %v", err)
	}
	for _, sh := range res.Sheets {
		if len(sh.Missing) > 0 {
			log.Printf("probe: sheet=%q rows=%d missing=%v", sh.Name, sh.Rows, sh.Missing)
		}
		if sh.Category == "" {
			log.Printf("probe: sheet=%q has no category guess; falls back to default_category", sh.Name)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	if *flagPretty {
		enc.SetIndent("", "  ")
	}
	var out any = res
	if *flagPipelineOnly {
		out = res.Pipeline
	}
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode: %v", err)
	}
}

