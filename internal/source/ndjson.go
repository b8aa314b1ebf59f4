package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"salesetl/pkg/records"
)

// maxLine bounds one NDJSON object.
const maxLine = 4 << 20

// ReadNDJSON reads one JSON object per line, keeping each object's key order.
// Blank lines are skipped; a malformed line fails the read with its line
// number.
func ReadNDJSON(r io.Reader, name string) (Sheet, error) {
	sh := Sheet{Name: name}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var row records.Row
		if err := row.UnmarshalJSON(b); err != nil {
			return sh, fmt.Errorf("source: %s line %d: %w", name, line, err)
		}
		if row.Len() > 0 {
			sh.Rows = append(sh.Rows, row)
		}
	}
	if err := sc.Err(); err != nil {
		return sh, fmt.Errorf("source: %s: %w", name, err)
	}
	return sh, nil
}
