// Package mysql contains tests for helper utilities used by the MySQL adapter.
package mysql

import (
	"strings"
	"testing"
)

// TestMyIdent verifies that myIdent correctly backtick-quotes identifiers and
// escapes backticks by doubling them.
func TestMyIdent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"simple", "`simple`"},
		{"tick`name", "`tick``name`"},
	}
	for _, tc := range cases {
		if got := myIdent(tc.in); got != tc.want {
			t.Fatalf("myIdent(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
	if got := myFQN("sales.records"); got != "`sales`.`records`" {
		t.Fatalf("myFQN = %q", got)
	}
}

// TestNormalizeDSN checks that time parsing is forced on and bad DSNs fail.
func TestNormalizeDSN(t *testing.T) {
	t.Parallel()

	got, err := normalizeDSN("user:pw@tcp(localhost:3306)/sales")
	if err != nil {
		t.Fatalf("normalizeDSN: %v", err)
	}
	if !strings.Contains(got, "parseTime=true") {
		t.Fatalf("DSN %q lacks parseTime=true", got)
	}
	if _, err := normalizeDSN("not a dsn"); err == nil {
		t.Fatalf("expected error for malformed DSN")
	}
}

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	stmt, err := CreateTableSQL("sale_records")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS `sale_records`",
		"`row_hash` VARCHAR(255) NOT NULL",
		"`raw_payload` JSON NOT NULL",
		"PRIMARY KEY (`row_hash`)",
	} {
		if !strings.Contains(stmt, want) {
			t.Errorf("DDL missing %q:\n%s", want, stmt)
		}
	}
}
