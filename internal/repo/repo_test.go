package repo

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"unique", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped unique", fmt.Errorf("insert run: %w", &pgconn.PgError{Code: "23505"}), true},
		{"foreign key", &pgconn.PgError{Code: "23503"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.expect {
				t.Errorf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestNullString(t *testing.T) {
	if nullString("") != nil {
		t.Error("empty string should map to NULL")
	}
	if v := nullString("main"); v == nil || *v != "main" {
		t.Errorf("expected pointer to main, got %v", v)
	}
	if deref(nil) != "" || deref(nullString("x")) != "x" {
		t.Error("deref should invert nullString")
	}
}

func TestSchema(t *testing.T) {
	for _, table := range []string{"pipeline_runs", "stage_results", "pipeline_runs_build_number_seq"} {
		if !strings.Contains(schema, table) {
			t.Errorf("schema should define %s", table)
		}
	}
}
