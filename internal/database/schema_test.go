package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecer struct {
	stmts []string
	err   error
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.stmts = append(r.stmts, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), r.err
}

func TestEnsureSchema(t *testing.T) {
	db := &recordingExecer{}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if len(db.stmts) != len(schemaStatements) {
		t.Fatalf("executed %d statements, want %d", len(db.stmts), len(schemaStatements))
	}
	if !strings.Contains(db.stmts[0], "priority_fee_snapshots") {
		t.Errorf("first statement should create priority_fee_snapshots, got %q", db.stmts[0])
	}
}

func TestEnsureSchema_Error(t *testing.T) {
	db := &recordingExecer{err: errors.New("permission denied")}
	err := EnsureSchema(context.Background(), db)
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("err = %v, want wrapped permission denied", err)
	}
	if len(db.stmts) != 1 {
		t.Errorf("executed %d statements, want to stop after first failure", len(db.stmts))
	}
}
