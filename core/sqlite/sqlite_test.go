package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func TestDriverInfo(t *testing.T) {
	info := GetInfo()
	if info.DriverName == "" || info.DriverType == "" || info.Package == "" {
		t.Fatalf("incomplete info: %+v", info)
	}
	if info.DriverName != DriverName() {
		t.Errorf("DriverName mismatch: info=%s, func=%s", info.DriverName, DriverName())
	}
	if info.IsCGO != IsCGO() {
		t.Errorf("IsCGO mismatch: info=%v, func=%v", info.IsCGO, IsCGO())
	}
}

func TestDriverTypeConsistency(t *testing.T) {
	switch DriverType() {
	case "purego":
		if IsCGO() || DriverName() != "sqlite" {
			t.Errorf("purego driver: IsCGO=%v name=%s", IsCGO(), DriverName())
		}
	case "cgo":
		if !IsCGO() || DriverName() != "sqlite3" {
			t.Errorf("cgo driver: IsCGO=%v name=%s", IsCGO(), DriverName())
		}
	default:
		t.Errorf("unknown driver type: %s", DriverType())
	}
}

func TestOpen(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE test (id INTEGER PRIMARY KEY, value TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO test (value) VALUES (?)`, "hello"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var value string
	if err := db.QueryRow(`SELECT value FROM test WHERE id = 1`).Scan(&value); err != nil {
		t.Fatalf("query: %v", err)
	}
	if value != "hello" {
		t.Errorf("value = %q, want hello", value)
	}

	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestOpenMemory(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE t (x INTEGER)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	// One connection, so the table is visible to the next statement.
	if _, err := db.Exec(`INSERT INTO t (x) VALUES (1)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
}


type codeErr int

func (c codeErr) Error() string { return fmt.Sprintf("code %d", int(c)) }
func (c codeErr) Code() int     { return int(c) }

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{codeErr(5), true},
		{fmt.Errorf("exec: %w", codeErr(5)), true},
		{codeErr(1), false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("no such table"), false},
	}
	for _, tt := range tests {
		if got := IsBusy(tt.err); got != tt.want {
			t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := RetryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return codeErr(5)
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d, want nil after 3", err, calls)
	}

	calls = 0
	fatal := errors.New("constraint failed")
	err = RetryOnBusy(context.Background(), func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Fatalf("err=%v calls=%d, want fatal after 1", err, calls)
	}

	calls = 0
	err = RetryOnBusy(context.Background(), func() error {
		calls++
		return codeErr(5)
	})
	if !IsBusy(err) || calls != busyRetryAttempts {
		t.Fatalf("err=%v calls=%d, want busy after %d", err, calls, busyRetryAttempts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = RetryOnBusy(ctx, func() error { return codeErr(5) })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}
