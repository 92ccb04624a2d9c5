package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"rankwatch/models"
)

// recordingConnector is an in-memory database/sql driver that logs the first
// keyword of every statement, fails the n-th INSERT when failInsert > 0 and
// fails every statement starting with failVerb.
type recordingConnector struct {
	mu         sync.Mutex
	log        []string
	inserts    int
	failInsert int
	failVerb   string
}

func (c *recordingConnector) Connect(context.Context) (driver.Conn, error) {
	return &recordingConn{c: c}, nil
}

func (c *recordingConnector) Driver() driver.Driver { return recordingDriver{c} }

func (c *recordingConnector) record(entry string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, entry)
}

func (c *recordingConnector) entries() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.log, " ")
}

type recordingDriver struct{ c *recordingConnector }

func (d recordingDriver) Open(string) (driver.Conn, error) { return &recordingConn{c: d.c}, nil }

type recordingConn struct{ c *recordingConnector }

func (r *recordingConn) Prepare(query string) (driver.Stmt, error) {
	return &recordingStmt{c: r.c, query: query}, nil
}

func (r *recordingConn) Close() error { return nil }

func (r *recordingConn) Begin() (driver.Tx, error) {
	r.c.record("BEGIN")
	return recordingTx{c: r.c}, nil
}

type recordingTx struct{ c *recordingConnector }

func (t recordingTx) Commit() error {
	t.c.record("COMMIT")
	return nil
}

func (t recordingTx) Rollback() error {
	t.c.record("ROLLBACK")
	return nil
}

type recordingStmt struct {
	c     *recordingConnector
	query string
}

func (s *recordingStmt) Close() error  { return nil }
func (s *recordingStmt) NumInput() int { return -1 }

func (s *recordingStmt) Exec([]driver.Value) (driver.Result, error) {
	verb := strings.Fields(s.query)[0]
	s.c.record(verb)
	if verb == s.c.failVerb {
		return nil, errors.New("permission denied")
	}
	if verb == "INSERT" {
		s.c.mu.Lock()
		s.c.inserts++
		n := s.c.inserts
		s.c.mu.Unlock()
		if s.c.failInsert > 0 && n == s.c.failInsert {
			return nil, errors.New("connection reset")
		}
	}
	return driver.RowsAffected(1), nil
}

func (s *recordingStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("query not supported")
}

func snapshotOfSize(n int) *models.Snapshot {
	snap := &models.Snapshot{Source: "rank_base_2024-01-02.csv", TakenAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	for i := 1; i <= n; i++ {
		snap.Items = append(snap.Items, &models.Item{Rank: i, Code: fmt.Sprintf("shop:%03d", i), Name: "item", Price: 10000})
	}
	return snap
}

func TestPostgresWriteSnapshotCommitsOnce(t *testing.T) {
	conn := &recordingConnector{}
	db := sql.OpenDB(conn)
	defer db.Close()

	pw := &PostgresWriter{db: db}
	if err := pw.WriteSnapshot(snapshotOfSize(120)); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	want := "BEGIN DELETE INSERT INSERT INSERT COMMIT"
	if got := conn.entries(); got != want {
		t.Errorf("statements: got %q, want %q", got, want)
	}
}

func TestPostgresWriteSnapshotRollsBackOnFailedBatch(t *testing.T) {
	conn := &recordingConnector{failInsert: 2}
	db := sql.OpenDB(conn)
	defer db.Close()

	pw := &PostgresWriter{db: db}
	if err := pw.WriteSnapshot(snapshotOfSize(120)); err == nil {
		t.Fatal("expected the failed batch to surface as an error")
	}

	want := "BEGIN DELETE INSERT INSERT ROLLBACK"
	if got := conn.entries(); got != want {
		t.Errorf("statements: got %q, want %q", got, want)
	}
}

func TestNewPostgresWriterMigrates(t *testing.T) {
	conn := &recordingConnector{}
	db := sql.OpenDB(conn)
	defer db.Close()

	if _, err := newPostgresWriter(db, 1, 0); err != nil {
		t.Fatalf("newPostgresWriter: %v", err)
	}
	if got := conn.entries(); got != "CREATE" {
		t.Errorf("statements: got %q, want CREATE", got)
	}
}

func TestNewPostgresWriterClosesPoolOnMigrateFailure(t *testing.T) {
	conn := &recordingConnector{failVerb: "CREATE"}
	db := sql.OpenDB(conn)

	if _, err := newPostgresWriter(db, 1, 0); err == nil {
		t.Fatal("expected migrate error")
	}
	if err := db.Ping(); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("pool should be closed after a failed migrate, ping: %v", err)
	}
}
