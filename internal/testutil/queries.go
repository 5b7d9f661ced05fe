package testutil

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Query is one statement observed by a Recorder. SQLite drops row locking
// from the rendered SQL, so Locked is read from the statement's clauses.
type Query struct {
	Table  string
	Locked bool
	InTx   bool
	Vars   []interface{}
}

// Recorder keeps the reads issued through a database handle, in order
type Recorder struct {
	mu      sync.Mutex
	queries []Query
}

// RecordQueries hooks the query and row callbacks of db
func RecordQueries(t *testing.T, db *gorm.DB) *Recorder {
	t.Helper()
	r := &Recorder{}
	record := func(tx *gorm.DB) {
		q := Query{Table: tx.Statement.Table, Vars: append([]interface{}(nil), tx.Statement.Vars...)}
		if c, ok := tx.Statement.Clauses["FOR"]; ok {
			if l, ok := c.Expression.(clause.Locking); ok && l.Strength == "UPDATE" {
				q.Locked = true
			}
		}
		_, q.InTx = tx.Statement.ConnPool.(gorm.TxCommitter)
		r.mu.Lock()
		r.queries = append(r.queries, q)
		r.mu.Unlock()
	}
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("testutil:record_query", record))
	require.NoError(t, db.Callback().Row().After("gorm:row").Register("testutil:record_row", record))
	return r
}

// Reset forgets everything recorded so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = nil
}

// LockedBefore reports whether a transaction took the FOR UPDATE lock on
// userID's users row before its first read of table.
func (r *Recorder) LockedBefore(userID uuid.UUID, table string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.queries {
		if !q.InTx {
			continue
		}
		if q.Table == "users" && q.Locked && q.mentions(userID) {
			return true
		}
		if q.Table == table {
			return false
		}
	}
	return false
}

func (q Query) mentions(id uuid.UUID) bool {
	for _, v := range q.Vars {
		if fmt.Sprint(v) == id.String() {
			return true
		}
	}
	return false
}
