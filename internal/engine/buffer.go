package engine

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const pendingSentinel = "PENDING_ACCUMULATOR"

const bufferSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	data           BLOB NOT NULL,
	timestamp      TEXT NOT NULL,
	sent           INTEGER NOT NULL DEFAULT 0,
	sent_timestamp TEXT,
	created_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_sent ON messages(sent);
`

// bufferedMessage mirrors a row of the durable store, per spec.md §3/§6.
type bufferedMessage struct {
	ID        int64
	Timestamp time.Time
	Payload   []byte
	Sent      bool
	SentAt    *time.Time
}

// buffer is the Durable Buffer: one SQLite file per port, single-writer
// discipline enforced by mu. Readers (enumerateUnsent) take a snapshot
// under the same lock rather than relying on SQLite's own locking, so the
// eviction-on-insert policy stays atomic with the row count it reads.
type buffer struct {
	mu       sync.Mutex
	db       *sql.DB
	portName string
}

// openBuffer opens (creating if absent) the SQLite file backing one port's
// durable buffer and ensures its schema exists.
func openBuffer(portName, path string) (*buffer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &PersistError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1) // single-writer discipline; see spec.md §4.4/§5
	if _, err := db.Exec(bufferSchema); err != nil {
		db.Close()
		return nil, &PersistError{Op: "migrate", Err: err}
	}
	return &buffer{db: db, portName: portName}, nil
}

func (b *buffer) close() error {
	return b.db.Close()
}

// insert persists a newly emitted message and, in the same transaction,
// clears any pending-accumulator row — the bytes just inserted are exactly
// what that row was mirroring, so the two must commit together. Without
// that atomicity a crash between a bare insert and a separate clearPending
// call would resurrect the same bytes as a second, independent message on
// restart. If the number of unsent rows is already at maxUnsent, the oldest
// unsent row is evicted first — the bounded-deque overflow policy pinned by
// SPEC_FULL.md §5.
func (b *buffer) insert(payload []byte, now time.Time, maxUnsent int) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.Begin()
	if err != nil {
		return 0, &PersistError{Op: "insert", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE timestamp = ?`, pendingSentinel); err != nil {
		return 0, &PersistError{Op: "insert: clear pending", Err: err}
	}

	if maxUnsent > 0 {
		var unsentCount int
		row := tx.QueryRow(`SELECT COUNT(*) FROM messages WHERE sent = 0 AND timestamp != ?`, pendingSentinel)
		if err := row.Scan(&unsentCount); err != nil {
			return 0, &PersistError{Op: "insert: count unsent", Err: err}
		}
		if unsentCount >= maxUnsent {
			if _, err := tx.Exec(`DELETE FROM messages WHERE id = (
				SELECT id FROM messages WHERE sent = 0 AND timestamp != ? ORDER BY id ASC LIMIT 1
			)`, pendingSentinel); err != nil {
				return 0, &PersistError{Op: "insert: evict oldest unsent", Err: err}
			}
			logIssuef("buffer %s: at capacity (%d), evicted oldest unsent message", b.portName, maxUnsent)
		} else if maxUnsent > 0 && unsentCount+1 >= (maxUnsent*8)/10 {
			logIssuefThrottled("buffer-fill:"+b.portName, 1.0/60.0,
				"buffer %s is at or above 80%% full (%d/%d unsent)", b.portName, unsentCount+1, maxUnsent)
		}
	}

	res, err := tx.Exec(`INSERT INTO messages (data, timestamp, sent) VALUES (?, ?, 0)`,
		payload, now.Format(time.RFC3339Nano))
	if err != nil {
		return 0, &PersistError{Op: "insert", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &PersistError{Op: "insert: last id", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &PersistError{Op: "insert: commit", Err: err}
	}
	return id, nil
}

// markSent flips the given ids to sent=true atomically, in a single
// transaction, preserving insertion order (spec.md §4.5 "mark before the
// next connect attempt can observe stale state").
func (b *buffer) markSent(ids []int64, sentAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.Begin()
	if err != nil {
		return &PersistError{Op: "mark_sent", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE messages SET sent = 1, sent_timestamp = ? WHERE id = ?`)
	if err != nil {
		return &PersistError{Op: "mark_sent: prepare", Err: err}
	}
	defer stmt.Close()

	ts := sentAt.Format(time.RFC3339Nano)
	for _, id := range ids {
		if _, err := stmt.Exec(ts, id); err != nil {
			return &PersistError{Op: "mark_sent", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &PersistError{Op: "mark_sent: commit", Err: err}
	}
	return nil
}

// enumerateUnsent returns unsent messages in strictly increasing id order.
func (b *buffer) enumerateUnsent() ([]bufferedMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rows, err := b.db.Query(`SELECT id, data, timestamp FROM messages
		WHERE sent = 0 AND timestamp != ? ORDER BY id ASC`, pendingSentinel)
	if err != nil {
		return nil, &PersistError{Op: "enumerate_unsent", Err: err}
	}
	defer rows.Close()

	var out []bufferedMessage
	for rows.Next() {
		var m bufferedMessage
		var ts string
		if err := rows.Scan(&m.ID, &m.Payload, &ts); err != nil {
			return nil, &PersistError{Op: "enumerate_unsent: scan", Err: err}
		}
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistError{Op: "enumerate_unsent: rows", Err: err}
	}
	return out, nil
}

func (b *buffer) countUnsent() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int
	row := b.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE sent = 0 AND timestamp != ?`, pendingSentinel)
	if err := row.Scan(&n); err != nil {
		return 0, &PersistError{Op: "count_unsent", Err: err}
	}
	return n, nil
}

// purgeOldSent deletes sent messages whose sent_timestamp predates cutoff.
// sent=false rows are never touched, per invariant 4 in spec.md §8.
func (b *buffer) purgeOldSent(cutoff time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.db.Exec(`DELETE FROM messages WHERE sent = 1 AND sent_timestamp < ?`,
		cutoff.Format(time.RFC3339Nano))
	if err != nil {
		return 0, &PersistError{Op: "purge_old_sent", Err: err}
	}
	return res.RowsAffected()
}

// putPending upserts the single pending-accumulator row, at most one of
// which may exist per port at any time.
func (b *buffer) putPending(data []byte, _ time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.Begin()
	if err != nil {
		return &PersistError{Op: "put_pending", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE timestamp = ?`, pendingSentinel); err != nil {
		return &PersistError{Op: "put_pending: clear previous", Err: err}
	}
	if _, err := tx.Exec(`INSERT INTO messages (data, timestamp, sent) VALUES (?, ?, 0)`,
		data, pendingSentinel); err != nil {
		return &PersistError{Op: "put_pending", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &PersistError{Op: "put_pending: commit", Err: err}
	}
	return nil
}

func (b *buffer) clearPending() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.db.Exec(`DELETE FROM messages WHERE timestamp = ?`, pendingSentinel); err != nil {
		return &PersistError{Op: "clear_pending", Err: err}
	}
	return nil
}

// loadPending returns the pending-accumulator bytes, if any, read at
// engine startup to seed the in-memory accumulator.
func (b *buffer) loadPending() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var data []byte
	row := b.db.QueryRow(`SELECT data FROM messages WHERE timestamp = ? LIMIT 1`, pendingSentinel)
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistError{Op: "load_pending", Err: err}
	}
	return data, nil
}

func bufferPath(dir, portName string) string {
	return fmt.Sprintf("%s/buffer_%s.db", dir, portName)
}
