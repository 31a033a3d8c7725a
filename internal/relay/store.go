package relay

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the append-only message log backing a relay. Appends for a room
// are replayed to late joiners in append order.
type Store interface {
	Append(ctx context.Context, roomID string, payload []byte) error
	Backlog(ctx context.Context, roomID string) ([][]byte, error)
	Close() error
}

// MemStore keeps room logs in process memory. Suitable for a single relay
// instance that may forget rooms on restart.
type MemStore struct {
	mu   sync.Mutex
	logs map[string][][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{logs: make(map[string][][]byte)}
}

func (s *MemStore) Append(_ context.Context, roomID string, payload []byte) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.mu.Lock()
	s.logs[roomID] = append(s.logs[roomID], buf)
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Backlog(_ context.Context, roomID string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[roomID]
	out := make([][]byte, len(log))
	copy(out, log)
	return out, nil
}

func (s *MemStore) Close() error { return nil }

// SQLStore persists room logs in sqlite so a relay restart does not lose
// rooms mid-draft.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// newSQLStoreWithDB wires an existing handle, used by tests with a mock db.
func newSQLStoreWithDB(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, id);
	`)
	return err
}

func (s *SQLStore) Append(ctx context.Context, roomID string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (room_id, payload) VALUES (?, ?)", roomID, payload)
	return err
}

func (s *SQLStore) Backlog(ctx context.Context, roomID string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM messages WHERE room_id = ? ORDER BY id", roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		out = append(out, payload)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error { return s.db.Close() }
