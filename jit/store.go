package jit

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"

	"github.com/stylpe/Avail-sub004/l1"
	"github.com/stylpe/Avail-sub004/l2"
)

// ErrFunctionNotFound indicates the requested function is not in the
// store.
var ErrFunctionNotFound = errors.New("function not found")

// cborEncMode encodes canonically so equal functions produce identical
// bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("jit: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Store is the content-addressed sqlite persistence layer: functions
// keyed by their content hash, plus a log of optimizations for offline
// inspection.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenStore opens (creating if needed) a store at the given path.
func OpenStore(path string) (*Store, error) {
	// The busy timeout goes in the DSN so it applies to every
	// connection in the database/sql pool, not just one.
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("jit: opening store: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS functions (
			hash TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			data BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS compilations (
			hash         TEXT NOT NULL,
			name         TEXT NOT NULL,
			instructions INTEGER NOT NULL,
			object_regs  INTEGER NOT NULL,
			int_regs     INTEGER NOT NULL,
			float_regs   INTEGER NOT NULL,
			compiled_at  INTEGER NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("jit: creating schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveFunction persists a function keyed by its content hash. Saving the
// same content twice is a no-op.
func (s *Store) SaveFunction(fn *l1.Function) error {
	data, err := cborEncMode.Marshal(fn)
	if err != nil {
		return fmt.Errorf("jit: encoding %s: %w", fn.Name, err)
	}
	h := fn.ContentHash()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT OR IGNORE INTO functions (hash, name, data) VALUES (?, ?, ?)",
		hex.EncodeToString(h[:]), fn.Name, data)
	if err != nil {
		return fmt.Errorf("jit: saving %s: %w", fn.Name, err)
	}
	return nil
}

// LoadFunction retrieves a function by content hash.
func (s *Store) LoadFunction(h [32]byte) (*l1.Function, error) {
	var data []byte
	err := s.db.QueryRow(
		"SELECT data FROM functions WHERE hash = ?",
		hex.EncodeToString(h[:])).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFunctionNotFound
		}
		return nil, fmt.Errorf("jit: querying function: %w", err)
	}

	var fn l1.Function
	if err := cbor.Unmarshal(data, &fn); err != nil {
		return nil, fmt.Errorf("jit: decoding function: %w", err)
	}
	return &fn, nil
}

// RecordCompilation logs one optimization of a function.
func (s *Store) RecordCompilation(fn *l1.Function, chunk *l2.Chunk) error {
	h := fn.ContentHash()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO compilations
			(hash, name, instructions, object_regs, int_regs, float_regs, compiled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		hex.EncodeToString(h[:]), fn.Name, len(chunk.Instructions),
		chunk.ObjectRegisterCount, chunk.IntRegisterCount, chunk.FloatRegisterCount,
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("jit: recording compilation of %s: %w", fn.Name, err)
	}
	return nil
}

// FunctionHashes returns the content hashes of every stored function.
func (s *Store) FunctionHashes() ([][32]byte, error) {
	rows, err := s.db.Query("SELECT hash FROM functions")
	if err != nil {
		return nil, fmt.Errorf("jit: listing functions: %w", err)
	}
	defer rows.Close()

	var hashes [][32]byte
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, err
		}
		raw, err := hex.DecodeString(encoded)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("jit: malformed hash %q in store", encoded)
		}
		var h [32]byte
		copy(h[:], raw)
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// CompilationCount returns how many optimizations were recorded for a
// function's content hash.
func (s *Store) CompilationCount(h [32]byte) (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM compilations WHERE hash = ?",
		hex.EncodeToString(h[:])).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("jit: counting compilations: %w", err)
	}
	return n, nil
}
