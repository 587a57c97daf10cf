package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/custodia-labs/verselens-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

// metaDimensions is the store_meta key holding the embedding dimensionality.
const metaDimensions = "embedding_dimensions"

// Store is a unified SQLite-based corpus store that provides access to the
// corpus, reader and index interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string

	dimsMu sync.Mutex
	dims   int
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.verselens/data/corpus.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".verselens", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "corpus.db")

	// Open database with WAL mode for concurrent readers
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// CorpusStore returns the write side of the corpus backed by this store.
func (s *Store) CorpusStore() driven.CorpusStore {
	return &corpusStore{store: s}
}

// CorpusReader returns the retrieval read side backed by this store.
func (s *Store) CorpusReader() driven.CorpusReader {
	return &corpusReader{store: s}
}

// SearchIndex returns the vector and text index backed by this store.
func (s *Store) SearchIndex() driven.SearchIndex {
	return &searchIndex{store: s}
}

// Dimensions returns the recorded embedding dimensionality, or 0 before the
// first chunk is written.
func (s *Store) Dimensions(ctx context.Context) (int, error) {
	s.dimsMu.Lock()
	defer s.dimsMu.Unlock()
	return s.loadDims(ctx)
}

// loadDims reads the dimensionality once it is known (caller must hold dimsMu).
func (s *Store) loadDims(ctx context.Context) (int, error) {
	if s.dims != 0 {
		return s.dims, nil
	}
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM store_meta WHERE key = ?", metaDimensions).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading dimensions: %w", err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing dimensions %q: %w", raw, err)
	}
	s.dims = n
	return n, nil
}

// checkDims records n as the dimensionality on first use and rejects any
// other size afterwards.
func (s *Store) checkDims(ctx context.Context, n int) error {
	if n == 0 {
		return nil
	}
	s.dimsMu.Lock()
	defer s.dimsMu.Unlock()

	dims, err := s.loadDims(ctx)
	if err != nil {
		return err
	}
	if dims == 0 {
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO store_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING",
			metaDimensions, strconv.Itoa(n)); err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
		// Another process may have recorded a different size first.
		if dims, err = s.loadDims(ctx); err != nil {
			return err
		}
	}
	if n != dims {
		return fmt.Errorf("%w: got %d, store holds %d", domain.ErrDimensionMismatch, n, dims)
	}
	return nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_corpus.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY conflict.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch code := se.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case code&0xff == sqlite3.SQLITE_CONSTRAINT:
			// Primary result code only; fall back to the message.
			return strings.Contains(se.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}

// translate maps driver errors onto domain errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
	default:
		return err
	}
}

// float32SliceToBytes converts a float32 slice to bytes for BLOB storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts BLOB bytes back to a float32 slice.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// stringArgs converts ids to query arguments.
func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// scopeClause renders scope predicates against the books alias b.
// The result starts with " AND " when non-empty.
func scopeClause(scope domain.Scope) (string, []any) {
	scope = scope.Resolve()
	var sb strings.Builder
	var args []any
	if scope.BookID != "" {
		sb.WriteString(" AND b.id = ?")
		args = append(args, scope.BookID)
	}
	if scope.WorkID != "" {
		sb.WriteString(" AND b.work_id = ?")
		args = append(args, scope.WorkID)
	}
	if scope.SeqMin > 0 {
		sb.WriteString(" AND b.seq >= ?")
		args = append(args, scope.SeqMin)
	}
	if scope.SeqMax > 0 {
		sb.WriteString(" AND b.seq <= ?")
		args = append(args, scope.SeqMax)
	}
	return sb.String(), args
}
