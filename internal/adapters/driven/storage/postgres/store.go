package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/custodia-labs/verselens-cli/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
	"github.com/custodia-labs/verselens-cli/internal/logger"
)

const (
	metaDimensions  = "embedding_dimensions"
	uniqueViolation = "23505"
	maxOpenConns    = 10
	maxIdleConns    = 5
)

// Store is a PostgreSQL corpus store.
type Store struct {
	db *sql.DB

	dimsMu sync.Mutex
	dims   int
}

// NewStore connects to dsn and applies pending migrations.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is empty", domain.ErrStoreUnavailable)
	}

	db, err := openDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	if err := migrateUp(ctx, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Debug("postgres store ready (dsn_len=%d)", len(dsn))
	return &Store{db: db}, nil
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// migrateUp applies the embedded migrations on a dedicated connection, which
// the migrator closes when done.
func migrateUp(ctx context.Context, dsn string) error {
	db, err := openDB(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// CorpusStore returns the write side of the corpus backed by this store.
func (s *Store) CorpusStore() driven.CorpusStore {
	return &corpusStore{store: s}
}

// CorpusReader returns the retrieval read side backed by this store.
func (s *Store) CorpusReader() driven.CorpusReader {
	return &corpusReader{store: s}
}

// SearchIndex returns the pgvector and pg_trgm index backed by this store.
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

// loadDims reads the dimensionality (caller must hold dimsMu).
func (s *Store) loadDims(ctx context.Context) (int, error) {
	if s.dims != 0 {
		return s.dims, nil
	}
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM store_meta WHERE key = $1", metaDimensions).Scan(&raw)
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

// checkDims records n on first use and rejects any other size afterwards.
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
			"INSERT INTO store_meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING",
			metaDimensions, strconv.Itoa(n)); err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
		if dims, err = s.loadDims(ctx); err != nil {
			return err
		}
	}
	if n != dims {
		return fmt.Errorf("%w: got %d, store holds %d", domain.ErrDimensionMismatch, n, dims)
	}
	return nil
}

// isUniqueViolation reports whether err is SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
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

// --- Query helpers ---

// params accumulates positional arguments and hands out $n placeholders.
type params struct {
	vals []any
}

func (p *params) add(v any) string {
	p.vals = append(p.vals, v)
	return "$" + strconv.Itoa(len(p.vals))
}

// scopeClause renders scope predicates against the books alias b.
// The result starts with " AND " when non-empty.
func scopeClause(scope domain.Scope, p *params) string {
	scope = scope.Resolve()
	var sb strings.Builder
	if scope.BookID != "" {
		sb.WriteString(" AND b.id = " + p.add(scope.BookID))
	}
	if scope.WorkID != "" {
		sb.WriteString(" AND b.work_id = " + p.add(scope.WorkID))
	}
	if scope.SeqMin > 0 {
		sb.WriteString(" AND b.seq >= " + p.add(scope.SeqMin))
	}
	if scope.SeqMax > 0 {
		sb.WriteString(" AND b.seq <= " + p.add(scope.SeqMax))
	}
	return sb.String()
}

// limitClause renders " LIMIT $n", or nothing when limit is not positive.
func limitClause(limit int, p *params) string {
	if limit <= 0 {
		return ""
	}
	return " LIMIT " + p.add(limit)
}

// vectorToString renders v as a pgvector literal.
func vectorToString(v []float32) string {
	if len(v) == 0 {
		return ""
	}
	buf := make([]byte, 0, len(v)*10)
	buf = append(buf, '[')
	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, float64(f), 'g', -1, 32)
	}
	buf = append(buf, ']')
	return string(buf)
}

// parseVector parses a pgvector text literal such as "[1,0.5,-2]".
func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed vector %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float32, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("malformed vector element %q: %w", part, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// nullVector returns the pgvector literal for v, or NULL when v is empty.
func nullVector(v []float32) sql.NullString {
	s := vectorToString(v)
	return sql.NullString{String: s, Valid: s != ""}
}
