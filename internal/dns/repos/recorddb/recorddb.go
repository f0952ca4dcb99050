// Package recorddb reads local records from a SQLite database file.
//
// The database holds a single table:
//
//	records(id, name, type, class, ttl, value)
//
// where value is the record data in zone-file text form, e.g. "10 mail.example.com."
// for MX. A NULL or zero ttl takes the configured default. The schema is
// managed with embedded migrations applied on Open.
package recorddb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/haukened/simpledns/internal/dns/common/log"
	"github.com/haukened/simpledns/internal/dns/common/rrdata"
	"github.com/haukened/simpledns/internal/dns/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrInvalidRecord is wrapped when a stored row cannot be turned into a record.
var ErrInvalidRecord = errors.New("invalid stored record")

// Store wraps a SQLite connection to a record database.
type Store struct {
	conn   *sql.DB
	logger log.Logger
}

// Open opens or creates the database at path and brings its schema up to date.
func Open(path string, logger log.Logger) (*Store, error) {
	s, err := open(fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path), logger)
	if err != nil {
		return nil, err
	}
	if err := s.migrate(); err != nil {
		_ = s.conn.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}
	return s, nil
}

// OpenReadOnly opens an existing database without creating, migrating or
// otherwise writing to it. Insert on the returned Store fails.
func OpenReadOnly(path string, logger log.Logger) (*Store, error) {
	s, err := open(fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path), logger)
	if err != nil {
		return nil, err
	}
	if err := s.conn.Ping(); err != nil {
		_ = s.conn.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return s, nil
}

func open(dsn string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer at a time
	conn.SetMaxOpenConns(1)
	return &Store{conn: conn, logger: logger}, nil
}

func (s *Store) migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratesqlite.WithInstance(s.conn, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, _, _ := m.Version()
	s.logger.Debug(map[string]any{"schema_version": version}, "Record database schema ready")
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Insert stores one record given in text form. The value is validated first.
func (s *Store) Insert(ctx context.Context, name string, rrType domain.RRType, ttl uint32, value string) error {
	if _, err := rrdata.Parse(rrType, value); err != nil {
		return fmt.Errorf("record %s %s: %w", name, rrType, err)
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO records (name, type, class, ttl, value) VALUES (?, ?, 'IN', ?, ?)`,
		name, rrType.String(), ttl, value,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", name, err)
	}
	return nil
}

// Records returns every stored record in insertion order.
func (s *Store) Records(ctx context.Context, defaultTTL uint32) ([]domain.ResourceRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, type, class, ttl, value
		FROM records
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []domain.ResourceRecord
	for rows.Next() {
		var (
			id                      int64
			name, typ, class, value string
			ttl                     sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &typ, &class, &ttl, &value); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rr, err := toRecord(name, typ, class, ttl, value, defaultTTL)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", id, err)
		}
		records = append(records, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

func toRecord(name, typ, class string, ttl sql.NullInt64, value string, defaultTTL uint32) (domain.ResourceRecord, error) {
	rrType := domain.RRTypeFromString(typ)
	if rrType == 0 {
		return domain.ResourceRecord{}, fmt.Errorf("%w: unknown type %q", ErrInvalidRecord, typ)
	}
	rrClass := domain.ParseRRClass(class)
	if rrClass == 0 {
		return domain.ResourceRecord{}, fmt.Errorf("%w: unknown class %q", ErrInvalidRecord, class)
	}
	t := defaultTTL
	if ttl.Valid && ttl.Int64 > 0 {
		if ttl.Int64 > 0x7FFFFFFF {
			return domain.ResourceRecord{}, fmt.Errorf("%w: ttl %d out of range", ErrInvalidRecord, ttl.Int64)
		}
		t = uint32(ttl.Int64)
	}
	data, err := rrdata.Parse(rrType, value)
	if err != nil {
		return domain.ResourceRecord{}, fmt.Errorf("%w: %s %s: %w", ErrInvalidRecord, name, rrType, err)
	}
	rr, err := domain.NewResourceRecord(name, rrClass, t, data)
	if err != nil {
		return domain.ResourceRecord{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return rr, nil
}

// Load reads all records from the database file at path, read-only. A missing
// file is not an error: it is logged and yields no records.
func Load(ctx context.Context, path string, defaultTTL uint32, logger log.Logger) ([]domain.ResourceRecord, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn(map[string]any{"path": path}, "Record database not found, continuing without it")
			return nil, nil
		}
		return nil, fmt.Errorf("record database %s: %w", path, err)
	}

	store, err := OpenReadOnly(path, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Records(ctx, defaultTTL)
	if err != nil {
		return nil, err
	}
	logger.Info(map[string]any{
		"path":    path,
		"records": len(records),
	}, "Loaded records from database")
	return records, nil
}
