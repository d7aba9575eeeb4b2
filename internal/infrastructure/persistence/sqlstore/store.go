// Package sqlstore keeps profile documents in a SQL database: an embedded
// SQLite file for single-node installs or PostgreSQL for shared deployments.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/reglet-dev/classrunner/internal/domain/repositories"
	"github.com/reglet-dev/classrunner/internal/domain/values"
	"github.com/reglet-dev/classrunner/internal/infrastructure/persistence/memory"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() (string, error) {
	switch d {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported SQL dialect %q", d)
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profile_documents (
		wiki  TEXT NOT NULL,
		space TEXT NOT NULL,
		name  TEXT NOT NULL,
		PRIMARY KEY (wiki, space, name)
	)`,
	`CREATE TABLE IF NOT EXISTS profile_objects (
		wiki  TEXT NOT NULL,
		space TEXT NOT NULL,
		name  TEXT NOT NULL,
		class TEXT NOT NULL,
		idx   INTEGER NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (wiki, space, name, class, idx, field)
	)`,
}

// Store is a ProfileRepository over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ repositories.ProfileRepository = (*Store)(nil)

// Open connects, verifies the connection and creates the tables if needed.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	driver, err := dialect.driverName()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// SQLite allows a single writer
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create profile tables: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Exists reports whether the profile document exists.
func (s *Store) Exists(ctx context.Context, ref values.ProfileRef) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT 1 FROM profile_documents WHERE wiki = ? AND space = ? AND name = ?`),
		ref.Wiki, ref.Space, ref.Name,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up profile %s: %w", ref, err)
	}
	return true, nil
}

// Property returns a field of the index-th object of class.
func (s *Store) Property(ctx context.Context, ref values.ProfileRef, class string, index int, field string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT value FROM profile_objects
			WHERE wiki = ? AND space = ? AND name = ? AND class = ? AND idx = ? AND field = ?`),
		ref.Wiki, ref.Space, ref.Name, class, index, field,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s[%d].%s of %s: %w", class, index, field, ref, err)
	}
	return value, true, nil
}

// List returns all profile references sorted by identifier.
func (s *Store) List(ctx context.Context) ([]values.ProfileRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT wiki, space, name FROM profile_documents ORDER BY wiki, space, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var refs []values.ProfileRef
	for rows.Next() {
		var ref values.ProfileRef
		if err := rows.Scan(&ref.Wiki, &ref.Space, &ref.Name); err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return refs, nil
}

// Put stores or replaces a profile document. Nil objects are skipped and
// leave a gap at their index.
func (s *Store) Put(ctx context.Context, ref values.ProfileRef, doc *memory.Document) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.deleteObjects(ctx, tx, ref); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		s.rebind(`INSERT INTO profile_documents (wiki, space, name) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`),
		ref.Wiki, ref.Space, ref.Name,
	); err != nil {
		return fmt.Errorf("failed to store profile %s: %w", ref, err)
	}

	insert := s.rebind(`INSERT INTO profile_objects (wiki, space, name, class, idx, field, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if doc != nil {
		for class, objects := range doc.Objects {
			for idx, obj := range objects {
				for field, value := range obj {
					if _, err = tx.ExecContext(ctx, insert,
						ref.Wiki, ref.Space, ref.Name, class, idx, field, value,
					); err != nil {
						return fmt.Errorf("failed to store %s[%d].%s of %s: %w", class, idx, field, ref, err)
					}
				}
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profile %s: %w", ref, err)
	}
	return nil
}

// Delete removes a profile document and its objects.
func (s *Store) Delete(ctx context.Context, ref values.ProfileRef) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.deleteObjects(ctx, tx, ref); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		s.rebind(`DELETE FROM profile_documents WHERE wiki = ? AND space = ? AND name = ?`),
		ref.Wiki, ref.Space, ref.Name,
	); err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", ref, err)
	}
	return tx.Commit()
}

func (s *Store) deleteObjects(ctx context.Context, tx *sql.Tx, ref values.ProfileRef) error {
	if _, err := tx.ExecContext(ctx,
		s.rebind(`DELETE FROM profile_objects WHERE wiki = ? AND space = ? AND name = ?`),
		ref.Wiki, ref.Space, ref.Name,
	); err != nil {
		return fmt.Errorf("failed to clear objects of %s: %w", ref, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
