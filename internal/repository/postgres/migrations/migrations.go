package migrations

import (
	"bytes"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"testing/fstest"
	"text/template"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// MigrateUp runs all pending migrations for the tables of one prefix.
func MigrateUp(pool *pgxpool.Pool, prefix string) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	m, err := newMigrate(db, prefix)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// CheckStatus verifies that the schema for prefix is at the latest version.
func CheckStatus(pool *pgxpool.Pool, prefix string) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	m, err := newMigrate(db, prefix)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("database has no schema version (needs migration)")
		}
		return fmt.Errorf("failed to get database version: %w", err)
	}

	if dirty {
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", version)
	}

	src, err := renderedSource(prefix)
	if err != nil {
		return err
	}
	defer src.Close()

	latest, err := latestVersion(src)
	if err != nil {
		return fmt.Errorf("failed to determine latest version: %w", err)
	}

	switch {
	case version < latest:
		return fmt.Errorf("database is at version %d but latest is %d", version, latest)
	case version > latest:
		return fmt.Errorf("database version %d is ahead of binary version %d", version, latest)
	}
	return nil
}

func newMigrate(db *sql.DB, prefix string) (*migrate.Migrate, error) {
	src, err := renderedSource(prefix)
	if err != nil {
		return nil, err
	}

	dbDriver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{
		MigrationsTable: prefix + "schema_migrations",
	})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", dbDriver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// renderedSource expands the table prefix in every migration file and
// serves the result to golang-migrate.
func renderedSource(prefix string) (source.Driver, error) {
	rendered, err := Render(prefix)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(rendered, "files")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}
	return src, nil
}

// Render returns the migration files with the table prefix applied
func Render(prefix string) (fs.FS, error) {
	entries, err := migrationFiles.ReadDir("files")
	if err != nil {
		return nil, fmt.Errorf("read migration files: %w", err)
	}

	out := fstest.MapFS{}
	data := struct{ Prefix string }{Prefix: prefix}
	for _, entry := range entries {
		name := path.Join("files", entry.Name())
		raw, err := migrationFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		tmpl, err := template.New(entry.Name()).Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		out[name] = &fstest.MapFile{Data: buf.Bytes(), Mode: 0444}
	}
	return out, nil
}

// latestVersion returns the highest version number available in the source.
func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			// Any error from Next means there are no more migrations
			break
		}
		version = next
	}
	return version, nil
}
