package sqlmigration

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/tql"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Ledger returns the service's own migrations.
func Ledger() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type Migration struct {
	ID         int    `db:"id"`
	Version    int    `db:"version"`
	Name       string `db:"name"`
	UpScript   string `db:"-"`
	DownScript string `db:"-"`
}

// Load reads migrations from the root of fsys. Files are named
// <version>.<name>.up.sql and <version>.<name>.down.sql; every version
// needs both.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]Migration)

	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		parts := strings.Split(entry.Name(), ".")
		if len(parts) != 4 {
			continue
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid migration version in %s: %w", entry.Name(), err)
		}

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, err
		}

		m := byVersion[version]
		if m.Name != "" && m.Name != parts[1] {
			return nil, fmt.Errorf("migration %d has two names: %s and %s", version, m.Name, parts[1])
		}
		m.Version = version
		m.Name = parts[1]

		switch parts[2] {
		case "up":
			m.UpScript = string(content)
		case "down":
			m.DownScript = string(content)
		default:
			return nil, fmt.Errorf("unrecognized script type: %s", parts[2])
		}

		byVersion[version] = m
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpScript == "" {
			return nil, fmt.Errorf("failed to find 'up' script for %s", m.Name)
		}
		if m.DownScript == "" {
			return nil, fmt.Errorf("failed to find 'down' script for %s", m.Name)
		}
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// Run applies every migration in fsys newer than the last applied one,
// each in its own serializable transaction. When one fails, the ones
// applied by this call are reverted.
func Run(ctx context.Context, db *sql.DB, fsys fs.FS) (applied int, err error) {
	migrations, err := Load(fsys)
	if err != nil {
		return 0, err
	}

	if len(migrations) == 0 {
		return 0, nil
	}

	if err := ensureMigrationsSchema(ctx, db); err != nil {
		return 0, err
	}

	const q = `
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migration;`
	lastApplied, err := tql.QueryFirst[int](ctx, db, q)
	if err != nil {
		return 0, err
	}

	var newlyApplied []Migration
	for _, migration := range migrations {
		if migration.Version <= lastApplied {
			continue
		}

		err := core.Tx(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			if _, err := tql.Exec(ctx, tx, migration.UpScript); err != nil {
				return fmt.Errorf("migration %d.%s: %w", migration.Version, migration.Name, err)
			}

			const stmt = `
				INSERT INTO
				schema_migration (version, name)
				VALUES ($1, $2);`
			_, err := tql.Exec(ctx, tx, stmt, migration.Version, migration.Name)
			return err
		}, core.WithIsolationLevel(sql.LevelSerializable))
		if err != nil {
			if revertErr := revert(ctx, db, newlyApplied); revertErr != nil {
				return 0, fmt.Errorf("%s: %w", revertErr.Error(), err)
			}
			return 0, err
		}

		newlyApplied = append(newlyApplied, migration)
	}

	return len(newlyApplied), nil
}

func revert(ctx context.Context, db *sql.DB, applied []Migration) error {
	for i := len(applied) - 1; i >= 0; i-- {
		migration := applied[i]

		err := core.Tx(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			if _, err := tql.Exec(ctx, tx, migration.DownScript); err != nil {
				return err
			}

			_, err := tql.Exec(ctx, tx, `DELETE FROM schema_migration WHERE version = $1`, migration.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to revert migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func ensureMigrationsSchema(ctx context.Context, db *sql.DB) error {
	const stmt = `
		CREATE TABLE IF NOT EXISTS schema_migration (
			id serial PRIMARY KEY,
			name text NOT NULL,
			version integer NOT NULL UNIQUE
		);`

	_, err := tql.Exec(ctx, db, stmt)
	return err
}
