package infra

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// OpenDB opens and pings the store. driver is "postgres" or "sqlite".
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch driver {
	case "postgres":
		db, err = sql.Open("postgres", dsn)
	case "sqlite":
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err == nil {
			// one writer, no SQLITE_BUSY between our own connections
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqlitePragmas
	}
	return path + "?" + sqlitePragmas
}

// Migrate applies the embedded migrations for driver.
func Migrate(ctx context.Context, db *sql.DB, driver string, log *zap.SugaredLogger) (err error) {
	sub, err := fs.Sub(migrationsFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("migrations for %s: %w", driver, err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	defer func() {
		if closeErr := source.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close migration source: %w", closeErr)
		}
	}()

	var dbDriver database.Driver

	switch driver {
	case "postgres":
		conn, connErr := db.Conn(ctx)
		if connErr != nil {
			return fmt.Errorf("acquire dedicated connection: %w", connErr)
		}
		dbDriver, err = postgres.WithConnection(ctx, conn, &postgres.Config{
			MigrationsTable: "schema_migrations",
		})
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("initialize postgres driver: %w", err)
		}
		// closes the dedicated connection only
		defer dbDriver.Close()
	case "sqlite":
		// the sqlite driver closes the *sql.DB on Close, so it is left open
		dbDriver, err = sqlite.WithInstance(db, &sqlite.Config{
			MigrationsTable: "schema_migrations",
		})
		if err != nil {
			return fmt.Errorf("initialize sqlite driver: %w", err)
		}
	default:
		return fmt.Errorf("unknown db driver %q", driver)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	version, dirty, verErr := m.Version()
	switch {
	case errors.Is(verErr, migrate.ErrNilVersion):
		log.Infow("no migrations applied yet", "driver", driver)
	case verErr != nil:
		log.Warnw("migration version unknown", "driver", driver, "error", verErr)
	default:
		log.Infow("current migration state", "driver", driver, "version", version, "dirty", dirty)
	}

	if dirty {
		log.Warnw("database is dirty, forcing version", "version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	if v, _, err := m.Version(); err == nil {
		log.Infow("migrations applied", "driver", driver, "version", v)
	}
	return nil
}
