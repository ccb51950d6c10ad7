package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"
	_ "modernc.org/sqlite"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/fs"
)

// Engines
const (
	EnginePostgres = "postgres" // lib/pq
	EnginePgx      = "pgx"      // jackc/pgx stdlib
	EngineSQLite   = "sqlite"   // modernc.org/sqlite
	EngineMemory   = "memory"   // storage/database/inmem, no SQL
)

const migrationsDir = "migrations"

func init() {
	sqlx.BindDriver(EngineSQLite, sqlx.QUESTION)
}

// IsSQL reports whether engine is backed by a SQL database.
func IsSQL(engine string) bool {
	switch engine {
	case EnginePostgres, EnginePgx, EngineSQLite:
		return true
	}
	return false
}

func postgresURL(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	switch engine := conf.Database.Engine; engine {
	case EnginePostgres, EnginePgx:
		return sqlx.Open(engine, postgresURL(dbName, admin, conf))
	case EngineSQLite:
		dsn := conf.Database.Path
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err := sqlx.Open(engine, dsn)
		if err != nil {
			return nil, err
		}
		// a ":memory:" DB only lives as long as its connection
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "enabling foreign keys")
		}
		return db, nil
	default:
		return nil, errors.Errorf("unsupported database engine %q", engine)
	}
}

// Open connects to the configured SQL database and waits for it to answer.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err := ping(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sqlx.DB, query string, args ...interface{}) (bool, error) {
	var found bool
	if err := db.Get(&found, db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return found, nil
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}
	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = ?", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := fmt.Sprintf("CREATE USER %q CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = ?", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %q", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the postgres app user and database. sqlite creates its file on open.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.Engine != EnginePostgres && conf.Database.Engine != EnginePgx {
		return nil
	}

	// connect as admin
	db, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()
	if err = ping(db.DB); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf); err != nil {
		return errors.Wrap(err, "creating app user")
	}

	// create DB as app user
	appDB, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	if err = createDB(appDB, conf); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

// dialect maps a driver to its goose dialect and migrations directory.
func dialect(driverName string) (gooseDialect, dir string, err error) {
	switch driverName {
	case EnginePostgres, EnginePgx:
		return "postgres", path.Join(migrationsDir, "postgres"), nil
	case EngineSQLite:
		return "sqlite3", path.Join(migrationsDir, "sqlite"), nil
	default:
		return "", "", errors.Errorf("no migrations for driver %q", driverName)
	}
}

var gooseRunFunc = goose.RunFS // mockable

// RunMigration runs a goose command (up, up-by-one, up-to V, down, down-to V, redo, status, version)
// over the embedded migrations of the DB's dialect.
func RunMigration(db *sqlx.DB, command string, args ...string) error {
	gooseDialect, dir, err := dialect(db.DriverName())
	if err != nil {
		return err
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	return gooseRunFunc(command, db.DB, appfs.FS, dir, args...)
}

// Migrate brings the schema up to date.
func Migrate(db *sqlx.DB) error {
	if err := RunMigration(db, "up"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
