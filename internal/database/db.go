// Package database opens the relational store and applies its schema.
//
// Two drivers are supported. SQLite (the default) runs in WAL mode with
// immediate transactions and a single connection, which gives the
// single-writer serialization the ledger relies on. MySQL is available for
// deployments that already operate a server.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/coastie-uk/convention-auction/internal/config"
)

// Dialect identifies the SQL flavour behind a *sql.DB.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite3"
	DialectMySQL  Dialect = "mysql"
)

// Open connects using the configured driver, verifies the connection and
// migrates the schema.
func Open(ctx context.Context, c config.DBConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch Dialect(c.Driver) {
	case DialectSQLite:
		db, err = OpenSQLite(ctx, c.Path)
	case DialectMySQL:
		db, err = OpenMySQL(ctx, c.User, c.Pass, c.Host, c.Port, c.Name)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", c.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", path)
	db, err := sql.Open(string(DialectSQLite), dsn)
	if err != nil {
		return nil, err
	}
	// one writer at a time; a second connection would only ever wait on the lock
	db.SetMaxOpenConns(1)
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(ctx context.Context, user, pass, host, port, name string) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.User = user
	mc.Passwd = pass
	mc.Net = "tcp"
	mc.Addr = host + ":" + port
	mc.DBName = name
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	mc.ParseTime = true
	mc.Loc = time.UTC
	// report matched rather than changed rows so conditional updates agree with SQLite
	mc.ClientFoundRows = true
	mc.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open(string(DialectMySQL), mc.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// DialectOf reports which driver backs db.
func DialectOf(db *sql.DB) Dialect {
	switch db.Driver().(type) {
	case *mysql.MySQLDriver:
		return DialectMySQL
	case *sqlite3.SQLiteDriver:
		return DialectSQLite
	}
	return DialectSQLite
}

// IsUniqueViolation reports whether err is a uniqueness or primary key
// constraint failure from either driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
