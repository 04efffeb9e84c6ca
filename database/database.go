package database

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/mbolis/survey-intake/config"
)

const (
	SQLite = "sqlite3"
	MySQL  = "mysql"
)

// Open connects to the database named by cfg.DBUrl and brings its schema up
// to date. A "mysql://" prefix selects MySQL, anything else is a SQLite file.
func Open(cfg config.Config) (db *sql.DB, err error) {
	driver, dsn, err := parseURL(cfg.DBUrl)
	if err != nil {
		return
	}

	db, err = sql.Open(driver, dsn)
	if err != nil {
		return
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db, driver)
	if err != nil {
		db.Close()
		return
	}

	return
}

func parseURL(url string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "mysql://"):
		var mc *mysql.Config
		mc, err = mysql.ParseDSN(strings.TrimPrefix(url, "mysql://"))
		if err != nil {
			return
		}
		mc.ParseTime = true
		mc.MultiStatements = true // migrations hold several statements
		if mc.Loc == nil {
			mc.Loc = time.UTC
		}
		return MySQL, mc.FormatDSN(), nil

	default:
		path := strings.TrimPrefix(url, "sqlite3://")
		if path == "" {
			err = errors.New("empty sqlite database path")
			return
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		// set per connection, so every pooled connection enforces foreign keys.
		// Transactions take the write lock on BEGIN and wait for it up to the busy
		// timeout: a read-then-write transaction cannot deadlock against another.
		return SQLite, path + sep + "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", nil
	}
}

// IsIntegrityError reports whether err is a constraint violation raised by
// one of the supported drivers: unique, not null, foreign key or check.
func IsIntegrityError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1048, // ER_BAD_NULL_ERROR
			1062, // ER_DUP_ENTRY
			1451, // ER_ROW_IS_REFERENCED_2
			1452, // ER_NO_REFERENCED_ROW_2
			3819: // ER_CHECK_CONSTRAINT_VIOLATED
			return true
		}
	}
	return false
}
