package database

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DBTX is the subset of *sql.DB and *sql.Tx the repositories need.
// Every repository accepts a DBTX so it can run inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenDB creates and configures a MySQL connection pool for the given DSN.
func OpenDB(dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Printf("Error connecting to database: %v", err)
		db.Close()
		return nil, err
	}

	log.Println("Database connection pool established successfully")
	return db, nil
}

// MySQL server error numbers the services react to.
const (
	ErrNumDuplicateEntry  = 1062
	ErrNumLockWaitTimeout = 1205
	ErrNumDeadlock        = 1213
)

// IsDuplicateKey reports whether err is a unique-key violation.
func IsDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == ErrNumDuplicateEntry
}

// IsLockConflict reports whether err is a deadlock or lock-wait timeout,
// both of which roll the transaction back and are safe to resubmit.
func IsLockConflict(err error) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == ErrNumDeadlock || myErr.Number == ErrNumLockWaitTimeout
}

// InPlaceholders returns "?, ?, ?" for n arguments.
func InPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}
