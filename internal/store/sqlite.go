package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"hr_assistant_bot/internal/domain"
)

const sqliteDriver = "sqlite3"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id INTEGER NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		handle TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS applications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		position TEXT NOT NULL,
		salary INTEGER NOT NULL CHECK (salary >= 0),
		region TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id)
	)`,
}

// SQLite is the local storage backend holding the users and applications
// tables. It satisfies domain.UserStore and domain.ApplicationStore.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps writes serialized and lets :memory: survive
	// across calls.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &SQLite{conn: conn}
	if err := db.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *SQLite) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	return nil
}

// Ping checks the database handle is usable.
func (db *SQLite) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if db == nil || db.conn == nil {
		return errors.New("sqlite store is not initialized")
	}

	return db.conn.PingContext(ctx)
}

// Close releases the database handle.
func (db *SQLite) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// CreateUser inserts a user row; a taken external_id yields domain.ErrUserExists.
func (db *SQLite) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ExternalID == 0 {
		return domain.User{}, errors.New("external_id is required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (external_id, first_name, last_name, handle, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ExternalID, user.FirstName, user.LastName, user.Handle, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrUserExists
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("read user id: %w", err)
	}
	user.ID = id

	return user, nil
}

// GetUserByExternalID fetches a user by Telegram user id.
func (db *SQLite) GetUserByExternalID(ctx context.Context, externalID int64) (domain.User, error) {
	var user domain.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, external_id, first_name, last_name, handle, created_at FROM users WHERE external_id = ?`,
		externalID,
	).Scan(&user.ID, &user.ExternalID, &user.FirstName, &user.LastName, &user.Handle, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}

	return user, nil
}

// CountUsers returns the number of user rows.
func (db *SQLite) CountUsers(ctx context.Context) (int64, error) {
	return db.count(ctx, "users")
}

// CreateApplication inserts an application row for app.UserID.
func (db *SQLite) CreateApplication(ctx context.Context, app domain.Application) (domain.Application, error) {
	if app.UserID == 0 {
		return domain.Application{}, errors.New("user_id is required")
	}
	if app.Salary < 0 {
		return domain.Application{}, errors.New("salary must not be negative")
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO applications (user_id, position, salary, region, created_at) VALUES (?, ?, ?, ?, ?)`,
		app.UserID, app.Position, app.Salary, app.Region, app.CreatedAt,
	)
	if err != nil {
		return domain.Application{}, fmt.Errorf("insert application: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Application{}, fmt.Errorf("read application id: %w", err)
	}
	app.ID = id

	return app, nil
}

// ListApplications returns every application in insertion order.
func (db *SQLite) ListApplications(ctx context.Context) ([]domain.Application, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, position, salary, region, created_at FROM applications ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	apps := make([]domain.Application, 0)
	for rows.Next() {
		var app domain.Application
		if err := rows.Scan(&app.ID, &app.UserID, &app.Position, &app.Salary, &app.Region, &app.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}

	return apps, nil
}

// DeleteAllApplications removes every application row.
func (db *SQLite) DeleteAllApplications(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM applications`)
	if err != nil {
		return 0, fmt.Errorf("delete applications: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read deleted count: %w", err)
	}
	return deleted, nil
}

// CountApplications returns the number of application rows.
func (db *SQLite) CountApplications(ctx context.Context) (int64, error) {
	return db.count(ctx, "applications")
}

// table is always one of the schema's constant names.
func (db *SQLite) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
