// Package sqlitedb stores users, sessions and password entries in a single
// SQLite database file using the pure Go modernc.org/sqlite driver.
// Timestamps are kept as Unix nanoseconds so that ordering is exact.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/patric-chuzhbe/securevault/internal/db/migrations"
	"github.com/patric-chuzhbe/securevault/internal/models"
	"github.com/patric-chuzhbe/securevault/internal/user"
)

type SQLiteDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

// New opens the database at dsn (a file path or ":memory:") and applies
// the embedded migrations.
func New(ctx context.Context, dsn string, connectionTimeout time.Duration) (*SQLiteDB, error) {
	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// A single connection serializes writers and keeps ":memory:"
	// databases from being split across pool connections.
	database.SetMaxOpenConns(1)

	if _, err := database.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/New(): error while enabling foreign keys: %w", err)
	}

	goose.SetBaseFS(migrations.SQLite)

	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/New(): error while `goose.SetDialect()` calling: %w", err)
	}

	if err := goose.UpContext(ctx, database, "sqlite"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/New(): error while `goose.UpContext()` calling: %w", err)
	}

	return &SQLiteDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func (db *SQLiteDB) CreateUser(ctx context.Context, usr *user.User) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		usr.ID,
		usr.Email,
		usr.PasswordHash,
		toUnix(usr.CreatedAt),
	)
	if isUniqueViolation(err) {
		return models.ErrEmailTaken
	}

	return err
}

func (db *SQLiteDB) getUser(ctx context.Context, query string, arg string) (*user.User, error) {
	usr := &user.User{}
	var createdAt int64
	err := db.database.QueryRowContext(ctx, query, arg).Scan(&usr.ID, &usr.Email, &usr.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	usr.CreatedAt = fromUnix(createdAt)

	return usr, nil
}

func (db *SQLiteDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	return db.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, userID)
}

func (db *SQLiteDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return db.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email)
}

func (db *SQLiteDB) CreateSession(ctx context.Context, session *models.Session) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		toUnix(session.CreatedAt),
		toUnix(session.ExpiresAt),
	)

	return err
}

func (db *SQLiteDB) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session := &models.Session{}
	var createdAt, expiresAt int64
	err := db.database.QueryRowContext(
		ctx,
		`SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&session.ID, &session.UserID, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSessionNotFound
		}
		return nil, err
	}
	session.CreatedAt = fromUnix(createdAt)
	session.ExpiresAt = fromUnix(expiresAt)

	return session, nil
}

func (db *SQLiteDB) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := db.database.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)

	return err
}

func (db *SQLiteDB) DeleteExpiredSessions(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`DELETE FROM sessions WHERE expires_at <= ? RETURNING id`,
		toUnix(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}

	return result, rows.Err()
}

func (db *SQLiteDB) ListEntries(ctx context.Context, userID string) (models.PasswordEntries, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, user_id, website, username, password, created_at
				FROM passwords
				WHERE user_id = ?
				ORDER BY created_at DESC, rowid DESC
		`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := models.PasswordEntries{}
	for rows.Next() {
		var entry models.PasswordEntry
		var createdAt int64
		err = rows.Scan(&entry.ID, &entry.UserID, &entry.Website, &entry.Username, &entry.Password, &createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = fromUnix(createdAt)
		result = append(result, entry)
	}

	return result, rows.Err()
}

func (db *SQLiteDB) InsertEntry(ctx context.Context, entry *models.PasswordEntry) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO passwords (id, user_id, website, username, password, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Website,
		entry.Username,
		entry.Password,
		toUnix(entry.CreatedAt),
	)

	return err
}

func (db *SQLiteDB) DeleteEntry(ctx context.Context, userID, entryID string) (bool, error) {
	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM passwords WHERE id = ? AND user_id = ?`,
		entryID,
		userID,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (db *SQLiteDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	var result int64
	err := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&result)

	return result, err
}

func (db *SQLiteDB) GetNumberOfEntries(ctx context.Context) (int64, error) {
	var result int64
	err := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM passwords`).Scan(&result)

	return result, err
}

func (db *SQLiteDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

func (db *SQLiteDB) Close() error {
	return db.database.Close()
}
