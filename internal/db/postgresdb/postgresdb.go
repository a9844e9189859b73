// Package postgresdb provides a PostgreSQL-based implementation of the storage interface
// for persisting users, sessions and password entries.
// Every entry query is filtered by the owner's user ID.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/securevault/internal/db/migrations"
	"github.com/patric-chuzhbe/securevault/internal/models"
	"github.com/patric-chuzhbe/securevault/internal/user"
)

const (
	uniqueViolationCode   = "23505"
	invalidTextRepresCode = "22P02"
)

// PostgresDB is a PostgreSQL-backed implementation of the vault storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables dropping every table before migration.
// It can be used for test setups or development purposes.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs the embedded schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := newFromDB(database, connectionTimeout)

	if err := result.Ping(ctx); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `result.Ping()` calling: %w",
				err,
			)
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	goose.SetBaseFS(migrations.Postgres)

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.UpContext(ctx, result.database, "postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.UpContext()` calling: %w",
				err,
			)
	}

	return result, nil
}

func newFromDB(database *sql.DB, connectionTimeout time.Duration) *PostgresDB {
	return &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// isMalformedID reports an id that PostgreSQL could not read as a UUID.
func isMalformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresCode
}

// CreateUser inserts a new user record.
// Returns models.ErrEmailTaken when the email is already registered.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		usr.ID,
		usr.Email,
		usr.PasswordHash,
		usr.CreatedAt,
	)
	if isUniqueViolation(err) {
		return models.ErrEmailTaken
	}

	return err
}

func (db *PostgresDB) getUser(ctx context.Context, query string, arg string) (*user.User, error) {
	row := db.database.QueryRowContext(ctx, query, arg)

	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Email, &usr.PasswordHash, &usr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}

	return usr, nil
}

// GetUserByID fetches a user by their UUID.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	return db.getUser(
		ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = $1`,
		userID,
	)
}

// GetUserByEmail fetches a user by the normalized email.
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return db.getUser(
		ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	)
}

// CreateSession stores a new session.
func (db *PostgresDB) CreateSession(ctx context.Context, session *models.Session) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		session.ID,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt,
	)

	return err
}

// GetSession fetches a session by ID, expired or not.
func (db *PostgresDB) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = $1`,
		sessionID,
	)

	session := &models.Session{}
	err := row.Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSessionNotFound
		}
		return nil, err
	}

	return session, nil
}

// DeleteSession removes a session; deleting a missing session is not an error.
func (db *PostgresDB) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := db.database.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)

	return err
}

// DeleteExpiredSessions removes the sessions expiring at or before now and returns their IDs.
func (db *PostgresDB) DeleteExpiredSessions(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`DELETE FROM sessions WHERE expires_at <= $1 RETURNING id`,
		now,
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

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListEntries returns the user's password entries, newest first.
func (db *PostgresDB) ListEntries(ctx context.Context, userID string) (models.PasswordEntries, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, user_id, website, username, password, created_at
				FROM passwords
				WHERE user_id = $1
				ORDER BY created_at DESC
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
		err = rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Website,
			&entry.Username,
			&entry.Password,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		result = append(result, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// InsertEntry stores a new password entry.
func (db *PostgresDB) InsertEntry(ctx context.Context, entry *models.PasswordEntry) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO passwords (id, user_id, website, username, password, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
		`,
		entry.ID,
		entry.UserID,
		entry.Website,
		entry.Username,
		entry.Password,
		entry.CreatedAt,
	)

	return err
}

// DeleteEntry removes the entry only when it belongs to userID.
func (db *PostgresDB) DeleteEntry(ctx context.Context, userID, entryID string) (bool, error) {
	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM passwords WHERE id = $1 AND user_id = $2`,
		entryID,
		userID,
	)
	if isMalformedID(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// GetNumberOfUsers returns the count of registered users.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM users`)
}

// GetNumberOfEntries returns the count of stored password entries.
func (db *PostgresDB) GetNumberOfEntries(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM passwords`)
}

func (db *PostgresDB) count(ctx context.Context, query string) (int64, error) {
	var result int64
	err := db.database.QueryRowContext(ctx, query).Scan(&result)
	if err != nil {
		return 0, err
	}

	return result, nil
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}
