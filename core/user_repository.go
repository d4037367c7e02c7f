package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRecord is the stored identity. The username column is encrypted at
// rest with pgcrypto; queries decrypt it with the configured key.
type UserRecord struct {
	ID           int64
	Username     string
	PasswordHash string
}

// ErrUsernameTaken is returned when registering an already-known username.
var ErrUsernameTaken = errors.New("username already registered")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	Create(ctx context.Context, username, passwordHash string) (int64, error)
}

// PgUserRepository implements UserRepository using pgxpool with
// pgp_sym_encrypt/pgp_sym_decrypt on the username column.
type PgUserRepository struct {
	db  *pgxpool.Pool
	key string
}

func NewPgUserRepository(db *pgxpool.Pool, encryptionKey string) *PgUserRepository {
	return &PgUserRepository{db: db, key: encryptionKey}
}

// FindByUsername decrypts usernames server-side to locate the row. Returns
// (nil, nil) when no user matches.
func (r *PgUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	const q = `SELECT id, pgp_sym_decrypt(username, $1), hashed_password
		FROM users WHERE pgp_sym_decrypt(username, $1) = $2`
	var u UserRecord
	if err := r.db.QueryRow(ctx, q, r.key, username).Scan(&u.ID, &u.Username, &u.PasswordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a user with an encrypted username and returns the new id.
func (r *PgUserRepository) Create(ctx context.Context, username, passwordHash string) (int64, error) {
	const q = `INSERT INTO users (username, hashed_password)
		VALUES (pgp_sym_encrypt($1, $2), $3) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, username, r.key, passwordHash).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// EnsureUserSchema creates the pgcrypto extension and users table if absent.
func EnsureUserSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pgcrypto`); err != nil {
		return err
	}
	const q = `CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username BYTEA NOT NULL,
		hashed_password TEXT NOT NULL
	)`
	_, err := db.Exec(ctx, q)
	return err
}
