package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsersTable holds the global identity records. A user exists once per person
// across the whole system and may belong to any number of tenants through
// memberships; the table is therefore deliberately outside the scoped layer.
const UsersTable = "users"

// UserRecord represents a row in the users table.
type UserRecord struct {
	UserID        uuid.UUID `db:"user_id"`
	Email         string    `db:"email"`
	FullName      string    `db:"full_name"`
	CredentialRef string    `db:"credential_ref"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// UserStore exposes persistence helpers for the users table.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore returns a store; assumes ApplyCoreSchema already ran.
func NewUserStore(pool *pgxpool.Pool) (*UserStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &UserStore{pool: pool}, nil
}

const userColumns = "user_id, email, full_name, credential_ref, created_at, updated_at"

// CreateUserParams captures the fields required to insert a new user record.
type CreateUserParams struct {
	UserID        uuid.UUID
	Email         string
	FullName      string
	CredentialRef string
}

// Create inserts a new user. A duplicate email is ErrConflict.
func (s *UserStore) Create(ctx context.Context, params CreateUserParams) (UserRecord, error) {
	if params.UserID == uuid.Nil {
		return UserRecord{}, errors.New("user id is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (user_id, email, full_name, credential_ref)
        VALUES ($1, $2, $3, $4)
        RETURNING %s
    `, UsersTable, userColumns)

	row := s.pool.QueryRow(ctx, query, params.UserID, strings.ToLower(params.Email), params.FullName, params.CredentialRef)
	rec, err := scanUserRecord(row)
	if err != nil {
		if isUniqueViolation(err) {
			return UserRecord{}, ErrConflict
		}
		return UserRecord{}, fmt.Errorf("insert user: %w", err)
	}
	return rec, nil
}

// GetByID fetches a user by id.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (UserRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1`, userColumns, UsersTable)
	return scanUserRecord(s.pool.QueryRow(ctx, query, id))
}

// GetByEmail fetches a user by email (case-insensitive).
func (s *UserStore) GetByEmail(ctx context.Context, email string) (UserRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1`, userColumns, UsersTable)
	return scanUserRecord(s.pool.QueryRow(ctx, query, strings.ToLower(email)))
}

// GetByIDs fetches users in bulk, keyed by id. Missing ids are simply absent.
func (s *UserStore) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]UserRecord, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]UserRecord{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = ANY($1)`, userColumns, UsersTable)
	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]UserRecord, len(ids))
	for rows.Next() {
		rec, err := scanUserRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.UserID] = rec
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanUserRecord(row pgx.Row) (UserRecord, error) {
	var rec UserRecord
	if err := row.Scan(&rec.UserID, &rec.Email, &rec.FullName, &rec.CredentialRef, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrNotFound
		}
		return UserRecord{}, err
	}
	return rec, nil
}
