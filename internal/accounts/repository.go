package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turfbook/turfbook/internal/identity"
)

// ErrNotFound is returned when no account matches.
var ErrNotFound = errors.New("account not found")

// Repository persists accounts.
type Repository interface {
	Create(ctx context.Context, account Account) error
	FindByPhone(ctx context.Context, phone string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	UpdateName(ctx context.Context, id, name string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Schema creates the accounts table when missing.
const Schema = `CREATE TABLE IF NOT EXISTS accounts (
    id         UUID PRIMARY KEY,
    phone      TEXT NOT NULL UNIQUE,
    name       TEXT NOT NULL DEFAULT '',
    role       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    last_login TIMESTAMPTZ
)`

// Migrate applies Schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, Schema)
	return err
}

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	accountID, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO accounts (id, phone, name, role, created_at)
        VALUES ($1, $2, $3, $4, $5)`, accountID, account.Phone, account.Name, string(account.Role), account.CreatedAt.UTC())
	return err
}

// FindByPhone fetches an account by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Account, error) {
	return r.findOne(ctx, `SELECT id, phone, name, role, created_at, last_login FROM accounts WHERE phone = $1`, phone)
}

// FindByID fetches an account by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	return r.findOne(ctx, `SELECT id, phone, name, role, created_at, last_login FROM accounts WHERE id = $1`, accountID)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (Account, error) {
	row := r.db.QueryRow(ctx, query, arg)
	var (
		id        uuid.UUID
		role      string
		createdAt time.Time
		lastLogin *time.Time
		account   Account
	)
	if err := row.Scan(&id, &account.Phone, &account.Name, &role, &createdAt, &lastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	account.ID = id.String()
	account.Role = identity.Role(role)
	account.CreatedAt = createdAt.UTC()
	if lastLogin != nil {
		account.LastLogin = lastLogin.UTC()
	}
	return account, nil
}

// UpdateName stores the account's display name.
func (r *PostgresRepository) UpdateName(ctx context.Context, id, name string) error {
	return r.update(ctx, `UPDATE accounts SET name = $1 WHERE id = $2`, name, id)
}

// TouchLogin records the time of the latest successful verification.
func (r *PostgresRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, `UPDATE accounts SET last_login = $1 WHERE id = $2`, at.UTC(), id)
}

func (r *PostgresRepository) update(ctx context.Context, query string, value any, id string) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, query, value, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
