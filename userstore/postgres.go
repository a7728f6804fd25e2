package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/nutritrack/authcore/userstore/migrations"
)

const uniqueViolation = "23505"

// DBTX is the subset of *sql.DB and *sql.Tx used by Postgres.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres is a Store on PostgreSQL.
type Postgres struct {
	db DBTX
}

var _ Store = (*Postgres)(nil)

func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// Open connects with the pgx driver and pings the server.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return db, nil
}

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

const selectUser = `SELECT id, username, email, role, password_hash, created_at FROM users`

func (p *Postgres) FindByUID(ctx context.Context, uid string) (User, error) {
	return p.findOne(ctx, selectUser+` WHERE id = $1 AND active`, uid)
}

func (p *Postgres) FindByUsername(ctx context.Context, username string) (User, error) {
	return p.findOne(ctx, selectUser+` WHERE username = $1 AND active`, username)
}

func (p *Postgres) FindByEmail(ctx context.Context, email string) (User, error) {
	return p.findOne(ctx, selectUser+` WHERE email = $1 AND active`, strings.ToLower(email))
}

func (p *Postgres) UpdatePasswordHash(ctx context.Context, uid, hash string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, uid, hash)
	if err != nil {
		return fmt.Errorf("%w: db error: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: db error: %v", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, user User) (User, error) {
	user.Email = strings.ToLower(user.Email)
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (id, username, email, role, password_hash, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		user.UID, user.Username, user.Email, user.Role, user.PasswordHash, user.Active,
	).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("%w: db error: %v", ErrUnavailable, err)
	}
	return user, nil
}

func (p *Postgres) findOne(ctx context.Context, query string, arg string) (User, error) {
	var u User
	err := p.db.QueryRowContext(ctx, query, arg).
		Scan(&u.UID, &u.Username, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("%w: db error: %v", ErrUnavailable, err)
	}
	u.Active = true
	return u, nil
}
