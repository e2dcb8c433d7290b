package storage

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrNotFound   = errors.New("storage: user not found")
	ErrEmailTaken = errors.New("storage: email already in use")
	ErrBusy       = errors.New("storage: database busy")
)

// User is one stored record. Date is YYYY-MM-DD text kept verbatim; the
// storage layer performs no calendar validation.
type User struct {
	ID    int64
	Name  string
	Email string
	Date  string
}

// UserParams carries the caller-supplied fields for Create and Update.
// Update replaces every field; there is no partial patch.
type UserParams struct {
	Name  string
	Email string
	Date  string
}

// Conn is the subset of database/sql behavior the repository needs. Both
// *sql.DB and *sql.Conn satisfy it, so operations run the same over a
// pooled handle or a dedicated per-request one.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type UserRepository interface {
	Create(ctx context.Context, conn Conn, params UserParams) (User, error)
	GetByID(ctx context.Context, conn Conn, id int64) (User, error)
	List(ctx context.Context, conn Conn) ([]User, error)
	Update(ctx context.Context, conn Conn, id int64, params UserParams) (User, error)
	Delete(ctx context.Context, conn Conn, id int64) error
}
