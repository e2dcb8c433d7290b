package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	sqlInsertUser     = `INSERT INTO users(name, email, date) VALUES(?, ?, ?)`
	sqlSelectUserByID = `SELECT id, name, email, date FROM users WHERE id = ?`
	sqlSelectUsers    = `SELECT id, name, email, date FROM users ORDER BY id ASC`
	sqlUpdateUser     = `UPDATE users SET name = ?, email = ?, date = ? WHERE id = ?`
	sqlDeleteUser     = `DELETE FROM users WHERE id = ?`
)

type userRepository struct{}

var _ UserRepository = (*userRepository)(nil)

func (r *userRepository) Create(ctx context.Context, conn Conn, params UserParams) (User, error) {
	res, err := conn.ExecContext(ctx, sqlInsertUser, params.Name, params.Email, params.Date)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", classify(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("create user: last insert id: %w", err)
	}

	// Re-read so the response reflects exactly what the engine stored.
	return r.GetByID(ctx, conn, id)
}

func (r *userRepository) GetByID(ctx context.Context, conn Conn, id int64) (User, error) {
	row := conn.QueryRowContext(ctx, sqlSelectUserByID, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", classify(err))
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, conn Conn) ([]User, error) {
	rows, err := conn.QueryContext(ctx, sqlSelectUsers)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", classify(err))
	}
	defer rows.Close()

	// Initialized so an empty table serializes as [] rather than null.
	users := []User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: scan: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, conn Conn, id int64, params UserParams) (User, error) {
	res, err := conn.ExecContext(ctx, sqlUpdateUser, params.Name, params.Email, params.Date, id)
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", classify(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return User{}, fmt.Errorf("update user: rows affected: %w", err)
	}
	if affected == 0 {
		return User{}, ErrNotFound
	}

	return r.GetByID(ctx, conn, id)
}

func (r *userRepository) Delete(ctx context.Context, conn Conn, id int64) error {
	res, err := conn.ExecContext(ctx, sqlDeleteUser, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", classify(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type userScanner interface {
	Scan(dest ...any) error
}

func scanUser(s userScanner) (User, error) {
	var user User
	if err := s.Scan(&user.ID, &user.Name, &user.Email, &user.Date); err != nil {
		return User{}, err
	}
	return user, nil
}
