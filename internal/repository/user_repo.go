package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"qazbazaar/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository struct {
	DB *sql.DB
}

func (m *UserRepository) Insert(ctx context.Context, email, password, role string) (uuid.UUID, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return uuid.Nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	id := uuid.New()
	_, err = m.DB.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, role) VALUES ($1, $2, $3, $4)`,
		id, normalizeEmail(email), string(hashedPassword), role)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "users_email_key" {
			return uuid.Nil, models.ErrDuplicateEmail
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (m *UserRepository) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	var user models.User
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, `SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1`,
		normalizeEmail(email)).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, models.ErrInvalidCredentials
		}
		return models.User{}, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return models.User{}, models.ErrInvalidCredentials
		}
		return models.User{}, err
	}

	return user, nil
}

func (m *UserRepository) All(ctx context.Context) ([]*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, `SELECT id, email, role, created_at FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
