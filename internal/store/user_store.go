package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

const userColumns = "id, username, password_hash, token, created_at"

// CreateUser adds a user with an already hashed password and an API token.
func (s *Store) CreateUser(username, passwordHash, token string) (*models.User, error) {
	now := time.Now()
	query := "INSERT INTO users (username, password_hash, token, created_at) VALUES (?, ?, ?, ?)"
	res, err := s.db.Exec(query, username, passwordHash, token, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.username") {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	id, _ := res.LastInsertId()
	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Token:        token,
		CreatedAt:    now,
	}, nil
}

// GetUserByUsername retrieves a user by their unique username.
func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	return s.getUser("SELECT "+userColumns+" FROM users WHERE username = ?", username)
}

// GetUserByToken retrieves the user owning an API token.
func (s *Store) GetUserByToken(token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUserNotFound
	}
	return s.getUser("SELECT "+userColumns+" FROM users WHERE token = ?", token)
}

func (s *Store) getUser(query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(query, arg).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Token, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
