package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

func (db *DB) CreateUser(username string) (*User, error) {
	id := NewID()
	_, err := db.Exec(`
		INSERT INTO users (id, username)
		VALUES (?, ?)`, id, username)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &User{
		ID:        id,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (db *DB) GetUserByUsername(username string) (*User, error) {
	u := &User{}
	var lastSeen sql.NullTime
	err := db.QueryRow(`
		SELECT id, username, created_at, last_seen_at
		FROM users WHERE username = ?`, username).Scan(
		&u.ID, &u.Username, &u.CreatedAt, &lastSeen)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		u.LastSeenAt = &lastSeen.Time
	}
	return u, nil
}

func (db *DB) GetUserByID(id string) (*User, error) {
	u := &User{}
	var lastSeen sql.NullTime
	err := db.QueryRow(`
		SELECT id, username, created_at, last_seen_at
		FROM users WHERE id = ?`, id).Scan(
		&u.ID, &u.Username, &u.CreatedAt, &lastSeen)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		u.LastSeenAt = &lastSeen.Time
	}
	return u, nil
}

// GetOrCreateUser looks a user up by username and creates the row on first
// login. Usernames are case-sensitive. A UNIQUE failure on insert means a
// concurrent login won the race; the existing row is returned instead.
func (db *DB) GetOrCreateUser(username string) (*User, error) {
	u, err := db.GetUserByUsername(username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	u, err = db.CreateUser(username)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return db.GetUserByUsername(username)
		}
		return nil, err
	}
	return u, nil
}

// TouchLastSeen updates the user's last_seen_at timestamp.
func (db *DB) TouchLastSeen(userID string) error {
	_, err := db.Exec("UPDATE users SET last_seen_at = datetime('now') WHERE id = ?", userID)
	return err
}
