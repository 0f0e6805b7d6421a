// Package accounts reads newsletter subscribers from the accounts database.
package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/shDupont/merculy/internal/models"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// Schema creates the users table when missing.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id                TEXT PRIMARY KEY,
    email             TEXT NOT NULL UNIQUE,
    name              TEXT NOT NULL DEFAULT '',
    interests         TEXT NOT NULL DEFAULT '[]',
    followed_channels TEXT NOT NULL DEFAULT '[]',
    newsletter_format TEXT NOT NULL DEFAULT 'single',
    is_active         INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_users_active ON users(is_active);
`

var userColumns = []string{"id", "email", "name", "interests", "followed_channels", "newsletter_format", "is_active"}

// Store queries users through squirrel-built statements.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database at dsn and applies Schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open accounts db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping accounts db: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create accounts schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetUser loads a single user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	query, args, err := sq.Select(userColumns...).From("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("build user query: %w", err)
	}

	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// ListActiveUsers returns every active user ordered by ID.
func (s *Store) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	query, args, err := sq.Select(userColumns...).From("users").
		Where(sq.Eq{"is_active": 1}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build users query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return users, nil
}

// SaveUser inserts or replaces a user.
func (s *Store) SaveUser(ctx context.Context, u models.User) error {
	if strings.TrimSpace(u.ID) == "" || strings.TrimSpace(u.Email) == "" {
		return errors.New("user id and email are required")
	}
	interests, err := json.Marshal(nonNil(u.Interests))
	if err != nil {
		return fmt.Errorf("encode interests: %w", err)
	}
	channels, err := json.Marshal(nonNil(u.FollowedChannels))
	if err != nil {
		return fmt.Errorf("encode channels: %w", err)
	}
	format := u.NewsletterFormat
	if format == "" {
		format = models.FormatSingle
	}

	query, args, err := sq.Insert("users").
		Columns(userColumns...).
		Values(u.ID, u.Email, u.Name, string(interests), string(channels), format, boolToInt(u.Active)).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			interests = excluded.interests,
			followed_channels = excluded.followed_channels,
			newsletter_format = excluded.newsletter_format,
			is_active = excluded.is_active`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		u                   models.User
		interests, channels string
		active              int
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &interests, &channels, &u.NewsletterFormat, &active); err != nil {
		return models.User{}, err
	}
	u.Active = active != 0
	u.Interests = decodeList(interests)
	u.FollowedChannels = decodeList(channels)
	return u, nil
}

// decodeList accepts a JSON array or, for hand-edited rows, a comma separated list.
func decodeList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out
	}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
