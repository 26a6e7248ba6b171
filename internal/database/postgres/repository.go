package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/monetlink/monetlink/internal/database"
	"github.com/monetlink/monetlink/internal/models"
)

type userRecord struct {
	ID        int64          `db:"user_id"`
	Banned    bool           `db:"banned"`
	APIKey    sql.NullString `db:"api_key"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r *userRecord) ToUser() *models.User {
	return &models.User{
		ID:        r.ID,
		Banned:    r.Banned,
		APIKey:    r.APIKey.String,
		CreatedAt: r.CreatedAt,
	}
}

type linkRecord struct {
	ID        int64          `db:"id"`
	UserID    int64          `db:"user_id"`
	LongURL   string         `db:"long_url"`
	ShortURL  string         `db:"short_url"`
	Alias     sql.NullString `db:"alias"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r *linkRecord) ToLink() *models.Link {
	return &models.Link{
		ID:        r.ID,
		UserID:    r.UserID,
		LongURL:   r.LongURL,
		ShortURL:  r.ShortURL,
		Alias:     r.Alias.String,
		CreatedAt: r.CreatedAt,
	}
}

// Repository is the persistent record of users, ban state, per-user API
// keys and link history. Every write is a self-contained upsert or append,
// safe under concurrent batches.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// UpsertUser creates the user row on first interaction. Re-upserting an
// existing id is a no-op, preserving the original created_at.
func (r *Repository) UpsertUser(ctx context.Context, userID int64) error {
	const op = "database.postgres.Repository.UpsertUser"

	query := `INSERT INTO users (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: failed to upsert user: %w", op, err)
	}

	return nil
}

// GetUser retrieves a user by id.
func (r *Repository) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "database.postgres.Repository.GetUser"

	rec := new(userRecord)
	query := `SELECT * FROM users WHERE user_id = $1`

	err := r.db.GetContext(ctx, rec, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	return rec.ToUser(), nil
}

// IsBanned returns false for unknown users.
func (r *Repository) IsBanned(ctx context.Context, userID int64) (bool, error) {
	const op = "database.postgres.Repository.IsBanned"

	var banned bool
	query := `SELECT banned FROM users WHERE user_id = $1`

	err := r.db.GetContext(ctx, &banned, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("%s: failed to get ban state: %w", op, err)
	}

	return banned, nil
}

// SetBanned upserts the user with the given ban flag, creating the row if absent.
func (r *Repository) SetBanned(ctx context.Context, userID int64, banned bool) error {
	const op = "database.postgres.Repository.SetBanned"

	query := `INSERT INTO users (user_id, banned)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET banned = EXCLUDED.banned`

	if _, err := r.db.ExecContext(ctx, query, userID, banned); err != nil {
		return fmt.Errorf("%s: failed to set ban state: %w", op, err)
	}

	return nil
}

// SetAPIKey upserts the user with the per-user API key override.
func (r *Repository) SetAPIKey(ctx context.Context, userID int64, apiKey string) error {
	const op = "database.postgres.Repository.SetAPIKey"

	query := `INSERT INTO users (user_id, api_key)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET api_key = EXCLUDED.api_key`

	if _, err := r.db.ExecContext(ctx, query, userID, apiKey); err != nil {
		return fmt.Errorf("%s: failed to set api key: %w", op, err)
	}

	return nil
}

// GetAPIKey returns the user's API key override, or an empty string when
// the override is unset or the user is unknown.
func (r *Repository) GetAPIKey(ctx context.Context, userID int64) (string, error) {
	const op = "database.postgres.Repository.GetAPIKey"

	var apiKey sql.NullString
	query := `SELECT api_key FROM users WHERE user_id = $1`

	err := r.db.GetContext(ctx, &apiKey, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("%s: failed to get api key: %w", op, err)
	}

	return apiKey.String, nil
}

// RecordLink appends a link record for a successful shortening.
func (r *Repository) RecordLink(ctx context.Context, userID int64, longURL, shortURL, alias string) (*models.Link, error) {
	const op = "database.postgres.Repository.RecordLink"

	rec := new(linkRecord)
	query := `INSERT INTO links (user_id, long_url, short_url, alias)
		VALUES ($1, $2, $3, $4)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, userID, longURL, shortURL, toNullString(alias))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to record link: %w", op, err)
	}

	return rec.ToLink(), nil
}

// UserStats returns the user's link count and most recent shortening time.
func (r *Repository) UserStats(ctx context.Context, userID int64) (*models.UserStats, error) {
	const op = "database.postgres.Repository.UserStats"

	var row struct {
		Links int64        `db:"links"`
		Last  sql.NullTime `db:"last_created_at"`
	}
	query := `SELECT COUNT(*) AS links, MAX(created_at) AS last_created_at
		FROM links
		WHERE user_id = $1`

	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		return nil, fmt.Errorf("%s: failed to get user stats: %w", op, err)
	}

	stats := &models.UserStats{Links: row.Links}
	if row.Last.Valid {
		stats.LastShortenedAt = &row.Last.Time
	}

	return stats, nil
}

// GlobalStats returns the total link count and the number of distinct users.
func (r *Repository) GlobalStats(ctx context.Context) (*models.GlobalStats, error) {
	const op = "database.postgres.Repository.GlobalStats"

	var row struct {
		TotalLinks    int64 `db:"total_links"`
		DistinctUsers int64 `db:"distinct_users"`
	}
	query := `SELECT COUNT(*) AS total_links, COUNT(DISTINCT user_id) AS distinct_users
		FROM links`

	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("%s: failed to get global stats: %w", op, err)
	}

	return &models.GlobalStats{
		TotalLinks:    row.TotalLinks,
		DistinctUsers: row.DistinctUsers,
	}, nil
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
