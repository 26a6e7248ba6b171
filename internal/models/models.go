package models

import "time"

// User represents a chat user known to the bot. The identity is assigned
// by the chat platform; the service never generates user ids itself.
type User struct {
	// ID is the platform-assigned numeric user id.
	ID int64
	// Banned reports whether the user is blocked from shortening links.
	Banned bool
	// APIKey is the per-user shortening-service credential. When set, it
	// replaces the service-wide default key for this user's requests.
	APIKey string
	// CreatedAt is the timestamp of the user's first interaction.
	CreatedAt time.Time
}

// Link represents one successfully shortened URL. Records are append-only
// and immutable once created.
type Link struct {
	// ID is the unique identifier of the link record.
	ID int64
	// UserID is the id of the user who requested the shortening.
	UserID int64
	// LongURL is the original, full-length URL.
	LongURL string
	// ShortURL is the monetized redirect URL returned by the shortening service.
	ShortURL string
	// Alias is the optional custom alias requested for the short link.
	Alias string
	// CreatedAt is the timestamp indicating when the link was shortened.
	CreatedAt time.Time
}

// UserStats summarizes one user's shortening history. Only successful
// shortenings are counted.
type UserStats struct {
	// Links is the number of links the user has shortened.
	Links int64
	// LastShortenedAt is the timestamp of the most recent shortening,
	// or nil when the user has no links yet.
	LastShortenedAt *time.Time
}

// GlobalStats summarizes shortening activity across all users.
type GlobalStats struct {
	// TotalLinks is the total number of shortened links.
	TotalLinks int64
	// DistinctUsers is the number of users with at least one link.
	DistinctUsers int64
}
