// Package service implements the link-shortening request pipeline: admission
// control, domain policy, per-URL shortening and outcome recording.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/monetlink/monetlink/internal/models"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const batchIDLength = 8

// Storage defines the persistence operations the pipeline needs.
type Storage interface {
	// UpsertUser creates the user row if absent; a no-op otherwise.
	UpsertUser(ctx context.Context, userID int64) error

	// GetUser retrieves a user by id.
	GetUser(ctx context.Context, userID int64) (*models.User, error)

	// IsBanned reports the user's ban state; false for unknown users.
	IsBanned(ctx context.Context, userID int64) (bool, error)

	// SetBanned upserts the user with the given ban flag.
	SetBanned(ctx context.Context, userID int64, banned bool) error

	// SetAPIKey upserts the user with the per-user API key override.
	SetAPIKey(ctx context.Context, userID int64, apiKey string) error

	// GetAPIKey returns the user's API key override, empty when unset.
	GetAPIKey(ctx context.Context, userID int64) (string, error)

	// RecordLink appends a link record for a successful shortening.
	RecordLink(ctx context.Context, userID int64, longURL, shortURL, alias string) (*models.Link, error)

	// UserStats returns the user's link count and last shortening time.
	UserStats(ctx context.Context, userID int64) (*models.UserStats, error)

	// GlobalStats returns totals across all users.
	GlobalStats(ctx context.Context) (*models.GlobalStats, error)
}

// Shortener turns one long URL into one short URL.
type Shortener interface {
	Shorten(ctx context.Context, longURL, alias, apiKeyOverride string) (string, error)
}

// RateLimiter is the per-user admission gate, checked once per batch.
type RateLimiter interface {
	Allow(userID int64) bool
}

// Policy is the immutable admission configuration injected at startup.
// Empty lists disable the corresponding rule; domains must be lower case.
type Policy struct {
	AllowedUserIDs   []int64
	WhitelistDomains []string
	BlacklistDomains []string
	MaxBatch         int
}

// BatchStatus is the batch-level outcome of a Process call.
type BatchStatus string

const (
	// StatusProcessed means the batch ran; per-URL outcomes are in Results.
	StatusProcessed BatchStatus = "processed"
	// StatusNotAllowed means the user is outside the configured allow list.
	StatusNotAllowed BatchStatus = "not_allowed"
	// StatusBanned means the whole batch was rejected for a banned user.
	StatusBanned BatchStatus = "banned"
	// StatusRateLimited means the user exceeded the sliding-window limit.
	StatusRateLimited BatchStatus = "rate_limited"
)

// URLResult is the terminal outcome for one URL of a processed batch.
type URLResult struct {
	URL      string
	ShortURL string
	Err      error
}

// Shortened reports whether the URL was successfully shortened.
func (r URLResult) Shortened() bool {
	return r.Err == nil
}

// BatchResult aggregates the outcome of one batch. Results preserve the
// input URL order; URLs dropped by domain policy are counted in Filtered
// and absent from Results.
type BatchResult struct {
	Status   BatchStatus
	Filtered int
	Results  []URLResult
}

// Pipeline orchestrates admission control, the shortening client and
// persistence for user batches. Batches from different users may run
// concurrently; within a batch URLs are processed sequentially.
type Pipeline struct {
	logger    *slog.Logger
	storage   Storage
	limiter   RateLimiter
	shortener Shortener
	maxBatch  int
	allowed   map[int64]struct{}
	whitelist map[string]struct{}
	blacklist map[string]struct{}
}

func NewPipeline(logger *slog.Logger, storage Storage, limiter RateLimiter, shortener Shortener, policy Policy) *Pipeline {
	return &Pipeline{
		logger:    logger,
		storage:   storage,
		limiter:   limiter,
		shortener: shortener,
		maxBatch:  policy.MaxBatch,
		allowed:   toIDSet(policy.AllowedUserIDs),
		whitelist: toDomainSet(policy.WhitelistDomains),
		blacklist: toDomainSet(policy.BlacklistDomains),
	}
}

// Process runs one batch for the user. Policy rejections surface as the
// batch-level status; per-URL shortening failures are converted to outcome
// entries and never abort the rest of the batch. The returned error covers
// only storage failures on the admission path.
func (p *Pipeline) Process(ctx context.Context, userID int64, urls []string, alias string) (*BatchResult, error) {
	const op = "service.Pipeline.Process"

	batchID, err := gonanoid.New(batchIDLength)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to generate batch id: %w", op, err)
	}
	logger := p.logger.With(slog.String("batch_id", batchID), slog.Int64("user_id", userID))

	if len(p.allowed) > 0 {
		if _, ok := p.allowed[userID]; !ok {
			return &BatchResult{Status: StatusNotAllowed}, nil
		}
	}

	if err := p.storage.UpsertUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	banned, err := p.storage.IsBanned(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if banned {
		return &BatchResult{Status: StatusBanned}, nil
	}

	if !p.limiter.Allow(userID) {
		return &BatchResult{Status: StatusRateLimited}, nil
	}

	apiKey, err := p.storage.GetAPIKey(ctx, userID)
	if err != nil {
		// Degrade to the service-wide default key.
		logger.Warn("api key lookup failed", slog.Any("err", err))
		apiKey = ""
	}

	batch, filtered := p.applyDomainPolicy(urls)
	if p.maxBatch > 0 && len(batch) > p.maxBatch {
		batch = batch[:p.maxBatch]
	}

	results := make([]URLResult, 0, len(batch))
	for _, longURL := range batch {
		shortURL, err := p.shortener.Shorten(ctx, longURL, alias, apiKey)
		if err != nil {
			logger.Warn("shortening failed", slog.String("url", longURL), slog.Any("err", err))
			results = append(results, URLResult{URL: longURL, Err: err})
			continue
		}

		// The short link already exists; a failed write must not turn
		// the outcome into a failure. Failed attempts are never recorded.
		if _, err := p.storage.RecordLink(ctx, userID, longURL, shortURL, alias); err != nil {
			logger.Error("failed to record link", slog.String("url", longURL), slog.Any("err", err))
		}

		results = append(results, URLResult{URL: longURL, ShortURL: shortURL})
	}

	return &BatchResult{Status: StatusProcessed, Filtered: filtered, Results: results}, nil
}

// applyDomainPolicy drops URLs per the whitelist and blacklist. The rules
// are independent: when both are configured a URL survives only if its host
// is in the whitelist and not in the blacklist.
func (p *Pipeline) applyDomainPolicy(urls []string) ([]string, int) {
	if len(p.whitelist) == 0 && len(p.blacklist) == 0 {
		return urls, 0
	}

	kept := make([]string, 0, len(urls))
	for _, raw := range urls {
		host := hostOf(raw)
		if len(p.whitelist) > 0 {
			if _, ok := p.whitelist[host]; !ok {
				continue
			}
		}
		if len(p.blacklist) > 0 {
			if _, ok := p.blacklist[host]; ok {
				continue
			}
		}
		kept = append(kept, raw)
	}

	return kept, len(urls) - len(kept)
}

// User retrieves the stored record for a user.
func (p *Pipeline) User(ctx context.Context, userID int64) (*models.User, error) {
	const op = "service.Pipeline.User"

	user, err := p.storage.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// SetAPIKey stores the user's per-user API key override.
func (p *Pipeline) SetAPIKey(ctx context.Context, userID int64, apiKey string) error {
	const op = "service.Pipeline.SetAPIKey"

	if err := p.storage.SetAPIKey(ctx, userID, apiKey); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetAPIKey returns the user's API key override, empty when unset.
// Callers are responsible for masking before display.
func (p *Pipeline) GetAPIKey(ctx context.Context, userID int64) (string, error) {
	const op = "service.Pipeline.GetAPIKey"

	apiKey, err := p.storage.GetAPIKey(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return apiKey, nil
}

// Ban blocks the user from shortening links.
func (p *Pipeline) Ban(ctx context.Context, userID int64) error {
	const op = "service.Pipeline.Ban"

	if err := p.storage.SetBanned(ctx, userID, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Unban lifts the user's ban.
func (p *Pipeline) Unban(ctx context.Context, userID int64) error {
	const op = "service.Pipeline.Unban"

	if err := p.storage.SetBanned(ctx, userID, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserStats returns the user's shortening history summary.
func (p *Pipeline) UserStats(ctx context.Context, userID int64) (*models.UserStats, error) {
	const op = "service.Pipeline.UserStats"

	stats, err := p.storage.UserStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return stats, nil
}

// GlobalStats returns shortening totals across all users.
func (p *Pipeline) GlobalStats(ctx context.Context) (*models.GlobalStats, error) {
	const op = "service.Pipeline.GlobalStats"

	stats, err := p.storage.GlobalStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return stats, nil
}

// hostOf extracts the lower-cased host of a URL, without the port.
// Unparsable URLs yield an empty host, which no configured list matches.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func toIDSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func toDomainSet(domains []string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[strings.ToLower(d)] = struct{}{}
	}
	return set
}
