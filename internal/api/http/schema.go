package http

import (
	"time"

	"github.com/monetlink/monetlink/internal/models"
	"github.com/monetlink/monetlink/internal/service"
)

type shortenRequest struct {
	UserID int64    `json:"user_id" validate:"required,gt=0"`
	URLs   []string `json:"urls" validate:"required,min=1,dive,required"`
	Alias  string   `json:"alias,omitempty"`
}

type apiKeyRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

type urlOutcome struct {
	URL      string `json:"url"`
	ShortURL string `json:"short_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

type batchResponse struct {
	Status   string       `json:"status"`
	Filtered int          `json:"filtered,omitempty"`
	Results  []urlOutcome `json:"results"`
}

func toBatchResponse(res *service.BatchResult) batchResponse {
	out := batchResponse{
		Status:   string(res.Status),
		Filtered: res.Filtered,
		Results:  make([]urlOutcome, 0, len(res.Results)),
	}

	for _, r := range res.Results {
		o := urlOutcome{URL: r.URL, ShortURL: r.ShortURL}
		if r.Err != nil {
			o.Error = r.Err.Error()
		}
		out.Results = append(out.Results, o)
	}

	return out
}

type userResponse struct {
	ID        int64     `json:"id"`
	Banned    bool      `json:"banned"`
	APIKey    string    `json:"api_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Banned:    user.Banned,
		APIKey:    maskKey(user.APIKey),
		CreatedAt: user.CreatedAt,
	}
}

type userStatsResponse struct {
	Links           int64      `json:"links"`
	LastShortenedAt *time.Time `json:"last_shortened_at,omitempty"`
}

type globalStatsResponse struct {
	TotalLinks    int64 `json:"total_links"`
	DistinctUsers int64 `json:"distinct_users"`
}

type apiKeyResponse struct {
	APIKey string `json:"api_key,omitempty"`
}

// maskKey hides the middle of a credential before display. Short keys are
// masked entirely.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "***" + key[len(key)-4:]
}
