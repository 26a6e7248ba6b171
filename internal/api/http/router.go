// Package http exposes the request pipeline over an operations HTTP API.
// The chat transport is a separate process that consumes the same pipeline.
package http

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/monetlink/monetlink/internal/models"
	"github.com/monetlink/monetlink/internal/service"
)

// LinkPipeline is the pipeline surface consumed by the API handlers.
type LinkPipeline interface {
	Process(ctx context.Context, userID int64, urls []string, alias string) (*service.BatchResult, error)
	User(ctx context.Context, userID int64) (*models.User, error)
	SetAPIKey(ctx context.Context, userID int64, apiKey string) error
	GetAPIKey(ctx context.Context, userID int64) (string, error)
	Ban(ctx context.Context, userID int64) error
	Unban(ctx context.Context, userID int64) error
	UserStats(ctx context.Context, userID int64) (*models.UserStats, error)
	GlobalStats(ctx context.Context) (*models.GlobalStats, error)
}

func NewRouter(logger *httplog.Logger, pipeline LinkPipeline) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)
		r.Post("/shorten", handleShortenBatch(pipeline, validate))
		r.Get("/stats", handleGlobalStats(pipeline))

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", handleGetUser(pipeline))
			r.Get("/stats", handleUserStats(pipeline))
			r.Put("/api-key", handleSetAPIKey(pipeline, validate))
			r.Get("/api-key", handleGetAPIKey(pipeline))
			r.Post("/ban", handleBan(pipeline))
			r.Post("/unban", handleUnban(pipeline))
		})
	})

	return r
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}
