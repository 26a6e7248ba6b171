package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/monetlink/monetlink/internal/database"
	"github.com/monetlink/monetlink/internal/service"
	"github.com/monetlink/monetlink/pkg/response"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

func userIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}

func handleShortenBatch(pipeline LinkPipeline, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleShortenBatch"
	const successMsg = "The batch was processed."

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		res, err := pipeline.Process(r.Context(), req.UserID, req.URLs, req.Alias)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		switch res.Status {
		case service.StatusNotAllowed:
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.UserNotAllowedResponse)
		case service.StatusBanned:
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.UserBannedResponse)
		case service.StatusRateLimited:
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, response.RateLimitedResponse)
		default:
			render.Status(r, http.StatusOK)
			render.JSON(w, r, response.SuccessResponse(successMsg, toBatchResponse(res)))
		}
	}
}

func handleGetUser(pipeline LinkPipeline) http.HandlerFunc {
	const op = "api.http.handleGetUser"
	const successMsg = "The user was retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDParam(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		user, err := pipeline.User(r.Context(), userID)
		if err != nil {
			if errors.Is(err, database.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toUserResponse(user)))
	}
}

func handleSetAPIKey(pipeline LinkPipeline, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleSetAPIKey"
	const successMsg = "The API key was saved."

	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDParam(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		var req apiKeyRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		if err := pipeline.SetAPIKey(r.Context(), userID, req.APIKey); err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}

func handleGetAPIKey(pipeline LinkPipeline) http.HandlerFunc {
	const op = "api.http.handleGetAPIKey"
	const successMsg = "The API key was retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDParam(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		apiKey, err := pipeline.GetAPIKey(r.Context(), userID)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		// Keys are never returned in the clear.
		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, apiKeyResponse{APIKey: maskKey(apiKey)}))
	}
}

func handleBan(pipeline LinkPipeline) http.HandlerFunc {
	return handleSetBanned("api.http.handleBan", "The user was banned.", pipeline.Ban)
}

func handleUnban(pipeline LinkPipeline) http.HandlerFunc {
	return handleSetBanned("api.http.handleUnban", "The user was unbanned.", pipeline.Unban)
}

func handleSetBanned(op, successMsg string, set func(ctx context.Context, userID int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDParam(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := set(r.Context(), userID); err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}

func handleUserStats(pipeline LinkPipeline) http.HandlerFunc {
	const op = "api.http.handleUserStats"
	const successMsg = "The user statistics were retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDParam(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		stats, err := pipeline.UserStats(r.Context(), userID)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := userStatsResponse{
			Links:           stats.Links,
			LastShortenedAt: stats.LastShortenedAt,
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

func handleGlobalStats(pipeline LinkPipeline) http.HandlerFunc {
	const op = "api.http.handleGlobalStats"
	const successMsg = "The global statistics were retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := pipeline.GlobalStats(r.Context())
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := globalStatsResponse{
			TotalLinks:    stats.TotalLinks,
			DistinctUsers: stats.DistinctUsers,
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}
