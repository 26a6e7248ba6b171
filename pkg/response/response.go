// Package response defines the canonical JSON envelope returned by the API.
package response

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Error:   "Empty Request Body",
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Error:   "Bad Request",
	Message: "The request could not be processed.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Error:   "Resource Not Found",
	Message: "The requested resource was not found.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Error:   "Server Error",
	Message: "An internal server error occurred. Please try again later.",
}

var UserBannedResponse = Response{
	Status:  StatusError,
	Error:   "User Banned",
	Message: "The user is banned from shortening links.",
}

var UserNotAllowedResponse = Response{
	Status:  StatusError,
	Error:   "User Not Allowed",
	Message: "The user is not allowed to use this service.",
}

var RateLimitedResponse = Response{
	Status:  StatusError,
	Error:   "Rate Limit Exceeded",
	Message: "Too many requests. Try again in a minute.",
}

type Response struct {
	Status  string            `json:"status"`
	Error   string            `json:"error,omitempty"`
	Message string            `json:"message"`
	Details []validationError `json:"details,omitempty"`
	Data    any               `json:"data,omitempty"`
}

type validationError struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Issue string `json:"issue"`
}

func getValidationErrors(err error) []validationError {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return nil
	}

	out := make([]validationError, 0, len(vErrs))
	for _, fe := range vErrs {
		issue := "Invalid value."
		switch fe.Tag() {
		case "required":
			issue = "This field is required."
		case "url":
			issue = "Invalid url."
		case "gt":
			issue = fmt.Sprintf("Must be greater than %s.", fe.Param())
		case "min":
			issue = fmt.Sprintf("Must contain at least %s items.", fe.Param())
		}

		out = append(out, validationError{
			Field: fe.Field(),
			Value: fe.Value(),
			Issue: issue,
		})
	}

	return out
}

func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

func ValidationErrorResponse(err error) Response {
	return Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: "The request contains invalid fields.",
		Details: getValidationErrors(err),
	}
}
