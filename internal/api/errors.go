package api

import (
	"fmt"
	"net/http"
	"strings"
)

// ApiError is the single error contract of the API. Only Message is
// serialized; Err is kept for logging.
type ApiError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(code int, msg string) *ApiError {
	if msg == "" {
		msg = lower(http.StatusText(code))
	}

	return &ApiError{
		StatusCode: code,
		Message:    msg,
	}
}

func NewBadRequestError(msg string) *ApiError {
	return newApiError(http.StatusBadRequest, msg)
}

func NewUnauthorizedError(msg string) *ApiError {
	return newApiError(http.StatusUnauthorized, msg)
}

func NewForbiddenError(msg string) *ApiError {
	return newApiError(http.StatusForbidden, msg)
}

func NewNotFoundError(msg string) *ApiError {
	return newApiError(http.StatusNotFound, msg)
}

func NewMethodNotAllowedError(method string) *ApiError {
	return newApiError(http.StatusMethodNotAllowed, "Method not allowed: "+method)
}

func NewConflictError(msg string) *ApiError {
	return newApiError(http.StatusConflict, msg)
}

func NewTooManyRequestsError() *ApiError {
	return newApiError(http.StatusTooManyRequests, "Too many requests, try again later")
}

// NewInternalServerError hides err behind a generic message.
func NewInternalServerError(err error) *ApiError {
	return NewInternalServerErrorMessage("Internal server error", err)
}

func NewInternalServerErrorMessage(msg string, err error) *ApiError {
	e := newApiError(http.StatusInternalServerError, msg)
	e.Err = err
	return e
}
