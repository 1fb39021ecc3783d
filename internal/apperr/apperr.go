// Package apperr holds the closed set of business errors the service can return.
// Each Code is bound to an HTTP status and a client-facing message.
package apperr

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeChannelNotFound    Code = "CHANNEL_NOT_FOUND"
	CodeChatNotFound       Code = "CHAT_NOT_FOUND"
	CodeUserNotFound       Code = "USER_NOT_FOUND"
	CodeChannelIsClosed    Code = "CHANNEL_IS_CLOSED"
	CodeChannelIsFull      Code = "CHANNEL_IS_FULL"
	CodeUnauthorizedModify Code = "UNAUTHORIZED_MODIFICATION_REQUEST"
	CodeUnauthorizedDelete Code = "UNAUTHORIZED_DELETE_REQUEST"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeEmailAlreadyExists Code = "EMAIL_ALREADY_EXISTS"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeRateLimited        Code = "RATE_LIMITED"
)

type definition struct {
	status  int
	message string
}

var definitions = map[Code]definition{
	CodeChannelNotFound:    {http.StatusNotFound, "channel not found"},
	CodeChatNotFound:       {http.StatusNotFound, "chat not found"},
	CodeUserNotFound:       {http.StatusNotFound, "user not found"},
	CodeChannelIsClosed:    {http.StatusBadRequest, "channel is closed"},
	CodeChannelIsFull:      {http.StatusBadRequest, "channel is full"},
	CodeUnauthorizedModify: {http.StatusForbidden, "not allowed to modify this resource"},
	CodeUnauthorizedDelete: {http.StatusForbidden, "not allowed to delete this resource"},
	CodeInvalidInput:       {http.StatusBadRequest, "invalid input"},
	CodeEmailAlreadyExists: {http.StatusConflict, "email already registered"},
	CodeInvalidCredentials: {http.StatusUnauthorized, "invalid email or password"},
	CodeRateLimited:        {http.StatusTooManyRequests, "too many requests"},
}

// Error is a business failure. Two Errors match under errors.Is when their codes match,
// so callers can compare against the package-level sentinels.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return string(e.Code) + ": " + e.Detail
	}
	return string(e.Code)
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Status is the HTTP status bound to the error's code.
func (e *Error) Status() int {
	if d, ok := definitions[e.Code]; ok {
		return d.status
	}
	return http.StatusInternalServerError
}

// Message is the client-facing text. Detail, when set, replaces the default message.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if d, ok := definitions[e.Code]; ok {
		return d.message
	}
	return "internal error"
}

func New(code Code) *Error {
	return &Error{Code: code}
}

// WithDetail returns an error for code whose client message is detail.
func WithDetail(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

var (
	ErrChannelNotFound    = New(CodeChannelNotFound)
	ErrChatNotFound       = New(CodeChatNotFound)
	ErrUserNotFound       = New(CodeUserNotFound)
	ErrChannelIsClosed    = New(CodeChannelIsClosed)
	ErrChannelIsFull      = New(CodeChannelIsFull)
	ErrUnauthorizedModify = New(CodeUnauthorizedModify)
	ErrUnauthorizedDelete = New(CodeUnauthorizedDelete)
	ErrInvalidInput       = New(CodeInvalidInput)
	ErrEmailAlreadyExists = New(CodeEmailAlreadyExists)
	ErrInvalidCredentials = New(CodeInvalidCredentials)
	ErrRateLimited        = New(CodeRateLimited)
)

// From extracts the business error from err's chain.
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
