package relay

import (
	"fmt"
	"log/slog"
	"net/http"
)

type Category int

const (
	CategoryUnexpected Category = iota
	CategoryClientError
	CategoryAuth
	CategoryNotFound
	CategoryRateLimited
	CategoryServer
)

func (c Category) String() string {
	switch c {
	case CategoryClientError:
		return "client_error"
	case CategoryAuth:
		return "auth"
	case CategoryNotFound:
		return "not_found"
	case CategoryRateLimited:
		return "rate_limited"
	case CategoryServer:
		return "server"
	default:
		return "unexpected"
	}
}

func CategoryOf(status int) Category {
	switch {
	case status == http.StatusBadRequest:
		return CategoryClientError
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CategoryAuth
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status >= 500 && status <= 599:
		return CategoryServer
	default:
		return CategoryUnexpected
	}
}

// StatusError is a non-2xx answer of the relay target.
type StatusError struct {
	Operation  string
	StatusCode int
	Category   Category
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay %s answered %d (%s)", e.Operation, e.StatusCode, e.Category)
}

// level tells how loud a failure should be logged. Configuration problems on
// our side are errors, target side trouble is a warning.
func (e *StatusError) level() slog.Level {
	switch e.Category {
	case CategoryAuth, CategoryClientError, CategoryUnexpected:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func (e *StatusError) hint() string {
	switch e.Category {
	case CategoryClientError:
		return "Relay rejected the payload"
	case CategoryAuth:
		return "Relay rejected the credentials, check RELAY_API_KEY"
	case CategoryNotFound:
		return "Relay session or endpoint missing"
	case CategoryRateLimited:
		return "Relay is rate limiting"
	case CategoryServer:
		return "Relay failed on its side"
	default:
		return "Relay answered with an unexpected status"
	}
}
