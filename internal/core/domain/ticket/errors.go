package ticket

import "errors"

// Cache results. A nil error is the Ok result.
var (
	ErrCacheNotFound = errors.New("ticket cache not found")
	ErrCacheStale    = errors.New("ticket cache is stale")
	ErrCorruptCookie = errors.New("ticket cache cookie key is truncated")
	ErrCorruptTicket = errors.New("ticket cache app ticket is truncated")
	ErrCacheInvalid  = errors.New("ticket cache is invalid")
	ErrWriteFailed   = errors.New("ticket cache could not be written")

	ErrCookieKeySize = errors.New("cookie key has the wrong size")
	ErrEmptyTicket   = errors.New("app ticket is empty")
)

// Acquisition failures reported to the caller.
var (
	ErrRateLimited      = errors.New("ticket request rate limited")
	ErrDuplicateRequest = errors.New("ticket request already pending")
	ErrNoConnection     = errors.New("ticket issuer not connected")
	ErrRequestTimeout   = errors.New("ticket request timed out")
	ErrNoTicket         = errors.New("no issued ticket available")
)

// ResultCode maps a cache error to its numeric diagnostic code.
func ResultCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrCacheNotFound):
		return 1
	case errors.Is(err, ErrCorruptCookie):
		return 2
	case errors.Is(err, ErrCorruptTicket):
		return 3
	case errors.Is(err, ErrCacheInvalid):
		return 4
	case errors.Is(err, ErrCacheStale):
		return 5
	case errors.Is(err, ErrWriteFailed):
		return 6
	default:
		return -1
	}
}
