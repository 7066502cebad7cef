package admin

import "github.com/pkg/errors"

// Outcome variants of administrative API calls. Callers branch on these
// (via errors.Cause) instead of on raw HTTP status codes; field-level
// rejections come back as *core.ValidationError.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrConflict      = errors.New("resource already exists")
	ErrNotAuthorized = errors.New("not authorized")
	ErrUnavailable   = errors.New("administrative API unavailable")
)
