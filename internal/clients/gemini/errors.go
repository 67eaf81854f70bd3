package gemini

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded is returned when every configured key hit its quota.
var ErrQuotaExceeded = errors.New("gemini: all api keys exhausted their quota")

// ErrNoValidContent is returned when the model answered without usable text
// on every attempted configuration.
var ErrNoValidContent = errors.New("gemini: model returned no valid content")

// ErrNoAPIKeys is returned by NewFromEnv when no key slot is populated.
var ErrNoAPIKeys = errors.New("gemini: no api keys configured")

// HTTPError carries a non-2xx response from the Generative Language API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}
