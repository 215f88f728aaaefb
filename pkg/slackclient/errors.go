package slackclient

import (
	"errors"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// ErrMalformedMessage marks a record that could not be normalized. Such
// records are skipped and counted, never retried.
var ErrMalformedMessage = errors.New("malformed message record")

// authErrors are the Slack API error codes that abort a run. Retrying an
// expired or under-scoped token can never succeed.
var authErrors = map[string]struct{}{
	"invalid_auth":     {},
	"not_authed":       {},
	"account_inactive": {},
	"token_revoked":    {},
	"token_expired":    {},
	"missing_scope":    {},
	"no_permission":    {},
}

// IsAuthError reports whether err is an authentication or authorization
// failure from the Slack API. The API surfaces these as bare error codes
// in the error string.
func IsAuthError(err error) bool {
	for err != nil {
		if _, ok := authErrors[strings.TrimSpace(err.Error())]; ok {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsRetryable classifies an error as transient for the retry policy.
// Everything except auth failures and malformed records is treated as
// transient: rate limits, timeouts, and 5xx responses all surface here.
func IsRetryable(err error) bool {
	if IsAuthError(err) {
		return false
	}
	return !errors.Is(err, ErrMalformedMessage)
}

// retryAfter extracts the server-requested wait from a rate-limit error,
// zero if err is not a rate-limit response.
func retryAfter(err error) (time.Duration, bool) {
	var rle *slack.RateLimitedError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}
