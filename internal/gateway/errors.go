package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/naka-gawa/daystats/internal/domain"
)

// ErrAuthentication is returned when GitHub rejects the supplied credential.
// It is fatal for the whole run: every category shares the credential.
var ErrAuthentication = errors.New("github credential rejected")

// RateLimitedError signals that the API rate budget is exhausted. ResetAt is
// when the remote says the budget refills; it is zero when the reset time
// could not be determined.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	if e.ResetAt.IsZero() {
		return "github rate limit exhausted"
	}
	return fmt.Sprintf("github rate limit exhausted until %s", e.ResetAt.Format(time.RFC3339))
}

// TransientNetworkError wraps a connection-level failure that survived the
// local retry budget.
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network failure: %v", e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// MalformedResponseError indicates the remote response failed schema
// validation or the remote misbehaved in a way that suggests API contract
// drift. It carries enough context to diagnose which query went wrong.
type MalformedResponseError struct {
	Category domain.Category
	Cursor   string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response for %s (cursor %q): %s", e.Category, e.Cursor, e.Reason)
}

// classifyError maps an error from the GraphQL layer onto the failure
// taxonomy. Connection-level failures are transient; 401s are credential
// rejections; everything unrecognized is treated as contract drift and not
// retried. The reset time of a RateLimitedError is filled in by the caller.
func classifyError(err error, category domain.Category, cursor string) error {
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &TransientNetworkError{Err: err}
	}

	var jsonSyntaxErr *json.SyntaxError
	var jsonTypeErr *json.UnmarshalTypeError
	if errors.As(err, &jsonSyntaxErr) || errors.As(err, &jsonTypeErr) {
		return &MalformedResponseError{Category: category, Cursor: cursor, Reason: err.Error()}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "bad credentials") || strings.Contains(msg, "unauthorized"):
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limited"):
		return &RateLimitedError{}
	}
	return &MalformedResponseError{Category: category, Cursor: cursor, Reason: err.Error()}
}
