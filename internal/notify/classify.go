package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	twclient "github.com/twilio/twilio-go/client"
)

// HTTPStatusError is returned by HTTP-based adapters when the endpoint
// responds with a non-2xx status.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Twilio error codes that indicate bad account credentials.
const (
	twilioCodeAuthFailure        = 20003
	twilioCodeInvalidCredentials = 20008
)

// Retryable reports whether a delivery error is worth another attempt.
//
// Permanent: authentication/credential failures, unverified recipients,
// HTTP 401/403. Transient: timeouts, connection failures, HTTP 429 and
// rate limits. Unrecognized errors are treated as retryable on purpose:
// misclassifying a permanent error as transient only wastes retry
// budget, while the reverse silently drops a deliverable notification.
func Retryable(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var tw *twclient.TwilioRestError
	if errors.As(err, &tw) {
		switch {
		case tw.Code == twilioCodeAuthFailure || tw.Code == twilioCodeInvalidCredentials:
			return false
		case tw.Status == http.StatusTooManyRequests:
			return true
		case tw.Status == http.StatusUnauthorized || tw.Status == http.StatusForbidden:
			return false
		}
	}

	var hs *HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return false
		case http.StatusTooManyRequests:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "authenticate") ||
		strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "invalid credentials") ||
		strings.Contains(msg, "unverified") {
		return false
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") {
		return true
	}

	return true
}
