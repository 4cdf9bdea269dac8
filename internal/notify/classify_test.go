package notify

import (
	"context"
	"errors"
	"net/http"
	"testing"

	twclient "github.com/twilio/twilio-go/client"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline reached" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryablePermanent(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"smtp auth", errors.New("535 5.7.8 authentication failed")},
		{"invalid credentials", errors.New("login rejected: invalid credentials")},
		{"unverified number", errors.New("the number +1555 is unverified")},
		{"twilio auth code", &twclient.TwilioRestError{Code: 20003, Status: 401}},
		{"twilio invalid credentials code", &twclient.TwilioRestError{Code: 20008, Status: 400}},
		{"http 401", &HTTPStatusError{StatusCode: http.StatusUnauthorized}},
		{"http 403", &HTTPStatusError{StatusCode: http.StatusForbidden}},
		{"context canceled", context.Canceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if Retryable(tc.err) {
				t.Fatalf("Retryable(%v) = true, want false", tc.err)
			}
		})
	}
}

func TestRetryableTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"timeout interface", timeoutErr{}},
		{"timeout string", errors.New("dial tcp: connect timeout")},
		{"connection refused", errors.New("connection refused")},
		{"http 429", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}},
		{"twilio 429", &twclient.TwilioRestError{Code: 20429, Status: 429}},
		{"rate limit string", errors.New("rate limit exceeded")},
		{"unrecognized defaults to retryable", errors.New("something odd happened")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !Retryable(tc.err) {
				t.Fatalf("Retryable(%v) = false, want true", tc.err)
			}
		})
	}
}
