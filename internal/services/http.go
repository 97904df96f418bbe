package services

import (
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var contentRejectedTokens = []string{
	"content_policy",
	"content policy",
	"content_filter",
	"safety",
	"moderation",
	"flagged",
}

var quotaTokens = []string{
	"insufficient_quota",
	"quota",
	"billing",
	"credit",
}

// HTTPFailure describes a non-2xx provider response.
type HTTPFailure struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
	Err        error
}

// ClassifyHTTP maps a provider HTTP failure onto the error taxonomy:
// 401/403 invalid credential, 402 or quota-coded 429 quota exhausted, other
// 429 throttled, policy-coded 400 content rejected, 408/409/425/5xx transient.
// Anything else is returned unmarked (ErrExternalTool) so callers move on
// without retrying.
func ClassifyHTTP(f HTTPFailure) *ProviderError {
	text := strings.ToLower(f.Code + " " + f.Message)
	retryAfter := f.RetryAfter
	if retryAfter <= 0 {
		retryAfter, _ = RetryHintFromMessage(f.Message)
	}
	perr := &ProviderError{
		Provider:   f.Provider,
		StatusCode: f.StatusCode,
		RetryAfter: retryAfter,
		Message:    strings.TrimSpace(f.Message),
		Err:        f.Err,
	}
	switch status := f.StatusCode; {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		perr.Marker = ErrInvalidCredential
	case status == http.StatusPaymentRequired:
		perr.Marker = ErrQuotaExhausted
	case status == http.StatusTooManyRequests:
		if containsAny(text, quotaTokens) {
			perr.Marker = ErrQuotaExhausted
		} else {
			perr.Marker = ErrThrottled
		}
	case status == http.StatusBadRequest && containsAny(text, contentRejectedTokens):
		perr.Marker = ErrContentRejected
	case status == http.StatusRequestTimeout, status == http.StatusConflict, status == http.StatusTooEarly,
		status >= http.StatusInternalServerError:
		perr.Marker = ErrTransient
	case status == 0:
		perr.Marker = transportMarker(f.Err)
	default:
		perr.Marker = ErrExternalTool
	}
	return perr
}

func transportMarker(err error) error {
	if err == nil {
		return ErrExternalTool
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrTransient
	}
	msg := strings.ToLower(err.Error())
	for _, token := range []string{"connection reset", "connection refused", "eof", "timeout", "temporary failure"} {
		if strings.Contains(msg, token) {
			return ErrTransient
		}
	}
	return ErrExternalTool
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

var retryHintPattern = regexp.MustCompile(`(?i)(?:try again|retry) (?:in|after) ([0-9]+(?:\.[0-9]+)?)\s*(ms|s|sec|seconds?|m|min|minutes?)\b`)

// RetryHintFromMessage extracts hints like "Please try again in 20s".
func RetryHintFromMessage(message string) (time.Duration, bool) {
	m := retryHintPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	unit := time.Second
	switch strings.ToLower(m[2]) {
	case "ms":
		unit = time.Millisecond
	case "m", "min", "minute", "minutes":
		unit = time.Minute
	}
	return time.Duration(value * float64(unit)), true
}

// ParseRetryAfter parses a Retry-After header (delta seconds or HTTP date).
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
