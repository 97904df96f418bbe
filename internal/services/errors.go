package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")

	ErrQuotaExhausted     = errors.New("quota exhausted")
	ErrThrottled          = errors.New("throttled")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrContentRejected    = errors.New("content rejected")
	ErrAudioQuality       = errors.New("audio quality check failed")
	ErrResourceExhausted  = errors.New("all resources exhausted")
	ErrCheckpointCorrupt  = errors.New("checkpoint corrupt")
	ErrWorkDirLocked      = errors.New("work directory locked")
	ErrTranslationAborted = errors.New("translation aborted")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ProviderError is returned by external collaborators (synthesizers,
// translators) after mapping a provider response onto the error taxonomy.
type ProviderError struct {
	Marker     error
	Provider   string
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	if e.Marker != nil {
		b.WriteString(e.Marker.Error())
	} else {
		b.WriteString("provider error")
	}
	if e.Provider != "" {
		b.WriteString(": ")
		b.WriteString(e.Provider)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the taxonomy marker and the underlying cause.
func (e *ProviderError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// ErrorClass is the coarse category used by retry and rotation decisions.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassTransient
	ClassQuotaExhausted
	ClassThrottled
	ClassInvalidCredential
	ClassContentRejected
	ClassAudioQuality
	ClassResourceExhausted
	ClassCanceled
	ClassUnknown
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransient:
		return "transient"
	case ClassQuotaExhausted:
		return "quota_exhausted"
	case ClassThrottled:
		return "throttled"
	case ClassInvalidCredential:
		return "invalid_credential"
	case ClassContentRejected:
		return "content_rejected"
	case ClassAudioQuality:
		return "audio_quality"
	case ClassResourceExhausted:
		return "resource_exhausted"
	case ClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify maps an error onto the taxonomy. Unmarked network timeouts are
// treated as transient; anything else unrecognised is ClassUnknown.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, ErrQuotaExhausted):
		return ClassQuotaExhausted
	case errors.Is(err, ErrThrottled):
		return ClassThrottled
	case errors.Is(err, ErrInvalidCredential):
		return ClassInvalidCredential
	case errors.Is(err, ErrContentRejected):
		return ClassContentRejected
	case errors.Is(err, ErrAudioQuality):
		return ClassAudioQuality
	case errors.Is(err, ErrResourceExhausted):
		return ClassResourceExhausted
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	return ClassUnknown
}

// IsTransient reports whether err is worth retrying against the same resource.
func IsTransient(err error) bool {
	return Classify(err) == ClassTransient
}

// ResetHint returns the provider-reported cooldown hint carried by err, if any.
func ResetHint(err error) (time.Duration, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.RetryAfter > 0 {
		return perr.RetryAfter, true
	}
	return 0, false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
