package rotator

import (
	"time"

	"dubline/internal/services"
)

// Pair identifies one rotation unit.
type Pair struct {
	CredentialID string `json:"credential_id"`
	Model        string `json:"model"`
}

func (p Pair) String() string {
	return p.Model + "@" + p.CredentialID
}

// Health is the state of a pair.
type Health int

const (
	Available Health = iota
	Cooldown
	Disabled
)

func (h Health) String() string {
	switch h {
	case Available:
		return "available"
	case Cooldown:
		return "cooldown"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// OutcomeKind classifies the result of one synthesis call against a pair.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	TransientFailure
	QuotaExhausted
	Throttled
	InvalidCredential
	ContentRejected
	AudioRejected
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case TransientFailure:
		return "transient"
	case QuotaExhausted:
		return "quota_exhausted"
	case Throttled:
		return "throttled"
	case InvalidCredential:
		return "invalid_credential"
	case ContentRejected:
		return "content_rejected"
	case AudioRejected:
		return "audio_rejected"
	default:
		return "unknown"
	}
}

// Outcome is reported back to the rotator after a call. ResetAfter is the
// provider's reset hint; zero means use the configured default.
type Outcome struct {
	Kind       OutcomeKind
	ResetAfter time.Duration
}

// OutcomeFromError maps a classified error onto an outcome.
func OutcomeFromError(err error) Outcome {
	hint, _ := services.ResetHint(err)
	switch services.Classify(err) {
	case services.ClassNone:
		return Outcome{Kind: Success}
	case services.ClassQuotaExhausted:
		return Outcome{Kind: QuotaExhausted, ResetAfter: hint}
	case services.ClassThrottled:
		return Outcome{Kind: Throttled, ResetAfter: hint}
	case services.ClassInvalidCredential:
		return Outcome{Kind: InvalidCredential}
	case services.ClassContentRejected:
		return Outcome{Kind: ContentRejected}
	case services.ClassAudioQuality:
		return Outcome{Kind: AudioRejected}
	default:
		return Outcome{Kind: TransientFailure}
	}
}

// Exclusion is the set of pairs already tried for one chunk. It is owned by a
// single goroutine.
type Exclusion map[Pair]struct{}

// NewExclusion returns an empty exclusion set.
func NewExclusion() Exclusion {
	return make(Exclusion)
}

// Add marks p as tried.
func (e Exclusion) Add(p Pair) {
	e[p] = struct{}{}
}

// Has reports whether p was tried.
func (e Exclusion) Has(p Pair) bool {
	_, ok := e[p]
	return ok
}
