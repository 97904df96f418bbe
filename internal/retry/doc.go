// Package retry provides the reusable retry policy applied by collaborators
// that call external services.
//
// A Policy bundles the attempt budget, the exponential backoff curve and the
// retryable-error predicate. Provider reset hints (Retry-After) override the
// computed backoff when present but are still capped by MaxDelay.
package retry
