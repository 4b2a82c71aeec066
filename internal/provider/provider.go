// Package provider abstracts the LLM backends used for extraction. The
// concrete variants form a closed set selected once at construction; the
// rest of the pipeline sees only the Provider interface and typed errors.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a provider failure. The gateway's retry policy and the
// orchestrator's fatal-vs-per-meeting decision both key off it.
type Kind string

const (
	KindAuth             Kind = "auth_error"
	KindRateLimited      Kind = "rate_limited"
	KindTimeout          Kind = "timeout"
	KindUnavailable      Kind = "provider_unavailable"
	KindMalformedRequest Kind = "malformed_request"
)

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Status   int
	Message  string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// KindOf returns the failure kind of err, or "" if err is not a provider error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// retryable reports whether the failure is transient per the retry policy:
// rate limits and timeouts are retried, everything else propagates.
func retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindTimeout:
		return true
	}
	return false
}

// Request is one generation call: a system instruction, the user content,
// and the model identifier. Providers transmit it without interpreting it.
type Request struct {
	System string
	User   string
	Model  string
}

// Provider is the uniform capability every LLM backend implements.
type Provider interface {
	// Generate sends the request and returns the raw generated text.
	// Failures are reported as *Error with a classified Kind.
	Generate(ctx context.Context, req Request) (string, error)

	// Name identifies the provider variant (for logs and error messages).
	Name() string
}
