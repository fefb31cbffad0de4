package webhook

import "errors"

var (
	// ErrInvalidSignature is returned when the signature does not match the
	// body.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMissingSignature is returned when verification is mandatory but no
	// signature header was supplied.
	ErrMissingSignature = errors.New("missing webhook signature")

	// ErrNotConfigured is returned when a signature was supplied but no
	// signing secret is configured to check it against.
	ErrNotConfigured = errors.New("webhook signing secret not configured")

	// ErrInvalidPayload is returned when the event body cannot be parsed.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)
