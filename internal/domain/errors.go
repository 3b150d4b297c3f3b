package domain

import "errors"

var (
	// ErrUnknownFeature is returned when a feature name is not configured.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrModelNotAllowed is returned when an override model is not in the
	// feature's allow-list.
	ErrModelNotAllowed = errors.New("model not allowed for feature")

	// ErrModelNotFound is returned when a model ID is not in the registry.
	ErrModelNotFound = errors.New("model not found")

	// ErrBackendUnavailable is returned after the retry budget for
	// transient failures is exhausted.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrParseFailed is returned when a backend response contains no
	// decodable deal list.
	ErrParseFailed = errors.New("response parse failed")

	// ErrCancelled is returned when the caller's deadline expires while a
	// call, backoff sleep, or rate-limit wait is pending.
	ErrCancelled = errors.New("request cancelled")

	// ErrCacheMiss is returned when a fingerprint is not cached.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidGroundTruth is returned for a ground-truth record missing
	// required fields. Fatal for that document only.
	ErrInvalidGroundTruth = errors.New("invalid ground-truth record")
)
