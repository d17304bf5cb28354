package idempotency

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInFlight reports that another request holds the key.
	ErrInFlight   = errors.New("idempotency_in_flight")
	ErrEmptyKey   = errors.New("idempotency_key_empty")
	ErrKeyTooLong = errors.New("idempotency_key_too_long")
)

const maxKeyLength = 200

// Lease is the outcome of Begin. A lease with a non-empty Result is a replay
// of a completed request; otherwise the caller owns the key until Complete or
// Release.
type Lease struct {
	Key    string
	Token  string
	Result string
}

func (l Lease) Replayed() bool {
	return l.Result != ""
}

// Store deduplicates requests sharing an idempotency key.
type Store interface {
	Begin(ctx context.Context, scope, key string) (Lease, error)
	Complete(ctx context.Context, lease Lease, result string) error
	Release(ctx context.Context, lease Lease) error
}

// NormalizeKey trims the caller supplied key and rejects oversized values.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrEmptyKey
	}
	if len(key) > maxKeyLength {
		return "", ErrKeyTooLong
	}
	return key, nil
}

// NoopStore never deduplicates. It backs deployments without Redis.
type NoopStore struct{}

func (NoopStore) Begin(ctx context.Context, scope, key string) (Lease, error) {
	return Lease{}, nil
}

func (NoopStore) Complete(ctx context.Context, lease Lease, result string) error { return nil }

func (NoopStore) Release(ctx context.Context, lease Lease) error { return nil }
