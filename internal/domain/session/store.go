package session

import (
	"context"
	"errors"
)

// ErrCorruptStore is reported by stores whose backing document can no longer be decoded.
// Such a store starts over from an empty document on its next Set or Delete.
var ErrCorruptStore = errors.New("store document is corrupt")

// Store is the local key-value store holding the persisted credential record.
// Set fully replaces the value under key; Delete on a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
