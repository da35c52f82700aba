package kvstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/sunbalance/internal/domain/session"
)

// ValkeyStore persists values in a Valkey-compatible database, typically a local instance
// shared by several clients on the same machine.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "sunbalance"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// ValkeyOptions turns an address or a valkey:// URL into client options.
func ValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	if strings.TrimSpace(addr) == "" {
		return valkey.ClientOption{}, fmt.Errorf("valkey address cannot be empty")
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func (s *ValkeyStore) Get(ctx context.Context, key string) (string, bool, error) {
	result := s.client.Do(ctx, s.client.B().Get().Key(s.key(key)).Build())
	value, err := result.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("valkey get: %w", err)
	}
	return value, true, nil
}

func (s *ValkeyStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Do(ctx, s.client.B().Set().Key(s.key(key)).Value(value).Build()).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("valkey del: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}

func (s *ValkeyStore) key(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

var _ session.Store = (*ValkeyStore)(nil)
