package recommendation

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"strconv"
	"sync"

	"github.com/yanqian/sunbalance/internal/infra/transport"
	apperrors "github.com/yanqian/sunbalance/pkg/errors"
)

const todayPath = "/recommendation/today/"

// Cache keeps the latest recommendation per profile id. Entries are never evicted.
type Cache struct {
	mu        sync.Mutex
	items     map[int64]Snapshot
	errs      map[int64]string
	phase     Phase
	lastError string
	client    APIClient
	logger    *slog.Logger
}

// NewCache builds an empty cache.
func NewCache(client APIClient, logger *slog.Logger) *Cache {
	return &Cache{
		items:  make(map[int64]Snapshot),
		errs:   make(map[int64]string),
		phase:  PhaseIdle,
		client: client,
		logger: logger.With("component", "recommendation.cache"),
	}
}

// FetchForProfile loads today's recommendation for profileID and replaces that entry only.
// Any profile id is accepted; the server decides whether it exists. On failure the previous
// entry for profileID is kept and the failure is recorded against it.
func (c *Cache) FetchForProfile(ctx context.Context, profileID int64) error {
	c.mu.Lock()
	c.phase = PhaseLoading
	c.lastError = ""
	c.mu.Unlock()

	snap, err := c.fetch(ctx, profileID)
	if err != nil {
		msg := transport.ExtractMessage(err)
		c.mu.Lock()
		c.phase = PhaseError
		c.lastError = msg
		c.errs[profileID] = msg
		c.mu.Unlock()
		c.logger.Warn("recommendation fetch failed", "profile_id", profileID, "error", msg)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[profileID] = snap
	delete(c.errs, profileID)
	c.phase = PhaseIdle
	c.logger.Debug("recommendation cached", "profile_id", profileID, "status", snap.Status)
	return nil
}

func (c *Cache) fetch(ctx context.Context, profileID int64) (Snapshot, error) {
	query := url.Values{"profile_id": []string{strconv.FormatInt(profileID, 10)}}
	resp, err := c.client.Get(ctx, todayPath, query)
	if err != nil {
		return Snapshot{}, apperrors.Wrap(CodeRecommendation, "failed to fetch recommendation", err)
	}
	snap, err := transport.DecodeJSON[Snapshot](resp)
	if err != nil {
		return Snapshot{}, apperrors.Wrap(CodeRecommendation, "recommendation response malformed", err)
	}
	if snap.RecommendedMinutesMin < 0 || snap.RecommendedMinutesMin > snap.RecommendedMinutesMax {
		return Snapshot{}, apperrors.Wrap(CodeRecommendation,
			fmt.Sprintf("recommendation minutes out of order: min=%d max=%d", snap.RecommendedMinutesMin, snap.RecommendedMinutesMax), nil)
	}
	return snap, nil
}

// Snapshot returns the cached entry for profileID.
func (c *Cache) Snapshot(profileID int64) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.items[profileID]
	return snap, ok
}

// Snapshots returns a copy of every cached entry.
func (c *Cache) Snapshots() map[int64]Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.items)
}

// ErrorFor returns the message of the last failed fetch for profileID, cleared by the next
// successful one.
func (c *Cache) ErrorFor(profileID int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.errs[profileID]
	return msg, ok
}

// State reports the phase and message of the most recent fetch.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Phase: c.phase, LastError: c.lastError}
}
