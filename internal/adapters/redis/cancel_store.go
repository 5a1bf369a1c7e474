// Package redis provides Redis-based adapters for the dispatch system.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CancelStore tracks per-job poller cancellation flags in Redis.
//
// A flag is set when a webhook delivers a terminal status so the job's poller
// can stand down instead of burning its remaining budget. Flags carry a TTL:
// a flag that outlives its poller has nothing left to cancel.
type CancelStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewCancelStore creates a new Redis-based cancellation flag store.
// A nil client disables cancellation; all lookups report no flag set.
func NewCancelStore(client redis.UniversalClient) *CancelStore {
	return &CancelStore{
		client: client,
		prefix: "poller:cancel:",
		ttl:    10 * time.Minute,
	}
}

// RequestCancel marks a job's poller for shutdown.
func (s *CancelStore) RequestCancel(ctx context.Context, jobID string) error {
	if s.client == nil {
		return nil
	}
	if jobID == "" {
		return errors.New("job ID cannot be empty")
	}
	return s.client.Set(ctx, s.prefix+jobID, "1", s.ttl).Err()
}

// IsCancelRequested reports whether a job's poller was marked for shutdown.
func (s *CancelStore) IsCancelRequested(ctx context.Context, jobID string) (bool, error) {
	if s.client == nil || jobID == "" {
		return false, nil
	}
	_, err := s.client.Get(ctx, s.prefix+jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Clear removes a job's cancellation flag.
func (s *CancelStore) Clear(ctx context.Context, jobID string) error {
	if s.client == nil || jobID == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+jobID).Err()
}
