package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evermore-app/evermore/internal/model"
	"golang.org/x/time/rate"
)

// RateLimitedDraftStore wraps a DraftStore and throttles writes per
// draft. Saves beyond the budget fail with ErrRateLimited; callers are
// expected to treat that as a soft failure and retry on their own
// schedule.
type RateLimitedDraftStore struct {
	DraftStore

	mu       sync.Mutex
	limiters map[model.DraftID]*rate.Limiter

	limit rate.Limit
	burst int
}

func NewRateLimitedDraftStore(inner DraftStore, savesPerMinute int) *RateLimitedDraftStore {
	if savesPerMinute < 1 {
		savesPerMinute = 1
	}
	return &RateLimitedDraftStore{
		DraftStore: inner,

		limiters: make(map[model.DraftID]*rate.Limiter),

		limit: rate.Every(time.Minute / time.Duration(savesPerMinute)),
		burst: savesPerMinute,
	}
}

func (s *RateLimitedDraftStore) limiterFor(id model.DraftID) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[id]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[id] = limiter
	}
	return limiter
}

func (s *RateLimitedDraftStore) PatchDraft(ctx context.Context, id model.DraftID, patch DraftPatch) error {
	if !s.limiterFor(id).Allow() {
		storeLogger.Debug().Str("draft_id", string(id)).Msg("Save throttled")
		return fmt.Errorf("draft %s: %w", id, ErrRateLimited)
	}
	return s.DraftStore.PatchDraft(ctx, id, patch)
}

func (s *RateLimitedDraftStore) DeleteDraft(ctx context.Context, id model.DraftID) error {
	err := s.DraftStore.DeleteDraft(ctx, id)

	s.mu.Lock()
	delete(s.limiters, id)
	s.mu.Unlock()

	return err
}
