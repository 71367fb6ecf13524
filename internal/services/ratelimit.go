package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/velmora/philograph-backend/internal/data/repos"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

// RateLimitStatus is what Check reports: whether a generation action is
// admitted, how many remain, and when the window next admits one.
type RateLimitStatus struct {
	Allowed   bool       `json:"allowed"`
	Remaining int        `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

// RateLimiter enforces the per-user generation quota over a sliding window.
// Check-then-record is deliberately not atomic with the generation call: a
// near-simultaneous pair of requests may both pass Check before either
// Records. The quota is a cost-control soft cap, not a security boundary,
// and that small overshoot is accepted rather than paid for with locking.
type RateLimiter interface {
	Check(ctx context.Context, userID uuid.UUID) RateLimitStatus
	Record(ctx context.Context, userID uuid.UUID) error
}

type rateLimiter struct {
	log    *logger.Logger
	logs   repos.GenerationLogRepo
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(log *logger.Logger, logs repos.GenerationLogRepo, limit int, window time.Duration) RateLimiter {
	return &rateLimiter{
		log:    log.With("service", "RateLimiter"),
		logs:   logs,
		limit:  limit,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (rl *rateLimiter) Check(ctx context.Context, userID uuid.UUID) RateLimitStatus {
	now := rl.now()
	since := now.Add(-rl.window)

	count, err := rl.logs.CountSince(ctx, nil, userID, since)
	if err != nil {
		// Fail open: exploration availability beats strict quota
		// enforcement when the store is down. Loud enough to notice.
		rl.log.Warn("Rate limit count query failed; failing open", "user_id", userID, "error", err)
		return RateLimitStatus{Allowed: true, Remaining: rl.limit}
	}

	remaining := rl.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	status := RateLimitStatus{
		Allowed:   int(count) < rl.limit,
		Remaining: remaining,
	}

	if !status.Allowed {
		oldest, err := rl.logs.OldestSince(ctx, nil, userID, since)
		if err != nil {
			rl.log.Warn("Rate limit oldest query failed", "user_id", userID, "error", err)
		} else if oldest != nil {
			reset := oldest.Add(rl.window)
			status.ResetAt = &reset
		}
	}
	return status
}

func (rl *rateLimiter) Record(ctx context.Context, userID uuid.UUID) error {
	return rl.logs.Append(ctx, nil, userID, rl.now())
}
