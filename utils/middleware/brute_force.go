package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/campusflow/campus-flow-api/utils/cache"
	"github.com/campusflow/campus-flow-api/utils/logger"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

const attemptWindow = 15 * time.Minute

// BruteForceProtection locks out IPs after repeated failed logins. The
// counters live in Redis so every instance sees the same lockouts.
type BruteForceProtection struct {
	cache cache.Cache
}

func NewBruteForceProtection(c cache.Cache) *BruteForceProtection {
	return &BruteForceProtection{cache: c}
}

func attemptKey(ip string) string { return "brute_force:attempts:" + ip }
func lockKey(ip string) string { return "brute_force:lock:" + ip }

// CheckAndRecordAttempt rejects requests from a locked IP
func (b *BruteForceProtection) CheckAndRecordAttempt() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		locked, retryAfter, err := b.IsIPLocked(c.UserContext(), ip)
		if err != nil {
			// an unreachable cache must not block logins
			logger.Warn().Err(err).Msg("brute force check unavailable")
			return c.Next()
		}
		if locked {
			seconds := int(retryAfter.Seconds())
			if seconds <= 0 {
				seconds = 60
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
			return response.TooManyRequests(c, fmt.Sprintf("Too many failed attempts. Try again in %d seconds", seconds))
		}
		return c.Next()
	}
}

// lockoutFor is the progressive lockout for a number of failures in the window
func lockoutFor(attempts int64) time.Duration {
	switch {
	case attempts >= 25:
		return 24 * time.Hour
	case attempts >= 10:
		return time.Hour
	case attempts >= 5:
		return 2 * time.Minute
	default:
		return 0
	}
}

// RecordFailedAttempt counts a failure and locks the IP when a threshold is crossed
func (b *BruteForceProtection) RecordFailedAttempt(ctx context.Context, ip string) error {
	attempts, err := b.cache.Increment(ctx, attemptKey(ip))
	if err != nil {
		return nil
	}
	if attempts == 1 {
		_ = b.cache.Expire(ctx, attemptKey(ip), attemptWindow)
	}

	if d := lockoutFor(attempts); d > 0 {
		logger.Warn().Str("ip", ip).Int64("attempts", attempts).Dur("lockout", d).Msg("locking out IP after failed logins")
		return b.cache.Set(ctx, lockKey(ip), "locked", d)
	}
	return nil
}

// RecordSuccessfulAttempt clears failed attempts on successful login
func (b *BruteForceProtection) RecordSuccessfulAttempt(ctx context.Context, ip string) error {
	return b.cache.Delete(ctx, attemptKey(ip), lockKey(ip))
}

// IsIPLocked reports whether ip is locked and for how much longer
func (b *BruteForceProtection) IsIPLocked(ctx context.Context, ip string) (bool, time.Duration, error) {
	_, err := b.cache.Get(ctx, lockKey(ip))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return false, 0, nil
		}
		return false, 0, err
	}
	ttl, err := b.cache.TTL(ctx, lockKey(ip))
	if err != nil {
		return true, 0, nil
	}
	return true, ttl, nil
}
