// Package account implements the pre-paid token ledger that gates batch
// submission. Screening one resume costs a fixed number of tokens; the
// reservation is a single atomic check-and-decrement so a concurrent pair of
// submissions can never overdraw a balance.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrInsufficientTokens is returned when a reservation exceeds the balance.
var ErrInsufficientTokens = errors.New("account: insufficient tokens")

// Balance is a user's current ledger state.
type Balance struct {
	UserID    string `json:"user_id"`
	Tokens    int64  `json:"tokens"`
	TotalUsed int64  `json:"total_used"`
}

// Ledger is the account-management collaborator interface. The processor
// never caches balances; every submission goes through Reserve.
type Ledger interface {
	// Balance returns the current state, initializing new users with the
	// free grant.
	Balance(ctx context.Context, userID string) (*Balance, error)
	// Reserve atomically checks and decrements the balance by amount.
	Reserve(ctx context.Context, userID string, amount int) error
	// Refund returns a prior reservation, used when a queued job fails at
	// the infrastructure level before producing results.
	Refund(ctx context.Context, userID string, amount int) error
	// Credit adds purchased tokens and returns the new balance.
	Credit(ctx context.Context, userID string, amount int) (int64, error)
}

const ledgerKeyPrefix = "screener:tokens:"

// reserveScript initializes absent users with the free grant, then performs
// the check-and-decrement in one atomic step.
var reserveScript = redis.NewScript(`
local tokens = redis.call('HGET', KEYS[1], 'tokens')
if not tokens then
  redis.call('HSET', KEYS[1], 'tokens', ARGV[2], 'total_used', 0)
  tokens = ARGV[2]
end
tokens = tonumber(tokens)
local need = tonumber(ARGV[1])
if tokens < need then
  return -1
end
redis.call('HINCRBY', KEYS[1], 'tokens', -need)
redis.call('HINCRBY', KEYS[1], 'total_used', need)
return tokens - need
`)

// RedisLedger keeps balances in a Redis hash per user.
type RedisLedger struct {
	client       *redis.Client
	initialGrant int
}

var _ Ledger = (*RedisLedger)(nil)

// NewRedisLedger wraps an existing Redis client.
func NewRedisLedger(client *redis.Client, initialGrant int) *RedisLedger {
	if initialGrant <= 0 {
		initialGrant = 100
	}
	return &RedisLedger{client: client, initialGrant: initialGrant}
}

func ledgerKey(userID string) string {
	return ledgerKeyPrefix + userID
}

func (l *RedisLedger) Balance(ctx context.Context, userID string) (*Balance, error) {
	key := ledgerKey(userID)

	exists, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("check ledger %s: %w", userID, err)
	}
	if exists == 0 {
		err := l.client.HSet(ctx, key, "tokens", l.initialGrant, "total_used", 0).Err()
		if err != nil {
			return nil, fmt.Errorf("initialize ledger %s: %w", userID, err)
		}
	}

	fields, err := l.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", userID, err)
	}

	balance := &Balance{UserID: userID}
	fmt.Sscan(fields["tokens"], &balance.Tokens)
	fmt.Sscan(fields["total_used"], &balance.TotalUsed)
	return balance, nil
}

func (l *RedisLedger) Reserve(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return nil
	}
	remaining, err := reserveScript.Run(ctx, l.client,
		[]string{ledgerKey(userID)}, amount, l.initialGrant).Int64()
	if err != nil {
		return fmt.Errorf("reserve %d tokens for %s: %w", amount, userID, err)
	}
	if remaining < 0 {
		return fmt.Errorf("reserve %d tokens for %s: %w", amount, userID, ErrInsufficientTokens)
	}
	return nil
}

func (l *RedisLedger) Refund(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return nil
	}
	key := ledgerKey(userID)
	pipe := l.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "tokens", int64(amount))
	pipe.HIncrBy(ctx, key, "total_used", int64(-amount))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("refund %d tokens for %s: %w", amount, userID, err)
	}
	return nil
}

func (l *RedisLedger) Credit(ctx context.Context, userID string, amount int) (int64, error) {
	if _, err := l.Balance(ctx, userID); err != nil { // ensure initialized
		return 0, err
	}
	newBalance, err := l.client.HIncrBy(ctx, ledgerKey(userID), "tokens", int64(amount)).Result()
	if err != nil {
		return 0, fmt.Errorf("credit %d tokens for %s: %w", amount, userID, err)
	}
	return newBalance, nil
}

// UnlimitedLedger is the degraded-mode ledger for deployments without Redis.
// Every reservation succeeds and balances report the free grant; quota
// enforcement is simply off.
type UnlimitedLedger struct {
	Grant int
}

var _ Ledger = (*UnlimitedLedger)(nil)

func (l *UnlimitedLedger) grant() int64 {
	if l.Grant <= 0 {
		return 100
	}
	return int64(l.Grant)
}

func (l *UnlimitedLedger) Balance(_ context.Context, userID string) (*Balance, error) {
	return &Balance{UserID: userID, Tokens: l.grant()}, nil
}

func (l *UnlimitedLedger) Reserve(context.Context, string, int) error { return nil }

func (l *UnlimitedLedger) Refund(context.Context, string, int) error { return nil }

func (l *UnlimitedLedger) Credit(_ context.Context, _ string, amount int) (int64, error) {
	return l.grant() + int64(amount), nil
}
