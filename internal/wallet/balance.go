package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BalancePrefix is the Redis key prefix for shared coin balances.
const BalancePrefix = "coins:"

// BalanceTTL keeps balance keys alive as long as the account is active.
// Every touch refreshes it.
const BalanceTTL = 24 * time.Hour

// BalanceStore keeps coin balances in Redis so that two stream server
// instances serving the same account agree on funds. The deduct path is a
// Lua script: the balance check and the decrement happen in one atomic
// round trip, closing the window where two concurrent gifts both observe
// enough funds.
type BalanceStore struct {
	rdb          *redis.Client
	deductScript *redis.Script
}

// NewBalanceStore creates a balance store using the provided Redis client.
func NewBalanceStore(rdb *redis.Client) *BalanceStore {
	return &BalanceStore{
		rdb:          rdb,
		deductScript: redis.NewScript(deductLua),
	}
}

// Get returns the current balance for an account. A missing key reads as 0.
func (s *BalanceStore) Get(ctx context.Context, account string) (int64, error) {
	val, err := s.rdb.Get(ctx, BalancePrefix+account).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("wallet: balance get: %w", err)
	}
	return val, nil
}

// Credit adds amount coins and returns the new balance.
func (s *BalanceStore) Credit(ctx context.Context, account string, amount int64) (int64, error) {
	key := BalancePrefix + account
	pipe := s.rdb.Pipeline()
	incr := pipe.IncrBy(ctx, key, amount)
	pipe.Expire(ctx, key, BalanceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("wallet: balance credit: %w", err)
	}
	return incr.Val(), nil
}

// Deduct atomically checks and deducts cost from the balance. It returns
// the new balance on success, or ErrInsufficientFunds (with the balance
// untouched) when funds do not cover the cost.
func (s *BalanceStore) Deduct(ctx context.Context, account string, cost int64) (int64, error) {
	key := BalancePrefix + account
	result, err := s.deductScript.Run(ctx, s.rdb, []string{key}, cost, int(BalanceTTL.Seconds())).Int64()
	if err != nil {
		return 0, fmt.Errorf("wallet: balance deduct: %w", err)
	}
	if result < 0 {
		return 0, ErrInsufficientFunds
	}
	return result, nil
}

// Seed installs the starting balance for a new account. It writes only
// when no balance key exists (SETNX), so a retry, a Redis blip on an
// earlier read, or a racing second connection can never overwrite a live
// balance. Returns true when the seed was written, false when the account
// already had a balance.
func (s *BalanceStore) Seed(ctx context.Context, account string, balance int64) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, BalancePrefix+account, balance, BalanceTTL).Result()
	if err != nil {
		return false, fmt.Errorf("wallet: balance seed: %w", err)
	}
	return ok, nil
}

// Set overwrites the balance outright. Used in tests; production flows go
// through Seed/Credit/Deduct.
func (s *BalanceStore) Set(ctx context.Context, account string, balance int64) error {
	return s.rdb.Set(ctx, BalancePrefix+account, balance, BalanceTTL).Err()
}

// deductLua checks the balance and decrements it in one atomic step.
// Returns the new balance, or -1 if funds are insufficient.
const deductLua = `
local key = KEYS[1]
local cost = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local balance = tonumber(redis.call('GET', key) or '0')
if balance < cost then
    return -1
end

local new_balance = redis.call('DECRBY', key, cost)
redis.call('EXPIRE', key, ttl)
return new_balance
`
