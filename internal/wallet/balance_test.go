package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newTestBalanceStore creates a BalanceStore connected to a local Redis
// instance. Tests are skipped if Redis is unavailable.
func newTestBalanceStore(t *testing.T) (*BalanceStore, context.Context) {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid conflicts
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping: Redis not available: %v", err)
	}

	rdb.FlushDB(ctx)
	t.Cleanup(func() {
		rdb.FlushDB(ctx)
		rdb.Close()
	})

	return NewBalanceStore(rdb), ctx
}

func TestBalanceStore_GetMissingKey(t *testing.T) {
	store, ctx := newTestBalanceStore(t)

	balance, err := store.Get(ctx, "nobody")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
}

func TestBalanceStore_CreditAndDeduct(t *testing.T) {
	store, ctx := newTestBalanceStore(t)
	sid := "sess-1"

	balance, err := store.Credit(ctx, sid, 100)
	if err != nil {
		t.Fatalf("Credit error: %v", err)
	}
	if balance != 100 {
		t.Errorf("after credit: balance = %d, want 100", balance)
	}

	balance, err = store.Deduct(ctx, sid, 30)
	if err != nil {
		t.Fatalf("Deduct error: %v", err)
	}
	if balance != 70 {
		t.Errorf("after deduct: balance = %d, want 70", balance)
	}
}

func TestBalanceStore_DeductInsufficient(t *testing.T) {
	store, ctx := newTestBalanceStore(t)
	sid := "sess-2"

	if err := store.Set(ctx, sid, 100); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	_, err := store.Deduct(ctx, sid, 250)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}

	balance, err := store.Get(ctx, sid)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if balance != 100 {
		t.Errorf("balance = %d, want 100 (unchanged)", balance)
	}
}

// Seed writes the starting balance only for brand-new accounts: an account
// that already purchased or spent coins keeps its stored balance no matter
// how many times a reconnect tries to seed it.
func TestBalanceStore_SeedNeverClobbers(t *testing.T) {
	store, ctx := newTestBalanceStore(t)
	account := "amy"

	seeded, err := store.Seed(ctx, account, 500)
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if !seeded {
		t.Fatal("first Seed = false, want true for a new account")
	}

	// Spend some coins, then reconnect and seed again.
	if _, err := store.Deduct(ctx, account, 450); err != nil {
		t.Fatalf("Deduct error: %v", err)
	}
	seeded, err = store.Seed(ctx, account, 500)
	if err != nil {
		t.Fatalf("second Seed error: %v", err)
	}
	if seeded {
		t.Fatal("second Seed = true, want false for an existing account")
	}

	balance, err := store.Get(ctx, account)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if balance != 50 {
		t.Errorf("balance = %d, want 50 (seed must not overwrite)", balance)
	}
}

// The Lua script makes check-and-deduct atomic, so concurrent deducts can
// never overdraw even when they all observe sufficient funds up front.
func TestBalanceStore_ConcurrentDeducts(t *testing.T) {
	store, ctx := newTestBalanceStore(t)
	sid := "sess-3"

	if err := store.Set(ctx, sid, 100); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	const workers = 30 // each tries to deduct 10; only 10 can succeed
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Deduct(ctx, sid, 10); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Errorf("%d deducts succeeded, want 10", succeeded)
	}

	balance, err := store.Get(ctx, sid)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if balance != 0 {
		t.Errorf("final balance = %d, want 0", balance)
	}
}
