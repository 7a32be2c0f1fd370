package wallet

import (
	"errors"
	"sync"
	"testing"

	"github.com/glowlive/stream-app/internal/gift"
)

var rose = gift.Gift{ID: "rose", Name: "Rose", Icon: "🌹", Cost: 5}

func TestSendGift(t *testing.T) {
	w := New(100)

	tx, err := w.SendGift(rose, "streamer_amy")
	if err != nil {
		t.Fatalf("SendGift error: %v", err)
	}
	if w.Balance() != 95 {
		t.Errorf("balance = %d, want 95", w.Balance())
	}
	if tx.Type != TypeGiftSent {
		t.Errorf("tx.Type = %q, want %q", tx.Type, TypeGiftSent)
	}
	if tx.Amount != -5 {
		t.Errorf("tx.Amount = %d, want -5", tx.Amount)
	}
	if tx.ID == "" || tx.TimestampMs == 0 {
		t.Errorf("tx missing id/timestamp: %+v", tx)
	}
	if tx.Description != "Sent Rose to streamer_amy" {
		t.Errorf("tx.Description = %q", tx.Description)
	}
}

func TestSendGift_InsufficientFunds(t *testing.T) {
	w := New(100)
	diamond := gift.Gift{ID: "diamond", Name: "Diamond", Cost: 250}

	_, err := w.SendGift(diamond, "streamer_amy")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}
	if w.Balance() != 100 {
		t.Errorf("balance = %d, want 100 (unchanged)", w.Balance())
	}
	if len(w.Transactions()) != 0 {
		t.Errorf("ledger has %d entries, want 0", len(w.Transactions()))
	}
}

func TestSendGift_ExactBalance(t *testing.T) {
	w := New(5)

	if _, err := w.SendGift(rose, "x"); err != nil {
		t.Fatalf("SendGift at exact balance: %v", err)
	}
	if w.Balance() != 0 {
		t.Errorf("balance = %d, want 0", w.Balance())
	}
}

func TestSendGift_InvalidGift(t *testing.T) {
	w := New(100)

	bad := gift.Gift{ID: "", Name: "Mystery", Cost: 0}
	_, err := w.SendGift(bad, "x")
	if !errors.Is(err, gift.ErrInvalidGift) {
		t.Fatalf("error = %v, want ErrInvalidGift", err)
	}
	if w.Balance() != 100 {
		t.Errorf("balance = %d, want 100 (unchanged)", w.Balance())
	}
}

// A deduction applied against the shared balance store produces the same
// ledger entry shape as a wallet send, so persistence never depends on an
// in-memory wallet existing for the session.
func TestNewGiftSentTransaction(t *testing.T) {
	tx := NewGiftSentTransaction(rose, "streamer_amy")

	if tx.Type != TypeGiftSent {
		t.Errorf("tx.Type = %q, want %q", tx.Type, TypeGiftSent)
	}
	if tx.Amount != -5 {
		t.Errorf("tx.Amount = %d, want -5", tx.Amount)
	}
	if tx.Description != "Sent Rose to streamer_amy" {
		t.Errorf("tx.Description = %q", tx.Description)
	}
	if tx.ID == "" || tx.TimestampMs == 0 {
		t.Errorf("tx missing id/timestamp: %+v", tx)
	}

	// Identical shape to the wallet path.
	w := New(100)
	wtx, err := w.SendGift(rose, "streamer_amy")
	if err != nil {
		t.Fatalf("SendGift error: %v", err)
	}
	if tx.Type != wtx.Type || tx.Amount != wtx.Amount || tx.Description != wtx.Description {
		t.Errorf("standalone entry %+v differs from wallet entry %+v", tx, wtx)
	}
}

func TestReceiveGift(t *testing.T) {
	w := New(0)

	tx, err := w.ReceiveGift(rose, "viewer_42")
	if err != nil {
		t.Fatalf("ReceiveGift error: %v", err)
	}
	if w.Balance() != 5 {
		t.Errorf("balance = %d, want 5", w.Balance())
	}
	if tx.Type != TypeGiftReceived || tx.Amount != 5 {
		t.Errorf("tx = %+v", tx)
	}
}

func TestPurchaseCoins(t *testing.T) {
	w := New(10)

	tx, err := w.PurchaseCoins(500)
	if err != nil {
		t.Fatalf("PurchaseCoins error: %v", err)
	}
	if w.Balance() != 510 {
		t.Errorf("balance = %d, want 510", w.Balance())
	}
	if tx.Type != TypePurchase || tx.Amount != 500 {
		t.Errorf("tx = %+v", tx)
	}

	for _, amount := range []int64{0, -5} {
		if _, err := w.PurchaseCoins(amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("PurchaseCoins(%d) error = %v, want ErrInvalidAmount", amount, err)
		}
	}
	if w.Balance() != 510 {
		t.Errorf("balance = %d after rejected purchases, want 510", w.Balance())
	}
}

// Purchasing then gifting the same value returns the wallet to its original
// balance with two ledger entries of opposite sign.
func TestPurchaseThenSend_RoundTrip(t *testing.T) {
	w := New(100)
	star := gift.Gift{ID: "star", Name: "Star", Cost: 250}

	if _, err := w.PurchaseCoins(250); err != nil {
		t.Fatalf("PurchaseCoins: %v", err)
	}
	if _, err := w.SendGift(star, "streamer_amy"); err != nil {
		t.Fatalf("SendGift: %v", err)
	}

	if w.Balance() != 100 {
		t.Errorf("balance = %d, want 100", w.Balance())
	}

	txs := w.Transactions()
	if len(txs) != 2 {
		t.Fatalf("ledger has %d entries, want 2", len(txs))
	}
	if txs[0].Amount != 250 || txs[1].Amount != -250 {
		t.Errorf("amounts = %d, %d; want +250, -250", txs[0].Amount, txs[1].Amount)
	}
}

// Balance always equals initial + sum of ledger amounts, and never goes
// negative regardless of the operation mix.
func TestLedger_BalanceMatchesSum(t *testing.T) {
	w := New(40)
	fire := gift.Gift{ID: "fire", Name: "Fire", Cost: 50}

	w.SendGift(fire, "a")      // rejected: 40 < 50
	w.PurchaseCoins(60)        // 100
	w.SendGift(fire, "a")      // 50
	w.SendGift(fire, "b")      // 0
	w.SendGift(rose, "c")      // rejected: 0 < 5
	w.ReceiveGift(rose, "fan") // 5

	var sum int64
	for _, tx := range w.Transactions() {
		sum += tx.Amount
	}
	if got := w.Balance(); got != 40+sum {
		t.Errorf("balance = %d, want initial+sum = %d", got, 40+sum)
	}
	if w.Balance() < 0 {
		t.Errorf("balance went negative: %d", w.Balance())
	}
	if got := w.GiftsSentTotal(); got != 100 {
		t.Errorf("GiftsSentTotal = %d, want 100", got)
	}
}

// Concurrent sends against a tight balance must never overdraw: the
// check-and-deduct is a single critical section.
func TestSendGift_ConcurrentNoOverdraw(t *testing.T) {
	const workers = 50
	w := New(100) // room for exactly 20 roses at 5 coins each

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.SendGift(rose, "streamer_amy"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 20 {
		t.Errorf("%d sends succeeded, want 20", succeeded)
	}
	if w.Balance() != 0 {
		t.Errorf("balance = %d, want 0", w.Balance())
	}
	if w.Balance() < 0 {
		t.Fatalf("balance went negative: %d", w.Balance())
	}
}

func TestTransactions_ReturnsCopy(t *testing.T) {
	w := New(100)
	w.PurchaseCoins(10)

	txs := w.Transactions()
	txs[0].Amount = -9999

	if w.Transactions()[0].Amount != 10 {
		t.Fatal("mutating Transactions() result leaked into the ledger")
	}
}
