// Package wallet implements the coin economy: a per-session wallet holding
// a coin balance and an append-only transaction ledger, plus the stores
// that persist transactions (Postgres) and share balances across stream
// server instances (Redis).
package wallet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glowlive/stream-app/internal/gift"
)

var (
	// ErrInsufficientFunds is returned when a gift costs more than the
	// wallet holds. The wallet is left untouched.
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")

	// ErrInvalidAmount is returned for coin purchases below 1.
	ErrInvalidAmount = errors.New("wallet: invalid amount")
)

// TransactionType discriminates ledger entries.
type TransactionType string

const (
	TypePurchase     TransactionType = "purchase"
	TypeGiftSent     TransactionType = "gift_sent"
	TypeGiftReceived TransactionType = "gift_received"
)

// Transaction is a single append-only ledger entry. Amount is signed:
// negative for gift sends, positive for purchases and received gifts.
type Transaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	Amount      int64           `json:"amount"`
	Description string          `json:"description"`
	TimestampMs int64           `json:"timestamp_ms"`
}

// Wallet is one user's session wallet. All balance mutations run inside a
// single critical section, so a concurrent pair of gift sends cannot both
// pass the balance check before either deducts.
type Wallet struct {
	mu           sync.Mutex
	balance      int64
	transactions []Transaction
}

// New creates a wallet with the given starting balance.
func New(initialBalance int64) *Wallet {
	return &Wallet{balance: initialBalance}
}

// Balance returns the current coin balance.
func (w *Wallet) Balance() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// Transactions returns a copy of the ledger in append order.
func (w *Wallet) Transactions() []Transaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Transaction, len(w.transactions))
	copy(out, w.transactions)
	return out
}

// SendGift deducts the gift's cost and appends a gift_sent entry naming the
// gift and recipient. It fails with ErrInvalidGift for malformed catalog
// entries and ErrInsufficientFunds when the balance cannot cover the cost;
// on failure nothing is mutated.
func (w *Wallet) SendGift(g gift.Gift, recipient string) (Transaction, error) {
	if err := gift.Validate(g); err != nil {
		return Transaction{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.balance < g.Cost {
		return Transaction{}, ErrInsufficientFunds
	}

	w.balance -= g.Cost
	tx := w.append(TypeGiftSent, -g.Cost,
		fmt.Sprintf("Sent %s to %s", g.Name, recipient))
	return tx, nil
}

// NewGiftSentTransaction builds a gift_sent ledger entry without going
// through a wallet, for deductions applied directly against the shared
// balance store. The entry must always be persisted once the deduction
// succeeded, even when no in-memory wallet is tracking the session.
func NewGiftSentTransaction(g gift.Gift, recipient string) Transaction {
	return Transaction{
		ID:          uuid.New().String(),
		Type:        TypeGiftSent,
		Amount:      -g.Cost,
		Description: fmt.Sprintf("Sent %s to %s", g.Name, recipient),
		TimestampMs: time.Now().UnixMilli(),
	}
}

// ReceiveGift credits the gift's cost on the streamer side and appends a
// gift_received entry. The credit is independent of the sender's deduction;
// the two sides are separate ledger entries, not one atomic transfer.
func (w *Wallet) ReceiveGift(g gift.Gift, sender string) (Transaction, error) {
	if err := gift.Validate(g); err != nil {
		return Transaction{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.balance += g.Cost
	tx := w.append(TypeGiftReceived, g.Cost,
		fmt.Sprintf("Received %s from %s", g.Name, sender))
	return tx, nil
}

// PurchaseCoins credits amount coins and appends a purchase entry. There is
// no upper bound on purchases.
func (w *Wallet) PurchaseCoins(amount int64) (Transaction, error) {
	if amount < 1 {
		return Transaction{}, ErrInvalidAmount
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.balance += amount
	tx := w.append(TypePurchase, amount,
		fmt.Sprintf("Purchased %d coins", amount))
	return tx, nil
}

// GiftsSentTotal returns the total coins spent on gifts, as a positive
// number.
func (w *Wallet) GiftsSentTotal() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	var total int64
	for _, tx := range w.transactions {
		if tx.Type == TypeGiftSent {
			total -= tx.Amount
		}
	}
	return total
}

// append records a ledger entry. Caller must hold w.mu.
func (w *Wallet) append(txType TransactionType, amount int64, description string) Transaction {
	tx := Transaction{
		ID:          uuid.New().String(),
		Type:        txType,
		Amount:      amount,
		Description: description,
		TimestampMs: time.Now().UnixMilli(),
	}
	w.transactions = append(w.transactions, tx)
	return tx
}
