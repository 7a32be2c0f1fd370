package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists gift transactions to PostgreSQL. The in-memory Wallet is
// authoritative for the session; persistence happens after the balance
// transition, never inside it, so a slow database cannot stall the chat
// send path's critical section.
type Store struct {
	db *sql.DB
}

// NewStore creates a transaction store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one ledger entry, attributed to the stream and session it
// occurred in.
func (s *Store) Append(ctx context.Context, streamID, sessionID string, tx Transaction) error {
	const query = `
		INSERT INTO gift_transactions (id, stream_id, session_id, type, amount, description, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		tx.ID,
		streamID,
		sessionID,
		string(tx.Type),
		tx.Amount,
		tx.Description,
		time.UnixMilli(tx.TimestampMs),
	)
	if err != nil {
		return fmt.Errorf("wallet: insert transaction: %w", err)
	}
	return nil
}

// StreamGiftTotal returns the total coins gifted to a stream, used to
// rebuild session earnings after a stream server restart. It sums the
// sender-side entries (negated, since sends are recorded as negative
// amounts): every gift persists a sender entry on the instance that
// accepted it, while the receive entry only exists where the broadcaster
// was connected.
func (s *Store) StreamGiftTotal(ctx context.Context, streamID string) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(-amount), 0)
		FROM gift_transactions
		WHERE stream_id = $1 AND type = 'gift_sent'`

	var total int64
	if err := s.db.QueryRowContext(ctx, query, streamID).Scan(&total); err != nil {
		return 0, fmt.Errorf("wallet: stream gift total: %w", err)
	}
	return total, nil
}

// RecentForSession returns a session's most recent ledger entries, newest
// first, for the wallet history view.
func (s *Store) RecentForSession(ctx context.Context, sessionID string, limit int) ([]Transaction, error) {
	const query = `
		SELECT id, type, amount, description, occurred_at
		FROM gift_transactions
		WHERE session_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("wallet: recent for session: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		var txType string
		var occurredAt time.Time
		if err := rows.Scan(&tx.ID, &txType, &tx.Amount, &tx.Description, &occurredAt); err != nil {
			return nil, fmt.Errorf("wallet: scan transaction: %w", err)
		}
		tx.Type = TransactionType(txType)
		tx.TimestampMs = occurredAt.UnixMilli()
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wallet: iterate transactions: %w", err)
	}
	return txs, nil
}
