// services/payment-service/internal/store/postgres/transaction_store.postgres.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

func (s *Store) SaveSession(ctx context.Context, session payment.CheckoutSession) error {
	query := `
		INSERT INTO checkout_sessions (id, order_id, user_id, checkout_id, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET checkout_id = EXCLUDED.checkout_id, status = EXCLUDED.status
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		session.ID,
		session.OrderID,
		session.UserID,
		session.CheckoutID,
		session.Amount,
		session.Currency,
		session.Status,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("db: failed to save checkout session: %w", err)
	}
	return nil
}

// GetSessionsBy treats empty filter fields as wildcards, oldest first.
func (s *Store) GetSessionsBy(ctx context.Context, f payment.SessionFilter) ([]payment.CheckoutSession, error) {
	query := `
		SELECT id, order_id, user_id, checkout_id, amount, currency, status, created_at
		FROM checkout_sessions
		WHERE ($1 = '' OR order_id = $1)
		  AND ($2 = '' OR user_id = $2)
		  AND ($3 = '' OR checkout_id = $3)
		  AND ($4 = '' OR status = $4)
		ORDER BY created_at ASC
	`
	rows, err := s.conn(ctx).QueryContext(ctx, query, f.OrderID, f.UserID, f.CheckoutID, string(f.Status))
	if err != nil {
		return nil, fmt.Errorf("db: failed to query checkout sessions: %w", err)
	}
	defer rows.Close()

	var sessions []payment.CheckoutSession
	for rows.Next() {
		var cs payment.CheckoutSession
		if err := rows.Scan(&cs.ID, &cs.OrderID, &cs.UserID, &cs.CheckoutID, &cs.Amount, &cs.Currency, &cs.Status, &cs.CreatedAt); err != nil {
			return nil, fmt.Errorf("db: failed to scan checkout session: %w", err)
		}
		sessions = append(sessions, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: checkout session rows: %w", err)
	}
	return sessions, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM checkout_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db: failed to delete checkout session: %w", err)
	}
	return nil
}

// SaveTransaction upserts by gateway transaction id. The reconciler decides whether a status
// change is legal before calling this.
func (s *Store) SaveTransaction(ctx context.Context, rec payment.TransactionRecord) error {
	raw, err := marshalJSON(rec.Raw)
	if err != nil {
		return fmt.Errorf("db: failed to encode transaction payload: %w", err)
	}
	query := `
		INSERT INTO payment_transactions
		(gateway_txn_id, user_id, order_id, amount, currency, result_code, status, ui_message, raw, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (gateway_txn_id) DO UPDATE
		SET user_id = COALESCE(NULLIF(EXCLUDED.user_id, ''), payment_transactions.user_id),
		    order_id = COALESCE(NULLIF(EXCLUDED.order_id, ''), payment_transactions.order_id),
		    amount = EXCLUDED.amount,
		    currency = EXCLUDED.currency,
		    result_code = EXCLUDED.result_code,
		    status = EXCLUDED.status,
		    ui_message = EXCLUDED.ui_message,
		    raw = EXCLUDED.raw,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = s.conn(ctx).ExecContext(ctx, query,
		rec.GatewayTxnID,
		rec.UserID,
		rec.OrderID,
		rec.Amount,
		rec.Currency,
		rec.ResultCode,
		rec.Status,
		rec.UIMessage,
		raw,
		orNow(rec.CreatedAt, s.now),
		orNow(rec.UpdatedAt, s.now),
	)
	if err != nil {
		return fmt.Errorf("db: failed to save transaction: %w", err)
	}
	return nil
}

const transactionColumns = `gateway_txn_id, user_id, order_id, amount, currency, result_code, status, ui_message, raw, created_at, updated_at`

func (s *Store) GetTransaction(ctx context.Context, gatewayTxnID string) (*payment.TransactionRecord, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE gateway_txn_id = $1`, gatewayTxnID)
	rec, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payment.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: failed to get transaction: %w", err)
	}
	return rec, nil
}

// ListPendingTransactions fetches "stuck" transactions for the reconciliation worker.
func (s *Store) ListPendingTransactions(ctx context.Context, limit int, olderThan time.Duration) ([]payment.TransactionRecord, error) {
	cutOff := s.now().Add(-olderThan)
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC -- oldest first
		LIMIT $2
	`
	rows, err := s.conn(ctx).QueryContext(ctx, query, cutOff, limit)
	if err != nil {
		return nil, fmt.Errorf("db: failed to fetch pending transactions: %w", err)
	}
	defer rows.Close()

	var records []payment.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("db: failed to scan transaction: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: pending transaction rows: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(sc scanner) (*payment.TransactionRecord, error) {
	var rec payment.TransactionRecord
	var raw []byte
	if err := sc.Scan(
		&rec.GatewayTxnID,
		&rec.UserID,
		&rec.OrderID,
		&rec.Amount,
		&rec.Currency,
		&rec.ResultCode,
		&rec.Status,
		&rec.UIMessage,
		&raw,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m, err := unmarshalRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("decode raw payload: %w", err)
	}
	rec.Raw = m
	return &rec, nil
}

func orNow(t time.Time, now func() time.Time) time.Time {
	if t.IsZero() {
		return now()
	}
	return t
}
