// services/payment-service/internal/store/postgres/token_store.postgres.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

// SaveToken inserts a card token. A re-save of a known id only overwrites the fields it carries.
func (s *Store) SaveToken(ctx context.Context, tok payment.TokenRecord) error {
	query := `
		INSERT INTO card_tokens (id, brand, last4, expiry_mm, expiry_yy, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET brand = COALESCE(NULLIF(EXCLUDED.brand, ''), card_tokens.brand),
		    last4 = COALESCE(NULLIF(EXCLUDED.last4, ''), card_tokens.last4),
		    expiry_mm = CASE WHEN EXCLUDED.expiry_mm = 0 THEN card_tokens.expiry_mm ELSE EXCLUDED.expiry_mm END,
		    expiry_yy = CASE WHEN EXCLUDED.expiry_mm = 0 THEN card_tokens.expiry_yy ELSE EXCLUDED.expiry_yy END,
		    user_id = COALESCE(NULLIF(EXCLUDED.user_id, ''), card_tokens.user_id),
		    updated_at = EXCLUDED.updated_at
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		tok.ID,
		tok.Brand,
		tok.Last4,
		tok.ExpiryMM,
		tok.ExpiryYY,
		tok.UserID,
		orNow(tok.CreatedAt, s.now),
		orNow(tok.UpdatedAt, s.now),
	)
	if err != nil {
		return fmt.Errorf("db: failed to save token: %w", err)
	}
	return nil
}

// UpdateToken returns payment.ErrTokenNotFound for unknown ids; the caller falls back to SaveToken.
func (s *Store) UpdateToken(ctx context.Context, tok payment.TokenRecord) error {
	return s.RunInTx(ctx, func(ctx context.Context) error {
		var exists bool
		err := s.conn(ctx).QueryRowContext(ctx,
			`SELECT TRUE FROM card_tokens WHERE id = $1 FOR UPDATE`, tok.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return payment.ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("db: failed to lock token: %w", err)
		}
		return s.SaveToken(ctx, tok)
	})
}

func (s *Store) DeleteToken(ctx context.Context, id string) error {
	if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM card_tokens WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db: failed to delete token: %w", err)
	}
	return nil
}

func (s *Store) GetTokensByUser(ctx context.Context, userID string) ([]payment.TokenRecord, error) {
	return s.queryTokens(ctx, `WHERE user_id = $1 ORDER BY id`, userID)
}

func (s *Store) GetTokensExpiringIn(ctx context.Context, year, month int) ([]payment.TokenRecord, error) {
	return s.queryTokens(ctx, `WHERE expiry_yy = $1 AND expiry_mm = $2 ORDER BY id`, year, month)
}

func (s *Store) queryTokens(ctx context.Context, where string, args ...any) ([]payment.TokenRecord, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, brand, last4, expiry_mm, expiry_yy, user_id, created_at, updated_at FROM card_tokens `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("db: failed to query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []payment.TokenRecord
	for rows.Next() {
		var t payment.TokenRecord
		if err := rows.Scan(&t.ID, &t.Brand, &t.Last4, &t.ExpiryMM, &t.ExpiryYY, &t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db: failed to scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: token rows: %w", err)
	}
	return tokens, nil
}
