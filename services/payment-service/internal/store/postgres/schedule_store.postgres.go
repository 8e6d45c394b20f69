// services/payment-service/internal/store/postgres/schedule_store.postgres.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

func (s *Store) UpsertSchedule(ctx context.Context, rec payment.ScheduleRecord) error {
	query := `
		INSERT INTO billing_schedules
		(schedule_id, registration_id, user_id, status, amount, currency, interval, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (schedule_id) DO UPDATE
		SET registration_id = EXCLUDED.registration_id,
		    user_id = EXCLUDED.user_id,
		    status = EXCLUDED.status,
		    amount = EXCLUDED.amount,
		    currency = EXCLUDED.currency,
		    interval = EXCLUDED.interval,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		rec.ScheduleID,
		rec.RegistrationID,
		rec.UserID,
		rec.Status,
		rec.Amount,
		rec.Currency,
		rec.Interval,
		orNow(rec.CreatedAt, s.now),
		orNow(rec.UpdatedAt, s.now),
	)
	if err != nil {
		return fmt.Errorf("db: failed to upsert schedule: %w", err)
	}
	return nil
}

func (s *Store) GetSchedule(ctx context.Context, scheduleID string) (*payment.ScheduleRecord, error) {
	query := `
		SELECT schedule_id, registration_id, user_id, status, amount, currency, interval, created_at, updated_at
		FROM billing_schedules
		WHERE schedule_id = $1
	`
	var rec payment.ScheduleRecord
	err := s.conn(ctx).QueryRowContext(ctx, query, scheduleID).Scan(
		&rec.ScheduleID,
		&rec.RegistrationID,
		&rec.UserID,
		&rec.Status,
		&rec.Amount,
		&rec.Currency,
		&rec.Interval,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payment.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: failed to get schedule: %w", err)
	}
	return &rec, nil
}

func (s *Store) SaveInstruction(ctx context.Context, ins payment.SubscriptionInstruction) error {
	recurring, err := marshalJSON(ins.Recurring)
	if err != nil {
		return fmt.Errorf("db: failed to encode instruction: %w", err)
	}
	var effectiveAt sql.NullTime
	if !ins.EffectiveAt.IsZero() {
		effectiveAt = sql.NullTime{Time: ins.EffectiveAt, Valid: true}
	}
	_, err = s.conn(ctx).ExecContext(ctx, `
		INSERT INTO subscription_instructions (id, kind, schedule_id, recurring, effective_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ins.ID, ins.Kind, ins.ScheduleID, recurring, effectiveAt, orNow(ins.CreatedAt, s.now))
	if err != nil {
		return fmt.Errorf("db: failed to save instruction: %w", err)
	}
	return nil
}
