package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

// Runs against a real database only when PAYMENT_TEST_DSN is set.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PAYMENT_TEST_DSN")
	if dsn == "" {
		t.Skip("PAYMENT_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewStore(db)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestTransactionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := "T-" + uuid.NewString()

	rec := payment.TransactionRecord{
		GatewayTxnID: id,
		UserID:       "u1",
		Amount:       decimal.RequireFromString("10.50"),
		Currency:     "USD",
		ResultCode:   "000.200.000",
		Status:       payment.TransactionPending,
		Raw:          map[string]any{"id": id},
		CreatedAt:    time.Now().Add(-time.Hour),
	}
	require.NoError(t, s.SaveTransaction(ctx, rec))

	rec.Status = payment.TransactionSuccess
	rec.UserID = ""
	require.NoError(t, s.SaveTransaction(ctx, rec))

	got, err := s.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payment.TransactionSuccess, got.Status)
	assert.Equal(t, "u1", got.UserID, "empty owner must not clear the stored one")
	assert.True(t, got.Amount.Equal(rec.Amount))
	assert.Equal(t, id, got.Raw["id"])

	_, err = s.GetTransaction(ctx, "missing-"+id)
	assert.ErrorIs(t, err, payment.ErrTransactionNotFound)
}

func TestUpdateTokenUnknown(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateToken(context.Background(), payment.TokenRecord{ID: "reg-" + uuid.NewString()})
	assert.ErrorIs(t, err, payment.ErrTokenNotFound)
}

func TestSaveTokenKeepsCardDetails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := "reg-" + uuid.NewString()
	user := "user-" + uuid.NewString()

	require.NoError(t, s.SaveToken(ctx, payment.TokenRecord{ID: id, Brand: "VISA", Last4: "4242", ExpiryMM: 12, ExpiryYY: 2030, UserID: user}))
	require.NoError(t, s.UpdateToken(ctx, payment.TokenRecord{ID: id}))

	toks, err := s.GetTokensByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.Equal(t, "4242", toks[0].Last4)
	assert.Equal(t, 2030, toks[0].ExpiryYY)
}
