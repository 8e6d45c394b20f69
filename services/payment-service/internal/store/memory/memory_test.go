package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

func TestStore_TokenMergeAndQueries(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.UpdateToken(ctx, payment.TokenRecord{ID: "R1"}); !errors.Is(err, payment.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
	_ = s.SaveToken(ctx, payment.TokenRecord{ID: "R1", Brand: "VISA", Last4: "4242", ExpiryMM: 7, ExpiryYY: 2027, UserID: "u1"})
	_ = s.SaveToken(ctx, payment.TokenRecord{ID: "R1"}) // webhook with only the id
	_ = s.SaveToken(ctx, payment.TokenRecord{ID: "R2", UserID: "u2", ExpiryMM: 7, ExpiryYY: 2027})

	toks, _ := s.GetTokensByUser(ctx, "u1")
	if len(toks) != 1 || toks[0].Last4 != "4242" {
		t.Fatalf("card details lost on re-save: %+v", toks)
	}
	exp, _ := s.GetTokensExpiringIn(ctx, 2027, 7)
	if len(exp) != 2 {
		t.Fatalf("expected 2 expiring tokens, got %d", len(exp))
	}
}

func TestStore_ListPendingTransactions(t *testing.T) {
	s := NewStore()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.SaveTransaction(ctx, payment.TransactionRecord{GatewayTxnID: "old", Status: payment.TransactionPending, CreatedAt: now.Add(-time.Hour)})
	_ = s.SaveTransaction(ctx, payment.TransactionRecord{GatewayTxnID: "older", Status: payment.TransactionPending, CreatedAt: now.Add(-2 * time.Hour)})
	_ = s.SaveTransaction(ctx, payment.TransactionRecord{GatewayTxnID: "new", Status: payment.TransactionPending, CreatedAt: now})
	_ = s.SaveTransaction(ctx, payment.TransactionRecord{GatewayTxnID: "done", Status: payment.TransactionSuccess, CreatedAt: now.Add(-time.Hour)})

	got, err := s.ListPendingTransactions(ctx, 10, 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].GatewayTxnID != "older" || got[1].GatewayTxnID != "old" {
		t.Fatalf("unexpected pending list %+v", got)
	}
	got, _ = s.ListPendingTransactions(ctx, 1, 5*time.Minute)
	if len(got) != 1 {
		t.Fatalf("limit ignored: %d", len(got))
	}
}

func TestStore_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SaveSession(ctx, payment.CheckoutSession{ID: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIdempotencyStore(t *testing.T) {
	s := NewIdempotencyStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := s.Claim(ctx, "k", time.Hour)
	if !ok {
		t.Fatal("first claim must succeed")
	}
	if ok, _ := s.Claim(ctx, "k", time.Hour); ok {
		t.Fatal("second claim must fail")
	}
	_ = s.Release(ctx, "k")
	if ok, _ := s.Claim(ctx, "k", time.Hour); !ok {
		t.Fatal("claim after release must succeed")
	}
	now = now.Add(2 * time.Hour)
	if ok, _ := s.Claim(ctx, "k", time.Hour); !ok {
		t.Fatal("claim after expiry must succeed")
	}
}

func TestIdempotencyStore_LeaseThenComplete(t *testing.T) {
	s := NewIdempotencyStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := s.Claim(ctx, "crashed", 5*time.Minute); !ok {
		t.Fatal("first claim must succeed")
	}
	if ok, _ := s.Claim(ctx, "done", 5*time.Minute); !ok {
		t.Fatal("first claim must succeed")
	}
	if err := s.Complete(ctx, "done", 72*time.Hour); err != nil {
		t.Fatal(err)
	}

	now = now.Add(time.Minute)
	if ok, _ := s.Claim(ctx, "crashed", 5*time.Minute); ok {
		t.Fatal("claim inside the lease must fail")
	}

	now = now.Add(10 * time.Minute)
	if ok, _ := s.Claim(ctx, "crashed", 5*time.Minute); !ok {
		t.Fatal("claim after the lease lapsed must succeed")
	}
	if ok, _ := s.Claim(ctx, "done", 5*time.Minute); ok {
		t.Fatal("completed key must outlive the lease")
	}
}

func TestIdempotencyStore_SweepsExpiredKeys(t *testing.T) {
	s := NewIdempotencyStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		if ok, _ := s.Claim(ctx, k, time.Minute); !ok {
			t.Fatalf("claim %s must succeed", k)
		}
	}
	if ok, _ := s.Claim(ctx, "keep", time.Hour); !ok {
		t.Fatal("claim keep must succeed")
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := s.Claim(ctx, "new", time.Hour); !ok {
		t.Fatal("claim new must succeed")
	}
	if len(s.keys) != 2 {
		t.Fatalf("expired keys not swept, %d held", len(s.keys))
	}
	if _, ok := s.keys["keep"]; !ok {
		t.Fatal("live key swept")
	}
}
