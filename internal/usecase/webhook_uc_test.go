//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/adapter"
	"opticalfiber-backend/internal/domain/ports/repository"
	"opticalfiber-backend/internal/usecase"
)

func TestWebhookReconciler_HandleNotification(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*MockPaymentRepo, *MockPaymentGateway, usecase.WebhookReconciler, *model.Payment) {
		t.Helper()
		repo := NewMockPaymentRepo()
		gw := &MockPaymentGateway{}
		ledger := usecase.NewPaymentLedger(repo, "INR", 365, newTestLogger())
		p, err := ledger.CreatePending(ctx, repository.NoTX, "c1", usecase.NewTransactionID(), decimal.NewFromInt(500), "upi")
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		return repo, gw, usecase.NewWebhookReconciler(repo, ledger, gw, newTestLogger()), p
	}
	notify := func(gw *MockPaymentGateway, n adapter.PaymentNotification) {
		gw.ParseWebhookFunc = func(raw []byte) (adapter.PaymentNotification, error) { return n, nil }
	}

	t.Run("should apply success once and ack replays", func(t *testing.T) {
		repo, gw, wr, p := setup(t)
		notify(gw, adapter.PaymentNotification{OrderID: p.OrderID, Status: adapter.GatewayOrderPaid, Amount: p.Amount, PaymentID: "cfp"})

		ack, err := wr.HandleNotification(ctx, []byte(`{}`), "valid")
		if err != nil || ack.Outcome != "applied" {
			t.Fatalf("expected applied, got %+v err=%v", ack, err)
		}
		stored, _ := repo.FindByID(ctx, repository.NoTX, p.ID)
		first := *stored.ValidUntil

		ack, err = wr.HandleNotification(ctx, []byte(`{}`), "valid")
		if err != nil || ack.Outcome != "noop" {
			t.Fatalf("expected noop on replay, got %+v err=%v", ack, err)
		}
		stored, _ = repo.FindByID(ctx, repository.NoTX, p.ID)
		if !stored.ValidUntil.Equal(first) {
			t.Error("expected replay to leave valid_until unchanged")
		}
	})

	t.Run("should reject a bad signature before parsing", func(t *testing.T) {
		_, gw, wr, _ := setup(t)
		parsed := false
		gw.ParseWebhookFunc = func(raw []byte) (adapter.PaymentNotification, error) {
			parsed = true
			return adapter.PaymentNotification{}, nil
		}

		_, err := wr.HandleNotification(ctx, []byte(`{"tampered":true}`), "forged")
		if !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("expected ErrSignatureInvalid, got %v", err)
		}
		if parsed {
			t.Error("expected payload not to be parsed")
		}
	})

	t.Run("should reject a malformed payload", func(t *testing.T) {
		_, _, wr, _ := setup(t)
		if _, err := wr.HandleNotification(ctx, []byte(`not json`), "valid"); !errors.Is(err, domain.ErrMalformedPayload) {
			t.Fatalf("expected ErrMalformedPayload, got %v", err)
		}
	})

	t.Run("should acknowledge an unknown order", func(t *testing.T) {
		_, gw, wr, _ := setup(t)
		notify(gw, adapter.PaymentNotification{OrderID: "txn_missing", Status: adapter.GatewayOrderPaid})

		ack, err := wr.HandleNotification(ctx, []byte(`{}`), "valid")
		if err != nil || ack.Outcome != "unknown_order" {
			t.Fatalf("expected unknown_order ack, got %+v err=%v", ack, err)
		}
	})

	t.Run("should not downgrade a success on a late failure", func(t *testing.T) {
		repo, gw, wr, p := setup(t)
		notify(gw, adapter.PaymentNotification{OrderID: p.OrderID, Status: adapter.GatewayOrderPaid, Amount: p.Amount})
		if _, err := wr.HandleNotification(ctx, nil, "valid"); err != nil {
			t.Fatalf("success: %v", err)
		}
		notify(gw, adapter.PaymentNotification{OrderID: p.OrderID, Status: adapter.GatewayOrderFailed})

		ack, err := wr.HandleNotification(ctx, nil, "valid")
		if err != nil || ack.Outcome != "noop" {
			t.Fatalf("expected noop, got %+v err=%v", ack, err)
		}
		stored, _ := repo.FindByID(ctx, repository.NoTX, p.ID)
		if stored.Status != model.PaymentStatusSuccess {
			t.Errorf("expected success to stick, got %s", stored.Status)
		}
	})

	t.Run("should ack pending events without a transition", func(t *testing.T) {
		repo, gw, wr, p := setup(t)
		notify(gw, adapter.PaymentNotification{OrderID: p.OrderID, Status: adapter.GatewayOrderActive})

		ack, err := wr.HandleNotification(ctx, nil, "valid")
		if err != nil || ack.Outcome != "noop" {
			t.Fatalf("expected noop, got %+v err=%v", ack, err)
		}
		stored, _ := repo.FindByID(ctx, repository.NoTX, p.ID)
		if stored.Status != model.PaymentStatusPending {
			t.Errorf("expected pending, got %s", stored.Status)
		}
	})

	t.Run("should ask for redelivery when the ledger is unreachable", func(t *testing.T) {
		repo, gw, wr, p := setup(t)
		notify(gw, adapter.PaymentNotification{OrderID: p.OrderID, Status: adapter.GatewayOrderPaid, Amount: p.Amount})
		dbErr := errors.New("connection refused")
		repo.FindByOrderIDFunc = func(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
			return nil, dbErr
		}

		if _, err := wr.HandleNotification(ctx, nil, "valid"); !errors.Is(err, dbErr) {
			t.Fatalf("expected the storage error, got %v", err)
		}
	})
}
