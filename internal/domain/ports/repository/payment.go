package repository

import (
	"context"
	"time"

	"opticalfiber-backend/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByTransactionID(ctx context.Context, tx Tx, companyID, transactionID string) (*model.Payment, error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)
	ListByCompany(ctx context.Context, tx Tx, companyID string, offset, limit int) ([]*model.Payment, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	// TransitionIfPending atomically moves a pending payment to a terminal
	// state. It returns false when the payment was no longer pending.
	TransitionIfPending(ctx context.Context, tx Tx, p *model.Payment) (bool, error)
	// UpdateGatewayRefs stores the session token and provider references
	// returned by the gateway after order creation.
	UpdateGatewayRefs(ctx context.Context, tx Tx, id, sessionID, notes string) error
	// CountValid counts success payments whose validity window contains now.
	CountValid(ctx context.Context, tx Tx, companyID string, now time.Time) (int64, error)
}
