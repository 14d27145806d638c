//go:build !integration

package api

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/repository"
	"opticalfiber-backend/internal/usecase"
)

type mockRouteUC struct {
	CreateFunc  func(ctx context.Context, p *model.Principal, in usecase.RouteInput) (*usecase.RouteResult, error)
	EnqueueFunc func(ctx context.Context, p *model.Principal, in usecase.RouteInput) (string, error)
	UpdateFunc  func(ctx context.Context, p *model.Principal, id string, patch usecase.RoutePatch) (*usecase.RouteResult, error)
	DeleteFunc  func(ctx context.Context, p *model.Principal, id string) error
	GetFunc     func(ctx context.Context, p *model.Principal, id string) (*model.FiberRoute, error)
	ListFunc    func(ctx context.Context, p *model.Principal) ([]*model.FiberRoute, error)
}

var _ usecase.RouteUseCase = (*mockRouteUC)(nil)

func (m *mockRouteUC) Create(ctx context.Context, p *model.Principal, in usecase.RouteInput) (*usecase.RouteResult, error) {
	return m.CreateFunc(ctx, p, in)
}
func (m *mockRouteUC) Enqueue(ctx context.Context, p *model.Principal, in usecase.RouteInput) (string, error) {
	return m.EnqueueFunc(ctx, p, in)
}
func (m *mockRouteUC) Update(ctx context.Context, p *model.Principal, id string, patch usecase.RoutePatch) (*usecase.RouteResult, error) {
	return m.UpdateFunc(ctx, p, id, patch)
}
func (m *mockRouteUC) Delete(ctx context.Context, p *model.Principal, id string) error {
	return m.DeleteFunc(ctx, p, id)
}
func (m *mockRouteUC) Get(ctx context.Context, p *model.Principal, id string) (*model.FiberRoute, error) {
	return m.GetFunc(ctx, p, id)
}
func (m *mockRouteUC) List(ctx context.Context, p *model.Principal) ([]*model.FiberRoute, error) {
	if m.ListFunc == nil {
		return []*model.FiberRoute{}, nil
	}
	return m.ListFunc(ctx, p)
}

type mockQuota struct {
	StatusFunc func(ctx context.Context, p *model.Principal) (*usecase.QuotaStatus, error)
}

var _ usecase.QuotaEngine = (*mockQuota)(nil)

func (m *mockQuota) CheckAndAuthorize(ctx context.Context, tx repository.Tx, companyID string, candidateKM decimal.Decimal, excludingRouteID string) (model.QuotaDecision, error) {
	return model.QuotaDecision{}, nil
}
func (m *mockQuota) Status(ctx context.Context, p *model.Principal) (*usecase.QuotaStatus, error) {
	return m.StatusFunc(ctx, p)
}
func (m *mockQuota) Policy() model.QuotaPolicy { return model.QuotaPolicy{} }

type mockPaymentUC struct {
	InitiateFunc func(ctx context.Context, p *model.Principal, in usecase.InitiatePaymentInput) (*usecase.InitiatedPayment, error)
	GetFunc      func(ctx context.Context, p *model.Principal, txnID string, refresh bool) (*usecase.PaymentView, error)
	CallbackFunc func(ctx context.Context, orderID string) (*usecase.PaymentView, error)
}

var _ usecase.PaymentUseCase = (*mockPaymentUC)(nil)

func (m *mockPaymentUC) Initiate(ctx context.Context, p *model.Principal, in usecase.InitiatePaymentInput) (*usecase.InitiatedPayment, error) {
	return m.InitiateFunc(ctx, p, in)
}
func (m *mockPaymentUC) Get(ctx context.Context, p *model.Principal, txnID string, refresh bool) (*usecase.PaymentView, error) {
	return m.GetFunc(ctx, p, txnID, refresh)
}
func (m *mockPaymentUC) List(ctx context.Context, p *model.Principal, offset, limit int) ([]*usecase.PaymentView, error) {
	return []*usecase.PaymentView{}, nil
}
func (m *mockPaymentUC) Callback(ctx context.Context, orderID string) (*usecase.PaymentView, error) {
	return m.CallbackFunc(ctx, orderID)
}
func (m *mockPaymentUC) ReconcilePending(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	return 0, nil
}

type mockWebhooks struct {
	HandleFunc func(ctx context.Context, raw []byte, sig string) (usecase.WebhookAck, error)
}

var _ usecase.WebhookReconciler = (*mockWebhooks)(nil)

func (m *mockWebhooks) HandleNotification(ctx context.Context, raw []byte, sig string) (usecase.WebhookAck, error) {
	return m.HandleFunc(ctx, raw, sig)
}

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}
