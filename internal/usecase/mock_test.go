//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/adapter"
	"opticalfiber-backend/internal/domain/ports/repository"
)

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu      sync.Mutex
	Created []adapter.OrderRequest

	CreateOrderFunc   func(ctx context.Context, req adapter.OrderRequest) (adapter.OrderHandle, error)
	VerifyOrderFunc   func(ctx context.Context, orderID string) (adapter.GatewayStatus, error)
	VerifySigFunc     func(raw []byte, sig string) bool
	ParseWebhookFunc  func(raw []byte) (adapter.PaymentNotification, error)
	VerifyOrderCalled int
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mockpay" }

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (adapter.OrderHandle, error) {
	m.mu.Lock()
	m.Created = append(m.Created, req)
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return adapter.OrderHandle{
		OrderID:     req.OrderID,
		GatewayID:   "cf-" + req.OrderID,
		SessionID:   "session_" + req.OrderID,
		PaymentLink: "https://pay.example/" + req.OrderID,
		Status:      adapter.GatewayOrderActive,
	}, nil
}

func (m *MockPaymentGateway) VerifyOrder(ctx context.Context, orderID string) (adapter.GatewayStatus, error) {
	m.mu.Lock()
	m.VerifyOrderCalled++
	m.mu.Unlock()
	if m.VerifyOrderFunc != nil {
		return m.VerifyOrderFunc(ctx, orderID)
	}
	return adapter.GatewayStatus{OrderID: orderID, Status: adapter.GatewayOrderActive, CheckedAt: time.Now()}, nil
}

func (m *MockPaymentGateway) VerifyWebhookSignature(raw []byte, sig string) bool {
	if m.VerifySigFunc != nil {
		return m.VerifySigFunc(raw, sig)
	}
	return sig == "valid"
}

func (m *MockPaymentGateway) ParseWebhook(raw []byte) (adapter.PaymentNotification, error) {
	if m.ParseWebhookFunc != nil {
		return m.ParseWebhookFunc(raw)
	}
	return adapter.PaymentNotification{}, domain.ErrMalformedPayload
}

// ---- Mock JobQueue ----

type MockJobQueue struct {
	mu   sync.Mutex
	Jobs []adapter.Job

	SubmitErr error
}

var _ adapter.JobQueue = (*MockJobQueue)(nil)

func (q *MockJobQueue) Submit(job adapter.Job) error {
	if q.SubmitErr != nil {
		return q.SubmitErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Jobs = append(q.Jobs, job)
	return nil
}

// =============================
// Repositories
// =============================

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.Payment // by id

	SaveFunc                func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindByOrderIDFunc       func(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error)
	TransitionIfPendingFunc func(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error)
	CountValidFunc          func(ctx context.Context, tx repository.Tx, companyID string, now time.Time) (int64, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.Payment{}}
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) get(match func(*model.Payment) bool) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	return r.get(func(p *model.Payment) bool { return p.ID == id })
}

func (r *MockPaymentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, companyID, transactionID string) (*model.Payment, error) {
	return r.get(func(p *model.Payment) bool { return p.CompanyID == companyID && p.TransactionID == transactionID })
}

func (r *MockPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	if r.FindByOrderIDFunc != nil {
		return r.FindByOrderIDFunc(ctx, tx, orderID)
	}
	return r.get(func(p *model.Payment) bool { return p.OrderID == orderID })
}

func (r *MockPaymentRepo) ListByCompany(ctx context.Context, tx repository.Tx, companyID string, offset, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Payment{}
	for _, p := range r.data {
		if p.CompanyID == companyID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Payment{}
	for _, p := range r.data {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockPaymentRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	if r.TransitionIfPendingFunc != nil {
		return r.TransitionIfPendingFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.data[p.ID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if cur.Status != model.PaymentStatusPending {
		return false, nil
	}
	cp := *p
	r.data[p.ID] = &cp
	return true, nil
}

func (r *MockPaymentRepo) UpdateGatewayRefs(ctx context.Context, tx repository.Tx, id, sessionID, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	if sessionID != "" {
		p.SessionID = sessionID
	}
	if notes != "" {
		p.Notes = notes
	}
	return nil
}

func (r *MockPaymentRepo) CountValid(ctx context.Context, tx repository.Tx, companyID string, now time.Time) (int64, error) {
	if r.CountValidFunc != nil {
		return r.CountValidFunc(ctx, tx, companyID, now)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.data {
		if p.CompanyID == companyID && p.IsValid(now) {
			n++
		}
	}
	return n, nil
}

// Put stores p as-is, bypassing SaveFunc.
func (r *MockPaymentRepo) Put(p *model.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.ID] = &cp
}

// ---- Mock RouteRepository ----

type MockRouteRepo struct {
	mu   sync.Mutex
	data map[string]*model.FiberRoute

	SaveFunc func(ctx context.Context, tx repository.Tx, r *model.FiberRoute) error
	SumCalls int
	Creates  int
}

var _ repository.RouteRepository = (*MockRouteRepo)(nil)

func NewMockRouteRepo() *MockRouteRepo {
	return &MockRouteRepo{data: map[string]*model.FiberRoute{}}
}

func (m *MockRouteRepo) Create(ctx context.Context, tx repository.Tx, r *model.FiberRoute) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creates++
	if _, ok := m.data[r.ID]; ok {
		return nil
	}
	cp := *r
	m.data[r.ID] = &cp
	return nil
}

func (m *MockRouteRepo) Save(ctx context.Context, tx repository.Tx, r *model.FiberRoute) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.data[r.ID] = &cp
	return nil
}

func (m *MockRouteRepo) FindByID(ctx context.Context, tx repository.Tx, companyID, id string) (*model.FiberRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[id]
	if !ok || r.Deleted || r.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockRouteRepo) ListByCompany(ctx context.Context, tx repository.Tx, companyID string) ([]*model.FiberRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.FiberRoute{}
	for _, r := range m.data {
		if r.CompanyID == companyID && !r.Deleted {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRouteRepo) SoftDelete(ctx context.Context, tx repository.Tx, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[id]
	if !ok || r.CompanyID != companyID || !r.SoftDelete(time.Now()) {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MockRouteRepo) SumActiveLength(ctx context.Context, tx repository.Tx, companyID, excludeID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SumCalls++
	sum := decimal.Zero
	for _, r := range m.data {
		if r.CompanyID == companyID && !r.Deleted && r.ID != excludeID {
			sum = sum.Add(r.LengthKM)
		}
	}
	return sum, nil
}

// Put stores r as-is, bypassing SaveFunc.
func (m *MockRouteRepo) Put(r *model.FiberRoute) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.data[r.ID] = &cp
}

// ---- Mock OfficeRepository ----

type MockOfficeRepo struct {
	offices map[string]*model.Office
}

var _ repository.OfficeRepository = (*MockOfficeRepo)(nil)

func NewMockOfficeRepo(offices ...*model.Office) *MockOfficeRepo {
	m := &MockOfficeRepo{offices: map[string]*model.Office{}}
	for _, o := range offices {
		m.offices[o.ID] = o
	}
	return m
}

func (m *MockOfficeRepo) FindByID(ctx context.Context, tx repository.Tx, companyID, id string) (*model.Office, error) {
	o, ok := m.offices[id]
	if !ok || o.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// ---- Mock RouteListCache ----

type MockRouteCache struct {
	mu          sync.Mutex
	Invalidated []string
}

var _ repository.RouteListCache = (*MockRouteCache)(nil)

func (c *MockRouteCache) Get(ctx context.Context, companyID string) ([]*model.FiberRoute, bool) {
	return nil, false
}

func (c *MockRouteCache) Set(ctx context.Context, companyID string, routes []*model.FiberRoute) {}

func (c *MockRouteCache) Invalidate(ctx context.Context, companyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Invalidated = append(c.Invalidated, companyID)
	return nil
}

// =============================
// Transactions
// =============================

// MockTxManager runs fn immediately. LockTenant takes a per-company mutex
// that is held until the surrounding WithTx returns, like an advisory
// transaction lock.
type MockTxManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var (
	_ repository.TransactionManager = (*MockTxManager)(nil)
	_ repository.TenantLocker       = (*MockTxManager)(nil)
)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{locks: map[string]*sync.Mutex{}}
}

type mockTx struct {
	release []func()
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	tx := &mockTx{}
	defer func() {
		for _, r := range tx.release {
			r()
		}
	}()
	return fn(ctx, tx)
}

func (m *MockTxManager) LockTenant(ctx context.Context, tx repository.Tx, companyID string) error {
	mt, ok := tx.(*mockTx)
	if !ok {
		return domain.ErrInvalidExecContext
	}
	m.mu.Lock()
	l, ok := m.locks[companyID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[companyID] = l
	}
	m.mu.Unlock()
	l.Lock()
	mt.release = append(mt.release, l.Unlock)
	return nil
}

// =============================
// Helpers
// =============================

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func km(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testPrincipal(companyID string) *model.Principal {
	return &model.Principal{StaffID: "staff-" + companyID, CompanyID: companyID, Role: model.StaffRoleEngineer}
}

func testPath() []model.Coordinate {
	return []model.Coordinate{{Lat: 12.97, Lng: 77.59}, {Lat: 12.98, Lng: 77.60}}
}

// successPayment returns a stored success payment valid until now+days.
func successPayment(companyID string, days int) *model.Payment {
	p, _ := model.NewPendingPayment(companyID, "txn_"+uuid.NewString(), decimal.NewFromInt(500), "INR", "upi", 365)
	p.MarkSuccess(time.Now())
	end := time.Now().AddDate(0, 0, days)
	p.ValidUntil = &end
	return p
}
