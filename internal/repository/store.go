package repository

import (
	"context"
	"time"

	"advisorledger/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Store is the persistence surface of the ledger engine. Every method observes the
// transaction the Store was obtained from; RunInTransaction hands out a Store bound
// to a fresh unit of work that commits when fn returns nil and rolls back otherwise.
type Store interface {
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id int64, forUpdate bool) (*model.User, error)
	SetUserActive(ctx context.Context, id int64, active bool) error
	CountActiveClients(ctx context.Context) (int64, error)

	CreatePlan(ctx context.Context, plan *model.Plan) error
	GetPlan(ctx context.Context, id int64, forUpdate bool) (*model.Plan, error)
	GetCurrentPlan(ctx context.Context, userID int64) (*model.Plan, error)
	ListCurrentPlans(ctx context.Context) ([]*model.Plan, error)
	ClearCurrentPlans(ctx context.Context, userID int64) error
	UpdatePlanCapital(ctx context.Context, planID int64, capital decimal.Decimal) error
	SumActiveCapital(ctx context.Context) (decimal.Decimal, error)

	CreateReport(ctx context.Context, report *model.Report) error
	GetReport(ctx context.Context, id int64) (*model.Report, error)
	LatestReport(ctx context.Context, planID int64) (*model.Report, error)
	DeleteReport(ctx context.Context, id int64) error
	ReportTotals(ctx context.Context, planID int64) (model.ReportTotals, error)
	ListReports(ctx context.Context, planID int64) ([]*model.Report, error)
	ListReportsIssuedBetween(ctx context.Context, planID int64, from, to time.Time) ([]*model.Report, error)

	CreateTransaction(ctx context.Context, trans *model.Transaction) error
	GetTransaction(ctx context.Context, id int64, forUpdate bool) (*model.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id int64, fromStatus, toStatus string, resolvedAt time.Time) error
	DeleteTransaction(ctx context.Context, id int64) error
	ListTransactions(ctx context.Context, planID int64) ([]*model.Transaction, error)
	ListTransactionsBetween(ctx context.Context, planID int64, status string, from, to time.Time) ([]*model.Transaction, error)
	TransactionTotals(ctx context.Context, planID int64, status string) (model.TransactionTotals, error)
}

// GormStore implements Store on top of the table repositories.
type GormStore struct {
	db           *gorm.DB
	inTx         bool
	users        *UserRepository
	plans        *PlanRepository
	reports      *ReportRepository
	transactions *TransactionRepository
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:           db,
		users:        NewUserRepository(db),
		plans:        NewPlanRepository(db),
		reports:      NewReportRepository(db),
		transactions: NewTransactionRepository(db),
	}
}

func (s *GormStore) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bound := *s
		bound.db = tx
		bound.inTx = true
		return fn(&bound)
	})
}

func (s *GormStore) CreateUser(ctx context.Context, user *model.User) error {
	return s.users.Create(ctx, s.db, user)
}

func (s *GormStore) GetUser(ctx context.Context, id int64, forUpdate bool) (*model.User, error) {
	return s.users.GetByID(ctx, s.db, id, forUpdate)
}

func (s *GormStore) SetUserActive(ctx context.Context, id int64, active bool) error {
	return s.users.SetActive(ctx, s.db, id, active)
}

func (s *GormStore) CountActiveClients(ctx context.Context) (int64, error) {
	return s.users.CountActiveClients(ctx, s.db)
}

func (s *GormStore) CreatePlan(ctx context.Context, plan *model.Plan) error {
	return s.plans.Create(ctx, s.db, plan)
}

func (s *GormStore) GetPlan(ctx context.Context, id int64, forUpdate bool) (*model.Plan, error) {
	return s.plans.GetByID(ctx, s.db, id, forUpdate)
}

func (s *GormStore) GetCurrentPlan(ctx context.Context, userID int64) (*model.Plan, error) {
	return s.plans.GetCurrentByUserID(ctx, s.db, userID)
}

func (s *GormStore) ListCurrentPlans(ctx context.Context) ([]*model.Plan, error) {
	return s.plans.ListCurrent(ctx, s.db)
}

func (s *GormStore) ClearCurrentPlans(ctx context.Context, userID int64) error {
	return s.plans.ClearCurrent(ctx, s.db, userID)
}

func (s *GormStore) UpdatePlanCapital(ctx context.Context, planID int64, capital decimal.Decimal) error {
	return s.plans.UpdateCapital(ctx, s.db, planID, capital)
}

func (s *GormStore) SumActiveCapital(ctx context.Context) (decimal.Decimal, error) {
	return s.plans.SumActiveCapital(ctx, s.db)
}

func (s *GormStore) CreateReport(ctx context.Context, report *model.Report) error {
	return s.reports.Create(ctx, s.db, report)
}

func (s *GormStore) GetReport(ctx context.Context, id int64) (*model.Report, error) {
	return s.reports.GetByID(ctx, s.db, id)
}

func (s *GormStore) LatestReport(ctx context.Context, planID int64) (*model.Report, error) {
	return s.reports.Latest(ctx, s.db, planID)
}

func (s *GormStore) DeleteReport(ctx context.Context, id int64) error {
	return s.reports.Delete(ctx, s.db, id)
}

func (s *GormStore) ReportTotals(ctx context.Context, planID int64) (model.ReportTotals, error) {
	return s.reports.Totals(ctx, s.db, planID)
}

func (s *GormStore) ListReports(ctx context.Context, planID int64) ([]*model.Report, error) {
	return s.reports.ListByPlanID(ctx, s.db, planID)
}

func (s *GormStore) ListReportsIssuedBetween(ctx context.Context, planID int64, from, to time.Time) ([]*model.Report, error) {
	return s.reports.ListIssuedBetween(ctx, s.db, planID, from, to)
}

func (s *GormStore) CreateTransaction(ctx context.Context, trans *model.Transaction) error {
	return s.transactions.Create(ctx, s.db, trans)
}

func (s *GormStore) GetTransaction(ctx context.Context, id int64, forUpdate bool) (*model.Transaction, error) {
	return s.transactions.GetByID(ctx, s.db, id, forUpdate)
}

func (s *GormStore) UpdateTransactionStatus(ctx context.Context, id int64, fromStatus, toStatus string, resolvedAt time.Time) error {
	return s.transactions.UpdateStatus(ctx, s.db, id, fromStatus, toStatus, resolvedAt)
}

func (s *GormStore) DeleteTransaction(ctx context.Context, id int64) error {
	return s.transactions.Delete(ctx, s.db, id)
}

func (s *GormStore) ListTransactions(ctx context.Context, planID int64) ([]*model.Transaction, error) {
	return s.transactions.ListByPlanID(ctx, s.db, planID)
}

func (s *GormStore) ListTransactionsBetween(ctx context.Context, planID int64, status string, from, to time.Time) ([]*model.Transaction, error) {
	return s.transactions.ListBetween(ctx, s.db, planID, status, from, to)
}

func (s *GormStore) TransactionTotals(ctx context.Context, planID int64, status string) (model.TransactionTotals, error) {
	return s.transactions.Totals(ctx, s.db, planID, status)
}
