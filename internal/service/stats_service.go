package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"advisorledger/internal/errs"
	"advisorledger/internal/model"
	"advisorledger/internal/repository"
	"advisorledger/pkg/rate"

	"github.com/shopspring/decimal"
)

const (
	DefaultStatsMonths = 6
	MaxStatsMonths     = 24
	planStatsMonths    = 12

	globalScope = "global"
)

func planScope(planID int64) string {
	return fmt.Sprintf("plan:%d", planID)
}

// StatsService aggregates committed ledger data. It never writes.
type StatsService struct {
	base
	defaultMonths int
}

func NewStatsService(d Deps, defaultMonths int) *StatsService {
	if defaultMonths < 1 || defaultMonths > MaxStatsMonths {
		defaultMonths = DefaultStatsMonths
	}
	return &StatsService{base: newBase(d, "StatsService"), defaultMonths: defaultMonths}
}

// StatsQuery selects a trailing window of calendar months. PlanID 0 covers every plan,
// Months 0 uses the configured default and a zero End means now.
type StatsQuery struct {
	PlanID int64     `form:"plan_id"`
	Months int       `form:"months"`
	End    time.Time `form:"end" time_format:"2006-01-02"`
}

type MonthlyBucket struct {
	Month       string          `json:"month"` // YYYY-MM
	ReportCount int             `json:"report_count"`
	TotalGain   decimal.Decimal `json:"total_gain"`
	AvgReturn   decimal.Decimal `json:"avg_return"`
	Deposits    decimal.Decimal `json:"deposits"`
	Withdrawals decimal.Decimal `json:"withdrawals"`
	NetFlow     decimal.Decimal `json:"net_flow"`
}

type MonthlyStats struct {
	PlanID    int64           `json:"plan_id,omitempty"`
	Months    int             `json:"months"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Buckets   []MonthlyBucket `json:"buckets"`
	AvgReturn decimal.Decimal `json:"avg_return"`
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthIndex(from, t time.Time) int {
	t = t.UTC()
	return (t.Year()-from.Year())*12 + int(t.Month()) - int(from.Month())
}

func (s *StatsService) GetMonthlyStats(ctx context.Context, q StatsQuery) (*MonthlyStats, error) {
	const op = "stats.monthly"
	months := q.Months
	if months == 0 {
		months = s.defaultMonths
	}
	if months < 1 || months > MaxStatsMonths {
		return nil, errs.E(errs.Validation, op, "months must be within 1..%d, got %d", MaxStatsMonths, months)
	}
	end := q.End
	if end.IsZero() {
		end = s.clock.Now()
	}
	to := monthStart(end).AddDate(0, 1, 0)
	from := to.AddDate(0, -months, 0)

	if q.PlanID != 0 {
		if _, err := s.store.GetPlan(ctx, q.PlanID, false); err != nil {
			return nil, storeError(op, err)
		}
	}

	scope := globalScope
	if q.PlanID != 0 {
		scope = planScope(q.PlanID)
	}
	key, cacheable := s.cacheKey(ctx, scope, months, from)
	if cacheable {
		var cached MonthlyStats
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("stats cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	reports, err := s.store.ListReportsIssuedBetween(ctx, q.PlanID, from, to)
	if err != nil {
		return nil, storeError(op, err)
	}
	transactions, err := s.store.ListTransactionsBetween(ctx, q.PlanID, model.TransactionStatusCompleted, from, to)
	if err != nil {
		return nil, storeError(op, err)
	}

	stats := buildMonthly(q.PlanID, months, from, to, reports, transactions)
	if cacheable {
		if err := s.cache.Set(ctx, key, stats); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("stats cache write failed")
		}
	}
	return stats, nil
}

// cacheKey embeds the scope version so that a bump orphans every older entry.
func (s *StatsService) cacheKey(ctx context.Context, scope string, months int, from time.Time) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	version, err := s.cache.Version(ctx, scope)
	if err != nil {
		s.log.Warn().Err(err).Str("scope", scope).Msg("stats cache version lookup failed")
		return "", false
	}
	return fmt.Sprintf("stats:monthly:%s:v%d:%s:%d", scope, version, from.Format("2006-01"), months), true
}

func buildMonthly(planID int64, months int, from, to time.Time, reports []*model.Report, transactions []*model.Transaction) *MonthlyStats {
	buckets := make([]MonthlyBucket, months)
	returns := make([][]decimal.Decimal, months)
	for i := range buckets {
		buckets[i] = MonthlyBucket{
			Month:       from.AddDate(0, i, 0).Format("2006-01"),
			TotalGain:   decimal.Zero,
			AvgReturn:   decimal.Zero,
			Deposits:    decimal.Zero,
			Withdrawals: decimal.Zero,
			NetFlow:     decimal.Zero,
		}
	}

	var all []decimal.Decimal
	for _, r := range reports {
		i := monthIndex(from, r.IssuedAt)
		if i < 0 || i >= months {
			continue
		}
		buckets[i].ReportCount++
		buckets[i].TotalGain = buckets[i].TotalGain.Add(r.Gain)
		returns[i] = append(returns[i], r.PeriodReturn)
		all = append(all, r.PeriodReturn)
	}
	for _, t := range transactions {
		i := monthIndex(from, t.Date)
		if i < 0 || i >= months {
			continue
		}
		if t.Type == model.TransactionTypeWithdrawal {
			buckets[i].Withdrawals = buckets[i].Withdrawals.Add(t.Amount)
		} else {
			buckets[i].Deposits = buckets[i].Deposits.Add(t.Amount)
		}
	}
	for i := range buckets {
		buckets[i].AvgReturn = rate.Round(rate.Mean(returns[i]))
		buckets[i].NetFlow = buckets[i].Deposits.Sub(buckets[i].Withdrawals)
	}

	return &MonthlyStats{
		PlanID:    planID,
		Months:    months,
		From:      from,
		To:        to,
		Buckets:   buckets,
		AvgReturn: rate.Round(rate.Mean(all)),
	}
}

type PlanStats struct {
	PlanID           int64           `json:"plan_id"`
	UserID           int64           `json:"user_id"`
	Currency         string          `json:"currency"`
	InitialCapital   decimal.Decimal `json:"initial_capital"`
	CurrentCapital   decimal.Decimal `json:"current_capital"`
	Growth           decimal.Decimal `json:"growth"`
	CumulativeReturn decimal.Decimal `json:"cumulative_return"`
	TotalGain        decimal.Decimal `json:"total_gain"`
	ReportFlows      decimal.Decimal `json:"report_flows"`
	Deposits         decimal.Decimal `json:"deposits"`
	Withdrawals      decimal.Decimal `json:"withdrawals"`
	ReportCount      int64           `json:"report_count"`
	PendingCount     int64           `json:"pending_count"`
	LastReportAt     *time.Time      `json:"last_report_at"`
	Reconciled       bool            `json:"reconciled"`
	Monthly          *MonthlyStats   `json:"monthly"`
}

func (s *StatsService) GetPlanStats(ctx context.Context, planID int64) (*PlanStats, error) {
	const op = "stats.plan"
	snap, err := s.snapshot(ctx, op, planID)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.TransactionTotals(ctx, planID, model.TransactionStatusPending)
	if err != nil {
		return nil, storeError(op, err)
	}
	monthly, err := s.GetMonthlyStats(ctx, StatsQuery{PlanID: planID, Months: planStatsMonths})
	if err != nil {
		return nil, err
	}

	plan := snap.plan
	stats := &PlanStats{
		PlanID:           plan.ID,
		UserID:           plan.UserID,
		Currency:         plan.Currency,
		InitialCapital:   plan.InitialCapital,
		CurrentCapital:   plan.CurrentCapital,
		Growth:           rate.Round(rate.Growth(plan.CurrentCapital, plan.InitialCapital)),
		CumulativeReturn: rate.Round(rate.CumulativeReturn(snap.reports.Gain, plan.InitialCapital)),
		TotalGain:        snap.reports.Gain,
		ReportFlows:      snap.reports.Net(),
		Deposits:         snap.completed.Deposits,
		Withdrawals:      snap.completed.Withdrawals,
		ReportCount:      snap.reports.Count,
		PendingCount:     pending.Count,
		Reconciled:       snap.reconciliation().Balanced,
		Monthly:          monthly,
	}
	if snap.latest != nil {
		issued := snap.latest.IssuedAt
		stats.LastReportAt = &issued
	}
	return stats, nil
}

// Reconciliation compares a plan's running capital with the capital implied by its history.
type Reconciliation struct {
	PlanID     int64           `json:"plan_id"`
	Expected   decimal.Decimal `json:"expected"`
	Actual     decimal.Decimal `json:"actual"`
	Difference decimal.Decimal `json:"difference"`
	Balanced   bool            `json:"balanced"`
}

type planSnapshot struct {
	plan      *model.Plan
	reports   model.ReportTotals
	completed model.TransactionTotals
	latest    *model.Report
}

// expected = initial capital + net report flows + completed deposits - completed withdrawals
func (p *planSnapshot) reconciliation() Reconciliation {
	expected := p.plan.InitialCapital.Add(p.reports.Net()).Add(p.completed.Net())
	diff := p.plan.CurrentCapital.Sub(expected)
	return Reconciliation{
		PlanID:     p.plan.ID,
		Expected:   expected,
		Actual:     p.plan.CurrentCapital,
		Difference: diff,
		Balanced:   diff.IsZero(),
	}
}

// snapshot reads a plan and its aggregates inside one unit of work so they agree.
func (s *StatsService) snapshot(ctx context.Context, op string, planID int64) (*planSnapshot, error) {
	snap := &planSnapshot{}
	err := s.store.RunInTransaction(ctx, func(tx repository.Store) error {
		var err error
		if snap.plan, err = tx.GetPlan(ctx, planID, false); err != nil {
			return storeError(op, err)
		}
		if snap.reports, err = tx.ReportTotals(ctx, planID); err != nil {
			return storeError(op, err)
		}
		if snap.completed, err = tx.TransactionTotals(ctx, planID, model.TransactionStatusCompleted); err != nil {
			return storeError(op, err)
		}
		snap.latest, err = tx.LatestReport(ctx, planID)
		if errors.Is(err, repository.ErrReportNotFound) {
			snap.latest, err = nil, nil
		}
		return storeError(op, err)
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	return snap, nil
}

func (s *StatsService) ReconcilePlan(ctx context.Context, planID int64) (*Reconciliation, error) {
	snap, err := s.snapshot(ctx, "stats.reconcile", planID)
	if err != nil {
		return nil, err
	}
	rec := snap.reconciliation()
	return &rec, nil
}

// ReconcileAll reconciles every current plan. A failure on one plan stops the run.
func (s *StatsService) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	const op = "stats.reconcile_all"
	plans, err := s.store.ListCurrentPlans(ctx)
	if err != nil {
		return nil, storeError(op, err)
	}
	results := make([]Reconciliation, 0, len(plans))
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		snap, err := s.snapshot(ctx, op, p.ID)
		if err != nil {
			return results, err
		}
		results = append(results, snap.reconciliation())
	}
	return results, nil
}

type Overview struct {
	ActiveClients     int64           `json:"active_clients"`
	TotalReports      int64           `json:"total_reports"`
	TotalTransactions int64           `json:"total_transactions"`
	ActiveCapital     decimal.Decimal `json:"active_capital"`
	CurrentAvgReturn  decimal.Decimal `json:"current_avg_return"`
	PreviousAvgReturn decimal.Decimal `json:"previous_avg_return"`
	ReturnVariation   decimal.Decimal `json:"return_variation"`
}

// GetOverview summarizes the whole book for the advisor dashboard.
func (s *StatsService) GetOverview(ctx context.Context) (*Overview, error) {
	const op = "stats.overview"
	var (
		ov  Overview
		err error
	)
	if ov.ActiveClients, err = s.store.CountActiveClients(ctx); err != nil {
		return nil, storeError(op, err)
	}
	reports, err := s.store.ReportTotals(ctx, 0)
	if err != nil {
		return nil, storeError(op, err)
	}
	ov.TotalReports = reports.Count
	transactions, err := s.store.TransactionTotals(ctx, 0, "")
	if err != nil {
		return nil, storeError(op, err)
	}
	ov.TotalTransactions = transactions.Count
	if ov.ActiveCapital, err = s.store.SumActiveCapital(ctx); err != nil {
		return nil, storeError(op, err)
	}

	monthly, err := s.GetMonthlyStats(ctx, StatsQuery{Months: 2})
	if err != nil {
		return nil, err
	}
	ov.PreviousAvgReturn = monthly.Buckets[0].AvgReturn
	ov.CurrentAvgReturn = monthly.Buckets[1].AvgReturn
	ov.ReturnVariation = rate.Round(rate.Variation(ov.CurrentAvgReturn, ov.PreviousAvgReturn))
	return &ov, nil
}
