package service

import (
	"context"
	"fmt"
	"time"

	"advisorledger/internal/errs"
	"advisorledger/internal/model"
	"advisorledger/internal/repository"
	"advisorledger/pkg/rate"

	"github.com/shopspring/decimal"
)

// ReportService issues periodic plan statements. Creating a report sets the plan's
// capital to the report's closing capital in the same unit of work.
type ReportService struct {
	base
}

func NewReportService(d Deps) *ReportService {
	return &ReportService{base: newBase(d, "ReportService")}
}

type CreateReportRequest struct {
	PlanID     int64           `json:"plan_id" validate:"required"`
	Gain       decimal.Decimal `json:"gain"` // negative for a losing period
	Extraction decimal.Decimal `json:"extraction"`
	Deposit    decimal.Decimal `json:"deposit"`
	IssuedAt   time.Time       `json:"issued_at"`
}

func (s *ReportService) CreateReport(ctx context.Context, req *CreateReportRequest) (*model.Report, error) {
	const op = "report.create"
	if err := validate.Struct(req); err != nil {
		return nil, validationError(op, err)
	}
	if req.Extraction.IsNegative() || req.Deposit.IsNegative() {
		return nil, errs.E(errs.Validation, op, "extraction and deposit must not be negative")
	}
	if err := checkReportAmounts(op, req, ""); err != nil {
		return nil, err
	}
	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = s.clock.Now()
	}

	release, err := s.lockPlan(ctx, op, req.PlanID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		report *model.Report
		plan   *model.Plan
	)
	err = s.store.RunInTransaction(ctx, func(tx repository.Store) error {
		var err error
		plan, err = tx.GetPlan(ctx, req.PlanID, true)
		if err != nil {
			return storeError(op, err)
		}
		if err := checkReportAmounts(op, req, plan.Currency); err != nil {
			return err
		}
		totals, err := tx.ReportTotals(ctx, plan.ID)
		if err != nil {
			return storeError(op, err)
		}

		opening := plan.CurrentCapital
		closing := opening.Add(req.Gain).Sub(req.Extraction).Add(req.Deposit)
		if closing.IsNegative() {
			return errs.E(errs.InsufficientFunds, op, "extraction %s exceeds available %s",
				req.Extraction.StringFixed(2), opening.Add(req.Gain).Add(req.Deposit).StringFixed(2))
		}

		report = &model.Report{
			PlanID:         plan.ID,
			Sequence:       totals.Count,
			OpeningCapital: opening,
			Gain:           req.Gain,
			Extraction:     req.Extraction,
			Deposit:        req.Deposit,
			ClosingCapital: closing,
			PeriodReturn:   rate.Round(rate.PeriodReturn(req.Gain, opening)),
			TotalReturn:    rate.Round(rate.CumulativeReturn(totals.Gain.Add(req.Gain), plan.InitialCapital)),
			IssuedAt:       issuedAt,
		}
		if err := tx.CreateReport(ctx, report); err != nil {
			return storeError(op, err)
		}
		if err := tx.UpdatePlanCapital(ctx, plan.ID, closing); err != nil {
			return storeError(op, err)
		}
		plan.CurrentCapital = closing
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	s.log.Info().Int64("plan_id", plan.ID).Int64("sequence", report.Sequence).
		Str("period_return", report.PeriodReturn.StringFixed(2)).
		Str("closing", report.ClosingCapital.StringFixed(2)).Msg("report created")
	s.settle(ctx, plan.ID, plan.UserID, &Notice{
		Type:  model.NotificationTypeReport,
		Title: fmt.Sprintf("Report #%d available", report.Sequence),
		Message: fmt.Sprintf("Period return %s%%. Closing capital: %s.",
			report.PeriodReturn.StringFixed(2), formatAmount(report.ClosingCapital, plan.Currency)),
		Priority: model.PriorityMedium,
	})
	return report, nil
}

// DeleteReport removes the latest report of a plan and undoes its capital effect.
// Older reports cannot be deleted so that sequence numbers stay dense.
func (s *ReportService) DeleteReport(ctx context.Context, id int64) error {
	const op = "report.delete"
	peek, err := s.store.GetReport(ctx, id)
	if err != nil {
		return storeError(op, err)
	}
	release, err := s.lockPlan(ctx, op, peek.PlanID)
	if err != nil {
		return err
	}
	defer release()

	var plan *model.Plan
	err = s.store.RunInTransaction(ctx, func(tx repository.Store) error {
		var err error
		plan, err = tx.GetPlan(ctx, peek.PlanID, true)
		if err != nil {
			return storeError(op, err)
		}
		latest, err := tx.LatestReport(ctx, plan.ID)
		if err != nil {
			return storeError(op, err)
		}
		if latest.ID != id {
			return errs.E(errs.InvalidState, op, "report %d is not the latest report of plan %d", id, plan.ID)
		}
		capital := plan.CurrentCapital.Sub(latest.CapitalEffect())
		if capital.IsNegative() {
			return errs.E(errs.InsufficientFunds, op, "reversing report %d would leave capital at %s",
				id, capital.StringFixed(2))
		}
		if err := tx.DeleteReport(ctx, latest.ID); err != nil {
			return storeError(op, err)
		}
		if err := tx.UpdatePlanCapital(ctx, plan.ID, capital); err != nil {
			return storeError(op, err)
		}
		plan.CurrentCapital = capital
		return nil
	})
	if err != nil {
		return storeError(op, err)
	}

	s.log.Info().Int64("plan_id", plan.ID).Int64("sequence", peek.Sequence).
		Str("capital", plan.CurrentCapital.StringFixed(2)).Msg("report deleted")
	s.settle(ctx, plan.ID, plan.UserID, nil)
	return nil
}

func (s *ReportService) GetReport(ctx context.Context, id int64) (*model.Report, error) {
	report, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, storeError("report.get", err)
	}
	return report, nil
}

func (s *ReportService) ListReports(ctx context.Context, planID int64) ([]*model.Report, error) {
	const op = "report.list"
	if _, err := s.store.GetPlan(ctx, planID, false); err != nil {
		return nil, storeError(op, err)
	}
	reports, err := s.store.ListReports(ctx, planID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return reports, nil
}

func checkReportAmounts(op string, req *CreateReportRequest, currency string) error {
	if err := checkMoney(op, "gain", req.Gain, currency); err != nil {
		return err
	}
	if err := checkMoney(op, "extraction", req.Extraction, currency); err != nil {
		return err
	}
	return checkMoney(op, "deposit", req.Deposit, currency)
}
