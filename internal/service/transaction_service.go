package service

import (
	"context"
	"fmt"
	"time"

	"advisorledger/internal/errs"
	"advisorledger/internal/model"
	"advisorledger/internal/repository"
	"advisorledger/pkg/idgen"

	"github.com/shopspring/decimal"
)

// TransactionService runs the deposit/withdrawal workflow. A request only records
// intent; the plan's capital moves when the request is completed.
type TransactionService struct {
	base
}

func NewTransactionService(d Deps) *TransactionService {
	return &TransactionService{base: newBase(d, "TransactionService")}
}

type RequestTransactionRequest struct {
	PlanID int64           `json:"plan_id" validate:"required"`
	Type   string          `json:"type" validate:"required,oneof=deposito retiro"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
}

// RequestTransaction records a pending deposit or withdrawal against a current plan.
// Withdrawals are checked against the plan's capital at request time and again when completed.
func (s *TransactionService) RequestTransaction(ctx context.Context, req *RequestTransactionRequest) (*model.Transaction, error) {
	const op = "transaction.request"
	if err := validate.Struct(req); err != nil {
		return nil, validationError(op, err)
	}
	if !req.Amount.IsPositive() {
		return nil, errs.E(errs.Validation, op, "amount must be positive")
	}
	if err := checkMoney(op, "amount", req.Amount, ""); err != nil {
		return nil, err
	}
	date := req.Date
	if date.IsZero() {
		date = s.clock.Now()
	}

	release, err := s.lockPlan(ctx, op, req.PlanID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		trans *model.Transaction
		plan  *model.Plan
	)
	err = s.store.RunInTransaction(ctx, func(tx repository.Store) error {
		var err error
		plan, err = tx.GetPlan(ctx, req.PlanID, true)
		if err != nil {
			return storeError(op, err)
		}
		if !plan.IsCurrent {
			return errs.E(errs.InvalidState, op, "plan %d is not the current plan of its owner", plan.ID)
		}
		if err := checkMoney(op, "amount", req.Amount, plan.Currency); err != nil {
			return err
		}
		owner, err := tx.GetUser(ctx, plan.UserID, false)
		if err != nil {
			return storeError(op, err)
		}
		if !owner.CanOperate() {
			return errs.E(errs.InvalidState, op, "owner of plan %d is inactive", plan.ID)
		}
		if req.Type == model.TransactionTypeWithdrawal && plan.CurrentCapital.LessThan(req.Amount) {
			return errs.E(errs.InsufficientFunds, op, "withdrawal %s exceeds capital %s",
				req.Amount.StringFixed(2), plan.CurrentCapital.StringFixed(2))
		}

		trans = &model.Transaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			PlanID:        plan.ID,
			UserID:        plan.UserID,
			Type:          req.Type,
			Amount:        req.Amount,
			Status:        model.TransactionStatusPending,
			Date:          date,
		}
		return storeError(op, tx.CreateTransaction(ctx, trans))
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	s.log.Info().Str("transaction_no", trans.TransactionNo).Int64("plan_id", trans.PlanID).
		Str("type", trans.Type).Str("amount", trans.Amount.StringFixed(2)).Msg("transaction requested")
	s.settle(ctx, plan.ID, plan.UserID, &Notice{
		Type:     model.NotificationTypeTransaction,
		Title:    "Transaction requested",
		Message:  fmt.Sprintf("Your %s request of %s is pending review.", typeLabel(trans.Type), formatAmount(trans.Amount, plan.Currency)),
		Priority: model.PriorityLow,
	})
	return trans, nil
}

// ResolveTransaction moves a pending transaction to completado or cancelado.
// Completing applies the signed amount to the plan exactly once.
func (s *TransactionService) ResolveTransaction(ctx context.Context, id int64, outcome string) (*model.Transaction, error) {
	const op = "transaction.resolve"
	if outcome != model.TransactionStatusCompleted && outcome != model.TransactionStatusCancelled {
		return nil, errs.E(errs.Validation, op, "unknown outcome %q", outcome)
	}

	// Unlocked read to find the plan so the plan lock can be taken first.
	peek, err := s.store.GetTransaction(ctx, id, false)
	if err != nil {
		return nil, storeError(op, err)
	}
	release, err := s.lockPlan(ctx, op, peek.PlanID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		trans *model.Transaction
		plan  *model.Plan
	)
	err = s.store.RunInTransaction(ctx, func(tx repository.Store) error {
		var err error
		plan, err = tx.GetPlan(ctx, peek.PlanID, true)
		if err != nil {
			return storeError(op, err)
		}
		trans, err = tx.GetTransaction(ctx, id, true)
		if err != nil {
			return storeError(op, err)
		}
		if !model.CanTransitionTo(trans.Status, outcome) {
			return errs.E(errs.InvalidState, op, "transaction %s is %s", trans.TransactionNo, trans.Status)
		}

		if outcome == model.TransactionStatusCompleted {
			owner, err := tx.GetUser(ctx, plan.UserID, false)
			if err != nil {
				return storeError(op, err)
			}
			if !owner.CanOperate() {
				return errs.E(errs.InvalidState, op, "owner of plan %d is inactive", plan.ID)
			}
			capital := plan.CurrentCapital.Add(trans.SignedAmount())
			if capital.IsNegative() {
				return errs.E(errs.InsufficientFunds, op, "withdrawal %s exceeds capital %s",
					trans.Amount.StringFixed(2), plan.CurrentCapital.StringFixed(2))
			}
			if err := tx.UpdatePlanCapital(ctx, plan.ID, capital); err != nil {
				return storeError(op, err)
			}
			plan.CurrentCapital = capital
		}

		now := s.clock.Now()
		if err := tx.UpdateTransactionStatus(ctx, trans.ID, model.TransactionStatusPending, outcome, now); err != nil {
			return storeError(op, err)
		}
		trans.Status = outcome
		trans.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	s.log.Info().Str("transaction_no", trans.TransactionNo).Str("status", trans.Status).
		Str("capital", plan.CurrentCapital.StringFixed(2)).Msg("transaction resolved")
	s.settle(ctx, plan.ID, plan.UserID, resolutionNotice(trans, plan))
	return trans, nil
}

func (s *TransactionService) CancelTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	return s.ResolveTransaction(ctx, id, model.TransactionStatusCancelled)
}

// DeleteTransaction removes a transaction. A completed one has its capital effect
// reversed first.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id int64) error {
	const op = "transaction.delete"
	peek, err := s.store.GetTransaction(ctx, id, false)
	if err != nil {
		return storeError(op, err)
	}
	release, err := s.lockPlan(ctx, op, peek.PlanID)
	if err != nil {
		return err
	}
	defer release()

	err = s.store.RunInTransaction(ctx, func(tx repository.Store) error {
		plan, err := tx.GetPlan(ctx, peek.PlanID, true)
		if err != nil {
			return storeError(op, err)
		}
		trans, err := tx.GetTransaction(ctx, id, true)
		if err != nil {
			return storeError(op, err)
		}
		if trans.Status == model.TransactionStatusCompleted {
			capital := plan.CurrentCapital.Sub(trans.SignedAmount())
			if capital.IsNegative() {
				return errs.E(errs.InsufficientFunds, op, "reversing %s would leave capital at %s",
					trans.TransactionNo, capital.StringFixed(2))
			}
			if err := tx.UpdatePlanCapital(ctx, plan.ID, capital); err != nil {
				return storeError(op, err)
			}
		}
		return storeError(op, tx.DeleteTransaction(ctx, trans.ID))
	})
	if err != nil {
		return storeError(op, err)
	}

	s.log.Info().Str("transaction_no", peek.TransactionNo).Str("status", peek.Status).Msg("transaction deleted")
	s.settle(ctx, peek.PlanID, peek.UserID, nil)
	return nil
}

func (s *TransactionService) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	trans, err := s.store.GetTransaction(ctx, id, false)
	if err != nil {
		return nil, storeError("transaction.get", err)
	}
	return trans, nil
}

func (s *TransactionService) ListTransactions(ctx context.Context, planID int64) ([]*model.Transaction, error) {
	const op = "transaction.list"
	if _, err := s.store.GetPlan(ctx, planID, false); err != nil {
		return nil, storeError(op, err)
	}
	list, err := s.store.ListTransactions(ctx, planID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return list, nil
}

func typeLabel(t string) string {
	if t == model.TransactionTypeWithdrawal {
		return "withdrawal"
	}
	return "deposit"
}

func resolutionNotice(trans *model.Transaction, plan *model.Plan) *Notice {
	amount := formatAmount(trans.Amount, plan.Currency)
	if trans.Status == model.TransactionStatusCancelled {
		return &Notice{
			Type:     model.NotificationTypeTransaction,
			Title:    "Transaction cancelled",
			Message:  fmt.Sprintf("Your %s request of %s was cancelled.", typeLabel(trans.Type), amount),
			Priority: model.PriorityMedium,
		}
	}
	return &Notice{
		Type:  model.NotificationTypeTransaction,
		Title: "Transaction completed",
		Message: fmt.Sprintf("Your %s of %s was completed. Current capital: %s.",
			typeLabel(trans.Type), amount, formatAmount(plan.CurrentCapital, plan.Currency)),
		Priority: model.PriorityHigh,
	}
}
