package service

import (
	"context"
	"strings"
	"time"

	"advisorledger/internal/errs"
	"advisorledger/internal/model"
	"advisorledger/internal/repository"

	"github.com/shopspring/decimal"
)

type ClientService struct {
	base
}

func NewClientService(d Deps) *ClientService {
	return &ClientService{base: newBase(d, "ClientService")}
}

type CreateClientRequest struct {
	Email string `json:"email" validate:"required,email,max=128"`
	Name  string `json:"name" validate:"required,max=128"`
}

func (s *ClientService) CreateClient(ctx context.Context, req *CreateClientRequest) (*model.User, error) {
	const op = "client.create"
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return nil, validationError(op, err)
	}
	user := &model.User{
		Email:    req.Email,
		Name:     req.Name,
		Role:     model.RoleClient,
		IsActive: true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, storeError(op, err)
	}
	s.log.Info().Int64("user_id", user.ID).Msg("client created")
	return user, nil
}

type CreatePlanRequest struct {
	UserID         int64           `json:"user_id" validate:"required"`
	Period         string          `json:"period" validate:"required,max=32"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	StartDate      time.Time       `json:"start_date"`
}

// CreatePlan opens a new current plan for the user. Any previous current plan of
// the user stops being current in the same unit of work.
func (s *ClientService) CreatePlan(ctx context.Context, req *CreatePlanRequest) (*model.Plan, error) {
	const op = "plan.create"
	if err := validate.Struct(req); err != nil {
		return nil, validationError(op, err)
	}
	if !req.InitialCapital.IsPositive() {
		return nil, errs.E(errs.Validation, op, "initial capital must be positive")
	}
	if err := checkMoney(op, "initial capital", req.InitialCapital, strings.ToUpper(req.Currency)); err != nil {
		return nil, err
	}
	start := req.StartDate
	if start.IsZero() {
		start = s.clock.Now()
	}

	plan := &model.Plan{
		UserID:         req.UserID,
		Period:         req.Period,
		Currency:       strings.ToUpper(req.Currency),
		InitialCapital: req.InitialCapital,
		CurrentCapital: req.InitialCapital,
		StartDate:      start,
		IsCurrent:      true,
	}

	err := s.store.RunInTransaction(ctx, func(tx repository.Store) error {
		user, err := tx.GetUser(ctx, req.UserID, true)
		if err != nil {
			return storeError(op, err)
		}
		if !user.CanOperate() {
			return errs.E(errs.NotFound, op, "user %d is not an active client", user.ID)
		}
		if err := tx.ClearCurrentPlans(ctx, user.ID); err != nil {
			return storeError(op, err)
		}
		return storeError(op, tx.CreatePlan(ctx, plan))
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	s.settle(ctx, plan.ID, plan.UserID, nil)
	s.log.Info().Int64("plan_id", plan.ID).Int64("user_id", plan.UserID).
		Str("capital", plan.InitialCapital.StringFixed(2)).Msg("plan created")
	return plan, nil
}

func (s *ClientService) SetUserActive(ctx context.Context, userID int64, active bool) error {
	const op = "client.set_active"
	if err := s.store.SetUserActive(ctx, userID, active); err != nil {
		return storeError(op, err)
	}
	s.settle(ctx, 0, userID, nil)
	return nil
}

func (s *ClientService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.store.GetUser(ctx, userID, false)
	if err != nil {
		return nil, storeError("client.get", err)
	}
	return user, nil
}

func (s *ClientService) GetPlan(ctx context.Context, planID int64) (*model.Plan, error) {
	plan, err := s.store.GetPlan(ctx, planID, false)
	if err != nil {
		return nil, storeError("plan.get", err)
	}
	return plan, nil
}

func (s *ClientService) GetCurrentPlan(ctx context.Context, userID int64) (*model.Plan, error) {
	plan, err := s.store.GetCurrentPlan(ctx, userID)
	if err != nil {
		return nil, storeError("plan.get_current", err)
	}
	return plan, nil
}
