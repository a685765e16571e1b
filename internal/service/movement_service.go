package service

import (
	"context"
	"sort"
	"time"

	"advisorledger/internal/errs"
	"advisorledger/internal/model"
	"advisorledger/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MovementService imports broker trades and groups them into movement reports.
type MovementService struct {
	db           *gorm.DB
	movementRepo *repository.MovementRepository
	userRepo     *repository.UserRepository
	clock        Clock
	log          zerolog.Logger
}

func NewMovementService(db *gorm.DB, clock Clock, logger zerolog.Logger) *MovementService {
	if clock == nil {
		clock = systemClock{}
	}
	return &MovementService{
		db:           db,
		movementRepo: repository.NewMovementRepository(db),
		userRepo:     repository.NewUserRepository(db),
		clock:        clock,
		log:          logger.With().Str("component", "MovementService").Logger(),
	}
}

// ImportMovements validates every item and stores them all, or none.
func (s *MovementService) ImportMovements(ctx context.Context, items []*model.MovementItem) ([]*model.MovementItem, error) {
	const op = "movement.import"
	if len(items) == 0 {
		return nil, errs.E(errs.Validation, op, "no movements to import")
	}
	for i, item := range items {
		if err := validate.Struct(item); err != nil {
			return nil, errs.E(errs.Validation, op, "item %d: %v", i, validationError(op, err))
		}
		item.ID = 0
		item.MovementReportID = nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.movementRepo.CreateItems(ctx, tx, items)
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	s.log.Info().Int("count", len(items)).Msg("movements imported")
	return items, nil
}

func (s *MovementService) ListUnattached(ctx context.Context, accountNumber string) ([]*model.MovementItem, error) {
	items, err := s.movementRepo.ListUnattached(ctx, nil, accountNumber)
	if err != nil {
		return nil, storeError("movement.list_unattached", err)
	}
	return items, nil
}

type CreateMovementReportRequest struct {
	UserID         int64           `json:"user_id" validate:"required"`
	AccountNumber  string          `json:"account_number" validate:"required,max=64"`
	Currency       string          `json:"currency" validate:"required,max=8"`
	Broker         string          `json:"broker" validate:"required,max=64"`
	TotalReturn    decimal.Decimal `json:"total_return"`
	PersonalReturn decimal.Decimal `json:"personal_return"`
	OperatingCosts decimal.Decimal `json:"operating_costs"`
	FirmProfit     decimal.Decimal `json:"firm_profit"`
	Insurance      decimal.Decimal `json:"insurance"`
	OpenFrame      time.Time       `json:"open_frame" validate:"required"`
	CloseFrame     time.Time       `json:"close_frame" validate:"required"`
	ItemIDs        []int64         `json:"item_ids" validate:"required,min=1"`
}

// CreateMovementReport creates the report and attaches the given items in one transaction.
// Every item must exist and not belong to another report.
func (s *MovementService) CreateMovementReport(ctx context.Context, req *CreateMovementReportRequest) (*model.MovementReport, error) {
	const op = "movement.create_report"
	if err := validate.Struct(req); err != nil {
		return nil, validationError(op, err)
	}
	if req.CloseFrame.Before(req.OpenFrame) {
		return nil, errs.E(errs.Validation, op, "close frame precedes open frame")
	}
	ids := dedupeIDs(req.ItemIDs)

	report := &model.MovementReport{
		UserID:         req.UserID,
		AccountNumber:  req.AccountNumber,
		Currency:       req.Currency,
		Broker:         req.Broker,
		TotalReturn:    req.TotalReturn,
		PersonalReturn: req.PersonalReturn,
		OperatingCosts: req.OperatingCosts,
		FirmProfit:     req.FirmProfit,
		Insurance:      req.Insurance,
		OpenFrame:      req.OpenFrame,
		CloseFrame:     req.CloseFrame,
		IssuedAt:       s.clock.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.userRepo.GetByID(ctx, tx, req.UserID, false); err != nil {
			return err
		}
		if err := s.movementRepo.CreateReport(ctx, tx, report); err != nil {
			return err
		}
		return s.movementRepo.AttachItems(ctx, tx, report.ID, ids)
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	s.log.Info().Int64("movement_report_id", report.ID).Int("items", len(ids)).Msg("movement report created")
	return s.GetMovementReport(ctx, report.ID)
}

// DeleteMovementReport frees the report's items for a later report and removes it.
func (s *MovementService) DeleteMovementReport(ctx context.Context, id int64) error {
	const op = "movement.delete_report"
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.movementRepo.DetachItems(ctx, tx, id); err != nil {
			return err
		}
		return s.movementRepo.DeleteReport(ctx, tx, id)
	})
	if err != nil {
		return storeError(op, err)
	}
	s.log.Info().Int64("movement_report_id", id).Msg("movement report deleted")
	return nil
}

func (s *MovementService) GetMovementReport(ctx context.Context, id int64) (*model.MovementReport, error) {
	report, err := s.movementRepo.GetReport(ctx, nil, id)
	if err != nil {
		return nil, storeError("movement.get_report", err)
	}
	return report, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
