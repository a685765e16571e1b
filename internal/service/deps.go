package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"advisorledger/internal/errs"
	"advisorledger/internal/repository"

	"github.com/Rhymond/go-money"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Clock supplies the current time. Tests pin it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Notice is a user-facing message produced by a ledger operation.
type Notice struct {
	Type     string
	Title    string
	Message  string
	Priority string
}

// Notifier delivers notices after the ledger unit of work has committed.
type Notifier interface {
	Notify(ctx context.Context, userID int64, n Notice) error
}

// PlanLocker serializes mutating operations on one plan across processes.
type PlanLocker interface {
	LockPlan(ctx context.Context, planID int64) (release func(), err error)
}

// StatsCache stores computed statistics under versioned keys.
type StatsCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Version(ctx context.Context, scope string) (int64, error)
	Bump(ctx context.Context, scopes ...string) error
}

// Deps are the collaborators shared by the ledger services. Only Store is required.
type Deps struct {
	Store    repository.Store
	Clock    Clock
	Notifier Notifier
	Locker   PlanLocker
	Cache    StatsCache
	Logger   zerolog.Logger
}

type base struct {
	store    repository.Store
	clock    Clock
	notifier Notifier
	locker   PlanLocker
	cache    StatsCache
	log      zerolog.Logger
}

func newBase(d Deps, component string) base {
	if d.Store == nil {
		panic("service: Deps.Store is required")
	}
	b := base{
		store:    d.Store,
		clock:    d.Clock,
		notifier: d.Notifier,
		locker:   d.Locker,
		cache:    d.Cache,
		log:      d.Logger.With().Str("component", component).Logger(),
	}
	if b.clock == nil {
		b.clock = systemClock{}
	}
	return b
}

var validate = validator.New()

// lockPlan takes the cross-process plan lock when a locker is configured.
func (b *base) lockPlan(ctx context.Context, op string, planID int64) (func(), error) {
	if b.locker == nil {
		return func() {}, nil
	}
	release, err := b.locker.LockPlan(ctx, planID)
	if err != nil {
		return nil, errs.Wrap(errs.Persistence, op, fmt.Errorf("lock plan %d: %w", planID, err))
	}
	return release, nil
}

// settle runs the post-commit side effects of a mutation. Failures are logged only:
// the ledger change is already durable.
func (b *base) settle(ctx context.Context, planID, userID int64, n *Notice) {
	ctx = context.WithoutCancel(ctx)
	if b.cache != nil {
		scopes := []string{globalScope}
		if planID != 0 {
			scopes = append(scopes, planScope(planID))
		}
		if err := b.cache.Bump(ctx, scopes...); err != nil {
			b.log.Warn().Err(err).Int64("plan_id", planID).Msg("stats cache invalidation failed")
		}
	}
	if n == nil || b.notifier == nil {
		return
	}
	if err := b.notifier.Notify(ctx, userID, *n); err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Str("title", n.Title).Msg("notification failed")
	}
}

// storeError translates repository failures into typed ledger errors.
func storeError(op string, err error) error {
	var typed *errs.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &typed):
		return err
	case errors.Is(err, repository.ErrEmailTaken):
		return &errs.Error{Kind: errs.Validation, Op: op, Msg: "email already registered", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &errs.Error{Kind: errs.Validation, Op: op, Msg: "duplicate value", Err: err}
	case errors.Is(err, repository.ErrUserNotFound):
		return &errs.Error{Kind: errs.NotFound, Op: op, Msg: "user not found", Err: err}
	case errors.Is(err, repository.ErrPlanNotFound):
		return &errs.Error{Kind: errs.NotFound, Op: op, Msg: "plan not found", Err: err}
	case errors.Is(err, repository.ErrReportNotFound):
		return &errs.Error{Kind: errs.NotFound, Op: op, Msg: "report not found", Err: err}
	case errors.Is(err, repository.ErrTransactionNotFound):
		return &errs.Error{Kind: errs.NotFound, Op: op, Msg: "transaction not found", Err: err}
	case errors.Is(err, repository.ErrMovementReportNotFound):
		return &errs.Error{Kind: errs.NotFound, Op: op, Msg: "movement report not found", Err: err}
	case errors.Is(err, repository.ErrNotificationNotFound):
		return &errs.Error{Kind: errs.NotFound, Op: op, Msg: "notification not found", Err: err}
	case errors.Is(err, repository.ErrTransactionStatusInvalid):
		return &errs.Error{Kind: errs.InvalidState, Op: op, Msg: "transaction is no longer pending", Err: err}
	case errors.Is(err, repository.ErrMovementItemsUnavailable):
		return &errs.Error{Kind: errs.InvalidState, Op: op, Msg: "movement items missing or already attached", Err: err}
	default:
		return errs.Wrap(errs.Persistence, op, err)
	}
}

func validationError(op string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errs.E(errs.Validation, op, "field %s failed %s", fe.Field(), fe.Tag())
	}
	return errs.Wrap(errs.Validation, op, err)
}

// storageScale is the number of decimals money columns keep.
const storageScale = 2

// moneyScale is the number of decimals an amount in currency may carry.
func moneyScale(currency string) int32 {
	if c := money.GetCurrency(currency); c != nil && int32(c.Fraction) < storageScale {
		return int32(c.Fraction)
	}
	return storageScale
}

// checkMoney rejects amounts finer than the currency's minor unit, so every
// value used in capital arithmetic is exactly what the columns store.
func checkMoney(op, field string, amount decimal.Decimal, currency string) error {
	scale := moneyScale(currency)
	if !amount.Equal(amount.Truncate(scale)) {
		return errs.E(errs.Validation, op, "%s %s has more than %d decimals", field, amount.String(), scale)
	}
	return nil
}

// formatAmount renders amount in the plan currency, e.g. "$1,100.00".
func formatAmount(amount decimal.Decimal, currency string) string {
	c := money.GetCurrency(currency)
	if c == nil {
		return amount.StringFixed(2) + " " + currency
	}
	minor := amount.Shift(int32(c.Fraction)).Round(0).IntPart()
	return c.Formatter().Format(minor)
}
