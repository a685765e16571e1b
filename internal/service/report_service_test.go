package service

import (
	"context"
	"errors"
	"testing"

	"advisorledger/internal/errs"
	"advisorledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")

	report, err := f.reports.CreateReport(ctx, &CreateReportRequest{PlanID: plan.ID, Gain: d("100")})
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.Sequence)
	assert.Equal(t, "1000.00", report.OpeningCapital.StringFixed(2))
	assert.Equal(t, "1100.00", report.ClosingCapital.StringFixed(2))
	assert.Equal(t, "10.00", report.PeriodReturn.StringFixed(2))
	assert.Equal(t, "10.00", report.TotalReturn.StringFixed(2))
	assert.Equal(t, f.clock.Now(), report.IssuedAt)
	assert.Equal(t, "1100.00", f.capital(t, plan.ID))

	notices := f.notifier.sent(plan.UserID)
	require.Len(t, notices, 1)
	assert.Equal(t, model.NotificationTypeReport, notices[0].Type)
	assert.Contains(t, notices[0].Message, "$1,100.00")
	assert.Equal(t, f.locker.acquired[plan.ID], f.locker.released[plan.ID])
}

func TestCreateReportCumulative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")

	_, err := f.reports.CreateReport(ctx, &CreateReportRequest{PlanID: plan.ID, Gain: d("100")})
	require.NoError(t, err)
	second, err := f.reports.CreateReport(ctx, &CreateReportRequest{
		PlanID:     plan.ID,
		Gain:       d("110"),
		Extraction: d("50"),
		Deposit:    d("20"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), second.Sequence)
	assert.Equal(t, "1100.00", second.OpeningCapital.StringFixed(2))
	assert.Equal(t, "1180.00", second.ClosingCapital.StringFixed(2))
	assert.Equal(t, "10.00", second.PeriodReturn.StringFixed(2))
	assert.Equal(t, "21.00", second.TotalReturn.StringFixed(2))
	assert.Equal(t, "1180.00", f.capital(t, plan.ID))
}

func TestCreateReportLoss(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan(t, "1000")

	report, err := f.reports.CreateReport(context.Background(), &CreateReportRequest{PlanID: plan.ID, Gain: d("-40")})
	require.NoError(t, err)
	assert.Equal(t, "960.00", report.ClosingCapital.StringFixed(2))
	assert.True(t, report.PeriodReturn.IsZero())
}

func TestCreateReportRejected(t *testing.T) {
	tests := []struct {
		name string
		req  func(planID int64) *CreateReportRequest
		kind errs.Kind
	}{
		{
			name: "negative extraction",
			req: func(planID int64) *CreateReportRequest {
				return &CreateReportRequest{PlanID: planID, Gain: d("10"), Extraction: d("-1")}
			},
			kind: errs.Validation,
		},
		{
			name: "negative deposit",
			req: func(planID int64) *CreateReportRequest {
				return &CreateReportRequest{PlanID: planID, Deposit: d("-5")}
			},
			kind: errs.Validation,
		},
		{
			name: "extraction above available capital",
			req: func(planID int64) *CreateReportRequest {
				return &CreateReportRequest{PlanID: planID, Gain: d("100"), Extraction: d("1200")}
			},
			kind: errs.InsufficientFunds,
		},
		{
			name: "unknown plan",
			req: func(planID int64) *CreateReportRequest {
				return &CreateReportRequest{PlanID: planID + 999, Gain: d("10")}
			},
			kind: errs.NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			plan := f.newPlan(t, "1000")

			_, err := f.reports.CreateReport(context.Background(), tt.req(plan.ID))
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err))

			reports, err := f.reports.ListReports(context.Background(), plan.ID)
			require.NoError(t, err)
			assert.Empty(t, reports)
			assert.Equal(t, "1000.00", f.capital(t, plan.ID))
		})
	}
}

func TestCreateReportRollsBackOnPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")
	f.store.failOn("UpdatePlanCapital", errInjected)

	_, err := f.reports.CreateReport(ctx, &CreateReportRequest{PlanID: plan.ID, Gain: d("100")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPersistence))
	assert.ErrorIs(t, err, errInjected)

	reports, err := f.store.ListReports(ctx, plan.ID)
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Equal(t, "1000.00", f.capital(t, plan.ID))
	assert.Empty(t, f.notifier.sent(plan.UserID))
	assert.Equal(t, f.locker.acquired[plan.ID], f.locker.released[plan.ID])
}

func TestCreateReportNotifyFailureKeepsCommit(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan(t, "1000")
	f.notifier.err = errInjected

	_, err := f.reports.CreateReport(context.Background(), &CreateReportRequest{PlanID: plan.ID, Gain: d("100")})
	require.NoError(t, err)
	assert.Equal(t, "1100.00", f.capital(t, plan.ID))
}

func TestCreateReportLockFailure(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan(t, "1000")
	f.locker.err = errInjected

	_, err := f.reports.CreateReport(context.Background(), &CreateReportRequest{PlanID: plan.ID, Gain: d("100")})
	require.Error(t, err)
	assert.Equal(t, errs.Persistence, errs.KindOf(err))
	assert.Equal(t, "1000.00", f.capital(t, plan.ID))
}

func TestDeleteReportRestoresCapital(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")

	_, err := f.reports.CreateReport(ctx, &CreateReportRequest{PlanID: plan.ID, Gain: d("100")})
	require.NoError(t, err)
	report, err := f.reports.CreateReport(ctx, &CreateReportRequest{
		PlanID: plan.ID, Gain: d("35.55"), Extraction: d("200"), Deposit: d("12.10"),
	})
	require.NoError(t, err)
	require.Equal(t, "947.65", f.capital(t, plan.ID))

	require.NoError(t, f.reports.DeleteReport(ctx, report.ID))
	assert.Equal(t, "1100.00", f.capital(t, plan.ID))

	_, err = f.reports.GetReport(ctx, report.ID)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))

	// the sequence stays dense after a delete
	again, err := f.reports.CreateReport(ctx, &CreateReportRequest{PlanID: plan.ID, Gain: d("1")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Sequence)
}

func TestDeleteReportOnlyLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")

	first, err := f.reports.CreateReport(ctx, &CreateReportRequest{PlanID: plan.ID, Gain: d("100")})
	require.NoError(t, err)
	_, err = f.reports.CreateReport(ctx, &CreateReportRequest{PlanID: plan.ID, Gain: d("100")})
	require.NoError(t, err)

	err = f.reports.DeleteReport(ctx, first.ID)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
	assert.Equal(t, "1200.00", f.capital(t, plan.ID))

	err = f.reports.DeleteReport(ctx, 424242)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestDeleteReportInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")

	report, err := f.reports.CreateReport(ctx, &CreateReportRequest{PlanID: plan.ID, Gain: d("100")})
	require.NoError(t, err)
	trans, err := f.transactions.RequestTransaction(ctx, &RequestTransactionRequest{
		PlanID: plan.ID, Type: model.TransactionTypeWithdrawal, Amount: d("1100"),
	})
	require.NoError(t, err)
	_, err = f.transactions.ResolveTransaction(ctx, trans.ID, model.TransactionStatusCompleted)
	require.NoError(t, err)

	err = f.reports.DeleteReport(ctx, report.ID)
	assert.True(t, errors.Is(err, errs.ErrInsufficientFunds))
	assert.Equal(t, "0.00", f.capital(t, plan.ID))
}

func TestCreateReportRejectsSubCentAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")

	for _, req := range []*CreateReportRequest{
		{PlanID: plan.ID, Gain: d("10.0049")},
		{PlanID: plan.ID, Gain: d("0.006"), Extraction: d("0.004")},
		{PlanID: plan.ID, Gain: d("1"), Deposit: d("0.001")},
	} {
		_, err := f.reports.CreateReport(ctx, req)
		assert.True(t, errors.Is(err, errs.ErrValidation), "gain %s", req.Gain)
	}

	list, err := f.reports.ListReports(ctx, plan.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, "1000.00", f.capital(t, plan.ID))

	report, err := f.reports.CreateReport(ctx, &CreateReportRequest{PlanID: plan.ID, Gain: d("10.05")})
	require.NoError(t, err)
	assert.Equal(t, "1010.05", report.ClosingCapital.String())
}
