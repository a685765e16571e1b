package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"advisorledger/internal/errs"
	"advisorledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(t *testing.T, f *fixture, planID int64, typ, amount string) *model.Transaction {
	t.Helper()
	trans, err := f.transactions.RequestTransaction(context.Background(), &RequestTransactionRequest{
		PlanID: planID, Type: typ, Amount: d(amount),
	})
	require.NoError(t, err)
	return trans
}

func TestTransactionWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")

	_, err := f.reports.CreateReport(ctx, &CreateReportRequest{PlanID: plan.ID, Gain: d("100")})
	require.NoError(t, err)
	require.Equal(t, "1100.00", f.capital(t, plan.ID))

	_, err = f.transactions.RequestTransaction(ctx, &RequestTransactionRequest{
		PlanID: plan.ID, Type: model.TransactionTypeWithdrawal, Amount: d("1200"),
	})
	assert.True(t, errors.Is(err, errs.ErrInsufficientFunds))
	list, err := f.transactions.ListTransactions(ctx, plan.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, "1100.00", f.capital(t, plan.ID))

	deposit := request(t, f, plan.ID, model.TransactionTypeDeposit, "200")
	assert.Equal(t, model.TransactionStatusPending, deposit.Status)
	assert.Regexp(t, `^TXN\d+$`, deposit.TransactionNo)
	assert.Equal(t, plan.UserID, deposit.UserID)
	assert.Equal(t, f.clock.Now(), deposit.Date)
	assert.Equal(t, "1100.00", f.capital(t, plan.ID), "a request never moves capital")

	resolved, err := f.transactions.ResolveTransaction(ctx, deposit.ID, model.TransactionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusCompleted, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, "1300.00", f.capital(t, plan.ID))

	_, err = f.transactions.ResolveTransaction(ctx, deposit.ID, model.TransactionStatusCompleted)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
	assert.Equal(t, "1300.00", f.capital(t, plan.ID))

	notices := f.notifier.sent(plan.UserID)
	require.NotEmpty(t, notices)
	last := notices[len(notices)-1]
	assert.Equal(t, "Transaction completed", last.Title)
	assert.Contains(t, last.Message, "$1,300.00")
	assert.Equal(t, model.PriorityHigh, last.Priority)
}

func TestResolveWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")

	first := request(t, f, plan.ID, model.TransactionTypeWithdrawal, "800")
	second := request(t, f, plan.ID, model.TransactionTypeWithdrawal, "800")

	_, err := f.transactions.ResolveTransaction(ctx, first.ID, model.TransactionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "200.00", f.capital(t, plan.ID))

	_, err = f.transactions.ResolveTransaction(ctx, second.ID, model.TransactionStatusCompleted)
	assert.True(t, errors.Is(err, errs.ErrInsufficientFunds))
	still, err := f.transactions.GetTransaction(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusPending, still.Status)
	assert.Equal(t, "200.00", f.capital(t, plan.ID))

	cancelled, err := f.transactions.CancelTransaction(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusCancelled, cancelled.Status)
	assert.Equal(t, "200.00", f.capital(t, plan.ID))

	_, err = f.transactions.ResolveTransaction(ctx, second.ID, model.TransactionStatusCompleted)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
}

func TestRequestTransactionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")

	tests := []struct {
		name string
		req  *RequestTransactionRequest
		kind errs.Kind
	}{
		{"unknown type", &RequestTransactionRequest{PlanID: plan.ID, Type: "transfer", Amount: d("1")}, errs.Validation},
		{"zero amount", &RequestTransactionRequest{PlanID: plan.ID, Type: model.TransactionTypeDeposit, Amount: d("0")}, errs.Validation},
		{"negative amount", &RequestTransactionRequest{PlanID: plan.ID, Type: model.TransactionTypeDeposit, Amount: d("-3")}, errs.Validation},
		{"unknown plan", &RequestTransactionRequest{PlanID: 9999, Type: model.TransactionTypeDeposit, Amount: d("3")}, errs.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.transactions.RequestTransaction(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err))
		})
	}

	_, err := f.transactions.ResolveTransaction(ctx, 9999, model.TransactionStatusCompleted)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))

	trans := request(t, f, plan.ID, model.TransactionTypeDeposit, "5")
	_, err = f.transactions.ResolveTransaction(ctx, trans.ID, "approved")
	assert.Equal(t, errs.Validation, errs.KindOf(err))
}

func TestRequestTransactionPlanMustBeCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.newPlan(t, "1000")

	_, err := f.clients.CreatePlan(ctx, &CreatePlanRequest{
		UserID: old.UserID, Period: "semestral", Currency: "USD", InitialCapital: d("500"),
	})
	require.NoError(t, err)

	_, err = f.transactions.RequestTransaction(ctx, &RequestTransactionRequest{
		PlanID: old.ID, Type: model.TransactionTypeDeposit, Amount: d("10"),
	})
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
}

func TestInactiveOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")
	pending := request(t, f, plan.ID, model.TransactionTypeDeposit, "100")
	other := request(t, f, plan.ID, model.TransactionTypeDeposit, "100")

	require.NoError(t, f.clients.SetUserActive(ctx, plan.UserID, false))

	_, err := f.transactions.RequestTransaction(ctx, &RequestTransactionRequest{
		PlanID: plan.ID, Type: model.TransactionTypeDeposit, Amount: d("10"),
	})
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	_, err = f.transactions.ResolveTransaction(ctx, pending.ID, model.TransactionStatusCompleted)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	_, err = f.transactions.CancelTransaction(ctx, other.ID)
	assert.NoError(t, err)
	assert.Equal(t, "1000.00", f.capital(t, plan.ID))
}

func TestResolveRollsBackOnPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")
	trans := request(t, f, plan.ID, model.TransactionTypeDeposit, "250")
	f.store.failOn("UpdateTransactionStatus", errInjected)

	_, err := f.transactions.ResolveTransaction(ctx, trans.ID, model.TransactionStatusCompleted)
	assert.Equal(t, errs.Persistence, errs.KindOf(err))
	assert.Equal(t, "1000.00", f.capital(t, plan.ID))

	f.store.failOn("UpdateTransactionStatus", nil)
	got, err := f.transactions.GetTransaction(ctx, trans.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusPending, got.Status)
}

func TestResolveConcurrentAppliesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")
	trans := request(t, f, plan.ID, model.TransactionTypeDeposit, "100")

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		invalid   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.transactions.ResolveTransaction(ctx, trans.ID, model.TransactionStatusCompleted)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, errs.ErrInvalidState):
				invalid++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, invalid)
	assert.Equal(t, "1100.00", f.capital(t, plan.ID))
}

func TestDeleteTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")

	deposit := request(t, f, plan.ID, model.TransactionTypeDeposit, "500")
	_, err := f.transactions.ResolveTransaction(ctx, deposit.ID, model.TransactionStatusCompleted)
	require.NoError(t, err)
	withdrawal := request(t, f, plan.ID, model.TransactionTypeWithdrawal, "300")
	_, err = f.transactions.ResolveTransaction(ctx, withdrawal.ID, model.TransactionStatusCompleted)
	require.NoError(t, err)
	pending := request(t, f, plan.ID, model.TransactionTypeWithdrawal, "50")
	require.Equal(t, "1200.00", f.capital(t, plan.ID))

	require.NoError(t, f.transactions.DeleteTransaction(ctx, pending.ID))
	assert.Equal(t, "1200.00", f.capital(t, plan.ID))

	require.NoError(t, f.transactions.DeleteTransaction(ctx, withdrawal.ID))
	assert.Equal(t, "1500.00", f.capital(t, plan.ID))

	require.NoError(t, f.transactions.DeleteTransaction(ctx, deposit.ID))
	assert.Equal(t, "1000.00", f.capital(t, plan.ID))

	list, err := f.transactions.ListTransactions(ctx, plan.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = f.transactions.DeleteTransaction(ctx, deposit.ID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestDeleteTransactionInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")

	deposit := request(t, f, plan.ID, model.TransactionTypeDeposit, "500")
	_, err := f.transactions.ResolveTransaction(ctx, deposit.ID, model.TransactionStatusCompleted)
	require.NoError(t, err)
	withdrawal := request(t, f, plan.ID, model.TransactionTypeWithdrawal, "1500")
	_, err = f.transactions.ResolveTransaction(ctx, withdrawal.ID, model.TransactionStatusCompleted)
	require.NoError(t, err)

	err = f.transactions.DeleteTransaction(ctx, deposit.ID)
	assert.True(t, errors.Is(err, errs.ErrInsufficientFunds))
	assert.Equal(t, "0.00", f.capital(t, plan.ID))
}

func TestRequestTransactionRejectsSubCentAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan(t, "1000")

	_, err := f.transactions.RequestTransaction(ctx, &RequestTransactionRequest{
		PlanID: plan.ID, Type: model.TransactionTypeWithdrawal, Amount: d("0.004"),
	})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	user, err := f.clients.CreateClient(ctx, &CreateClientRequest{Email: "yen@example.com", Name: "Yen"})
	require.NoError(t, err)
	yen, err := f.clients.CreatePlan(ctx, &CreatePlanRequest{
		UserID: user.ID, Period: "anual", Currency: "JPY", InitialCapital: d("100000"),
	})
	require.NoError(t, err)
	_, err = f.transactions.RequestTransaction(ctx, &RequestTransactionRequest{
		PlanID: yen.ID, Type: model.TransactionTypeDeposit, Amount: d("10.5"),
	})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	for _, id := range []int64{plan.ID, yen.ID} {
		list, err := f.transactions.ListTransactions(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, list)
	}
	assert.Equal(t, "1000.00", f.capital(t, plan.ID))
}
