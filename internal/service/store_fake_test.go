package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"advisorledger/internal/model"
	"advisorledger/internal/repository"

	"github.com/shopspring/decimal"
)

type memState struct {
	nextID       int64
	users        map[int64]model.User
	plans        map[int64]model.Plan
	reports      map[int64]model.Report
	transactions map[int64]model.Transaction
}

func (st *memState) clone() *memState {
	c := &memState{
		nextID:       st.nextID,
		users:        make(map[int64]model.User, len(st.users)),
		plans:        make(map[int64]model.Plan, len(st.plans)),
		reports:      make(map[int64]model.Report, len(st.reports)),
		transactions: make(map[int64]model.Transaction, len(st.transactions)),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.plans {
		c.plans[k] = v
	}
	for k, v := range st.reports {
		c.reports[k] = v
	}
	for k, v := range st.transactions {
		c.transactions[k] = v
	}
	return c
}

func (st *memState) id() int64 {
	st.nextID++
	return st.nextID
}

// memStore is an in-memory repository.Store. A unit of work runs on a copy of the
// state that replaces the committed state only when fn succeeds.
type memStore struct {
	mu    *sync.Mutex
	state *memState
	inTx  bool

	// failures injected by method name, shared with tx-bound copies
	failures map[string]error
}

func newMemStore() *memStore {
	s := &memStore{
		mu: &sync.Mutex{},
		state: &memState{
			users:        map[int64]model.User{},
			plans:        map[int64]model.Plan{},
			reports:      map[int64]model.Report{},
			transactions: map[int64]model.Transaction{},
		},
		failures: map[string]error{},
	}
	return s
}

func (s *memStore) failOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *memStore) do(method string, fn func(st *memState) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	if err := s.failures[method]; err != nil {
		return err
	}
	return fn(s.state)
}

func (s *memStore) RunInTransaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["RunInTransaction"]; err != nil {
		return err
	}
	tx := &memStore{mu: s.mu, state: s.state.clone(), inTx: true, failures: s.failures}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *memStore) CreateUser(ctx context.Context, user *model.User) error {
	return s.do("CreateUser", func(st *memState) error {
		for _, u := range st.users {
			if u.Email == user.Email {
				return repository.ErrEmailTaken
			}
		}
		user.ID = st.id()
		user.CreatedAt = time.Now()
		st.users[user.ID] = *user
		return nil
	})
}

func (s *memStore) GetUser(ctx context.Context, id int64, forUpdate bool) (*model.User, error) {
	var out *model.User
	err := s.do("GetUser", func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrUserNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (s *memStore) SetUserActive(ctx context.Context, id int64, active bool) error {
	return s.do("SetUserActive", func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrUserNotFound
		}
		u.IsActive = active
		st.users[id] = u
		return nil
	})
}

func (s *memStore) CountActiveClients(ctx context.Context) (int64, error) {
	var n int64
	err := s.do("CountActiveClients", func(st *memState) error {
		for _, u := range st.users {
			if u.Role == model.RoleClient && u.CanOperate() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *memStore) CreatePlan(ctx context.Context, plan *model.Plan) error {
	return s.do("CreatePlan", func(st *memState) error {
		plan.ID = st.id()
		st.plans[plan.ID] = *plan
		return nil
	})
}

func (s *memStore) GetPlan(ctx context.Context, id int64, forUpdate bool) (*model.Plan, error) {
	var out *model.Plan
	err := s.do("GetPlan", func(st *memState) error {
		p, ok := st.plans[id]
		if !ok {
			return repository.ErrPlanNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (s *memStore) GetCurrentPlan(ctx context.Context, userID int64) (*model.Plan, error) {
	var out *model.Plan
	err := s.do("GetCurrentPlan", func(st *memState) error {
		for _, p := range st.plans {
			if p.UserID == userID && p.IsCurrent {
				p := p
				out = &p
				return nil
			}
		}
		return repository.ErrPlanNotFound
	})
	return out, err
}

func (s *memStore) ListCurrentPlans(ctx context.Context) ([]*model.Plan, error) {
	var out []*model.Plan
	err := s.do("ListCurrentPlans", func(st *memState) error {
		for _, p := range st.plans {
			if p.IsCurrent {
				p := p
				out = append(out, &p)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (s *memStore) ClearCurrentPlans(ctx context.Context, userID int64) error {
	return s.do("ClearCurrentPlans", func(st *memState) error {
		for id, p := range st.plans {
			if p.UserID == userID {
				p.IsCurrent = false
				st.plans[id] = p
			}
		}
		return nil
	})
}

func (s *memStore) UpdatePlanCapital(ctx context.Context, planID int64, capital decimal.Decimal) error {
	return s.do("UpdatePlanCapital", func(st *memState) error {
		p, ok := st.plans[planID]
		if !ok {
			return repository.ErrPlanNotFound
		}
		p.CurrentCapital = capital
		st.plans[planID] = p
		return nil
	})
}

func (s *memStore) SumActiveCapital(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	err := s.do("SumActiveCapital", func(st *memState) error {
		for _, p := range st.plans {
			if u, ok := st.users[p.UserID]; ok && p.IsCurrent && u.CanOperate() {
				total = total.Add(p.CurrentCapital)
			}
		}
		return nil
	})
	return total, err
}

func (s *memStore) CreateReport(ctx context.Context, report *model.Report) error {
	return s.do("CreateReport", func(st *memState) error {
		report.ID = st.id()
		st.reports[report.ID] = *report
		return nil
	})
}

func (s *memStore) GetReport(ctx context.Context, id int64) (*model.Report, error) {
	var out *model.Report
	err := s.do("GetReport", func(st *memState) error {
		r, ok := st.reports[id]
		if !ok {
			return repository.ErrReportNotFound
		}
		out = &r
		return nil
	})
	return out, err
}

func (s *memStore) LatestReport(ctx context.Context, planID int64) (*model.Report, error) {
	var out *model.Report
	err := s.do("LatestReport", func(st *memState) error {
		for _, r := range st.reports {
			if r.PlanID == planID && (out == nil || r.Sequence > out.Sequence) {
				r := r
				out = &r
			}
		}
		if out == nil {
			return repository.ErrReportNotFound
		}
		return nil
	})
	return out, err
}

func (s *memStore) DeleteReport(ctx context.Context, id int64) error {
	return s.do("DeleteReport", func(st *memState) error {
		if _, ok := st.reports[id]; !ok {
			return repository.ErrReportNotFound
		}
		delete(st.reports, id)
		return nil
	})
}

func (s *memStore) ReportTotals(ctx context.Context, planID int64) (model.ReportTotals, error) {
	totals := model.ReportTotals{Gain: decimal.Zero, Extraction: decimal.Zero, Deposit: decimal.Zero}
	err := s.do("ReportTotals", func(st *memState) error {
		for _, r := range st.reports {
			if planID != 0 && r.PlanID != planID {
				continue
			}
			totals.Count++
			totals.Gain = totals.Gain.Add(r.Gain)
			totals.Extraction = totals.Extraction.Add(r.Extraction)
			totals.Deposit = totals.Deposit.Add(r.Deposit)
		}
		return nil
	})
	return totals, err
}

func (s *memStore) ListReports(ctx context.Context, planID int64) ([]*model.Report, error) {
	var out []*model.Report
	err := s.do("ListReports", func(st *memState) error {
		for _, r := range st.reports {
			if r.PlanID == planID {
				r := r
				out = append(out, &r)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
		return nil
	})
	return out, err
}

func (s *memStore) ListReportsIssuedBetween(ctx context.Context, planID int64, from, to time.Time) ([]*model.Report, error) {
	var out []*model.Report
	err := s.do("ListReportsIssuedBetween", func(st *memState) error {
		for _, r := range st.reports {
			if planID != 0 && r.PlanID != planID {
				continue
			}
			if r.IssuedAt.Before(from) || !r.IssuedAt.Before(to) {
				continue
			}
			r := r
			out = append(out, &r)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
		return nil
	})
	return out, err
}

func (s *memStore) CreateTransaction(ctx context.Context, trans *model.Transaction) error {
	return s.do("CreateTransaction", func(st *memState) error {
		trans.ID = st.id()
		st.transactions[trans.ID] = *trans
		return nil
	})
}

func (s *memStore) GetTransaction(ctx context.Context, id int64, forUpdate bool) (*model.Transaction, error) {
	var out *model.Transaction
	err := s.do("GetTransaction", func(st *memState) error {
		t, ok := st.transactions[id]
		if !ok {
			return repository.ErrTransactionNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (s *memStore) UpdateTransactionStatus(ctx context.Context, id int64, fromStatus, toStatus string, resolvedAt time.Time) error {
	return s.do("UpdateTransactionStatus", func(st *memState) error {
		t, ok := st.transactions[id]
		if !ok || t.Status != fromStatus || !model.CanTransitionTo(fromStatus, toStatus) {
			return repository.ErrTransactionStatusInvalid
		}
		t.Status = toStatus
		t.ResolvedAt = &resolvedAt
		st.transactions[id] = t
		return nil
	})
}

func (s *memStore) DeleteTransaction(ctx context.Context, id int64) error {
	return s.do("DeleteTransaction", func(st *memState) error {
		if _, ok := st.transactions[id]; !ok {
			return repository.ErrTransactionNotFound
		}
		delete(st.transactions, id)
		return nil
	})
}

func (s *memStore) ListTransactions(ctx context.Context, planID int64) ([]*model.Transaction, error) {
	var out []*model.Transaction
	err := s.do("ListTransactions", func(st *memState) error {
		for _, t := range st.transactions {
			if t.PlanID == planID {
				t := t
				out = append(out, &t)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
		return nil
	})
	return out, err
}

func (s *memStore) ListTransactionsBetween(ctx context.Context, planID int64, status string, from, to time.Time) ([]*model.Transaction, error) {
	var out []*model.Transaction
	err := s.do("ListTransactionsBetween", func(st *memState) error {
		for _, t := range st.transactions {
			if planID != 0 && t.PlanID != planID {
				continue
			}
			if status != "" && t.Status != status {
				continue
			}
			if t.Date.Before(from) || !t.Date.Before(to) {
				continue
			}
			t := t
			out = append(out, &t)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
		return nil
	})
	return out, err
}

func (s *memStore) TransactionTotals(ctx context.Context, planID int64, status string) (model.TransactionTotals, error) {
	totals := model.TransactionTotals{Deposits: decimal.Zero, Withdrawals: decimal.Zero}
	err := s.do("TransactionTotals", func(st *memState) error {
		for _, t := range st.transactions {
			if planID != 0 && t.PlanID != planID {
				continue
			}
			if status != "" && t.Status != status {
				continue
			}
			totals.Count++
			if t.Type == model.TransactionTypeWithdrawal {
				totals.Withdrawals = totals.Withdrawals.Add(t.Amount)
			} else {
				totals.Deposits = totals.Deposits.Add(t.Amount)
			}
		}
		return nil
	})
	return totals, err
}
