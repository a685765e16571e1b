package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"advisorledger/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type recordingNotifier struct {
	mu      sync.Mutex
	err     error
	notices map[int64][]Notice
}

func (n *recordingNotifier) Notify(ctx context.Context, userID int64, notice Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	if n.notices == nil {
		n.notices = map[int64][]Notice{}
	}
	n.notices[userID] = append(n.notices[userID], notice)
	return nil
}

func (n *recordingNotifier) sent(userID int64) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices[userID]...)
}

type countingLocker struct {
	mu       sync.Mutex
	err      error
	acquired map[int64]int
	released map[int64]int
}

func (l *countingLocker) LockPlan(ctx context.Context, planID int64) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.acquired == nil {
		l.acquired, l.released = map[int64]int{}, map[int64]int{}
	}
	l.acquired[planID]++
	return func() {
		l.mu.Lock()
		l.released[planID]++
		l.mu.Unlock()
	}, nil
}

type mapCache struct {
	mu       sync.Mutex
	entries  map[string][]byte
	versions map[string]int64
	gets     int
	hits     int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}, versions: map[string]int64{}}
}

func (c *mapCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dst)
}

func (c *mapCache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *mapCache) Version(ctx context.Context, scope string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[scope], nil
}

func (c *mapCache) Bump(ctx context.Context, scopes ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range scopes {
		c.versions[s]++
	}
	return nil
}

var errInjected = errors.New("injected failure")

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store        *memStore
	clock        *fixedClock
	notifier     *recordingNotifier
	locker       *countingLocker
	cache        *mapCache
	clients      *ClientService
	transactions *TransactionService
	reports      *ReportService
	stats        *StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(),
		clock:    &fixedClock{t: time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
		locker:   &countingLocker{},
		cache:    newMapCache(),
	}
	deps := Deps{
		Store:    f.store,
		Clock:    f.clock,
		Notifier: f.notifier,
		Locker:   f.locker,
		Cache:    f.cache,
		Logger:   zerolog.Nop(),
	}
	f.clients = NewClientService(deps)
	f.transactions = NewTransactionService(deps)
	f.reports = NewReportService(deps)
	f.stats = NewStatsService(deps, DefaultStatsMonths)
	return f
}

// newPlan registers a client with a current plan holding capital.
func (f *fixture) newPlan(t *testing.T, capital string) *model.Plan {
	t.Helper()
	ctx := context.Background()
	user, err := f.clients.CreateClient(ctx, &CreateClientRequest{
		Email: fmt.Sprintf("client%d@example.com", time.Now().UnixNano()),
		Name:  "Client",
	})
	require.NoError(t, err)
	plan, err := f.clients.CreatePlan(ctx, &CreatePlanRequest{
		UserID:         user.ID,
		Period:         "anual",
		Currency:       "USD",
		InitialCapital: d(capital),
		StartDate:      f.clock.Now().AddDate(0, -3, 0),
	})
	require.NoError(t, err)
	return plan
}

func (f *fixture) capital(t *testing.T, planID int64) string {
	t.Helper()
	plan, err := f.store.GetPlan(context.Background(), planID, false)
	require.NoError(t, err)
	return plan.CurrentCapital.StringFixed(2)
}
