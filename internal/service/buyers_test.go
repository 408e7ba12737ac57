package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/authz"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/errs"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/model"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/repository"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/rules"
)

/************ in-memory store ************/

type memRepo struct {
	mu      sync.Mutex
	buyers  map[uuid.UUID]model.Buyer
	history []model.HistoryEntry

	historyErr error
	lastOffset int
}

var _ repository.BuyerRepository = (*memRepo)(nil)

func newMemRepo() *memRepo { return &memRepo{buyers: map[uuid.UUID]model.Buyer{}} }

// InTx stages writes on copies and publishes them only when fn succeeds.
func (m *memRepo) InTx(_ context.Context, fn func(tx repository.BuyerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{repo: m, buyers: map[uuid.UUID]model.Buyer{}, history: append([]model.HistoryEntry(nil), m.history...)}
	for k, v := range m.buyers {
		tx.buyers[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.buyers, m.history = tx.buyers, tx.history
	return nil
}

func (m *memRepo) Get(_ context.Context, id uuid.UUID) (*model.Buyer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buyers[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &b, nil
}

func (m *memRepo) sorted(f model.BuyerFilter) []model.Buyer {
	out := []model.Buyer{}
	for _, b := range m.buyers {
		if f.City != "" && b.City != f.City {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (m *memRepo) List(_ context.Context, f model.BuyerFilter, offset, limit int) ([]model.Buyer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOffset = offset
	all := m.sorted(f)
	if offset > len(all) {
		offset = len(all)
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (m *memRepo) ListAll(_ context.Context, f model.BuyerFilter) ([]model.Buyer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(f), nil
}

func (m *memRepo) History(_ context.Context, id uuid.UUID, limit int) ([]model.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.HistoryEntry{}
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].BuyerID == id {
			out = append(out, m.history[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memTx struct {
	repo    *memRepo
	buyers  map[uuid.UUID]model.Buyer
	history []model.HistoryEntry
}

func (t *memTx) Get(_ context.Context, id uuid.UUID) (*model.Buyer, error) {
	b, ok := t.buyers[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &b, nil
}

func (t *memTx) Insert(_ context.Context, b model.Buyer) error {
	t.buyers[b.ID] = b
	return nil
}

func (t *memTx) Update(_ context.Context, b model.Buyer, expected time.Time) error {
	cur, ok := t.buyers[b.ID]
	if !ok || !cur.UpdatedAt.Equal(expected) {
		return errs.ErrConflict
	}
	t.buyers[b.ID] = b
	return nil
}

func (t *memTx) Delete(_ context.Context, id uuid.UUID, expected time.Time) error {
	cur, ok := t.buyers[id]
	if !ok || !cur.UpdatedAt.Equal(expected) {
		return errs.ErrConflict
	}
	delete(t.buyers, id)
	return nil
}

func (t *memTx) AppendHistory(_ context.Context, h model.HistoryEntry) error {
	if t.repo.historyErr != nil {
		return t.repo.historyErr
	}
	t.history = append(t.history, h)
	return nil
}

type countingRecorder struct {
	mu        sync.Mutex
	mutations map[string]int
	history   map[string]int
}

var _ Recorder = (*countingRecorder)(nil)

func (c *countingRecorder) Mutation(op, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutations[op+"/"+outcome]++
}

func (c *countingRecorder) HistoryEntry(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[kind]++
}

/************ helpers ************/

type fixture struct {
	svc   *BuyerServiceImpl
	repo  *memRepo
	rec   *countingRecorder
	clock time.Time
	owner uuid.UUID
	other uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	az, err := authz.New()
	require.NoError(t, err)
	eng, err := rules.Default()
	require.NoError(t, err)

	f := &fixture{
		repo:  newMemRepo(),
		rec:   &countingRecorder{mutations: map[string]int{}, history: map[string]int{}},
		clock: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		owner: uuid.Must(uuid.NewV4()),
		other: uuid.Must(uuid.NewV4()),
	}
	f.svc = NewBuyerService(f.repo, az, eng, f.rec, BuyerOptions{PageSize: 2, RecentHistory: 5})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func validCreate() map[string]any {
	return map[string]any{
		"fullName":     "Asha Verma",
		"phone":        "9876543210",
		"city":         "Mohali",
		"propertyType": "Plot",
		"purpose":      "Buy",
		"timeline":     "_0_3m",
		"source":       "Website",
	}
}

func (f *fixture) create(t *testing.T) *model.Buyer {
	t.Helper()
	b, err := f.svc.Create(context.Background(), f.owner, validCreate())
	require.NoError(t, err)
	return b
}

func token(b *model.Buyer) string { return b.UpdatedAt.Format(time.RFC3339Nano) }

func historyFor(repo *memRepo, id uuid.UUID) []model.HistoryEntry {
	out, _ := repo.History(context.Background(), id, 0)
	return out
}

/************ create ************/

func TestBuyers_Create(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)

	require.Equal(t, f.owner, b.OwnerID)
	require.Equal(t, model.StatusNew, b.Status)
	require.Equal(t, f.clock, b.UpdatedAt)
	require.Equal(t, b.CreatedAt, b.UpdatedAt)
	require.Empty(t, b.Tags)

	hist := historyFor(f.repo, b.ID)
	require.Len(t, hist, 1)
	require.Equal(t, model.HistoryCreated, hist[0].Kind)
	require.Equal(t, f.owner, hist[0].ChangedBy)
	var payload map[string]model.Buyer
	require.NoError(t, json.Unmarshal(hist[0].Diff, &payload))
	require.Equal(t, b.ID, payload["created"].ID)
	require.Equal(t, 1, f.rec.mutations["create/ok"])
	require.Equal(t, 1, f.rec.history["created"])
}

func TestBuyers_Create_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.owner, map[string]any{"fullName": "A"})
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	require.GreaterOrEqual(t, len(ve.Violations), 7)

	raw := validCreate()
	raw["propertyType"] = "Villa"
	_, err = f.svc.Create(ctx, f.owner, raw)
	var de *errs.DomainError
	require.ErrorAs(t, err, &de)
	require.Equal(t, errs.CodeBHKRequired, de.Code)

	_, err = f.svc.Create(ctx, uuid.Nil, validCreate())
	require.ErrorIs(t, err, errs.ErrUnauthenticated)

	require.Empty(t, f.repo.buyers)
	require.Empty(t, f.repo.history)
	require.Equal(t, 1, f.rec.mutations["create/validation"])
	require.Equal(t, 1, f.rec.mutations["create/domain"])
}

/************ update ************/

func TestBuyers_Update_AdvancesTokenAndRecordsDiff(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)

	// clock has not moved: the token must still strictly increase
	got, err := f.svc.Update(context.Background(), f.owner, b.ID, map[string]any{
		"updatedAt": token(b),
		"city":      "Zirakpur",
		"notes":     "call after 6pm",
	})
	require.NoError(t, err)
	require.True(t, got.UpdatedAt.After(b.UpdatedAt))
	require.Equal(t, model.City("Zirakpur"), got.City)

	hist := historyFor(f.repo, b.ID)
	require.Len(t, hist, 2)
	require.Equal(t, model.HistoryUpdated, hist[0].Kind)
	require.JSONEq(t,
		`{"city":{"before":"Mohali","after":"Zirakpur"},"notes":{"before":null,"after":"call after 6pm"}}`,
		string(hist[0].Diff))
	require.Equal(t, got.UpdatedAt, hist[0].ChangedAt)
}

func TestBuyers_Update_StaleTokenConflicts(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	stale := token(b)

	f.clock = f.clock.Add(time.Minute)
	_, err := f.svc.Update(context.Background(), f.owner, b.ID, map[string]any{"updatedAt": stale, "city": "Zirakpur"})
	require.NoError(t, err)
	before := f.repo.buyers[b.ID]

	_, err = f.svc.Update(context.Background(), f.owner, b.ID, map[string]any{"updatedAt": stale, "city": "Panchkula"})
	require.ErrorIs(t, err, errs.ErrConflict)
	require.Equal(t, before, f.repo.buyers[b.ID])
	require.Len(t, historyFor(f.repo, b.ID), 2)
	require.Equal(t, 1, f.rec.mutations["update/conflict"])
}

func TestBuyers_Update_ConcurrentWritersSecondLoses(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	tok := token(b)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, city := range []string{"Zirakpur", "Panchkula"} {
		wg.Add(1)
		go func(i int, city string) {
			defer wg.Done()
			_, results[i] = f.svc.Update(context.Background(), f.owner, b.ID, map[string]any{"updatedAt": tok, "city": city})
		}(i, city)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errs.ErrConflict):
			conflicts++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, conflicts)
}

func TestBuyers_Update_NoOpWritesNoHistory(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)

	f.clock = f.clock.Add(time.Second)
	got, err := f.svc.Update(context.Background(), f.owner, b.ID, map[string]any{
		"updatedAt": token(b),
		"city":      "Mohali",
		"fullName":  "Asha Verma",
		"tags":      []any{},
	})
	require.NoError(t, err)
	require.True(t, got.UpdatedAt.After(b.UpdatedAt))
	require.Len(t, historyFor(f.repo, b.ID), 1)
	require.Zero(t, f.rec.history["updated"])
}

func TestBuyers_Update_DomainRules(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, f.owner, b.ID, map[string]any{"updatedAt": token(b), "propertyType": "Apartment", "city": "Other"})
	var de *errs.DomainError
	require.ErrorAs(t, err, &de)
	require.Equal(t, errs.CodeBHKRequired, de.Code)

	b, err = f.svc.Update(ctx, f.owner, b.ID, map[string]any{"updatedAt": token(b), "propertyType": "Office"})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.owner, b.ID, map[string]any{"updatedAt": token(b), "budgetMin": 500000, "budgetMax": 400000})
	require.ErrorAs(t, err, &de)
	require.Equal(t, errs.CodeBudgetOrder, de.Code)

	b, err = f.svc.Update(ctx, f.owner, b.ID, map[string]any{"updatedAt": token(b), "budgetMin": 400000, "budgetMax": 500000})
	require.NoError(t, err)

	// merged check: the stored bound participates even when only one side is submitted
	_, err = f.svc.Update(ctx, f.owner, b.ID, map[string]any{"updatedAt": token(b), "budgetMax": 100})
	require.ErrorAs(t, err, &de)
	require.Equal(t, errs.CodeBudgetOrder, de.Code)

	b, err = f.svc.Update(ctx, f.owner, b.ID, map[string]any{"updatedAt": token(b), "propertyType": "Apartment", "bhk": "Two"})
	require.NoError(t, err)
	require.Equal(t, model.BHKTwo, *b.BHK)
}

func TestBuyers_Update_Failures(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, f.owner, b.ID, map[string]any{"city": "Mohali"})
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "updatedAt", ve.Violations[0].Field)

	_, err = f.svc.Update(ctx, f.other, b.ID, map[string]any{"updatedAt": token(b), "city": "Zirakpur"})
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.svc.Update(ctx, uuid.Nil, b.ID, map[string]any{"updatedAt": token(b)})
	require.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = f.svc.Update(ctx, f.owner, uuid.Must(uuid.NewV4()), map[string]any{"updatedAt": token(b)})
	require.ErrorIs(t, err, errs.ErrNotFound)

	f.repo.historyErr = errs.ErrStorage
	_, err = f.svc.Update(ctx, f.owner, b.ID, map[string]any{"updatedAt": token(b), "city": "Zirakpur"})
	require.ErrorIs(t, err, errs.ErrStorage)
	require.Equal(t, *b, f.repo.buyers[b.ID])
	require.Equal(t, 1, f.rec.mutations["update/storage"])
}

/************ delete ************/

func TestBuyers_Delete(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.Delete(ctx, f.other, b.ID, nil), errs.ErrForbidden)
	stale := b.UpdatedAt.Add(-time.Second)
	require.ErrorIs(t, f.svc.Delete(ctx, f.owner, b.ID, &stale), errs.ErrConflict)

	require.NoError(t, f.svc.Delete(ctx, f.owner, b.ID, nil))
	_, err := f.svc.Get(ctx, f.other, b.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	hist, err := f.svc.History(ctx, f.other, b.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, model.HistoryDeleted, hist[0].Kind)
	var payload map[string]model.Buyer
	require.NoError(t, json.Unmarshal(hist[0].Diff, &payload))
	require.Equal(t, b.FullName, payload["deleted"].FullName)

	require.ErrorIs(t, f.svc.Delete(ctx, f.owner, b.ID, nil), errs.ErrNotFound)
	require.Equal(t, 1, f.rec.history["deleted"])
}

func TestBuyers_Delete_HistoryFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	f.repo.historyErr = errors.New("disk full")

	require.Error(t, f.svc.Delete(context.Background(), f.owner, b.ID, nil))
	_, ok := f.repo.buyers[b.ID]
	require.True(t, ok)
}

/************ reads ************/

func TestBuyers_GetListHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		f.clock = f.clock.Add(time.Minute)
		ids = append(ids, f.create(t).ID)
	}

	page, err := f.svc.List(ctx, f.other, model.BuyerFilter{}, 1)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 2, page.PageSize)
	require.Equal(t, []uuid.UUID{ids[2], ids[1]}, []uuid.UUID{page.Buyers[0].ID, page.Buyers[1].ID})

	page, err = f.svc.List(ctx, f.other, model.BuyerFilter{}, 2)
	require.NoError(t, err)
	require.Len(t, page.Buyers, 1)
	require.Equal(t, ids[0], page.Buyers[0].ID)

	_, err = f.svc.List(ctx, uuid.Nil, model.BuyerFilter{}, 1)
	require.ErrorIs(t, err, errs.ErrUnauthenticated)

	d, err := f.svc.Get(ctx, f.other, ids[0])
	require.NoError(t, err)
	require.Len(t, d.History, 1)

	all, err := f.svc.Export(ctx, f.other, model.BuyerFilter{City: model.CityMohali})
	require.NoError(t, err)
	require.Len(t, all, 3)

	hist, err := f.svc.History(ctx, f.other, uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
	require.Empty(t, hist)
}

func TestBuyers_List_HugePageFallsBackToFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t)

	for _, p := range []int{math.MaxInt, 1_000_000_000_000_000_000, math.MaxInt/2 + 2} {
		page, err := f.svc.List(ctx, f.other, model.BuyerFilter{}, p)
		require.NoError(t, err, p)
		require.Equal(t, 1, page.Page, p)
		require.Equal(t, 0, f.repo.lastOffset, p)
		require.Len(t, page.Buyers, 1)
	}

	// the largest page whose offset still fits is passed through
	p := math.MaxInt/2 + 1
	page, err := f.svc.List(ctx, f.other, model.BuyerFilter{}, p)
	require.NoError(t, err)
	require.Equal(t, p, page.Page)
	require.GreaterOrEqual(t, f.repo.lastOffset, 0)
	require.Empty(t, page.Buyers)
}

func TestBuyers_Get_ChecksIdentityBeforeLookup(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), uuid.Nil, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = f.svc.Get(context.Background(), f.other, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}
