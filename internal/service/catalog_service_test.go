package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-booking-api/internal/models"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
)

type cacheRepoStub struct {
	store       map[string][]byte
	invalidated []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{store: make(map[string][]byte)}
}

func (s *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = raw
	return nil
}

func (s *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.invalidated = append(s.invalidated, pattern)
	for key := range s.store {
		delete(s.store, key)
	}
	return nil
}

type catalogPlanStub struct {
	plans []models.Plan
	calls int
}

func (s *catalogPlanStub) FindByID(ctx context.Context, scope models.Scope, id string) (*models.Plan, error) {
	for i := range s.plans {
		if s.plans[i].ID == id {
			return &s.plans[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *catalogPlanStub) ListByOwner(ctx context.Context, scope models.Scope) ([]models.Plan, error) {
	s.calls++
	return s.plans, nil
}

type catalogAvailabilityStub struct {
	windows []models.AvailabilityWindow
	calls   int
}

func (s *catalogAvailabilityStub) ListByOwner(ctx context.Context, scope models.Scope) ([]models.AvailabilityWindow, error) {
	s.calls++
	return s.windows, nil
}

func (s *catalogAvailabilityStub) Upsert(ctx context.Context, window *models.AvailabilityWindow) (*models.AvailabilityWindow, error) {
	window.ID = "window-1"
	s.windows = append(s.windows, *window)
	return window, nil
}

func newCatalogFixture() (*CatalogService, *catalogPlanStub, *catalogAvailabilityStub, *cacheRepoStub) {
	cacheRepo := newCacheRepoStub()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	plans := &catalogPlanStub{plans: []models.Plan{{ID: testPlanOld, OwnerID: "owner-1", Price: 16000, WeeklyQuota: 3}}}
	availability := &catalogAvailabilityStub{}
	return NewCatalogService(plans, availability, cacheSvc, nil, nil), plans, availability, cacheRepo
}

func TestCatalogListPlansCachesListing(t *testing.T) {
	svc, plans, _, _ := newCatalogFixture()

	first, err := svc.ListPlans(context.Background(), testOwner())
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Second read is served from cache.
	second, err := svc.ListPlans(context.Background(), testOwner())
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 1, plans.calls)
}

func TestCatalogGetPlanNotFound(t *testing.T) {
	svc, _, _, _ := newCatalogFixture()

	_, err := svc.GetPlan(context.Background(), testOwner(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCatalogUpsertAvailabilityInvalidatesCache(t *testing.T) {
	svc, _, availability, cacheRepo := newCatalogFixture()

	_, err := svc.ListAvailability(context.Background(), testOwner())
	require.NoError(t, err)

	stored, err := svc.UpsertAvailability(context.Background(), testOwner(), UpsertAvailabilityRequest{
		Weekday: 6, StartTime: "09:00", EndTime: "13:00", IsMorning: true, Active: true,
	})
	require.NoError(t, err)
	require.Equal(t, "owner-1", stored.OwnerID)
	require.NotEmpty(t, cacheRepo.invalidated)

	// Listing after the write goes back to the repository.
	windows, err := svc.ListAvailability(context.Background(), testOwner())
	require.NoError(t, err)
	require.Len(t, windows, 1)
	require.Equal(t, 2, availability.calls)
}

func TestCatalogUpsertAvailabilityRejectsInvertedWindow(t *testing.T) {
	svc, _, _, _ := newCatalogFixture()

	_, err := svc.UpsertAvailability(context.Background(), testOwner(), UpsertAvailabilityRequest{
		Weekday: 2, StartTime: "14:00", EndTime: "09:00", Active: true,
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
