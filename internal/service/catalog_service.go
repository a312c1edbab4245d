package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-booking-api/internal/models"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
)

type catalogPlanRepository interface {
	FindByID(ctx context.Context, scope models.Scope, id string) (*models.Plan, error)
	ListByOwner(ctx context.Context, scope models.Scope) ([]models.Plan, error)
}

type catalogAvailabilityRepository interface {
	ListByOwner(ctx context.Context, scope models.Scope) ([]models.AvailabilityWindow, error)
	Upsert(ctx context.Context, window *models.AvailabilityWindow) (*models.AvailabilityWindow, error)
}

// UpsertAvailabilityRequest configures one weekday/shift window.
type UpsertAvailabilityRequest struct {
	Weekday   int    `json:"weekday" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
	IsMorning bool   `json:"is_morning"`
	Active    bool   `json:"active"`
}

// CatalogService serves the owner's plan catalog and availability windows
// through the read-through cache. Writes invalidate the owner's tag.
type CatalogService struct {
	plans        catalogPlanRepository
	availability catalogAvailabilityRepository
	cache        *CacheService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(plans catalogPlanRepository, availability catalogAvailabilityRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{plans: plans, availability: availability, cache: cache, validator: validate, logger: logger}
}

func plansCacheKey(scope models.Scope) string {
	return fmt.Sprintf("catalog:plans:%s:all", scope.OwnerID)
}

func availabilityCacheKey(scope models.Scope) string {
	return fmt.Sprintf("catalog:availability:%s:all", scope.OwnerID)
}

// ListPlans returns the owner's plan catalog.
func (s *CatalogService) ListPlans(ctx context.Context, owner models.OwnerRef) ([]models.Plan, error) {
	scope := owner.Resolve()
	key := plansCacheKey(scope)

	var cached []models.Plan
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	plans, err := s.plans.ListByOwner(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	if err := s.cache.Set(ctx, key, plans, 0); err != nil {
		s.logger.Sugar().Debugw("plan cache write skipped", "error", err)
	}
	return plans, nil
}

// GetPlan loads one plan, bypassing the cache: single-row reads are cheap
// and the list entry stays the only cached shape.
func (s *CatalogService) GetPlan(ctx context.Context, owner models.OwnerRef, id string) (*models.Plan, error) {
	plan, err := s.plans.FindByID(ctx, owner.Resolve(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	return plan, nil
}

// ListAvailability returns the owner's configured windows.
func (s *CatalogService) ListAvailability(ctx context.Context, owner models.OwnerRef) ([]models.AvailabilityWindow, error) {
	scope := owner.Resolve()
	key := availabilityCacheKey(scope)

	var cached []models.AvailabilityWindow
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	windows, err := s.availability.ListByOwner(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	if err := s.cache.Set(ctx, key, windows, 0); err != nil {
		s.logger.Sugar().Debugw("availability cache write skipped", "error", err)
	}
	return windows, nil
}

// UpsertAvailability creates or replaces the window for (weekday, shift) and
// invalidates the cached listing.
func (s *CatalogService) UpsertAvailability(ctx context.Context, owner models.OwnerRef, req UpsertAvailabilityRequest) (*models.AvailabilityWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	scope := owner.Resolve()
	window := &models.AvailabilityWindow{
		OwnerID:   scope.OwnerID,
		Weekday:   req.Weekday,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsMorning: req.IsMorning,
		Active:    req.Active,
	}
	stored, err := s.availability.Upsert(ctx, window)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}

	if err := s.cache.Invalidate(ctx, fmt.Sprintf("catalog:availability:%s:*", scope.OwnerID)); err != nil {
		s.logger.Sugar().Debugw("availability cache invalidation skipped", "error", err)
	}
	return stored, nil
}
