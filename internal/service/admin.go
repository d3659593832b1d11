package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"morality-quiz-backend/internal/dto"
	"morality-quiz-backend/internal/model"
	"morality-quiz-backend/internal/repository"
)

// AdminService is thin CRUD over the pricing and referral collaborators the
// checkout and webhook paths consume.
type AdminService interface {
	CreateCoupon(ctx context.Context, req *dto.CouponRequest) (*model.Coupon, error)
	ListCoupons(ctx context.Context) ([]*model.Coupon, error)
	DeactivateCoupon(ctx context.Context, id uuid.UUID) error

	CreateAffiliate(ctx context.Context, req *dto.AffiliateRequest) (*model.Affiliate, error)
	ListAffiliates(ctx context.Context) ([]*model.Affiliate, error)
	DeactivateAffiliate(ctx context.Context, id uuid.UUID) error

	CreateCommissionTier(ctx context.Context, req *dto.CommissionTierRequest) (*model.AffiliateCommissionTier, error)
	ListCommissionTiers(ctx context.Context, affiliateID uuid.UUID) ([]*model.AffiliateCommissionTier, error)
	DeactivateCommissionTier(ctx context.Context, id uuid.UUID) error
}

type adminServiceImpl struct {
	coupons    repository.CouponRepository
	affiliates repository.AffiliateRepository
}

func NewAdminService(coupons repository.CouponRepository, affiliates repository.AffiliateRepository) AdminService {
	return &adminServiceImpl{coupons: coupons, affiliates: affiliates}
}

func (s *adminServiceImpl) CreateCoupon(ctx context.Context, req *dto.CouponRequest) (*model.Coupon, error) {
	percentOff, err := decimal.NewFromString(req.PercentOff)
	if err != nil {
		return nil, fmt.Errorf("parse percent_off: %w", err)
	}
	if percentOff.IsNegative() || percentOff.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("percent_off must be between 0 and 100")
	}

	coupon := &model.Coupon{
		ID:         uuid.New(),
		Code:       req.Code,
		PercentOff: percentOff,
		Active:     true,
		MaxUses:    req.MaxUses,
		ExpiresAt:  req.ExpiresAt,
	}
	if err := s.coupons.Create(ctx, coupon); err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	return coupon, nil
}

func (s *adminServiceImpl) ListCoupons(ctx context.Context) ([]*model.Coupon, error) {
	return s.coupons.List(ctx)
}

func (s *adminServiceImpl) DeactivateCoupon(ctx context.Context, id uuid.UUID) error {
	return s.coupons.Deactivate(ctx, id)
}

func (s *adminServiceImpl) CreateAffiliate(ctx context.Context, req *dto.AffiliateRequest) (*model.Affiliate, error) {
	if req.Code == "" || req.Email == "" {
		return nil, fmt.Errorf("code and email are required")
	}

	affiliate := &model.Affiliate{
		ID:     uuid.New(),
		Code:   req.Code,
		Name:   req.Name,
		Email:  req.Email,
		Active: true,
	}
	if err := s.affiliates.Create(ctx, affiliate); err != nil {
		return nil, fmt.Errorf("create affiliate: %w", err)
	}

	return affiliate, nil
}

func (s *adminServiceImpl) ListAffiliates(ctx context.Context) ([]*model.Affiliate, error) {
	return s.affiliates.List(ctx)
}

func (s *adminServiceImpl) DeactivateAffiliate(ctx context.Context, id uuid.UUID) error {
	return s.affiliates.Deactivate(ctx, id)
}

func (s *adminServiceImpl) CreateCommissionTier(ctx context.Context, req *dto.CommissionTierRequest) (*model.AffiliateCommissionTier, error) {
	affiliateID, err := uuid.Parse(req.AffiliateID)
	if err != nil {
		return nil, fmt.Errorf("parse affiliate id: %w", err)
	}

	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("rate must be between 0 and 1")
	}

	tier := &model.AffiliateCommissionTier{
		ID:             uuid.New(),
		AffiliateID:    affiliateID,
		MinAmountCents: req.MinAmountCents,
		Rate:           rate,
		Active:         true,
	}
	if err := s.affiliates.CreateTier(ctx, tier); err != nil {
		return nil, fmt.Errorf("create commission tier: %w", err)
	}

	return tier, nil
}

func (s *adminServiceImpl) ListCommissionTiers(ctx context.Context, affiliateID uuid.UUID) ([]*model.AffiliateCommissionTier, error) {
	return s.affiliates.ListTiers(ctx, affiliateID)
}

func (s *adminServiceImpl) DeactivateCommissionTier(ctx context.Context, id uuid.UUID) error {
	return s.affiliates.DeactivateTier(ctx, id)
}
