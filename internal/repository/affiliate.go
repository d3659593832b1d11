package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"morality-quiz-backend/internal/model"
)

type AffiliateRepository interface {
	Create(ctx context.Context, affiliate *model.Affiliate) error
	List(ctx context.Context) ([]*model.Affiliate, error)
	FindActiveByCode(ctx context.Context, code string) (*model.Affiliate, error)
	Update(ctx context.Context, affiliate *model.Affiliate) error
	Deactivate(ctx context.Context, id uuid.UUID) error

	CreateTier(ctx context.Context, tier *model.AffiliateCommissionTier) error
	ListTiers(ctx context.Context, affiliateID uuid.UUID) ([]*model.AffiliateCommissionTier, error)
	DeactivateTier(ctx context.Context, id uuid.UUID) error

	// FindTierForAmount picks the highest tier whose threshold the amount
	// clears, or nil when no tier applies.
	FindTierForAmount(ctx context.Context, affiliateID uuid.UUID, amountCents int64) (*model.AffiliateCommissionTier, error)

	// RecordCommission is an insert-if-absent on the session id, so a
	// replayed webhook records nothing the second time.
	RecordCommission(ctx context.Context, commission *model.AffiliateCommission) error
}

type affiliateRepoImpl struct {
	db *gorm.DB
}

func NewAffiliateRepository(db *gorm.DB) AffiliateRepository {
	return &affiliateRepoImpl{db: db}
}

func (r *affiliateRepoImpl) Create(ctx context.Context, affiliate *model.Affiliate) error {
	return r.db.WithContext(ctx).Create(affiliate).Error
}

func (r *affiliateRepoImpl) List(ctx context.Context) ([]*model.Affiliate, error) {
	var affiliates []*model.Affiliate
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&affiliates).Error
	return affiliates, err
}

func (r *affiliateRepoImpl) FindActiveByCode(ctx context.Context, code string) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	err := r.db.WithContext(ctx).
		Where("code = ? AND active = ?", code, true).
		First(&affiliate).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &affiliate, nil
}

func (r *affiliateRepoImpl) Update(ctx context.Context, affiliate *model.Affiliate) error {
	return r.db.WithContext(ctx).Save(affiliate).Error
}

func (r *affiliateRepoImpl) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Affiliate{}).
		Where("id = ?", id).
		Update("active", false).Error
}

func (r *affiliateRepoImpl) CreateTier(ctx context.Context, tier *model.AffiliateCommissionTier) error {
	return r.db.WithContext(ctx).Create(tier).Error
}

func (r *affiliateRepoImpl) ListTiers(ctx context.Context, affiliateID uuid.UUID) ([]*model.AffiliateCommissionTier, error) {
	var tiers []*model.AffiliateCommissionTier
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		Order("min_amount_cents ASC").
		Find(&tiers).Error
	return tiers, err
}

func (r *affiliateRepoImpl) DeactivateTier(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.AffiliateCommissionTier{}).
		Where("id = ?", id).
		Update("active", false).Error
}

func (r *affiliateRepoImpl) FindTierForAmount(ctx context.Context, affiliateID uuid.UUID, amountCents int64) (*model.AffiliateCommissionTier, error) {
	var tier model.AffiliateCommissionTier
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ? AND active = ? AND min_amount_cents <= ?", affiliateID, true, amountCents).
		Order("min_amount_cents DESC").
		First(&tier).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &tier, nil
}

func (r *affiliateRepoImpl) RecordCommission(ctx context.Context, commission *model.AffiliateCommission) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "checkout_session_id"}},
			DoNothing: true,
		}).
		Create(commission).Error
}
