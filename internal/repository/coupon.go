package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"morality-quiz-backend/internal/model"
)

type CouponRepository interface {
	Create(ctx context.Context, coupon *model.Coupon) error
	List(ctx context.Context) ([]*model.Coupon, error)
	FindActiveByCode(ctx context.Context, code string, now time.Time) (*model.Coupon, error)
	Update(ctx context.Context, coupon *model.Coupon) error
	Deactivate(ctx context.Context, id uuid.UUID) error

	// Redeem bumps the use counter guarded by the usage cap, reporting
	// whether the redemption was accepted.
	Redeem(ctx context.Context, code string, now time.Time) (bool, error)
}

type couponRepoImpl struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepoImpl{db: db}
}

func (r *couponRepoImpl) Create(ctx context.Context, coupon *model.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *couponRepoImpl) List(ctx context.Context) ([]*model.Coupon, error) {
	var coupons []*model.Coupon
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&coupons).Error
	return coupons, err
}

func (r *couponRepoImpl) FindActiveByCode(ctx context.Context, code string, now time.Time) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.db.WithContext(ctx).
		Where("code = ? AND active = ?", code, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		First(&coupon).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &coupon, nil
}

func (r *couponRepoImpl) Update(ctx context.Context, coupon *model.Coupon) error {
	return r.db.WithContext(ctx).Save(coupon).Error
}

func (r *couponRepoImpl) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Coupon{}).
		Where("id = ?", id).
		Update("active", false).Error
}

func (r *couponRepoImpl) Redeem(ctx context.Context, code string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Coupon{}).
		Where("code = ? AND active = ?", code, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("max_uses = 0 OR uses < max_uses").
		Updates(map[string]interface{}{
			"uses":       gorm.Expr("uses + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}
