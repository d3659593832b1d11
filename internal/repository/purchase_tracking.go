package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"morality-quiz-backend/internal/model"
)

type PurchaseTrackingRepository interface {
	Create(ctx context.Context, tracking *model.PurchaseTracking) error
	FindBySessionID(ctx context.Context, sessionID string) (*model.PurchaseTracking, error)
	FindCompletedForResult(ctx context.Context, resultID uuid.UUID) (*model.PurchaseTracking, error)
	FindCompletedBySessionID(ctx context.Context, sessionID string) (*model.PurchaseTracking, error)
	AttachUser(ctx context.Context, sessionID string, userID uuid.UUID) error

	// MarkCompleted reports whether this call performed the transition.
	// A redelivered webhook gets false and must not repeat side effects
	// hanging off the first transition (credit grants in particular).
	MarkCompleted(ctx context.Context, sessionID string, now time.Time) (bool, error)
}

type purchaseTrackingRepoImpl struct {
	db *gorm.DB
}

func NewPurchaseTrackingRepository(db *gorm.DB) PurchaseTrackingRepository {
	return &purchaseTrackingRepoImpl{db: db}
}

func (r *purchaseTrackingRepoImpl) Create(ctx context.Context, tracking *model.PurchaseTracking) error {
	return r.db.WithContext(ctx).Create(tracking).Error
}

func (r *purchaseTrackingRepoImpl) findOne(ctx context.Context, query string, args ...interface{}) (*model.PurchaseTracking, error) {
	var tracking model.PurchaseTracking
	err := r.db.WithContext(ctx).
		Where(query, args...).
		First(&tracking).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &tracking, nil
}

func (r *purchaseTrackingRepoImpl) FindBySessionID(ctx context.Context, sessionID string) (*model.PurchaseTracking, error) {
	return r.findOne(ctx, "checkout_session_id = ?", sessionID)
}

func (r *purchaseTrackingRepoImpl) FindCompletedForResult(ctx context.Context, resultID uuid.UUID) (*model.PurchaseTracking, error) {
	return r.findOne(ctx, "result_id = ? AND status = ?", resultID, model.PurchaseCompleted)
}

func (r *purchaseTrackingRepoImpl) FindCompletedBySessionID(ctx context.Context, sessionID string) (*model.PurchaseTracking, error) {
	return r.findOne(ctx, "checkout_session_id = ? AND status = ?", sessionID, model.PurchaseCompleted)
}

func (r *purchaseTrackingRepoImpl) AttachUser(ctx context.Context, sessionID string, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.PurchaseTracking{}).
		Where("checkout_session_id = ? AND user_id IS NULL", sessionID).
		Update("user_id", userID).Error
}

func (r *purchaseTrackingRepoImpl) MarkCompleted(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PurchaseTracking{}).
		Where("checkout_session_id = ? AND status <> ?", sessionID, model.PurchaseCompleted).
		Updates(map[string]interface{}{
			"status":       model.PurchaseCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}
