package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"morality-quiz-backend/internal/model"
)

// QuizResultRepository owns every write to a result's purchase state. All
// Find* methods return (nil, nil) when no row matches the filter, so callers
// can treat "not found" as "try something else" without error plumbing.
type QuizResultRepository interface {
	Create(ctx context.Context, result *model.QuizResult) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.QuizResult, error)
	FindForUser(ctx context.Context, id, userID uuid.UUID) (*model.QuizResult, error)
	FindForSession(ctx context.Context, id uuid.UUID, sessionID string) (*model.QuizResult, error)
	FindForGuestToken(ctx context.Context, id uuid.UUID, tokenID string, now time.Time) (*model.QuizResult, error)
	FindForGuestEmail(ctx context.Context, id uuid.UUID, email string) (*model.QuizResult, error)

	MarkInitiated(ctx context.Context, id uuid.UUID, sessionID string, now time.Time) error
	SetGuestToken(ctx context.Context, id uuid.UUID, tokenID string, expiresAt time.Time, email string) error
	AttachSessionID(ctx context.Context, id uuid.UUID, sessionID string) error
	AttachUser(ctx context.Context, id, userID uuid.UUID) error

	MarkPurchasedByUser(ctx context.Context, id, userID uuid.UUID, method model.AccessMethod, now time.Time) (bool, error)
	MarkPurchasedBySession(ctx context.Context, id uuid.UUID, sessionID string, method model.AccessMethod, now time.Time) (bool, error)
	MarkPurchasedByGuestToken(ctx context.Context, id uuid.UUID, tokenID string, method model.AccessMethod, now time.Time) (bool, error)
	MarkPurchasedByGuestEmail(ctx context.Context, id uuid.UUID, email string, method model.AccessMethod, now time.Time) (bool, error)

	// MarkPurchasedByID is filtered by result id alone. Reserved for the
	// webhook ingestor (which holds the authoritative session->result
	// mapping) and for forced finalization.
	MarkPurchasedByID(ctx context.Context, id uuid.UUID, method model.AccessMethod, now time.Time) (bool, error)
}

type quizResultRepoImpl struct {
	db *gorm.DB
}

func NewQuizResultRepository(db *gorm.DB) QuizResultRepository {
	return &quizResultRepoImpl{db: db}
}

func (r *quizResultRepoImpl) Create(ctx context.Context, result *model.QuizResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *quizResultRepoImpl) findOne(ctx context.Context, query string, args ...interface{}) (*model.QuizResult, error) {
	var result model.QuizResult
	err := r.db.WithContext(ctx).
		Where(query, args...).
		First(&result).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *quizResultRepoImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.QuizResult, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *quizResultRepoImpl) FindForUser(ctx context.Context, id, userID uuid.UUID) (*model.QuizResult, error) {
	return r.findOne(ctx, "id = ? AND user_id = ?", id, userID)
}

func (r *quizResultRepoImpl) FindForSession(ctx context.Context, id uuid.UUID, sessionID string) (*model.QuizResult, error) {
	return r.findOne(ctx, "id = ? AND checkout_session_id = ?", id, sessionID)
}

func (r *quizResultRepoImpl) FindForGuestToken(ctx context.Context, id uuid.UUID, tokenID string, now time.Time) (*model.QuizResult, error) {
	return r.findOne(ctx, "id = ? AND guest_token_id = ? AND guest_token_expires_at > ?", id, tokenID, now)
}

func (r *quizResultRepoImpl) FindForGuestEmail(ctx context.Context, id uuid.UUID, email string) (*model.QuizResult, error) {
	return r.findOne(ctx, "id = ? AND guest_email = ?", id, email)
}

func (r *quizResultRepoImpl) MarkInitiated(ctx context.Context, id uuid.UUID, sessionID string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&model.QuizResult{}).
		Where("id = ? AND purchase_status <> ?", id, model.PurchaseCompleted).
		Updates(map[string]interface{}{
			"purchase_status":       model.PurchaseInitiated,
			"checkout_session_id":   sessionID,
			"purchase_initiated_at": now,
			"updated_at":            now,
		}).Error
}

// SetGuestToken rotates the guest credential on a guest-owned result, e.g.
// when checkout starts and the original token already expired.
func (r *quizResultRepoImpl) SetGuestToken(ctx context.Context, id uuid.UUID, tokenID string, expiresAt time.Time, email string) error {
	return r.db.WithContext(ctx).Model(&model.QuizResult{}).
		Where("id = ? AND user_id IS NULL", id).
		Updates(map[string]interface{}{
			"guest_token_id":         tokenID,
			"guest_token_expires_at": expiresAt,
			"guest_email":            email,
		}).Error
}

// AttachSessionID backfills the checkout session onto a result created
// before the session id existed. Guarded so it never overwrites a session
// already recorded by another writer.
func (r *quizResultRepoImpl) AttachSessionID(ctx context.Context, id uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).Model(&model.QuizResult{}).
		Where("id = ? AND (checkout_session_id IS NULL OR checkout_session_id = '')", id).
		Update("checkout_session_id", sessionID).Error
}

func (r *quizResultRepoImpl) AttachUser(ctx context.Context, id, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.QuizResult{}).
		Where("id = ? AND user_id IS NULL", id).
		Update("user_id", userID).Error
}

// markPurchased performs the single canonical completed-state transition.
// The status guard makes replays and the client/webhook race converge: the
// losing writer's update matches zero rows and PurchaseCompletedAt is never
// overwritten.
func (r *quizResultRepoImpl) markPurchased(ctx context.Context, method model.AccessMethod, now time.Time, query string, args ...interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.QuizResult{}).
		Where("purchase_status <> ?", model.PurchaseCompleted).
		Where(query, args...).
		Updates(map[string]interface{}{
			"is_purchased":          true,
			"is_detailed":           true,
			"purchase_status":       model.PurchaseCompleted,
			"access_method":         method,
			"purchase_completed_at": now,
			"updated_at":            now,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

func (r *quizResultRepoImpl) MarkPurchasedByUser(ctx context.Context, id, userID uuid.UUID, method model.AccessMethod, now time.Time) (bool, error) {
	return r.markPurchased(ctx, method, now, "id = ? AND user_id = ?", id, userID)
}

func (r *quizResultRepoImpl) MarkPurchasedBySession(ctx context.Context, id uuid.UUID, sessionID string, method model.AccessMethod, now time.Time) (bool, error) {
	return r.markPurchased(ctx, method, now, "id = ? AND checkout_session_id = ?", id, sessionID)
}

func (r *quizResultRepoImpl) MarkPurchasedByGuestToken(ctx context.Context, id uuid.UUID, tokenID string, method model.AccessMethod, now time.Time) (bool, error) {
	return r.markPurchased(ctx, method, now, "id = ? AND guest_token_id = ? AND guest_token_expires_at > ?", id, tokenID, now)
}

func (r *quizResultRepoImpl) MarkPurchasedByGuestEmail(ctx context.Context, id uuid.UUID, email string, method model.AccessMethod, now time.Time) (bool, error) {
	return r.markPurchased(ctx, method, now, "id = ? AND guest_email = ?", id, email)
}

func (r *quizResultRepoImpl) MarkPurchasedByID(ctx context.Context, id uuid.UUID, method model.AccessMethod, now time.Time) (bool, error) {
	return r.markPurchased(ctx, method, now, "id = ?", id)
}
