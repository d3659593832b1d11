package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"morality-quiz-backend/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// GrantCredits applies a credit-pack purchase at most once per checkout
	// session, reporting whether this call performed the grant. Ledger row
	// and balance increment commit together, so a failed increment leaves
	// no ledger row and a webhook redelivery retries the whole grant.
	GrantCredits(ctx context.Context, id uuid.UUID, sessionID string, credits int) (bool, error)

	// ConsumeCredit decrements guarded by credits > 0 and reports whether
	// a credit was actually spent.
	ConsumeCredit(ctx context.Context, id uuid.UUID) (bool, error)
}

type userRepoImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepoImpl{db: db}
}

func (r *userRepoImpl) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepoImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) GrantCredits(ctx context.Context, id uuid.UUID, sessionID string, credits int) (bool, error) {
	granted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "checkout_session_id"}},
			DoNothing: true,
		}).Create(&model.CreditGrant{
			ID:                uuid.New(),
			UserID:            id,
			CheckoutSessionID: sessionID,
			Credits:           credits,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Session already granted by an earlier delivery.
			return nil
		}

		if err := tx.Model(&model.User{}).
			Where("id = ?", id).
			Update("credits", gorm.Expr("credits + ?", credits)).Error; err != nil {
			return err
		}

		granted = true
		return nil
	})

	return granted, err
}

func (r *userRepoImpl) ConsumeCredit(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND credits > 0", id).
		Update("credits", gorm.Expr("credits - 1"))
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}
