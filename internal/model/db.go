package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"size:150;uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:text;not null"`
	Role         UserRole  `gorm:"size:20;not null;default:'user'"`
	Credits      int       `gorm:"not null;default:0"` // remaining detailed-report credits
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PurchaseStatus string

const (
	PurchaseNone      PurchaseStatus = "none"
	PurchaseInitiated PurchaseStatus = "initiated"
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
)

type AccessMethod string

const (
	AccessPurchase     AccessMethod = "purchase"
	AccessFree         AccessMethod = "free"
	AccessCredit       AccessMethod = "credit"
	AccessSubscription AccessMethod = "subscription"
	AccessForcedUpdate AccessMethod = "forced_update"
)

// QuizResult is one completed assessment. Owned either by a registered user
// (UserID set) or by a guest identified by email plus a time-limited access
// token. Invariant: PurchaseStatus == completed implies IsPurchased,
// IsDetailed and a non-nil AccessMethod; the only writers of that state go
// through QuizResultRepository, which sets all of it in a single update.
type QuizResult struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserID              *uuid.UUID `gorm:"type:uuid;index"`
	GuestEmail          string     `gorm:"size:150;index"`
	GuestTokenID        string     `gorm:"size:64;index"` // jti of the issued guest token
	GuestTokenExpiresAt *time.Time

	Category string            `gorm:"size:40;not null"`
	Scores   datatypes.JSONMap `gorm:"not null"`
	Analysis string            `gorm:"type:text"` // detailed report body, exposed only once purchased

	IsPurchased         bool           `gorm:"not null;default:false"`
	IsDetailed          bool           `gorm:"not null;default:false"`
	PurchaseStatus      PurchaseStatus `gorm:"size:16;index;not null;default:'none'"`
	AccessMethod        *AccessMethod  `gorm:"size:20"`
	CheckoutSessionID   *string        `gorm:"size:128;index"`
	PurchaseInitiatedAt *time.Time
	PurchaseCompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type PurchaseKind string

const (
	KindReport      PurchaseKind = "report"
	KindCreditPack  PurchaseKind = "credit_pack"
	KindGuestReport PurchaseKind = "guest_report"
)

// PurchaseTracking bridges checkout initiation and webhook confirmation.
// It is keyed by the processor's checkout session id, the only identifier
// both sides of the race are guaranteed to share.
type PurchaseTracking struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ResultID          *uuid.UUID     `gorm:"type:uuid;index"`
	UserID            *uuid.UUID     `gorm:"type:uuid;index"`
	GuestEmail        string         `gorm:"size:150;index"`
	CheckoutSessionID string         `gorm:"size:128;uniqueIndex;not null"`
	Kind              PurchaseKind   `gorm:"size:20;not null"`
	AmountCents       int64          `gorm:"not null"`
	Currency          string         `gorm:"size:8;not null"`
	CouponCode        string         `gorm:"size:40"`
	AffiliateCode     string         `gorm:"size:40"`
	Status            PurchaseStatus `gorm:"size:16;index;not null;default:'initiated'"`
	CompletedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// WebhookEvent is the processor-event dedupe table. A delivery whose event
// id is already present is acknowledged without touching domain state.
type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// CreditGrant is the credit-pack ledger, one row per paid checkout session.
// The balance increment commits in the same transaction as this insert, so
// a redelivered webhook either finds the row (grant already applied) or
// retries the whole grant.
type CreditGrant struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID `gorm:"type:uuid;index;not null"`
	CheckoutSessionID string    `gorm:"size:128;uniqueIndex;not null"`
	Credits           int       `gorm:"not null"`
	CreatedAt         time.Time
}

type Coupon struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Code       string          `gorm:"size:40;uniqueIndex;not null"`
	PercentOff decimal.Decimal `gorm:"type:numeric(5,2);not null"`
	Active     bool            `gorm:"not null;default:true"`
	MaxUses    int             `gorm:"not null;default:0"` // 0 = unlimited
	Uses       int             `gorm:"not null;default:0"`
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Affiliate struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code      string    `gorm:"size:40;uniqueIndex;not null"`
	Name      string    `gorm:"size:150;not null"`
	Email     string    `gorm:"size:150;not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AffiliateCommissionTier struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AffiliateID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	MinAmountCents int64           `gorm:"not null"`
	Rate           decimal.Decimal `gorm:"type:numeric(5,4);not null"`
	Active         bool            `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AffiliateCommission is an append-only ledger row, one per completed
// purchase. The unique session id makes webhook redelivery a duplicate
// insert (ignored) instead of a double-counted increment.
type AffiliateCommission struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AffiliateID       uuid.UUID       `gorm:"type:uuid;index;not null"`
	CheckoutSessionID string          `gorm:"size:128;uniqueIndex;not null"`
	AmountCents       int64           `gorm:"not null"`
	Rate              decimal.Decimal `gorm:"type:numeric(5,4);not null"`
	CommissionCents   int64           `gorm:"not null"`
	CreatedAt         time.Time
}
