package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"morality-quiz-backend/internal/client"
	"morality-quiz-backend/internal/model"
)

// In-memory stand-ins for the gorm repositories, mirroring their filter and
// status-guard semantics.

type fakeResultRepo struct {
	mu      sync.Mutex
	results map[uuid.UUID]*model.QuizResult

	findErr error
	markErr error
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{results: map[uuid.UUID]*model.QuizResult{}}
}

func (r *fakeResultRepo) add(result *model.QuizResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *result
	r.results[result.ID] = &copied
}

func (r *fakeResultRepo) get(id uuid.UUID) *model.QuizResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if result, ok := r.results[id]; ok {
		copied := *result
		return &copied
	}
	return nil
}

func (r *fakeResultRepo) Create(ctx context.Context, result *model.QuizResult) error {
	r.add(result)
	return nil
}

func (r *fakeResultRepo) findWhere(match func(*model.QuizResult) bool) (*model.QuizResult, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, result := range r.results {
		if match(result) {
			copied := *result
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeResultRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.QuizResult, error) {
	return r.findWhere(func(res *model.QuizResult) bool { return res.ID == id })
}

func (r *fakeResultRepo) FindForUser(ctx context.Context, id, userID uuid.UUID) (*model.QuizResult, error) {
	return r.findWhere(func(res *model.QuizResult) bool {
		return res.ID == id && res.UserID != nil && *res.UserID == userID
	})
}

func (r *fakeResultRepo) FindForSession(ctx context.Context, id uuid.UUID, sessionID string) (*model.QuizResult, error) {
	return r.findWhere(func(res *model.QuizResult) bool {
		return res.ID == id && res.CheckoutSessionID != nil && *res.CheckoutSessionID == sessionID
	})
}

func (r *fakeResultRepo) FindForGuestToken(ctx context.Context, id uuid.UUID, tokenID string, now time.Time) (*model.QuizResult, error) {
	return r.findWhere(func(res *model.QuizResult) bool {
		return res.ID == id && res.GuestTokenID == tokenID &&
			res.GuestTokenExpiresAt != nil && res.GuestTokenExpiresAt.After(now)
	})
}

func (r *fakeResultRepo) FindForGuestEmail(ctx context.Context, id uuid.UUID, email string) (*model.QuizResult, error) {
	return r.findWhere(func(res *model.QuizResult) bool {
		return res.ID == id && res.GuestEmail == email
	})
}

func (r *fakeResultRepo) MarkInitiated(ctx context.Context, id uuid.UUID, sessionID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.results[id]
	if !ok || result.PurchaseStatus == model.PurchaseCompleted {
		return nil
	}
	result.PurchaseStatus = model.PurchaseInitiated
	result.CheckoutSessionID = &sessionID
	result.PurchaseInitiatedAt = &now
	return nil
}

func (r *fakeResultRepo) SetGuestToken(ctx context.Context, id uuid.UUID, tokenID string, expiresAt time.Time, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.results[id]
	if !ok || result.UserID != nil {
		return nil
	}
	result.GuestTokenID = tokenID
	result.GuestTokenExpiresAt = &expiresAt
	result.GuestEmail = email
	return nil
}

func (r *fakeResultRepo) AttachSessionID(ctx context.Context, id uuid.UUID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.results[id]
	if !ok || (result.CheckoutSessionID != nil && *result.CheckoutSessionID != "") {
		return nil
	}
	result.CheckoutSessionID = &sessionID
	return nil
}

func (r *fakeResultRepo) AttachUser(ctx context.Context, id, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.results[id]
	if !ok || result.UserID != nil {
		return nil
	}
	result.UserID = &userID
	return nil
}

func (r *fakeResultRepo) markWhere(method model.AccessMethod, now time.Time, match func(*model.QuizResult) bool) (bool, error) {
	if r.markErr != nil {
		return false, r.markErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, result := range r.results {
		if result.PurchaseStatus == model.PurchaseCompleted || !match(result) {
			continue
		}
		result.IsPurchased = true
		result.IsDetailed = true
		result.PurchaseStatus = model.PurchaseCompleted
		result.AccessMethod = &method
		completedAt := now
		result.PurchaseCompletedAt = &completedAt
		return true, nil
	}
	return false, nil
}

func (r *fakeResultRepo) MarkPurchasedByUser(ctx context.Context, id, userID uuid.UUID, method model.AccessMethod, now time.Time) (bool, error) {
	return r.markWhere(method, now, func(res *model.QuizResult) bool {
		return res.ID == id && res.UserID != nil && *res.UserID == userID
	})
}

func (r *fakeResultRepo) MarkPurchasedBySession(ctx context.Context, id uuid.UUID, sessionID string, method model.AccessMethod, now time.Time) (bool, error) {
	return r.markWhere(method, now, func(res *model.QuizResult) bool {
		return res.ID == id && res.CheckoutSessionID != nil && *res.CheckoutSessionID == sessionID
	})
}

func (r *fakeResultRepo) MarkPurchasedByGuestToken(ctx context.Context, id uuid.UUID, tokenID string, method model.AccessMethod, now time.Time) (bool, error) {
	return r.markWhere(method, now, func(res *model.QuizResult) bool {
		return res.ID == id && res.GuestTokenID == tokenID &&
			res.GuestTokenExpiresAt != nil && res.GuestTokenExpiresAt.After(now)
	})
}

func (r *fakeResultRepo) MarkPurchasedByGuestEmail(ctx context.Context, id uuid.UUID, email string, method model.AccessMethod, now time.Time) (bool, error) {
	return r.markWhere(method, now, func(res *model.QuizResult) bool {
		return res.ID == id && res.GuestEmail == email
	})
}

func (r *fakeResultRepo) MarkPurchasedByID(ctx context.Context, id uuid.UUID, method model.AccessMethod, now time.Time) (bool, error) {
	return r.markWhere(method, now, func(res *model.QuizResult) bool {
		return res.ID == id
	})
}

type fakeTrackingRepo struct {
	mu       sync.Mutex
	tracking map[string]*model.PurchaseTracking
}

func newFakeTrackingRepo() *fakeTrackingRepo {
	return &fakeTrackingRepo{tracking: map[string]*model.PurchaseTracking{}}
}

func (r *fakeTrackingRepo) add(tracking *model.PurchaseTracking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *tracking
	r.tracking[tracking.CheckoutSessionID] = &copied
}

func (r *fakeTrackingRepo) Create(ctx context.Context, tracking *model.PurchaseTracking) error {
	r.add(tracking)
	return nil
}

func (r *fakeTrackingRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.PurchaseTracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tracking, ok := r.tracking[sessionID]; ok {
		copied := *tracking
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeTrackingRepo) FindCompletedForResult(ctx context.Context, resultID uuid.UUID) (*model.PurchaseTracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tracking := range r.tracking {
		if tracking.ResultID != nil && *tracking.ResultID == resultID && tracking.Status == model.PurchaseCompleted {
			copied := *tracking
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeTrackingRepo) FindCompletedBySessionID(ctx context.Context, sessionID string) (*model.PurchaseTracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tracking, ok := r.tracking[sessionID]; ok && tracking.Status == model.PurchaseCompleted {
		copied := *tracking
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeTrackingRepo) AttachUser(ctx context.Context, sessionID string, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tracking, ok := r.tracking[sessionID]; ok && tracking.UserID == nil {
		tracking.UserID = &userID
	}
	return nil
}

func (r *fakeTrackingRepo) MarkCompleted(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tracking, ok := r.tracking[sessionID]
	if !ok || tracking.Status == model.PurchaseCompleted {
		return false, nil
	}
	tracking.Status = model.PurchaseCompleted
	completedAt := now
	tracking.CompletedAt = &completedAt
	return true, nil
}

// complete flips a tracking row the way the webhook would, for tests that
// simulate the webhook landing mid-verification.
func (r *fakeTrackingRepo) complete(sessionID string, now time.Time) {
	_, _ = r.MarkCompleted(context.Background(), sessionID, now)
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*model.User
	grants map[string]bool

	grantErr error // consumed by the next GrantCredits call
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  map[uuid.UUID]*model.User{},
		grants: map[string]bool{},
	}
}

func (r *fakeUserRepo) add(user *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	r.add(user)
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GrantCredits(ctx context.Context, id uuid.UUID, sessionID string, credits int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grantErr != nil {
		err := r.grantErr
		r.grantErr = nil
		return false, err
	}
	if r.grants[sessionID] {
		return false, nil
	}
	user, ok := r.users[id]
	if !ok {
		return false, nil
	}
	r.grants[sessionID] = true
	user.Credits += credits
	return true, nil
}

func (r *fakeUserRepo) ConsumeCredit(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok && user.Credits > 0 {
		user.Credits--
		return true, nil
	}
	return false, nil
}

type fakeCouponRepo struct {
	mu      sync.Mutex
	coupons map[string]*model.Coupon
}

func newFakeCouponRepo() *fakeCouponRepo {
	return &fakeCouponRepo{coupons: map[string]*model.Coupon{}}
}

func (r *fakeCouponRepo) add(coupon *model.Coupon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *coupon
	r.coupons[coupon.Code] = &copied
}

func (r *fakeCouponRepo) Create(ctx context.Context, coupon *model.Coupon) error {
	r.add(coupon)
	return nil
}

func (r *fakeCouponRepo) List(ctx context.Context) ([]*model.Coupon, error) {
	return nil, nil
}

func (r *fakeCouponRepo) FindActiveByCode(ctx context.Context, code string, now time.Time) (*model.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	coupon, ok := r.coupons[code]
	if !ok || !coupon.Active {
		return nil, nil
	}
	if coupon.ExpiresAt != nil && !coupon.ExpiresAt.After(now) {
		return nil, nil
	}
	copied := *coupon
	return &copied, nil
}

func (r *fakeCouponRepo) Update(ctx context.Context, coupon *model.Coupon) error {
	r.add(coupon)
	return nil
}

func (r *fakeCouponRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (r *fakeCouponRepo) Redeem(ctx context.Context, code string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	coupon, ok := r.coupons[code]
	if !ok || !coupon.Active {
		return false, nil
	}
	if coupon.ExpiresAt != nil && !coupon.ExpiresAt.After(now) {
		return false, nil
	}
	if coupon.MaxUses > 0 && coupon.Uses >= coupon.MaxUses {
		return false, nil
	}
	coupon.Uses++
	return true, nil
}

type fakeAffiliateRepo struct {
	mu          sync.Mutex
	affiliates  map[string]*model.Affiliate
	tiers       []*model.AffiliateCommissionTier
	commissions map[string]*model.AffiliateCommission
}

func newFakeAffiliateRepo() *fakeAffiliateRepo {
	return &fakeAffiliateRepo{
		affiliates:  map[string]*model.Affiliate{},
		commissions: map[string]*model.AffiliateCommission{},
	}
}

func (r *fakeAffiliateRepo) Create(ctx context.Context, affiliate *model.Affiliate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *affiliate
	r.affiliates[affiliate.Code] = &copied
	return nil
}

func (r *fakeAffiliateRepo) List(ctx context.Context) ([]*model.Affiliate, error) {
	return nil, nil
}

func (r *fakeAffiliateRepo) FindActiveByCode(ctx context.Context, code string) (*model.Affiliate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if affiliate, ok := r.affiliates[code]; ok && affiliate.Active {
		copied := *affiliate
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeAffiliateRepo) Update(ctx context.Context, affiliate *model.Affiliate) error {
	return nil
}

func (r *fakeAffiliateRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (r *fakeAffiliateRepo) CreateTier(ctx context.Context, tier *model.AffiliateCommissionTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *tier
	r.tiers = append(r.tiers, &copied)
	return nil
}

func (r *fakeAffiliateRepo) ListTiers(ctx context.Context, affiliateID uuid.UUID) ([]*model.AffiliateCommissionTier, error) {
	return nil, nil
}

func (r *fakeAffiliateRepo) DeactivateTier(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (r *fakeAffiliateRepo) FindTierForAmount(ctx context.Context, affiliateID uuid.UUID, amountCents int64) (*model.AffiliateCommissionTier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.AffiliateCommissionTier
	for _, tier := range r.tiers {
		if tier.AffiliateID != affiliateID || !tier.Active || tier.MinAmountCents > amountCents {
			continue
		}
		if best == nil || tier.MinAmountCents > best.MinAmountCents {
			best = tier
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (r *fakeAffiliateRepo) RecordCommission(ctx context.Context, commission *model.AffiliateCommission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commissions[commission.CheckoutSessionID]; exists {
		return nil
	}
	copied := *commission
	r.commissions[commission.CheckoutSessionID] = &copied
	return nil
}

type fakeStripeClient struct {
	mu           sync.Mutex
	sessions     []*client.CreateCheckoutSessionRequest
	nextID       string
	signatureErr error
}

func (c *fakeStripeClient) CreateCheckoutSession(ctx context.Context, req *client.CreateCheckoutSessionRequest) (*client.CreateCheckoutSessionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = append(c.sessions, req)
	id := c.nextID
	if id == "" {
		id = "cs_test"
	}
	return &client.CreateCheckoutSessionResponse{
		SessionID:   id,
		RedirectURL: "https://checkout.example.com/" + id,
	}, nil
}

func (c *fakeStripeClient) VerifyWebhookSignature(signatureHeader string, body []byte, now time.Time) error {
	return c.signatureErr
}

type sentEmail struct {
	to      string
	subject string
}

type fakeEmailClient struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (c *fakeEmailClient) Send(to, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentEmail{to: to, subject: subject})
	return c.err
}
