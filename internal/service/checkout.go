package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"morality-quiz-backend/internal/client"
	"morality-quiz-backend/internal/config"
	"morality-quiz-backend/internal/dto"
	"morality-quiz-backend/internal/model"
	"morality-quiz-backend/internal/repository"
	"morality-quiz-backend/internal/token"
)

type CheckoutService interface {
	CreateCheckout(ctx context.Context, req *dto.CheckoutRequest, authedUserID *uuid.UUID) (*dto.CheckoutResponse, error)
	UnlockWithCredit(ctx context.Context, resultID, userID uuid.UUID) (*model.QuizResult, error)
}

type checkoutServiceImpl struct {
	stripeClient client.StripeClient
	results      repository.QuizResultRepository
	tracking     repository.PurchaseTrackingRepository
	coupons      repository.CouponRepository
	affiliates   repository.AffiliateRepository
	users        repository.UserRepository
	tokens       *token.Manager
	pricing      *config.Pricing
	frontendURL  string
	logger       *log.Logger
	now          func() time.Time
}

func NewCheckoutService(
	stripeClient client.StripeClient,
	results repository.QuizResultRepository,
	tracking repository.PurchaseTrackingRepository,
	coupons repository.CouponRepository,
	affiliates repository.AffiliateRepository,
	users repository.UserRepository,
	tokens *token.Manager,
	pricing *config.Pricing,
	frontendURL string,
	logger *log.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		stripeClient: stripeClient,
		results:      results,
		tracking:     tracking,
		coupons:      coupons,
		affiliates:   affiliates,
		users:        users,
		tokens:       tokens,
		pricing:      pricing,
		frontendURL:  frontendURL,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *checkoutServiceImpl) CreateCheckout(ctx context.Context, req *dto.CheckoutRequest, authedUserID *uuid.UUID) (*dto.CheckoutResponse, error) {
	kind := model.PurchaseKind(req.Kind)
	now := s.now()

	var (
		result      *model.QuizResult
		resultID    *uuid.UUID
		productName string
		amount      int64
		guestToken  *token.GuestToken
		guestEmail  = req.GuestEmail
	)

	switch kind {
	case model.KindReport, model.KindGuestReport:
		id, err := uuid.Parse(req.ResultID)
		if err != nil {
			return nil, fmt.Errorf("parse result id: %w", err)
		}

		result, err = s.results.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load result: %w", err)
		}
		if result == nil {
			return nil, fmt.Errorf("result %s not found", id)
		}
		if result.PurchaseStatus == model.PurchaseCompleted {
			return nil, fmt.Errorf("result %s already purchased", id)
		}
		// A guest purchase against an account-owned result would run guest
		// provisioning on the webhook side; the owner buys as a report.
		if kind == model.KindGuestReport && result.UserID != nil {
			return nil, fmt.Errorf("result %s belongs to an account; purchase it as a report", id)
		}

		resultID = &id
		productName = "Detailed morality report"
		amount = s.pricing.ReportCents

	case model.KindCreditPack:
		if authedUserID == nil {
			return nil, fmt.Errorf("credit pack purchase requires a signed-in user")
		}
		productName = fmt.Sprintf("Report credit pack (%d)", s.pricing.CreditPackSize)
		amount = s.pricing.CreditPackCents

	default:
		return nil, fmt.Errorf("unknown purchase kind %q", req.Kind)
	}

	// Guest flows need a durable credential the SPA can persist across the
	// redirect. Reuse a live token's identity; mint a fresh one otherwise.
	if kind == model.KindGuestReport && result != nil && result.UserID == nil {
		if guestEmail == "" {
			guestEmail = result.GuestEmail
		}
		if guestEmail == "" {
			return nil, fmt.Errorf("guest checkout requires an email")
		}

		if result.GuestTokenID == "" || result.GuestTokenExpiresAt == nil || !result.GuestTokenExpiresAt.After(now) {
			minted, err := s.tokens.SignGuest(result.ID, now)
			if err != nil {
				return nil, fmt.Errorf("mint guest token: %w", err)
			}
			if err := s.results.SetGuestToken(ctx, result.ID, minted.TokenID, minted.ExpiresAt, guestEmail); err != nil {
				return nil, fmt.Errorf("store guest token: %w", err)
			}
			guestToken = minted
		}
	}

	amount, couponCode := s.applyCoupon(ctx, amount, req.CouponCode, now)
	affiliateCode := s.checkAffiliate(ctx, req.AffiliateCode)

	metadata := map[string]string{
		"kind": string(kind),
	}
	if resultID != nil {
		metadata["result_id"] = resultID.String()
	}
	if authedUserID != nil {
		metadata["user_id"] = authedUserID.String()
	}
	if guestEmail != "" {
		metadata["guest_email"] = guestEmail
	}
	if couponCode != "" {
		metadata["coupon_code"] = couponCode
	}
	if affiliateCode != "" {
		metadata["affiliate_code"] = affiliateCode
	}

	successURL := s.frontendURL + "/checkout/return?success=true&session_id={CHECKOUT_SESSION_ID}"
	if resultID != nil {
		successURL += "&result_id=" + resultID.String()
	}

	session, err := s.stripeClient.CreateCheckoutSession(ctx, &client.CreateCheckoutSessionRequest{
		AmountCents:   amount,
		Currency:      s.pricing.Currency,
		ProductName:   productName,
		CustomerEmail: guestEmail,
		SuccessURL:    successURL,
		CancelURL:     s.frontendURL + "/checkout/cancelled",
		Metadata:      metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	tracking := &model.PurchaseTracking{
		ID:                uuid.New(),
		ResultID:          resultID,
		UserID:            authedUserID,
		GuestEmail:        guestEmail,
		CheckoutSessionID: session.SessionID,
		Kind:              kind,
		AmountCents:       amount,
		Currency:          s.pricing.Currency,
		CouponCode:        couponCode,
		AffiliateCode:     affiliateCode,
		Status:            model.PurchaseInitiated,
	}
	if err := s.tracking.Create(ctx, tracking); err != nil {
		return nil, fmt.Errorf("store purchase tracking: %w", err)
	}

	if resultID != nil {
		if err := s.results.MarkInitiated(ctx, *resultID, session.SessionID, now); err != nil {
			return nil, fmt.Errorf("mark result initiated: %w", err)
		}
	}

	resp := &dto.CheckoutResponse{
		SessionID:   session.SessionID,
		RedirectURL: session.RedirectURL,
	}
	if guestToken != nil {
		resp.GuestToken = guestToken.Token
	}

	return resp, nil
}

// UnlockWithCredit spends one prepaid credit to unlock a result the user
// owns, no checkout involved. The decrement is guarded by credits > 0 and
// the unlock by the ownership filter, so neither can fire for someone
// else's record.
func (s *checkoutServiceImpl) UnlockWithCredit(ctx context.Context, resultID, userID uuid.UUID) (*model.QuizResult, error) {
	result, err := s.results.FindForUser(ctx, resultID, userID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("result %s not found for user", resultID)
	}
	if result.PurchaseStatus == model.PurchaseCompleted {
		return result, nil
	}

	spent, err := s.users.ConsumeCredit(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("consume credit: %w", err)
	}
	if !spent {
		return nil, fmt.Errorf("no credits remaining")
	}

	if _, err := s.results.MarkPurchasedByUser(ctx, resultID, userID, model.AccessCredit, s.now()); err != nil {
		return nil, fmt.Errorf("unlock with credit: %w", err)
	}

	return s.results.FindForUser(ctx, resultID, userID)
}

// applyCoupon discounts the amount when the code redeems; a code that fails
// any gate (unknown, inactive, expired, cap reached) is dropped with a log
// line rather than failing checkout.
func (s *checkoutServiceImpl) applyCoupon(ctx context.Context, amount int64, code string, now time.Time) (int64, string) {
	if code == "" {
		return amount, ""
	}

	coupon, err := s.coupons.FindActiveByCode(ctx, code, now)
	if err != nil || coupon == nil {
		s.logger.Printf("checkout: coupon %q not applied: %v", code, err)
		return amount, ""
	}

	redeemed, err := s.coupons.Redeem(ctx, code, now)
	if err != nil || !redeemed {
		s.logger.Printf("checkout: coupon %q redemption refused: %v", code, err)
		return amount, ""
	}

	factor := decimal.NewFromInt(100).Sub(coupon.PercentOff).Div(decimal.NewFromInt(100))
	discounted := decimal.NewFromInt(amount).Mul(factor).Round(0).IntPart()
	if discounted < 0 {
		discounted = 0
	}

	return discounted, code
}

func (s *checkoutServiceImpl) checkAffiliate(ctx context.Context, code string) string {
	if code == "" {
		return ""
	}

	affiliate, err := s.affiliates.FindActiveByCode(ctx, code)
	if err != nil || affiliate == nil {
		s.logger.Printf("checkout: affiliate code %q ignored: %v", code, err)
		return ""
	}

	return code
}
