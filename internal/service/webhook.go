package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"morality-quiz-backend/internal/client"
	"morality-quiz-backend/internal/config"
	"morality-quiz-backend/internal/model"
	"morality-quiz-backend/internal/repository"
	"morality-quiz-backend/internal/token"
)

const eventCheckoutCompleted = "checkout.session.completed"

// ErrInvalidSignature rejects a delivery outright; no state is touched and
// the handler answers 400 (the processor will not retry a signature
// failure into success).
var ErrInvalidSignature = fmt.Errorf("invalid webhook signature")

type WebhookService interface {
	HandleWebhook(ctx context.Context, signatureHeader string, body []byte) error
}

// webhookServiceImpl is the authoritative writer in the purchase race. Any
// returned error makes the handler answer non-2xx so the processor
// redelivers; every step is therefore idempotent. The dedupe table short-
// circuits exact replays and the conditional updates make partial replays
// converge instead of double-applying.
type webhookServiceImpl struct {
	stripeClient client.StripeClient
	emailClient  client.EmailClient
	results      repository.QuizResultRepository
	tracking     repository.PurchaseTrackingRepository
	events       repository.WebhookEventRepository
	users        repository.UserRepository
	affiliates   repository.AffiliateRepository
	tokens       *token.Manager
	pricing      *config.Pricing
	frontendURL  string
	logger       *log.Logger
	now          func() time.Time
}

func NewWebhookService(
	stripeClient client.StripeClient,
	emailClient client.EmailClient,
	results repository.QuizResultRepository,
	tracking repository.PurchaseTrackingRepository,
	events repository.WebhookEventRepository,
	users repository.UserRepository,
	affiliates repository.AffiliateRepository,
	tokens *token.Manager,
	pricing *config.Pricing,
	frontendURL string,
	logger *log.Logger,
) WebhookService {
	return &webhookServiceImpl{
		stripeClient: stripeClient,
		emailClient:  emailClient,
		results:      results,
		tracking:     tracking,
		events:       events,
		users:        users,
		affiliates:   affiliates,
		tokens:       tokens,
		pricing:      pricing,
		frontendURL:  frontendURL,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, signatureHeader string, body []byte) error {
	if err := s.stripeClient.VerifyWebhookSignature(signatureHeader, body, s.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var event model.StripeWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}

	if event.Type != eventCheckoutCompleted {
		return nil
	}

	processed, err := s.events.Exists(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check event dedupe: %w", err)
	}
	if processed {
		return nil
	}

	session := event.Data.Object
	if session.PaymentStatus != "paid" {
		// Async payment methods complete later; ack and wait for the
		// follow-up delivery.
		return nil
	}

	tracking, err := s.tracking.FindBySessionID(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("load purchase tracking: %w", err)
	}
	if tracking == nil {
		return fmt.Errorf("no purchase tracking for session %s", session.ID)
	}

	if _, err := s.tracking.MarkCompleted(ctx, session.ID, s.now()); err != nil {
		return fmt.Errorf("mark tracking completed: %w", err)
	}

	switch tracking.Kind {
	case model.KindReport:
		if err := s.completeReport(ctx, tracking); err != nil {
			return err
		}
	case model.KindGuestReport:
		if err := s.completeGuestReport(ctx, tracking, &session); err != nil {
			return err
		}
	case model.KindCreditPack:
		if err := s.completeCreditPack(ctx, tracking); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown purchase kind %q for session %s", tracking.Kind, session.ID)
	}

	if err := s.recordCommission(ctx, tracking); err != nil {
		return err
	}

	return s.events.MarkProcessed(ctx, event.ID, event.Type)
}

func (s *webhookServiceImpl) completeReport(ctx context.Context, tracking *model.PurchaseTracking) error {
	if tracking.ResultID == nil {
		return fmt.Errorf("report purchase %s has no result id", tracking.CheckoutSessionID)
	}

	transitioned, err := s.markResultPurchased(ctx, tracking)
	if err != nil {
		return err
	}

	// A replay of the same session under a fresh event id no-ops the mark;
	// the email must not fire again.
	if transitioned && tracking.UserID != nil {
		if user, err := s.users.FindByID(ctx, *tracking.UserID); err == nil && user != nil {
			s.sendConfirmation(user.Email, *tracking.ResultID)
		}
	}

	return nil
}

func (s *webhookServiceImpl) completeGuestReport(ctx context.Context, tracking *model.PurchaseTracking, session *model.CheckoutSession) error {
	if tracking.ResultID == nil {
		return fmt.Errorf("guest purchase %s has no result id", tracking.CheckoutSessionID)
	}

	email := tracking.GuestEmail
	if email == "" {
		email = session.CustomerEmail
	}
	if email == "" {
		return fmt.Errorf("guest purchase %s has no email", tracking.CheckoutSessionID)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("look up guest account: %w", err)
	}

	provisioned := false
	if user == nil {
		user, err = s.provisionAccount(ctx, email)
		if err != nil {
			return fmt.Errorf("provision guest account: %w", err)
		}
		provisioned = true
	}

	// Attach* are no-ops when another delivery already linked the account.
	if err := s.results.AttachUser(ctx, *tracking.ResultID, user.ID); err != nil {
		return fmt.Errorf("attach result to account: %w", err)
	}
	if err := s.tracking.AttachUser(ctx, tracking.CheckoutSessionID, user.ID); err != nil {
		return fmt.Errorf("attach tracking to account: %w", err)
	}

	transitioned, err := s.markResultPurchased(ctx, tracking)
	if err != nil {
		return err
	}

	// The setup email went out during provisioning; an existing account gets
	// a confirmation, and only on the delivery that actually unlocked.
	if transitioned && !provisioned {
		s.sendConfirmation(email, *tracking.ResultID)
	}

	return nil
}

// completeCreditPack applies the session-keyed grant on every delivery; the
// grant itself decides idempotency. Riding the tracking transition instead
// would strand the user if the increment failed after the row flipped: the
// redelivery would see an already-completed row and never grant.
func (s *webhookServiceImpl) completeCreditPack(ctx context.Context, tracking *model.PurchaseTracking) error {
	if tracking.UserID == nil {
		return fmt.Errorf("credit pack purchase %s has no user", tracking.CheckoutSessionID)
	}

	granted, err := s.users.GrantCredits(ctx, *tracking.UserID, tracking.CheckoutSessionID, s.pricing.CreditPackSize)
	if err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	if !granted {
		return nil
	}

	if user, err := s.users.FindByID(ctx, *tracking.UserID); err == nil && user != nil {
		s.sendEmail(user.Email, "Your report credits are ready",
			fmt.Sprintf("<p>Your purchase of %d report credits is complete.</p>", s.pricing.CreditPackSize))
	}

	return nil
}

func (s *webhookServiceImpl) markResultPurchased(ctx context.Context, tracking *model.PurchaseTracking) (bool, error) {
	if err := s.results.AttachSessionID(ctx, *tracking.ResultID, tracking.CheckoutSessionID); err != nil {
		return false, fmt.Errorf("backfill session id: %w", err)
	}

	transitioned, err := s.results.MarkPurchasedByID(ctx, *tracking.ResultID, model.AccessPurchase, s.now())
	if err != nil {
		return false, fmt.Errorf("mark result purchased: %w", err)
	}

	return transitioned, nil
}

func (s *webhookServiceImpl) provisionAccount(ctx context.Context, email string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash placeholder password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	setupToken, err := s.tokens.SignUser(user.ID, string(user.Role), s.now())
	if err != nil {
		return nil, fmt.Errorf("sign setup token: %w", err)
	}

	s.sendEmail(email, "Set up your account",
		fmt.Sprintf(`<p>Thanks for your purchase. Finish setting up your account to keep access to your report:</p>
<p><a href="%s/account/setup?token=%s">Set your password</a></p>`, s.frontendURL, setupToken))

	return user, nil
}

func (s *webhookServiceImpl) recordCommission(ctx context.Context, tracking *model.PurchaseTracking) error {
	if tracking.AffiliateCode == "" {
		return nil
	}

	affiliate, err := s.affiliates.FindActiveByCode(ctx, tracking.AffiliateCode)
	if err != nil {
		return fmt.Errorf("load affiliate: %w", err)
	}
	if affiliate == nil {
		s.logger.Printf("webhook: affiliate %q no longer active, skipping commission", tracking.AffiliateCode)
		return nil
	}

	tier, err := s.affiliates.FindTierForAmount(ctx, affiliate.ID, tracking.AmountCents)
	if err != nil {
		return fmt.Errorf("find commission tier: %w", err)
	}
	if tier == nil {
		return nil
	}

	commissionCents := tier.Rate.Mul(decimal.NewFromInt(tracking.AmountCents)).Round(0).IntPart()

	return s.affiliates.RecordCommission(ctx, &model.AffiliateCommission{
		ID:                uuid.New(),
		AffiliateID:       affiliate.ID,
		CheckoutSessionID: tracking.CheckoutSessionID,
		AmountCents:       tracking.AmountCents,
		Rate:              tier.Rate,
		CommissionCents:   commissionCents,
	})
}

func (s *webhookServiceImpl) sendConfirmation(email string, resultID uuid.UUID) {
	s.sendEmail(email, "Your detailed report is unlocked",
		fmt.Sprintf(`<p>Your purchase is complete.</p>
<p><a href="%s/results/%s">View your detailed report</a></p>`, s.frontendURL, resultID))
}

// sendEmail is fire-and-forget: a lost email never fails the webhook.
func (s *webhookServiceImpl) sendEmail(to, subject, body string) {
	if err := s.emailClient.Send(to, subject, body); err != nil {
		s.logger.Printf("webhook: send email to %s: %v", to, err)
	}
}
