package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"morality-quiz-backend/internal/config"
	"morality-quiz-backend/internal/model"
	"morality-quiz-backend/internal/repository"
)

type VerifyOutcome string

const (
	OutcomeSucceeded VerifyOutcome = "succeeded"
	OutcomeExhausted VerifyOutcome = "exhausted"
	OutcomeForced    VerifyOutcome = "forced"
)

// verifyStrategy attempts to confirm-and-mark one result as purchased using
// a single identity fragment. Returning (nil, nil) means "no match yet, try
// the next strategy or retry later"; an error is logged by the orchestrator
// and likewise falls through to the next strategy.
type verifyStrategy interface {
	Name() string
	Attempt(ctx context.Context) (*model.QuizResult, error)
}

// VerificationService runs the ordered strategy set under a bounded retry
// loop, racing the webhook ingestor toward the same terminal record state.
// Client-scoped strategies only unlock a result once a completed
// PurchaseTracking row exists, i.e. once the webhook has recorded payment
// evidence; until then each pass is a cheap no-op and the loop waits for
// the webhook to land.
type VerificationService struct {
	results  repository.QuizResultRepository
	tracking repository.PurchaseTrackingRepository
	logger   *log.Logger

	maxAttempts int
	delay       time.Duration
	backoff     float64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewVerificationService(
	results repository.QuizResultRepository,
	tracking repository.PurchaseTrackingRepository,
	verifyCfg *config.Verify,
	logger *log.Logger,
) *VerificationService {
	return &VerificationService{
		results:     results,
		tracking:    tracking,
		logger:      logger,
		maxAttempts: verifyCfg.MaxAttempts,
		delay:       verifyCfg.Delay,
		backoff:     verifyCfg.Backoff,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Verify runs the full strategy set immediately (the webhook has usually
// already landed), then retries with backoff until a strategy confirms the
// purchase, the attempt budget runs out, or ctx is cancelled. Exhaustion is
// an outcome, not an error; the caller decides between surfacing a
// "verification delayed" message and forced finalization.
func (s *VerificationService) Verify(ctx context.Context, vc *VerificationContext) (*model.QuizResult, VerifyOutcome, error) {
	strategies := s.buildStrategies(vc)
	if len(strategies) == 0 {
		return nil, "", ErrNoIdentity
	}

	delay := s.delay
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		for _, strategy := range strategies {
			result, err := strategy.Attempt(ctx)
			if err != nil {
				s.logger.Printf("verify: strategy %s attempt %d: %v", strategy.Name(), attempt, err)
				continue
			}
			if result != nil {
				return result, OutcomeSucceeded, nil
			}
		}

		if attempt == s.maxAttempts {
			break
		}
		if err := s.sleep(ctx, delay); err != nil {
			return nil, "", err
		}
		delay = time.Duration(float64(delay) * s.backoff)
	}

	return nil, OutcomeExhausted, nil
}

// ForceFinalize unlocks the result filtered by id alone, with no identity
// check. Last resort after exhaustion: it trades a confirmed identity match
// for not locking out a paying user, and stamps access_method=forced_update
// so those unlocks stay distinguishable from trusted ones.
func (s *VerificationService) ForceFinalize(ctx context.Context, resultID uuid.UUID) (*model.QuizResult, error) {
	s.logger.Printf("verify: WARNING forced finalization of result %s without identity match", resultID)

	if _, err := s.results.MarkPurchasedByID(ctx, resultID, model.AccessForcedUpdate, s.now()); err != nil {
		return nil, err
	}

	return s.results.FindByID(ctx, resultID)
}

func (s *VerificationService) buildStrategies(vc *VerificationContext) []verifyStrategy {
	var strategies []verifyStrategy

	for _, fragment := range vc.Fragments() {
		switch fragment.Kind {
		case FragmentUserID:
			strategies = append(strategies, &byUserID{svc: s, resultID: vc.ResultID, userID: fragment.UserID})
		case FragmentSessionID:
			strategies = append(strategies, &bySessionID{svc: s, resultID: vc.ResultID, sessionID: fragment.SessionID})
		case FragmentGuestToken:
			strategies = append(strategies, &byGuestToken{svc: s, resultID: vc.ResultID, tokenID: fragment.GuestTokenID})
		case FragmentGuestEmail:
			strategies = append(strategies, &byGuestEmail{svc: s, resultID: vc.ResultID, email: fragment.GuestEmail})
		}
	}

	return strategies
}

// completedOnly drops anything but a fully completed record so a strategy
// never reports success off a partial state.
func completedOnly(result *model.QuizResult, err error) (*model.QuizResult, error) {
	if err != nil || result == nil {
		return nil, err
	}
	if result.PurchaseStatus != model.PurchaseCompleted {
		return nil, nil
	}
	return result, nil
}

type byUserID struct {
	svc      *VerificationService
	resultID uuid.UUID
	userID   uuid.UUID
}

func (s *byUserID) Name() string { return "by_user_id" }

func (s *byUserID) Attempt(ctx context.Context) (*model.QuizResult, error) {
	result, err := s.svc.results.FindForUser(ctx, s.resultID, s.userID)
	if err != nil || result == nil {
		return nil, err
	}
	if result.PurchaseStatus == model.PurchaseCompleted {
		return result, nil
	}

	tracking, err := s.svc.tracking.FindCompletedForResult(ctx, s.resultID)
	if err != nil || tracking == nil {
		return nil, err
	}

	if _, err := s.svc.results.MarkPurchasedByUser(ctx, s.resultID, s.userID, model.AccessPurchase, s.svc.now()); err != nil {
		return nil, err
	}

	return completedOnly(s.svc.results.FindForUser(ctx, s.resultID, s.userID))
}

type bySessionID struct {
	svc       *VerificationService
	resultID  uuid.UUID
	sessionID string
}

func (s *bySessionID) Name() string { return "by_session_id" }

func (s *bySessionID) Attempt(ctx context.Context) (*model.QuizResult, error) {
	result, err := s.svc.results.FindForSession(ctx, s.resultID, s.sessionID)
	if err != nil {
		return nil, err
	}
	if result != nil && result.PurchaseStatus == model.PurchaseCompleted {
		return result, nil
	}

	tracking, err := s.svc.tracking.FindCompletedBySessionID(ctx, s.sessionID)
	if err != nil || tracking == nil {
		return nil, err
	}
	// A session that paid for a different result must never unlock this one.
	if tracking.ResultID == nil || *tracking.ResultID != s.resultID {
		return nil, nil
	}

	// The result may predate the session id; backfill before the scoped
	// update so the filter can match.
	if err := s.svc.results.AttachSessionID(ctx, s.resultID, s.sessionID); err != nil {
		return nil, err
	}

	if _, err := s.svc.results.MarkPurchasedBySession(ctx, s.resultID, s.sessionID, model.AccessPurchase, s.svc.now()); err != nil {
		return nil, err
	}

	return completedOnly(s.svc.results.FindForSession(ctx, s.resultID, s.sessionID))
}

type byGuestToken struct {
	svc      *VerificationService
	resultID uuid.UUID
	tokenID  string
}

func (s *byGuestToken) Name() string { return "by_guest_token" }

func (s *byGuestToken) Attempt(ctx context.Context) (*model.QuizResult, error) {
	now := s.svc.now()

	result, err := s.svc.results.FindForGuestToken(ctx, s.resultID, s.tokenID, now)
	if err != nil || result == nil {
		return nil, err
	}
	if result.PurchaseStatus == model.PurchaseCompleted {
		return result, nil
	}

	tracking, err := s.svc.tracking.FindCompletedForResult(ctx, s.resultID)
	if err != nil || tracking == nil {
		return nil, err
	}

	if _, err := s.svc.results.MarkPurchasedByGuestToken(ctx, s.resultID, s.tokenID, model.AccessPurchase, now); err != nil {
		return nil, err
	}

	return completedOnly(s.svc.results.FindForGuestToken(ctx, s.resultID, s.tokenID, s.svc.now()))
}

type byGuestEmail struct {
	svc      *VerificationService
	resultID uuid.UUID
	email    string
}

func (s *byGuestEmail) Name() string { return "by_guest_email" }

func (s *byGuestEmail) Attempt(ctx context.Context) (*model.QuizResult, error) {
	result, err := s.svc.results.FindForGuestEmail(ctx, s.resultID, s.email)
	if err != nil || result == nil {
		return nil, err
	}
	if result.PurchaseStatus == model.PurchaseCompleted {
		return result, nil
	}

	tracking, err := s.svc.tracking.FindCompletedForResult(ctx, s.resultID)
	if err != nil || tracking == nil {
		return nil, err
	}

	if _, err := s.svc.results.MarkPurchasedByGuestEmail(ctx, s.resultID, s.email, model.AccessPurchase, s.svc.now()); err != nil {
		return nil, err
	}

	return completedOnly(s.svc.results.FindForGuestEmail(ctx, s.resultID, s.email))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
