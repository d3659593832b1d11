package service

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"morality-quiz-backend/internal/dto"
	"morality-quiz-backend/internal/token"
)

// ErrNoIdentity means no fragment at all was available; verification cannot
// even start and the caller gets a hard error instead of a retry loop.
var ErrNoIdentity = errors.New("no identity fragment available")

type FragmentKind string

const (
	FragmentUserID     FragmentKind = "user_id"
	FragmentSessionID  FragmentKind = "session_id"
	FragmentGuestToken FragmentKind = "guest_token"
	FragmentGuestEmail FragmentKind = "guest_email"
)

// Fragment is one piece of identity evidence. Exactly one payload field is
// set, matching Kind.
type Fragment struct {
	Kind         FragmentKind
	UserID       uuid.UUID
	SessionID    string
	GuestTokenID string
	GuestEmail   string
}

// VerificationContext collects whatever identity fragments survived the
// checkout round trip: the authenticated session, the session_id from the
// return URL, and the guest token/email the SPA persisted before
// redirecting. Every field except ResultID is optional.
type VerificationContext struct {
	ResultID     uuid.UUID
	UserID       *uuid.UUID
	SessionID    string
	GuestTokenID string
	GuestEmail   string
}

// Fragments returns the available fragments in priority order, highest
// confidence first: user id, session id, guest token, guest email.
func (vc *VerificationContext) Fragments() []Fragment {
	var fragments []Fragment

	if vc.UserID != nil {
		fragments = append(fragments, Fragment{Kind: FragmentUserID, UserID: *vc.UserID})
	}
	if vc.SessionID != "" {
		fragments = append(fragments, Fragment{Kind: FragmentSessionID, SessionID: vc.SessionID})
	}
	if vc.GuestTokenID != "" {
		fragments = append(fragments, Fragment{Kind: FragmentGuestToken, GuestTokenID: vc.GuestTokenID})
	}
	if vc.GuestEmail != "" {
		fragments = append(fragments, Fragment{Kind: FragmentGuestEmail, GuestEmail: vc.GuestEmail})
	}

	return fragments
}

// IdentityResolver turns the SPA's persisted verification context plus the
// current auth session into a VerificationContext. Invalid or expired guest
// tokens, and tokens minted for a different result, are dropped rather than
// rejected: the remaining fragments may still verify the purchase.
type IdentityResolver struct {
	tokens *token.Manager
	logger *log.Logger
}

func NewIdentityResolver(tokens *token.Manager, logger *log.Logger) *IdentityResolver {
	return &IdentityResolver{tokens: tokens, logger: logger}
}

func (r *IdentityResolver) Resolve(req *dto.VerifyRequest, authedUserID *uuid.UUID) (*VerificationContext, error) {
	resultID, err := uuid.Parse(req.ResultID)
	if err != nil {
		return nil, fmt.Errorf("parse result id: %w", err)
	}

	vc := &VerificationContext{
		ResultID:   resultID,
		UserID:     authedUserID,
		SessionID:  req.SessionID,
		GuestEmail: req.GuestEmail,
	}

	if req.GuestToken != "" {
		claims, err := r.tokens.VerifyGuest(req.GuestToken)
		if err != nil {
			r.logger.Printf("verify: dropping guest token for result %s: %v", req.ResultID, err)
		} else if claimed, err := uuid.Parse(claims.ResultID); err != nil || claimed != resultID {
			// Parsed comparison, so a differently-cased but equal id from
			// the client does not drop a valid token.
			r.logger.Printf("verify: dropping guest token minted for another result")
		} else {
			vc.GuestTokenID = claims.ID
		}
	}

	if len(vc.Fragments()) == 0 {
		return nil, ErrNoIdentity
	}

	return vc, nil
}
