package dto

import "time"

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Answer struct {
	Category string `json:"category"`
	Value    int    `json:"value"`
}

type SubmitQuizRequest struct {
	Answers    []Answer `json:"answers"`
	GuestEmail string   `json:"guest_email"`
}

type SubmitQuizResponse struct {
	ResultID   string `json:"result_id"`
	Category   string `json:"category"`
	GuestToken string `json:"guest_token,omitempty"`
}

type QuizResultResponse struct {
	ResultID       string             `json:"result_id"`
	Category       string             `json:"category"`
	Scores         map[string]float64 `json:"scores"`
	IsPurchased    bool               `json:"is_purchased"`
	PurchaseStatus string             `json:"purchase_status"`
	AccessMethod   string             `json:"access_method,omitempty"`
	Analysis       string             `json:"analysis,omitempty"` // only set once purchased
}

type CheckoutRequest struct {
	ResultID      string `json:"result_id"`
	Kind          string `json:"kind"` // report | credit_pack | guest_report
	GuestEmail    string `json:"guest_email"`
	CouponCode    string `json:"coupon_code"`
	AffiliateCode string `json:"affiliate_code"`
}

type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
	GuestToken  string `json:"guest_token,omitempty"`
}

// VerifyRequest is the pending-verification context the SPA persisted to
// durable storage before the checkout redirect, echoed back on return plus
// the session_id from the return URL. Every field beyond ResultID is
// optional; the resolver works with whatever survived the round trip.
type VerifyRequest struct {
	ResultID   string `json:"result_id"`
	SessionID  string `json:"session_id"`
	GuestToken string `json:"guest_token"`
	GuestEmail string `json:"guest_email"`
	Force      bool   `json:"force"` // opt in to forced finalization after exhaustion
}

type VerifyResponse struct {
	Outcome string              `json:"outcome"` // succeeded | exhausted | forced
	Result  *QuizResultResponse `json:"result,omitempty"`
}

type CouponRequest struct {
	Code       string     `json:"code"`
	PercentOff string     `json:"percent_off"`
	MaxUses    int        `json:"max_uses"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

type AffiliateRequest struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CommissionTierRequest struct {
	AffiliateID    string `json:"affiliate_id"`
	MinAmountCents int64  `json:"min_amount_cents"`
	Rate           string `json:"rate"`
}
