package model

// Wire types for the payment processor's webhook payloads, shaped after
// Stripe's event envelope. Only the fields the ingestor reads are mapped.

type CheckoutSessionMetadata struct {
	ResultID      string `json:"result_id"`
	Kind          string `json:"kind"`
	UserID        string `json:"user_id"`
	GuestEmail    string `json:"guest_email"`
	CouponCode    string `json:"coupon_code"`
	AffiliateCode string `json:"affiliate_code"`
}

type CheckoutSession struct {
	ID            string                  `json:"id"`
	PaymentStatus string                  `json:"payment_status"`
	CustomerEmail string                  `json:"customer_email"`
	AmountTotal   int64                   `json:"amount_total"`
	Currency      string                  `json:"currency"`
	Metadata      CheckoutSessionMetadata `json:"metadata"`
}

type StripeEventData struct {
	Object CheckoutSession `json:"object"`
}

type StripeWebhookEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    StripeEventData `json:"data"`
}
