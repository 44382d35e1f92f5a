package domain

import "time"

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentDeclined PaymentStatus = "declined"
	PaymentRejected PaymentStatus = "rejected" // blocked by the gate before reaching a provider
)

// Payment amounts are minor currency units.
type Payment struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	AmountCents int64         `json:"amount_cents"`
	Currency    string        `json:"currency"`
	Status      PaymentStatus `json:"status"`
	ProviderRef string        `json:"provider_ref,omitempty"`
	IPAddress   string        `json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
}
