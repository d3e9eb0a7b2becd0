package models

// PaymentStatus is the settlement state of a payment intent.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is a payment intent created by a recipient and settled on-chain by a payer.
type Payment struct {
	ID        string        `json:"id"`
	Payer     string        `json:"payer"`
	Recipient string        `json:"recipient"`
	Mint      string        `json:"mint"`
	Amount    float64       `json:"amount"`
	Status    PaymentStatus `json:"status"`
	Timestamp int64         `json:"timestamp"`
	Memo      string        `json:"memo,omitempty"`
}

// PaymentFilter narrows a payment listing; empty fields match everything.
type PaymentFilter struct {
	Status    PaymentStatus
	Recipient string
	Payer     string
}

// Matches reports whether p satisfies every set field of the filter.
func (f PaymentFilter) Matches(p *Payment) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Recipient != "" && p.Recipient != f.Recipient {
		return false
	}
	if f.Payer != "" && p.Payer != f.Payer {
		return false
	}
	return true
}

// PaymentQuote is the fee breakdown for a payment amount.
type PaymentQuote struct {
	RequestedAmount   float64 `json:"requestedAmount"`
	Fee               float64 `json:"fee"`
	FeeBps            float64 `json:"feeBps"`
	TotalToPay        float64 `json:"totalToPay"`
	RecipientReceives float64 `json:"recipientReceives"`
}
