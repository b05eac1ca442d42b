package models

import "time"

// PaymentStatus is the lifecycle of a prepayment row.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment records a company's prepayment of reward budget. Rows are created
// pending when the checkout link is handed out and transition to completed
// or failed via an explicit confirm call; amounts are immutable once written.
type Payment struct {
	ID        string        `gorm:"primaryKey;type:uuid" json:"id"`
	CompanyID string        `gorm:"index;not null" json:"company_id"`
	Amount    int64         `gorm:"not null" json:"amount"` // yen
	Status    PaymentStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	// Hosted checkout reference (the payment-link URL handed to the company)
	CheckoutURL string `gorm:"type:text" json:"checkout_url"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
