package models

import "time"

// PointHistory is one entry in the append-only point ledger.
// Amount is signed: positive entries are rewards and grants, negative
// entries are redemptions. A user's balance is always SUM(amount) over
// their entries; there is no stored counter anywhere.
type PointHistory struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"index;not null" json:"user_id"`
	Amount int64  `gorm:"not null" json:"amount"`
	Reason string `gorm:"not null" json:"reason"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (PointHistory) TableName() string {
	return "point_histories"
}
