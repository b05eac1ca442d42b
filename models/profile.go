package models

import (
	"time"

	"gorm.io/gorm"
)

// Role determines which dashboard and permissions apply to a profile.
type Role string

const (
	RoleUser    Role = "user"
	RoleCompany Role = "company"
	RoleAdmin   Role = "admin"
)

// ValidRole reports whether r is one of the recognized roles.
// Unrecognized roles are rejected at the auth boundary, never defaulted.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleCompany, RoleAdmin:
		return true
	}
	return false
}

// Profile is the local identity record for an authenticated account.
// Keyed by the external auth identity (AuthUserID); created lazily via
// get-or-create on first authenticated access.
type Profile struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	AuthUserID  string `gorm:"uniqueIndex;not null" json:"auth_user_id"`
	Role        Role   `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	DisplayName string `gorm:"not null" json:"display_name"`
	Email       string `gorm:"index;not null" json:"email"`

	// Company-only fields, null for plain users
	CompanyName    *string `json:"company_name,omitempty"`
	CompanyPhone   *string `json:"company_phone,omitempty"`
	CompanyAddress *string `json:"company_address,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
