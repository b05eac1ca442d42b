package models

import "time"

// SiteContentType identifies a singleton content page.
type SiteContentType string

const (
	ContentTypeTerms   SiteContentType = "terms"
	ContentTypePrivacy SiteContentType = "privacy"
)

// ValidContentType reports whether t is an editable content page.
func ValidContentType(t SiteContentType) bool {
	switch t {
	case ContentTypeTerms, ContentTypePrivacy:
		return true
	}
	return false
}

// SiteContent is admin-editable markdown rendered on public pages.
// Exactly one row per content type.
type SiteContent struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	ContentType SiteContentType `gorm:"column:content_type;uniqueIndex;not null" json:"content_type"`
	Content     string          `gorm:"type:text;not null" json:"content"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
