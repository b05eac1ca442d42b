package models

import (
	"time"
)

// MissionDifficulty rates how demanding a mission is for participants.
type MissionDifficulty string

const (
	DifficultyEasy   MissionDifficulty = "easy"
	DifficultyNormal MissionDifficulty = "normal"
	DifficultyHard   MissionDifficulty = "hard"
)

// MissionStatus tracks whether a mission still accepts applications.
type MissionStatus string

const (
	MissionStatusOpen   MissionStatus = "open"
	MissionStatusClosed MissionStatus = "closed"
)

// MissionCategories is the fixed set of mission categories companies can pick from.
var MissionCategories = []string{
	"sns_post",
	"store_visit",
	"purchase",
	"review",
	"invite",
	"sns_follow",
	"survey",
}

// MissionRegions is the fixed set of target regions.
var MissionRegions = []string{
	"nationwide",
	"online",
	"hokkaido",
	"tohoku",
	"kanto",
	"chubu",
	"kansai",
	"chugoku_shikoku",
	"kyushu_okinawa",
}

// Mission is a paid task posted by a company, rewarded in points.
type Mission struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	CompanyID   string `gorm:"index;not null" json:"company_id"` // owning company Profile.ID
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	RewardPoint int64  `gorm:"not null;default:0" json:"reward_point"`

	// 0 means unlimited participants
	MaxParticipants int `gorm:"not null;default:0" json:"max_participants"`

	Categories   []string          `gorm:"serializer:json" json:"categories"`
	TargetRegion string            `gorm:"index" json:"target_region"`
	Difficulty   MissionDifficulty `gorm:"type:varchar(16);not null;default:'normal'" json:"difficulty"`

	// What the participant must do, and what counts as proof
	RequiredAction   *string `json:"required_action,omitempty"`
	RequiredEvidence *string `json:"required_evidence,omitempty"`

	EndDate *time.Time    `json:"end_date,omitempty"`
	Status  MissionStatus `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ApplicationStatus tracks a user's progress against a mission.
// Only pending/in_progress/completed are ever persisted; approved/rejected
// exist as display vocabulary in clients and have no server-side flow.
type ApplicationStatus string

const (
	ApplicationStatusPending    ApplicationStatus = "pending"
	ApplicationStatusInProgress ApplicationStatus = "in_progress"
	ApplicationStatusCompleted  ApplicationStatus = "completed"
)

// Application is one user's attempt at a mission. One row per (user, mission).
type Application struct {
	ID        string            `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string            `gorm:"index:idx_app_user_mission,unique;not null" json:"user_id"`
	MissionID string            `gorm:"index:idx_app_user_mission,unique;index;not null" json:"mission_id"`
	Status    ApplicationStatus `gorm:"type:varchar(16);not null;default:'in_progress'" json:"status"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Evidence carries the proof a user submits to complete an application.
// Created empty alongside the Application; populated once on first submission
// (SubmittedAt stays null until then).
type Evidence struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	ApplicationID string     `gorm:"uniqueIndex;not null" json:"application_id"`
	ProofText     *string    `gorm:"type:text" json:"proof_text,omitempty"`
	ProofFileURL  *string    `gorm:"type:text" json:"proof_file_url,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
