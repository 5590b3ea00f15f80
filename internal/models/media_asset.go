package models

import (
	"gorm.io/gorm"
)

// MediaAsset is one row per distinct downloaded media payload. Exact duplicate
// content never produces a second row: Sha256Hash carries a unique index.
type MediaAsset struct {
	gorm.Model

	InteractionID uint `json:"interaction_id" gorm:"index"`

	MediaURL  string `json:"media_url" gorm:"type:text"`
	LocalPath string `json:"local_path" gorm:"type:text"`

	ContentType string `json:"content_type" gorm:"size:128"`
	Sha256Hash  string `json:"sha256_hash" gorm:"uniqueIndex;size:128"`

	WidthPx         *int `json:"width_px"`
	HeightPx        *int `json:"height_px"`
	DurationSeconds *int `json:"duration_seconds"`

	Interaction Interaction `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}
