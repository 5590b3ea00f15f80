package models

import (
	"gorm.io/gorm"
)

// Memory type values
const (
	MemoryTypeText  = "text"
	MemoryTypeImage = "image"
	MemoryTypeAudio = "audio"
)

// Memory is the durable record of a stored memory, mirroring what was sent to
// the remote memory service. RemoteID is NULL when the remote create failed or
// the gateway was not configured.
type Memory struct {
	gorm.Model

	UserID uint `json:"user_id" gorm:"index"`

	// Source interaction; NULL when created via the direct API.
	InteractionID *uint `json:"interaction_id"`

	RemoteID   *string `json:"remote_id" gorm:"index;size:128"`
	MemoryType string  `json:"memory_type" gorm:"size:16"` // text/image/audio
	Title      string  `json:"title" gorm:"size:255"`
	Text       string  `json:"text" gorm:"type:text"` // transcript or body text
	LabelsJSON string  `json:"labels_json" gorm:"type:text"`

	User        User         `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Interaction *Interaction `json:"-" gorm:"constraint:OnDelete:SET NULL"`
}
