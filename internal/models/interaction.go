package models

import (
	"time"

	"gorm.io/gorm"
)

// Message direction values
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message type values
const (
	MessageTypeText  = "text"
	MessageTypeMedia = "media"
)

// Interaction is one row per inbound or outbound message. Rows are never
// mutated after creation.
type Interaction struct {
	gorm.Model

	UserID uint `json:"user_id" gorm:"index"`

	// Provider message id, the idempotency key. Pointer so missing ids become
	// NULL instead of colliding on the unique index.
	TwilioMessageSid *string `json:"twilio_message_sid" gorm:"uniqueIndex;size:64"`

	MessageDirection string `json:"message_direction" gorm:"size:16;default:inbound"`
	MessageType      string `json:"message_type" gorm:"size:16"` // text/media
	BodyText         string `json:"body_text" gorm:"type:text"`
	NumMedia         int    `json:"num_media" gorm:"default:0"`

	OccurredAt time.Time `json:"occurred_at" gorm:"index"`

	User        User         `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	MediaAssets []MediaAsset `json:"media_assets,omitempty" gorm:"foreignKey:InteractionID"`
}

// BeforeCreate hook to default timestamps and direction
func (i *Interaction) BeforeCreate(tx *gorm.DB) error {
	if i.OccurredAt.IsZero() {
		i.OccurredAt = time.Now().UTC()
	}
	if i.MessageDirection == "" {
		i.MessageDirection = DirectionInbound
	}
	return nil
}
