package models

import (
	"strings"

	"gorm.io/gorm"
)

// User represents a WhatsApp conversation participant
type User struct {
	// Using gorm.Model gives us ID (uint), CreatedAt, UpdatedAt, DeletedAt automatically
	gorm.Model

	// Stable identity assigned by the messaging provider (WaId). Unique so two
	// concurrent first messages cannot create two rows for the same identity.
	WhatsappUserID string `json:"whatsapp_user_id" gorm:"uniqueIndex;size:64"`
	PhoneNumber    string `json:"phone_number" gorm:"size:32"`
	Timezone       string `json:"timezone" gorm:"size:64;default:UTC"` // IANA name

	// Relationships
	Interactions []Interaction `json:"interactions,omitempty" gorm:"foreignKey:UserID"`
	Memories     []Memory      `json:"memories,omitempty" gorm:"foreignKey:UserID"`
}

// BeforeCreate hook to normalize identity fields
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.WhatsappUserID = strings.TrimPrefix(u.WhatsappUserID, "whatsapp:")
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	return nil
}
