package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating is an owner's score for a sheet; one per (user, sheet).
type Rating struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	SheetID   uuid.UUID `gorm:"column:sheet_id;type:uuid;not null"`
	Score     int       `gorm:"column:score;not null"`
	Comment   *string   `gorm:"column:comment"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
