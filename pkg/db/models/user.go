package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/uninote/uninote-backend/pkg/enums"
)

// User represents the canonical identity entity. Sellers are ordinary users
// whose seller onboarding has been approved.
type User struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string             `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash     string             `gorm:"column:password_hash;not null"`
	DisplayName      string             `gorm:"column:display_name;not null"`
	University       *string            `gorm:"column:university"`
	Role             enums.UserRole     `gorm:"column:role;type:text;not null;default:student"`
	SellerStatus     enums.SellerStatus `gorm:"column:seller_status;type:text;not null;default:none"`
	SellerBio        *string            `gorm:"column:seller_bio"`
	SellerReviewedAt *time.Time         `gorm:"column:seller_reviewed_at"`
	IsActive         bool               `gorm:"column:is_active;not null;default:true"`
	LastLoginAt      *time.Time         `gorm:"column:last_login_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// IsApprovedSeller reports whether the user may list sheets.
func (u User) IsApprovedSeller() bool {
	return u.SellerStatus == enums.SellerStatusApproved
}
