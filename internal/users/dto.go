package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/uninote/uninote-backend/pkg/db/models"
	"github.com/uninote/uninote-backend/pkg/enums"
)

// UserDTO is the transport shape that omits credentials.
type UserDTO struct {
	ID               uuid.UUID          `json:"id"`
	Email            string             `json:"email"`
	DisplayName      string             `json:"display_name"`
	University       *string            `json:"university,omitempty"`
	Role             enums.UserRole     `json:"role"`
	SellerStatus     enums.SellerStatus `json:"seller_status"`
	SellerBio        *string            `json:"seller_bio,omitempty"`
	SellerReviewedAt *time.Time         `json:"seller_reviewed_at,omitempty"`
	LastLoginAt      *time.Time         `json:"last_login_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// CreateUserDTO holds the data required to persist a new account.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	DisplayName  string
	University   *string
	Role         enums.UserRole
}

// FromModel strips the password hash.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:               u.ID,
		Email:            u.Email,
		DisplayName:      u.DisplayName,
		University:       u.University,
		Role:             u.Role,
		SellerStatus:     u.SellerStatus,
		SellerBio:        u.SellerBio,
		SellerReviewedAt: u.SellerReviewedAt,
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

// ToModel builds a new active account; the id is assigned here so every
// driver sees the same value.
func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleStudent
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		DisplayName:  c.DisplayName,
		University:   c.University,
		Role:         role,
		SellerStatus: enums.SellerStatusNone,
		IsActive:     true,
	}
}
