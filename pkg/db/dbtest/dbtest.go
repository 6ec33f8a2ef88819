// Package dbtest opens throwaway in-memory SQLite databases carrying the
// marketplace schema for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/uninote/uninote-backend/pkg/db"
	"github.com/uninote/uninote-backend/pkg/db/models"
	"github.com/uninote/uninote-backend/pkg/enums"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  display_name TEXT NOT NULL,
  university TEXT,
  role TEXT NOT NULL DEFAULT 'student',
  seller_status TEXT NOT NULL DEFAULT 'none',
  seller_bio TEXT,
  seller_reviewed_at DATETIME,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS sheets (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT NOT NULL,
  course TEXT NOT NULL,
  university TEXT NOT NULL,
  subject TEXT,
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  is_active INTEGER NOT NULL DEFAULT 0,
  file_key TEXT,
  preview_key TEXT,
  page_count INTEGER NOT NULL DEFAULT 0,
  purchase_count INTEGER NOT NULL DEFAULT 0,
  rating_count INTEGER NOT NULL DEFAULT 0,
  rating_average NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS purchases (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  sheet_id TEXT NOT NULL,
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  external_session_id TEXT UNIQUE,
  external_payment_id TEXT,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS purchases_user_sheet_key ON purchases (user_id, sheet_id);
CREATE TABLE IF NOT EXISTS ratings (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  sheet_id TEXT NOT NULL,
  score INTEGER NOT NULL,
  comment TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ratings_user_sheet_key ON ratings (user_id, sheet_id);
`

// Open returns a fresh database isolated from every other test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.Exec(schema).Error)
	return conn
}

// SeedUser inserts a student account.
func SeedUser(t *testing.T, conn *gorm.DB, mutate ...func(*models.User)) models.User {
	t.Helper()

	id := uuid.New()
	user := models.User{
		ID:           id,
		Email:        id.String() + "@example.edu",
		PasswordHash: "hash",
		DisplayName:  "Student " + id.String()[:8],
		Role:         enums.UserRoleStudent,
		SellerStatus: enums.SellerStatusNone,
		IsActive:     true,
	}
	for _, fn := range mutate {
		fn(&user)
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

// SeedSeller inserts an approved seller.
func SeedSeller(t *testing.T, conn *gorm.DB) models.User {
	t.Helper()
	return SeedUser(t, conn, func(u *models.User) {
		u.SellerStatus = enums.SellerStatusApproved
	})
}

// SeedSheet inserts an active sheet priced at 9.99 with an uploaded file.
func SeedSheet(t *testing.T, conn *gorm.DB, sellerID uuid.UUID, mutate ...func(*models.Sheet)) models.Sheet {
	t.Helper()

	id := uuid.New()
	fileKey := "sheets/" + id.String() + "/file/original.pdf"
	sheet := models.Sheet{
		ID:            id,
		SellerID:      sellerID,
		Title:         "Linear Algebra Final Review",
		Description:   "Eigenvalues, diagonalization and past exam problems",
		Course:        "MATH 221",
		University:    "State University",
		Price:         decimal.RequireFromString("9.99"),
		Currency:      "usd",
		IsActive:      true,
		FileKey:       &fileKey,
		RatingAverage: decimal.Zero,
	}
	for _, fn := range mutate {
		fn(&sheet)
	}
	require.NoError(t, conn.Create(&sheet).Error)
	return sheet
}

// SeedPurchase inserts a purchase row in the given status.
func SeedPurchase(t *testing.T, conn *gorm.DB, userID, sheetID uuid.UUID, status enums.PurchaseStatus, sessionID string) models.Purchase {
	t.Helper()

	purchase := models.Purchase{
		ID:       uuid.New(),
		UserID:   userID,
		SheetID:  sheetID,
		Price:    decimal.RequireFromString("9.99"),
		Currency: "usd",
		Status:   status,
	}
	if sessionID != "" {
		purchase.ExternalSessionID = &sessionID
	}
	if status == enums.PurchaseStatusCompleted {
		now := time.Now().UTC()
		purchase.CompletedAt = &now
	}
	require.NoError(t, conn.Create(&purchase).Error)
	return purchase
}
