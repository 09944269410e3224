//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	"gorm.io/gorm"

	na "github.com/novaterm/novaauth"
)

// AccountModel is the GORM model for accounts. FederatedID is a
// pointer so unlinked accounts store NULL and the unique index stays
// sparse.
type AccountModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Name         string    `gorm:"size:255"`
	Email        string    `gorm:"size:255;uniqueIndex"`
	PasswordHash string    `gorm:"size:255"`
	FederatedID  *string   `gorm:"size:255;uniqueIndex"`
	IsVerified   bool      `gorm:"default:false"`
	OTPCode      string    `gorm:"size:16"`
	OTPExpiresAt time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

// AutoMigrate runs database migrations for all novaauth tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{})
}

func (m *AccountModel) ToAccount() *na.Account {
	acct := &na.Account{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		IsVerified:   m.IsVerified,
		OTPCode:      m.OTPCode,
		OTPExpiresAt: m.OTPExpiresAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.FederatedID != nil {
		acct.FederatedID = *m.FederatedID
	}
	return acct
}

func AccountToModel(acct *na.Account) *AccountModel {
	model := &AccountModel{
		ID:           acct.ID,
		Name:         acct.Name,
		Email:        acct.Email,
		PasswordHash: acct.PasswordHash,
		IsVerified:   acct.IsVerified,
		OTPCode:      acct.OTPCode,
		OTPExpiresAt: acct.OTPExpiresAt,
		CreatedAt:    acct.CreatedAt,
		UpdatedAt:    acct.UpdatedAt,
	}
	if acct.FederatedID != "" {
		fid := acct.FederatedID
		model.FederatedID = &fid
	}
	return model
}
