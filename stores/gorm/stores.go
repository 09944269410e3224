//go:build !wasm
// +build !wasm

// Package gorm provides an AccountStore backed by any GORM-supported
// relational database.
package gorm

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	na "github.com/novaterm/novaauth"
)

// AccountStore implements na.AccountStore using GORM. Email uniqueness
// rides on the database's unique index, and challenge consumption is a
// single conditional UPDATE so racing verifications cannot both win.
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) GetByID(id string) (*na.Account, error) {
	var model AccountModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) GetByEmail(email string) (*na.Account, error) {
	var model AccountModel
	if err := s.db.First(&model, "email = ?", na.NormalizeEmail(email)).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) GetByFederatedID(providerID string) (*na.Account, error) {
	var model AccountModel
	if err := s.db.First(&model, "federated_id = ?", providerID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) Create(acct *na.Account) error {
	model := AccountToModel(acct)
	if err := s.db.Create(model).Error; err != nil {
		if isDuplicateErr(err) {
			return na.ErrDuplicateEmail
		}
		return err
	}
	acct.CreatedAt = model.CreatedAt
	acct.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *AccountStore) Save(acct *na.Account) error {
	return s.db.Save(AccountToModel(acct)).Error
}

func (s *AccountStore) SetChallenge(email, code string, expiresAt time.Time) error {
	res := s.db.Model(&AccountModel{}).
		Where("email = ?", na.NormalizeEmail(email)).
		Updates(map[string]any{"otp_code": code, "otp_expires_at": expiresAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return na.ErrAccountNotFound
	}
	return nil
}

func (s *AccountStore) ConsumeChallenge(email, code string, now time.Time) (*na.Account, error) {
	email = na.NormalizeEmail(email)
	res := s.db.Model(&AccountModel{}).
		Where("email = ? AND otp_code = ? AND otp_code <> '' AND otp_expires_at > ?", email, code, now).
		Updates(map[string]any{
			"otp_code":       "",
			"otp_expires_at": time.Time{},
			"is_verified":    true,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish an unknown address from a stale or wrong code.
		if _, err := s.GetByEmail(email); err != nil {
			return nil, err
		}
		return nil, na.ErrChallengeMismatch
	}
	return s.GetByEmail(email)
}

func (s *AccountStore) LinkFederatedID(accountID, providerID string) error {
	res := s.db.Model(&AccountModel{}).
		Where("id = ?", accountID).
		Update("federated_id", providerID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return na.ErrAccountNotFound
	}
	return nil
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return na.ErrAccountNotFound
	}
	return err
}

// isDuplicateErr matches both GORM's translated error and the raw
// driver messages dialects without translation surface.
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
