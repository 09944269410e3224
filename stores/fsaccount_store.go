// Package stores provides ready-made AccountStore backends: a JSON
// file-per-account store for development and single-node deployments.
package stores

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	na "github.com/novaterm/novaauth"
)

// FSAccountStore stores accounts as JSON files keyed by id, with index
// files mapping email and federated id back to the account id.
//
// The email index file is created with O_EXCL so two racing Creates for
// the same address cannot both succeed, even across processes. All
// other mutations are serialized by an in-process mutex, which is
// enough for the single-writer deployments this store targets.
type FSAccountStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSAccountStore(storagePath string) *FSAccountStore {
	return &FSAccountStore{StoragePath: storagePath}
}

func (s *FSAccountStore) accountPath(id string) string {
	return filepath.Join(s.StoragePath, "accounts", id+".json")
}

func (s *FSAccountStore) emailIndexPath(email string) string {
	sum := sha256.Sum256([]byte(na.NormalizeEmail(email)))
	return filepath.Join(s.StoragePath, "emails", hex.EncodeToString(sum[:]))
}

func (s *FSAccountStore) federatedIndexPath(providerID string) string {
	sum := sha256.Sum256([]byte(providerID))
	return filepath.Join(s.StoragePath, "federated", hex.EncodeToString(sum[:]))
}

func (s *FSAccountStore) GetByID(id string) (*na.Account, error) {
	return s.readAccount(s.accountPath(id))
}

func (s *FSAccountStore) GetByEmail(email string) (*na.Account, error) {
	return s.readIndexed(s.emailIndexPath(email))
}

func (s *FSAccountStore) GetByFederatedID(providerID string) (*na.Account, error) {
	return s.readIndexed(s.federatedIndexPath(providerID))
}

func (s *FSAccountStore) readIndexed(indexPath string) (*na.Account, error) {
	id, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, na.ErrAccountNotFound
		}
		return nil, err
	}
	return s.GetByID(strings.TrimSpace(string(id)))
}

func (s *FSAccountStore) readAccount(path string) (*na.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, na.ErrAccountNotFound
		}
		return nil, err
	}
	var acct na.Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *FSAccountStore) Create(acct *na.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexPath := s.emailIndexPath(acct.Email)
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return err
	}

	// O_EXCL makes the email index the uniqueness arbiter: exactly one
	// Create for a given address can win this open.
	f, err := os.OpenFile(indexPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return na.ErrDuplicateEmail
		}
		return err
	}
	if _, err := f.Write([]byte(acct.ID)); err != nil {
		f.Close()
		os.Remove(indexPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(indexPath)
		return err
	}

	acct.CreatedAt = time.Now()
	acct.UpdatedAt = acct.CreatedAt
	if err := s.writeAccount(acct); err != nil {
		os.Remove(indexPath)
		return err
	}
	if acct.FederatedID != "" {
		return s.writeFederatedIndex(acct.ID, acct.FederatedID)
	}
	return nil
}

func (s *FSAccountStore) Save(acct *na.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct.UpdatedAt = time.Now()
	return s.writeAccount(acct)
}

func (s *FSAccountStore) SetChallenge(email, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.readIndexed(s.emailIndexPath(email))
	if err != nil {
		return err
	}
	acct.OTPCode = code
	acct.OTPExpiresAt = expiresAt
	acct.UpdatedAt = time.Now()
	return s.writeAccount(acct)
}

func (s *FSAccountStore) ConsumeChallenge(email, code string, now time.Time) (*na.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.readIndexed(s.emailIndexPath(email))
	if err != nil {
		return nil, err
	}
	if acct.OTPCode == "" || acct.OTPCode != code || !now.Before(acct.OTPExpiresAt) {
		return nil, na.ErrChallengeMismatch
	}
	acct.OTPCode = ""
	acct.OTPExpiresAt = time.Time{}
	acct.IsVerified = true
	acct.UpdatedAt = time.Now()
	if err := s.writeAccount(acct); err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *FSAccountStore) LinkFederatedID(accountID, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.readAccount(s.accountPath(accountID))
	if err != nil {
		return err
	}
	acct.FederatedID = providerID
	acct.UpdatedAt = time.Now()
	if err := s.writeAccount(acct); err != nil {
		return err
	}
	return s.writeFederatedIndex(accountID, providerID)
}

func (s *FSAccountStore) writeAccount(acct *na.Account) error {
	path := s.accountPath(acct.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(acct, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

func (s *FSAccountStore) writeFederatedIndex(accountID, providerID string) error {
	path := s.federatedIndexPath(providerID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := writeAtomicFile(path, []byte(accountID)); err != nil {
		return fmt.Errorf("failed to write federated index: %w", err)
	}
	return nil
}
