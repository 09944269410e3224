package novaauth

import (
	"sync"
	"time"
)

// memAccountStore is the in-memory AccountStore used across the package
// tests.
type memAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*Account // by id

	// failCreate forces Create to fail, for dependency-failure paths.
	failCreate error

	// emailLookupMisses makes the next N GetByEmail calls report not
	// found, to simulate losing a create race.
	emailLookupMisses int
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{accounts: make(map[string]*Account)}
}

func (s *memAccountStore) GetByID(id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[id]; ok {
		copied := *acct
		return &copied, nil
	}
	return nil, ErrAccountNotFound
}

func (s *memAccountStore) GetByEmail(email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailLookupMisses > 0 {
		s.emailLookupMisses--
		return nil, ErrAccountNotFound
	}
	acct := s.findByEmail(email)
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	copied := *acct
	return &copied, nil
}

func (s *memAccountStore) GetByFederatedID(providerID string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.FederatedID != "" && acct.FederatedID == providerID {
			copied := *acct
			return &copied, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *memAccountStore) Create(acct *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	if s.findByEmail(acct.Email) != nil {
		return ErrDuplicateEmail
	}
	copied := *acct
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	s.accounts[acct.ID] = &copied
	return nil
}

func (s *memAccountStore) Save(acct *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.ID]; !ok {
		return ErrAccountNotFound
	}
	copied := *acct
	copied.UpdatedAt = time.Now()
	s.accounts[acct.ID] = &copied
	return nil
}

func (s *memAccountStore) SetChallenge(email, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.findByEmail(email)
	if acct == nil {
		return ErrAccountNotFound
	}
	acct.OTPCode = code
	acct.OTPExpiresAt = expiresAt
	return nil
}

func (s *memAccountStore) ConsumeChallenge(email, code string, now time.Time) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.findByEmail(email)
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	if acct.OTPCode == "" || acct.OTPCode != code || !now.Before(acct.OTPExpiresAt) {
		return nil, ErrChallengeMismatch
	}
	acct.OTPCode = ""
	acct.OTPExpiresAt = time.Time{}
	acct.IsVerified = true
	copied := *acct
	return &copied, nil
}

func (s *memAccountStore) LinkFederatedID(accountID, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	acct.FederatedID = providerID
	return nil
}

func (s *memAccountStore) findByEmail(email string) *Account {
	email = NormalizeEmail(email)
	for _, acct := range s.accounts {
		if acct.Email == email {
			return acct
		}
	}
	return nil
}
