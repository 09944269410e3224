//go:build !wasm
// +build !wasm

// Package gae provides an AccountStore backed by Google Cloud
// Datastore. Email uniqueness rides on a reservation entity keyed by
// the normalized address, and every conditional update runs in a
// Datastore transaction.
package gae

import (
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	na "github.com/novaterm/novaauth"
)

// AccountStore implements na.AccountStore using Google Cloud Datastore
type AccountStore struct {
	client    *datastore.Client
	namespace string
	ctx       context.Context
}

// NewAccountStore creates a new Datastore-backed AccountStore
func NewAccountStore(client *datastore.Client, namespace string) *AccountStore {
	return &AccountStore{
		client:    client,
		namespace: namespace,
		ctx:       context.Background(),
	}
}

// WithContext returns a copy of the store with the given context
func (s *AccountStore) WithContext(ctx context.Context) *AccountStore {
	return &AccountStore{
		client:    s.client,
		namespace: s.namespace,
		ctx:       ctx,
	}
}

func (s *AccountStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *AccountStore) accountKey(id string) *datastore.Key {
	return s.namespacedKey(KindAccount, id)
}

func (s *AccountStore) emailKey(email string) *datastore.Key {
	return s.namespacedKey(KindEmail, na.NormalizeEmail(email))
}

func (s *AccountStore) GetByID(id string) (*na.Account, error) {
	var entity AccountEntity
	if err := s.client.Get(s.ctx, s.accountKey(id), &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, na.ErrAccountNotFound
		}
		return nil, err
	}
	return entity.ToAccount(), nil
}

func (s *AccountStore) GetByEmail(email string) (*na.Account, error) {
	var index EmailEntity
	if err := s.client.Get(s.ctx, s.emailKey(email), &index); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, na.ErrAccountNotFound
		}
		return nil, err
	}
	return s.GetByID(index.AccountID)
}

func (s *AccountStore) GetByFederatedID(providerID string) (*na.Account, error) {
	query := datastore.NewQuery(KindAccount).
		FilterField("federated_id", "=", providerID).
		Limit(1)
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	it := s.client.Run(s.ctx, query)
	var entity AccountEntity
	key, err := it.Next(&entity)
	if err == iterator.Done {
		return nil, na.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	entity.Key = key
	return entity.ToAccount(), nil
}

func (s *AccountStore) Create(acct *na.Account) error {
	acctKey := s.accountKey(acct.ID)
	emailKey := s.emailKey(acct.Email)
	now := time.Now()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var existing EmailEntity
		err := tx.Get(emailKey, &existing)
		if err == nil {
			return na.ErrDuplicateEmail
		}
		if err != datastore.ErrNoSuchEntity {
			return err
		}

		index := &EmailEntity{
			Key:       emailKey,
			AccountID: acct.ID,
			CreatedAt: now,
		}
		if _, err := tx.Put(emailKey, index); err != nil {
			return err
		}

		var entity AccountEntity
		entity.Key = acctKey
		entity.fromAccount(acct)
		_, err = tx.Put(acctKey, &entity)
		return err
	})
	return err
}

func (s *AccountStore) Save(acct *na.Account) error {
	acct.UpdatedAt = time.Now()
	var entity AccountEntity
	entity.Key = s.accountKey(acct.ID)
	entity.fromAccount(acct)
	_, err := s.client.Put(s.ctx, entity.Key, &entity)
	return err
}

func (s *AccountStore) SetChallenge(email, code string, expiresAt time.Time) error {
	return s.mutateByEmail(email, func(entity *AccountEntity) error {
		entity.OTPCode = code
		entity.OTPExpiresAt = expiresAt
		return nil
	})
}

func (s *AccountStore) ConsumeChallenge(email, code string, now time.Time) (*na.Account, error) {
	var out *na.Account
	err := s.mutateByEmail(email, func(entity *AccountEntity) error {
		if entity.OTPCode == "" || entity.OTPCode != code || !now.Before(entity.OTPExpiresAt) {
			return na.ErrChallengeMismatch
		}
		entity.OTPCode = ""
		entity.OTPExpiresAt = time.Time{}
		entity.IsVerified = true
		out = entity.ToAccount()
		out.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AccountStore) LinkFederatedID(accountID, providerID string) error {
	key := s.accountKey(accountID)
	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var entity AccountEntity
		if err := tx.Get(key, &entity); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return na.ErrAccountNotFound
			}
			return err
		}
		entity.Key = key
		entity.FederatedID = providerID
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(key, &entity)
		return err
	})
	return err
}

// mutateByEmail resolves the account through the email index and
// applies fn inside a transaction so the read-modify-write is atomic.
func (s *AccountStore) mutateByEmail(email string, fn func(entity *AccountEntity) error) error {
	emailKey := s.emailKey(email)
	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var index EmailEntity
		if err := tx.Get(emailKey, &index); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return na.ErrAccountNotFound
			}
			return err
		}

		acctKey := s.accountKey(index.AccountID)
		var entity AccountEntity
		if err := tx.Get(acctKey, &entity); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return na.ErrAccountNotFound
			}
			return err
		}
		entity.Key = acctKey
		if err := fn(&entity); err != nil {
			return err
		}
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(acctKey, &entity)
		return err
	})
	return err
}
