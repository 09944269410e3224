package novaauth

import (
	"errors"
	"fmt"
	"log"
)

// FederatedProfile is what a trusted external identity provider asserts
// about a user after a successful authorization-code exchange.
type FederatedProfile struct {
	// ID is the provider-scoped stable identifier for the user.
	ID string

	// Name is the display name reported by the provider.
	Name string

	// Email is the primary email, already verified by the provider.
	Email string
}

// Reconciler maps a federated profile onto a local account, creating or
// linking as needed. Reconciliation is idempotent: repeated logins with
// the same provider id resolve to the same account.
type Reconciler struct {
	Accounts AccountStore
}

// Resolve finds or creates the account for the profile:
//
//  1. by federated id - the account has logged in with this provider
//     before;
//  2. by email - a local account exists for the same address, so the
//     provider id is linked onto it, leaving its password hash and
//     verified flag untouched;
//  3. otherwise a new account is created, verified immediately and with
//     no password, since the provider has already verified the email.
func (rc *Reconciler) Resolve(profile FederatedProfile) (*Account, error) {
	if profile.ID == "" {
		return nil, fmt.Errorf("federated profile has no provider id")
	}
	email := NormalizeEmail(profile.Email)
	if email == "" {
		return nil, fmt.Errorf("federated profile has no email")
	}

	if acct, err := rc.Accounts.GetByFederatedID(profile.ID); err == nil {
		return acct, nil
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	if acct, err := rc.Accounts.GetByEmail(email); err == nil {
		if err := rc.Accounts.LinkFederatedID(acct.ID, profile.ID); err != nil {
			return nil, err
		}
		acct.FederatedID = profile.ID
		log.Printf("linked federated identity %s to account %s", profile.ID, acct.ID)
		return acct, nil
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	acct := &Account{
		ID:          NewAccountID(),
		Name:        profile.Name,
		Email:       email,
		FederatedID: profile.ID,
		IsVerified:  true,
	}
	if err := rc.Accounts.Create(acct); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			// Lost a race with a concurrent signup for the same email;
			// link onto the account that won.
			existing, lookupErr := rc.Accounts.GetByEmail(email)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if linkErr := rc.Accounts.LinkFederatedID(existing.ID, profile.ID); linkErr != nil {
				return nil, linkErr
			}
			existing.FederatedID = profile.ID
			return existing, nil
		}
		return nil, err
	}
	log.Printf("created federated account %s for %s", acct.ID, email)
	return acct, nil
}
