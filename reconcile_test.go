package novaauth

import (
	"testing"
)

func TestResolveCreatesVerifiedAccount(t *testing.T) {
	store := newMemAccountStore()
	rc := &Reconciler{Accounts: store}

	profile := FederatedProfile{ID: "google-123", Name: "New User", Email: "Fed@Example.com"}
	acct, err := rc.Resolve(profile)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !acct.IsVerified {
		t.Error("federated account must be created verified")
	}
	if acct.HasPassword() {
		t.Error("federated account must have no password")
	}
	if acct.Email != "fed@example.com" {
		t.Errorf("email not normalized: %q", acct.Email)
	}
	if acct.FederatedID != "google-123" {
		t.Errorf("federated id not set: %q", acct.FederatedID)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	store := newMemAccountStore()
	rc := &Reconciler{Accounts: store}

	profile := FederatedProfile{ID: "google-123", Name: "User", Email: "fed@example.com"}
	first, err := rc.Resolve(profile)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := rc.Resolve(profile)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("repeated logins resolved to different accounts: %q vs %q", first.ID, second.ID)
	}
	if len(store.accounts) != 1 {
		t.Errorf("expected exactly one account, got %d", len(store.accounts))
	}
}

func TestResolveLinksExistingLocalAccount(t *testing.T) {
	store := newMemAccountStore()
	rc := &Reconciler{Accounts: store}

	hash, _ := HashPassword("password123")
	local := &Account{
		ID:           NewAccountID(),
		Name:         "Local User",
		Email:        "shared@example.com",
		PasswordHash: hash,
		IsVerified:   true,
	}
	if err := store.Create(local); err != nil {
		t.Fatalf("Create: %v", err)
	}

	acct, err := rc.Resolve(FederatedProfile{ID: "google-456", Name: "Google Name", Email: "Shared@Example.com"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if acct.ID != local.ID {
		t.Fatalf("expected link onto existing account, got a new one")
	}

	stored, _ := store.GetByID(local.ID)
	if stored.FederatedID != "google-456" {
		t.Error("federated id not linked")
	}
	if !VerifyPassword("password123", stored.PasswordHash) {
		t.Error("linking must preserve the password hash")
	}
	if !stored.IsVerified {
		t.Error("linking must preserve the verified flag")
	}
}

func TestResolveRejectsIncompleteProfile(t *testing.T) {
	rc := &Reconciler{Accounts: newMemAccountStore()}

	if _, err := rc.Resolve(FederatedProfile{Name: "No ID", Email: "x@example.com"}); err == nil {
		t.Error("expected error for profile without provider id")
	}
	if _, err := rc.Resolve(FederatedProfile{ID: "google-1", Name: "No Email"}); err == nil {
		t.Error("expected error for profile without email")
	}
}

func TestResolveReconcilesLostCreateRace(t *testing.T) {
	store := newMemAccountStore()
	rc := &Reconciler{Accounts: store}

	// Simulate losing the create race: the pre-create email lookup finds
	// nothing, then the store reports a duplicate on Create.
	winner := &Account{ID: NewAccountID(), Email: "race@example.com", IsVerified: false}
	store.accounts[winner.ID] = winner
	store.failCreate = ErrDuplicateEmail
	store.emailLookupMisses = 1

	acct, err := rc.Resolve(FederatedProfile{ID: "google-789", Name: "Racer", Email: "race@example.com"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if acct.ID != winner.ID {
		t.Error("expected reconciliation onto the account that won the race")
	}
	stored, _ := store.GetByID(winner.ID)
	if stored.FederatedID != "google-789" {
		t.Error("provider id not linked to the winning account")
	}
}
