package stores

import (
	"errors"
	"sync"
	"testing"
	"time"

	na "github.com/novaterm/novaauth"
)

func newTestStore(t *testing.T) *FSAccountStore {
	t.Helper()
	return NewFSAccountStore(t.TempDir())
}

func testAccount(email string) *na.Account {
	return &na.Account{
		ID:    na.NewAccountID(),
		Name:  "Test User",
		Email: na.NormalizeEmail(email),
	}
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	acct := testAccount("test@example.com")
	acct.PasswordHash = "digest"

	if err := store.Create(acct); err != nil {
		t.Fatalf("Create: %v", err)
	}

	byID, err := store.GetByID(acct.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.Email != "test@example.com" || byID.PasswordHash != "digest" {
		t.Errorf("roundtrip mismatch: %+v", byID)
	}

	byEmail, err := store.GetByEmail("TEST@Example.com")
	if err != nil {
		t.Fatalf("GetByEmail should be case-insensitive: %v", err)
	}
	if byEmail.ID != acct.ID {
		t.Errorf("GetByEmail resolved wrong account")
	}

	if _, err := store.GetByID("missing"); !errors.Is(err, na.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	if err := store.Create(testAccount("dup@example.com")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := store.Create(testAccount("DUP@example.com"))
	if !errors.Is(err, na.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestCreateConcurrentSingleWinner(t *testing.T) {
	store := newTestStore(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Create(testAccount("race@example.com"))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !errors.Is(err, na.ErrDuplicateEmail) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly one winner, got %d", winners)
	}
}

func TestChallengeRoundtrip(t *testing.T) {
	store := newTestStore(t)
	acct := testAccount("otp@example.com")
	if err := store.Create(acct); err != nil {
		t.Fatalf("Create: %v", err)
	}

	expiry := time.Now().Add(15 * time.Minute)
	if err := store.SetChallenge("otp@example.com", "123456", expiry); err != nil {
		t.Fatalf("SetChallenge: %v", err)
	}

	if _, err := store.ConsumeChallenge("otp@example.com", "654321", time.Now()); !errors.Is(err, na.ErrChallengeMismatch) {
		t.Errorf("wrong code: expected ErrChallengeMismatch, got %v", err)
	}
	if _, err := store.ConsumeChallenge("otp@example.com", "123456", expiry.Add(time.Second)); !errors.Is(err, na.ErrChallengeMismatch) {
		t.Errorf("late consume: expected ErrChallengeMismatch, got %v", err)
	}
	if _, err := store.ConsumeChallenge("missing@example.com", "123456", time.Now()); !errors.Is(err, na.ErrAccountNotFound) {
		t.Errorf("unknown email: expected ErrAccountNotFound, got %v", err)
	}

	verified, err := store.ConsumeChallenge("otp@example.com", "123456", time.Now())
	if err != nil {
		t.Fatalf("ConsumeChallenge: %v", err)
	}
	if !verified.IsVerified || verified.OTPCode != "" {
		t.Errorf("consume did not verify and clear: %+v", verified)
	}

	// One-shot: the same code cannot win twice.
	if _, err := store.ConsumeChallenge("otp@example.com", "123456", time.Now()); !errors.Is(err, na.ErrChallengeMismatch) {
		t.Errorf("replay: expected ErrChallengeMismatch, got %v", err)
	}
}

func TestConsumeChallengeSingleWinner(t *testing.T) {
	store := newTestStore(t)
	acct := testAccount("single@example.com")
	if err := store.Create(acct); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.SetChallenge("single@example.com", "123456", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("SetChallenge: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.ConsumeChallenge("single@example.com", "123456", time.Now())
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly one winning verification, got %d", winners)
	}
}

func TestFederatedIndex(t *testing.T) {
	store := newTestStore(t)
	acct := testAccount("fed@example.com")
	if err := store.Create(acct); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := store.GetByFederatedID("google-1"); !errors.Is(err, na.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound before link, got %v", err)
	}

	if err := store.LinkFederatedID(acct.ID, "google-1"); err != nil {
		t.Fatalf("LinkFederatedID: %v", err)
	}

	got, err := store.GetByFederatedID("google-1")
	if err != nil {
		t.Fatalf("GetByFederatedID: %v", err)
	}
	if got.ID != acct.ID {
		t.Errorf("resolved wrong account")
	}

	// Created with a federated id already set, the index is written too.
	fed := testAccount("born-federated@example.com")
	fed.FederatedID = "google-2"
	if err := store.Create(fed); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got, err := store.GetByFederatedID("google-2"); err != nil || got.ID != fed.ID {
		t.Errorf("federated index missing for created account: %v", err)
	}
}

func TestSavePersistsChanges(t *testing.T) {
	store := newTestStore(t)
	acct := testAccount("save@example.com")
	if err := store.Create(acct); err != nil {
		t.Fatalf("Create: %v", err)
	}

	acct.Name = "Renamed"
	if err := store.Save(acct); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := store.GetByID(acct.ID)
	if got.Name != "Renamed" {
		t.Errorf("Save did not persist: %+v", got)
	}
}
