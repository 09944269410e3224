package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	na "github.com/novaterm/novaauth"
)

// State describes where the session is in its lifecycle. Guards must
// not make access decisions until the state leaves Idle/Loading, or a
// stored session would be bounced to the login page on every reload.
type State int

const (
	// Idle means Load has not been called yet.
	Idle State = iota
	// Loading means restoration from the credential store is underway.
	Loading
	// Authenticated means a complete credential is loaded.
	Authenticated
	// Anonymous means loading finished and no credential was found.
	Anonymous
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrSessionLoading is returned by the guards while restoration has
// not completed. Callers should wait and re-check rather than treat it
// as a denial.
var ErrSessionLoading = errors.New("session still loading")

// ErrNotAuthenticated is returned by RequireAuth when the session is
// anonymous.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrAlreadyAuthenticated is returned by RequireAnon when a session is
// active.
var ErrAlreadyAuthenticated = errors.New("already authenticated")

// Session mirrors the signed-in account on the client. It restores
// itself from a CredentialStore, captures one-shot redirect handoffs
// from federated login, and exposes guards for route-level checks.
type Session struct {
	mu    sync.RWMutex
	state State
	cred  *Credential
	store CredentialStore
	api   *API
}

// NewSession creates a session backed by the given store, talking to
// the auth API at serverURL. The session starts Idle; call Load.
func NewSession(serverURL string, store CredentialStore) *Session {
	return &Session{
		state: Idle,
		store: store,
		api:   NewAPI(serverURL),
	}
}

// API exposes the underlying API client, eg to customize its HTTP
// client.
func (s *Session) API() *API { return s.api }

// Load restores the session from the credential store. A credential
// missing either its token or its account snapshot counts as absent
// and leaves the session Anonymous.
func (s *Session) Load() error {
	s.mu.Lock()
	s.state = Loading
	s.mu.Unlock()

	cred, err := s.store.GetCredential()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = Anonymous
		s.cred = nil
		return err
	}
	if !cred.Complete() {
		s.state = Anonymous
		s.cred = nil
		return nil
	}
	s.cred = cred
	s.state = Authenticated
	return nil
}

// HandleAuthRedirect inspects rawURL for the token and user query
// parameters a federated login redirect carries. When both are present
// it persists them, marks the session authenticated, and returns the
// URL with the two parameters scrubbed so the credential never
// lingers in history. When absent it returns rawURL unchanged.
func (s *Session) HandleAuthRedirect(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, err
	}
	q := u.Query()
	token := q.Get("token")
	userJSON := q.Get("user")
	if token == "" || userJSON == "" {
		return rawURL, nil
	}

	var summary na.AccountSummary
	if err := json.Unmarshal([]byte(userJSON), &summary); err != nil {
		return rawURL, fmt.Errorf("invalid user payload in redirect: %w", err)
	}

	if err := s.establish(token, summary); err != nil {
		return rawURL, err
	}

	q.Del("token")
	q.Del("user")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Signup registers a new local account. The session stays anonymous;
// the caller collects the emailed OTP and calls VerifyOtp.
func (s *Session) Signup(name, email, password string) error {
	return s.api.Signup(name, email, password)
}

// ResendOTP requests a fresh verification code for a pending signup.
func (s *Session) ResendOTP(email string) error {
	return s.api.ResendOTP(email)
}

// VerifyOtp submits the emailed code. On success the returned token
// and account are persisted and the session becomes authenticated.
func (s *Session) VerifyOtp(email, otp string) error {
	token, summary, err := s.api.VerifyOtp(email, otp)
	if err != nil {
		return err
	}
	return s.establish(token, summary)
}

// Login signs in with email and password. On success the session
// becomes authenticated.
func (s *Session) Login(email, password string) error {
	token, summary, err := s.api.Login(email, password)
	if err != nil {
		return err
	}
	return s.establish(token, summary)
}

// Logout clears the persisted credential and marks the session
// anonymous.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	s.state = Anonymous
	if err := s.store.RemoveCredential(); err != nil {
		return err
	}
	return s.store.Save()
}

func (s *Session) establish(token string, summary na.AccountSummary) error {
	cred := &Credential{Token: token, Account: summary, SavedAt: time.Now()}
	if err := s.store.SetCredential(cred); err != nil {
		return err
	}
	if err := s.store.Save(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cred = cred
	s.state = Authenticated
	s.mu.Unlock()
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Current returns the signed-in account summary, or nil when the
// session is not authenticated.
func (s *Session) Current() *na.AccountSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated {
		return nil
	}
	summary := s.cred.Account
	return &summary
}

// Token returns the bearer token, or empty when not authenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated {
		return ""
	}
	return s.cred.Token
}

// RequireAuth is the guard for protected surfaces: nil when a session
// is active, ErrSessionLoading before the load completes, and
// ErrNotAuthenticated otherwise.
func (s *Session) RequireAuth() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case Idle, Loading:
		return ErrSessionLoading
	case Authenticated:
		return nil
	}
	return ErrNotAuthenticated
}

// RequireAnon is the guard for login and signup surfaces: nil when no
// session is active.
func (s *Session) RequireAnon() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case Idle, Loading:
		return ErrSessionLoading
	case Authenticated:
		return ErrAlreadyAuthenticated
	}
	return nil
}

