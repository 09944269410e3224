package novaauth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// AuthSuccessFunc is called after a flow has authenticated an account and
// minted a token, before the JSON response is written. Hosts use it to
// set session state or cookies alongside the bearer token.
type AuthSuccessFunc func(acct *Account, token string, w http.ResponseWriter, r *http.Request)

// LocalAuth handles email/password signup, OTP verification and login.
type LocalAuth struct {
	Accounts   AccountStore
	Challenges *ChallengeEngine
	Tokens     *TokenIssuer
	Sender     OTPSender

	// OnAuthSuccess is optional.
	OnAuthSuccess AuthSuccessFunc
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Resend   bool   `json:"resend"`
}

type verifyOtpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignup processes registration. With resend=true and an existing
// unverified account it only re-issues the OTP challenge; otherwise it
// creates a fresh unverified account with a pending challenge and
// dispatches the code by email. The token is never returned here - only
// after verification.
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAuthError(w, NewAuthError(ErrCodeValidation, "Invalid request body", ""))
		return
	}
	req.Email = NormalizeEmail(req.Email)

	if req.Resend && req.Email != "" {
		if _, err := a.Accounts.GetByEmail(req.Email); err == nil {
			a.handleResend(w, req.Email)
			return
		}
		// No account for this email: fall through and treat the request
		// as a fresh signup.
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		WriteAuthError(w, NewAuthError(ErrCodeValidation, "Name, email, and password are required", ""))
		return
	}
	if !emailRegex.MatchString(req.Email) {
		WriteAuthError(w, NewAuthError(ErrCodeValidation, "Invalid email format", "email"))
		return
	}
	if len(req.Password) < MinPasswordLength {
		WriteAuthError(w, NewAuthError(ErrCodeValidation, "Password must be at least 6 characters", "password"))
		return
	}

	if _, err := a.Accounts.GetByEmail(req.Email); err == nil {
		WriteAuthError(w, NewAuthError(ErrCodeConflict, "User already exists", "email"))
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		log.Println("error hashing password: ", err)
		WriteAuthError(w, NewAuthError(ErrCodeDependency, "Internal server error", ""))
		return
	}

	code, expiresAt, err := a.Challenges.NewChallenge()
	if err != nil {
		log.Println("error generating otp: ", err)
		WriteAuthError(w, NewAuthError(ErrCodeDependency, "Internal server error", ""))
		return
	}

	acct := &Account{
		ID:           NewAccountID(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		IsVerified:   false,
		OTPCode:      code,
		OTPExpiresAt: expiresAt,
	}
	if err := a.Accounts.Create(acct); err != nil {
		// The store's uniqueness constraint is the authority here: a
		// concurrent signup for the same email surfaces as a duplicate,
		// not as a 500.
		if errors.Is(err, ErrDuplicateEmail) {
			WriteAuthError(w, NewAuthError(ErrCodeConflict, "User already exists", "email"))
			return
		}
		log.Println("error creating account: ", err)
		WriteAuthError(w, NewAuthError(ErrCodeDependency, "Internal server error", ""))
		return
	}

	if err := a.Sender.SendOTP(req.Email, code); err != nil {
		// The account mutation is already committed; surface the dispatch
		// failure distinctly so the caller can retry via resend.
		log.Println("error sending verification email: ", err)
		WriteAuthError(w, NewAuthError(ErrCodeDependency,
			"Account created but the verification email could not be sent. Request a new code to continue.", ""))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "OTP sent successfully",
	})
}

// handleResend re-issues the challenge for an existing unverified account
// and re-sends the email. Name and password from the request are ignored.
func (a *LocalAuth) handleResend(w http.ResponseWriter, email string) {
	code, err := a.Challenges.Reissue(email)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			WriteAuthError(w, authErr)
			return
		}
		if errors.Is(err, ErrAccountNotFound) {
			WriteAuthError(w, NewAuthError(ErrCodeNotFound, "User not found", "email"))
			return
		}
		log.Println("error reissuing otp: ", err)
		WriteAuthError(w, NewAuthError(ErrCodeDependency, "Internal server error", ""))
		return
	}

	if err := a.Sender.SendOTP(email, code); err != nil {
		log.Println("error resending verification email: ", err)
		WriteAuthError(w, NewAuthError(ErrCodeDependency,
			"The verification email could not be sent. Request a new code to continue.", ""))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "OTP resent successfully",
	})
}

// HandleVerifyOtp consumes the pending challenge and, on success, issues
// the bearer token.
func (a *LocalAuth) HandleVerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req verifyOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAuthError(w, NewAuthError(ErrCodeValidation, "Invalid request body", ""))
		return
	}
	if req.Email == "" || req.OTP == "" {
		WriteAuthError(w, NewAuthError(ErrCodeValidation, "Email and OTP are required", ""))
		return
	}

	acct, err := a.Challenges.Validate(req.Email, req.OTP)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			WriteAuthError(w, NewAuthError(ErrCodeNotFound, "User not found", "email"))
			return
		}
		if errors.Is(err, ErrChallengeMismatch) {
			WriteAuthError(w, NewAuthError(ErrCodeAuthentication, "Invalid or expired OTP", "otp"))
			return
		}
		log.Println("error validating otp: ", err)
		WriteAuthError(w, NewAuthError(ErrCodeDependency, "Internal server error", ""))
		return
	}

	a.respondAuthenticated(w, r, acct)
}

// HandleLogin authenticates email/password credentials. Unknown emails,
// passwordless accounts and wrong passwords all fail with the same
// generic message; a correct password on an unverified account gets the
// distinct verify-your-email signal.
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAuthError(w, NewAuthError(ErrCodeValidation, "Invalid request body", ""))
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteAuthError(w, NewAuthError(ErrCodeValidation, "Email and password are required", ""))
		return
	}

	acct, err := a.Accounts.GetByEmail(NormalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			log.Println("error loading account: ", err)
		}
		WriteAuthError(w, NewAuthError(ErrCodeAuthentication, "Invalid credentials", ""))
		return
	}

	if !VerifyPassword(req.Password, acct.PasswordHash) {
		WriteAuthError(w, NewAuthError(ErrCodeAuthentication, "Invalid credentials", ""))
		return
	}

	if !acct.IsVerified {
		WriteAuthError(w, NewAuthError(ErrCodeUnverified, "Please verify your email first", "email"))
		return
	}

	a.respondAuthenticated(w, r, acct)
}

func (a *LocalAuth) respondAuthenticated(w http.ResponseWriter, r *http.Request, acct *Account) {
	token, err := a.Tokens.Issue(acct.ID)
	if err != nil {
		log.Println("error issuing token: ", err)
		WriteAuthError(w, NewAuthError(ErrCodeDependency, "Internal server error", ""))
		return
	}

	if a.OnAuthSuccess != nil {
		a.OnAuthSuccess(acct, token, w, r)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    acct.Summary(),
		"token":   token,
	})
}
