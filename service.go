package novaauth

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
)

// AuthService mounts the local auth flow and any federated providers on
// a single handler, and owns the server-side bookkeeping - session,
// cookies and the redirect handoff back to the single-page client.
type AuthService struct {
	mux *http.ServeMux

	// Session is optional; when set, the logged-in account id is kept in
	// the cookie session alongside the stateless bearer token.
	Session *scs.SessionManager

	// AppName prefixes derived defaults.
	AppName string

	Accounts   AccountStore
	Tokens     *TokenIssuer
	Challenges *ChallengeEngine
	Sender     OTPSender
	Local      *LocalAuth
	Reconciler *Reconciler

	// ClientURL is the single-page app origin that federated logins are
	// redirected back to.
	ClientURL string

	// AuthTokenCookieName defaults to "<AppName>AuthToken".
	AuthTokenCookieName string

	// CookieDomains lists extra domains the auth cookies are set on.
	CookieDomains []string

	// SessionTimeoutInSeconds defaults to 1 day.
	SessionTimeoutInSeconds int
}

// EnsureDefaults fills in derived configuration and builds the flow
// objects that were not passed in.
func (a *AuthService) EnsureDefaults() *AuthService {
	if a.AppName == "" {
		a.AppName = "NovaAuth"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.AuthTokenCookieName == "" {
		a.AuthTokenCookieName = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.Sender == nil {
		a.Sender = &ConsoleOTPSender{}
	}
	if a.Challenges == nil {
		a.Challenges = &ChallengeEngine{Accounts: a.Accounts}
	}
	if a.Reconciler == nil {
		a.Reconciler = &Reconciler{Accounts: a.Accounts}
	}
	if a.Local == nil {
		a.Local = &LocalAuth{
			Accounts:      a.Accounts,
			Challenges:    a.Challenges,
			Tokens:        a.Tokens,
			Sender:        a.Sender,
			OnAuthSuccess: a.setLoggedInAccount,
		}
	}
	return a
}

// Handler returns the composed auth handler. Routes are relative to
// wherever the host mounts it (e.g. /api/auth).
func (a *AuthService) Handler() http.Handler {
	return a.setupRoutes().mux
}

func (a *AuthService) setupRoutes() *AuthService {
	a.EnsureDefaults()
	if a.mux == nil {
		a.mux = http.NewServeMux()
		a.mux.HandleFunc("POST /signup", a.Local.HandleSignup)
		a.mux.HandleFunc("POST /verify-otp", a.Local.HandleVerifyOtp)
		a.mux.HandleFunc("POST /login", a.Local.HandleLogin)
		a.mux.HandleFunc("/logout", a.onLogout)
	}
	return a
}

// AddAuth mounts a federated provider handler under the given prefix,
// e.g. AddAuth("/google", googleFlow.Handler()).
func (a *AuthService) AddAuth(prefix string, handler http.Handler) *AuthService {
	a.setupRoutes()
	prefix = strings.TrimSuffix(prefix, "/")
	log.Println("Adding auth provider for prefix: ", prefix)

	// Subtree registration so the provider also receives /callback etc.
	a.mux.Handle(prefix+"/", http.StripPrefix(prefix, handler))

	// Redirect the bare prefix to the trailing-slash form, preserving any
	// parent prefixes that were stripped upstream. 308 keeps the method.
	a.mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		origPath := r.RequestURI
		if idx := strings.Index(origPath, "?"); idx != -1 {
			origPath = origPath[:idx]
		}
		target := origPath + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
	})

	return a
}

// HandleFederatedProfile is called by a provider's callback handler after
// a successful code exchange. It reconciles the external profile to an
// account, mints the bearer token, and hands both back to the client via
// a one-shot redirect with the token and the url-encoded account summary
// in the query string. The client parses them once and scrubs the URL.
func (a *AuthService) HandleFederatedProfile(profile FederatedProfile, w http.ResponseWriter, r *http.Request) {
	a.EnsureDefaults()

	acct, err := a.Reconciler.Resolve(profile)
	if err != nil {
		log.Println("error reconciling federated profile: ", err)
		a.redirectWithError(w, r, "no_user_found")
		return
	}

	token, err := a.Tokens.Issue(acct.ID)
	if err != nil {
		log.Println("error issuing token for federated login: ", err)
		a.redirectWithError(w, r, "google_failed")
		return
	}

	a.setLoggedInAccount(acct, token, w, r)

	summary, err := json.Marshal(acct.Summary())
	if err != nil {
		log.Println("error encoding account summary: ", err)
		a.redirectWithError(w, r, "google_failed")
		return
	}

	target := fmt.Sprintf("%s/overview?token=%s&user=%s",
		strings.TrimSuffix(a.ClientURL, "/"),
		url.QueryEscape(token),
		url.QueryEscape(string(summary)))
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleFederatedFailure redirects a failed provider flow back to the
// client login view with a reason code.
func (a *AuthService) HandleFederatedFailure(w http.ResponseWriter, r *http.Request, reason string) {
	a.redirectWithError(w, r, reason)
}

func (a *AuthService) redirectWithError(w http.ResponseWriter, r *http.Request, reason string) {
	target := fmt.Sprintf("%s/login?error=%s",
		strings.TrimSuffix(a.ClientURL, "/"), url.QueryEscape(reason))
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *AuthService) onLogout(w http.ResponseWriter, r *http.Request) {
	a.setLoggedInAccount(nil, "", w, r)
	toURL := r.URL.Query().Get("to")
	if toURL == "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
		return
	}
	http.Redirect(w, r, toURL, http.StatusFound)
}

// setLoggedInAccount sets (or with a nil account, clears) the session
// entry and auth cookies on every configured cookie domain.
func (a *AuthService) setLoggedInAccount(acct *Account, token string, w http.ResponseWriter, r *http.Request) {
	a.EnsureDefaults()
	domains := a.CookieDomains
	hasDefault := false
	for _, d := range domains {
		if d == "" {
			hasDefault = true
		}
	}
	if !hasDefault {
		domains = append(domains, "")
	}

	for _, cookieDomain := range domains {
		if acct != nil {
			if a.Session != nil {
				a.Session.Put(r.Context(), "loggedInAccountId", acct.ID)
			}
			http.SetCookie(w, &http.Cookie{
				Name:    a.AuthTokenCookieName,
				Value:   token,
				Domain:  cookieDomain,
				Path:    "/",
				Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)),
				MaxAge:  a.SessionTimeoutInSeconds,
			})
		} else {
			if a.Session != nil {
				if err := a.Session.Clear(r.Context()); err != nil {
					log.Println("error clearing session: ", err)
				}
			}
			http.SetCookie(w, &http.Cookie{
				Name:    a.AuthTokenCookieName,
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
		}
	}
}
