// Package novaauth implements email/password authentication with
// one-time-passcode email verification, plus federated login via an
// OAuth2 identity provider, backed by a pluggable account store and
// exposed as a JSON API for a single-page client.
//
// # Architecture
//
// Account: the single persisted entity, keyed by email. It owns the
// password hash, the verification state, the outstanding OTP challenge,
// and an optional link to a federated identity.
//
// Challenge: a 6-digit one-time passcode attached to an unverified
// account. A challenge is pending until it is consumed by a successful
// verification, and expires 15 minutes after issue.
//
// Token: a stateless signed bearer credential binding the account id,
// valid for 30 days. There is no revocation; expiry is the only
// invalidation mechanism.
//
// # Basic Usage
//
// Pick an account store and build the service:
//
//	import (
//	    "github.com/novaterm/novaauth"
//	    "github.com/novaterm/novaauth/stores"
//	)
//
//	accounts := stores.NewFSAccountStore("/path/to/storage")
//	tokens, err := novaauth.NewTokenIssuer(secretKey, "myapp")
//	if err != nil {
//	    log.Fatal(err) // missing signing key is a startup fault
//	}
//
//	service := &novaauth.AuthService{
//	    Accounts:  accounts,
//	    Tokens:    tokens,
//	    Sender:    &novaauth.ConsoleOTPSender{},
//	    ClientURL: "http://localhost:5173",
//	}
//	http.Handle("/api/auth/", http.StripPrefix("/api/auth", service.Handler()))
//
// Mount the Google flow:
//
//	google := oauth2.NewGoogleOAuth2(clientID, clientSecret, callbackURL,
//	    service.HandleFederatedProfile)
//	google.OnFailure = service.HandleFederatedFailure
//	service.AddAuth("/google", google.Handler())
//
// Guard protected routes:
//
//	mw := &novaauth.Middleware{VerifyToken: tokens.VerifyFunc()}
//	http.Handle("/api/me", mw.EnsureAccount(meHandler))
//
// The client-side counterpart lives in the client package: it persists
// the {token, account} pair, restores it across restarts, and handles
// the one-shot redirect handoff after a federated login.
package novaauth
