// Package oauth2 implements the server side of the authorization-code
// redirect dance against external identity providers, emitting a
// FederatedProfile for the reconciler on success.
package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/novaterm/novaauth"
)

// HandleProfileFunc receives the provider-asserted profile after a
// successful code exchange.
type HandleProfileFunc func(profile novaauth.FederatedProfile, w http.ResponseWriter, r *http.Request)

// FailureFunc is called when the flow fails, with a short reason code.
type FailureFunc func(w http.ResponseWriter, r *http.Request, reason string)

const stateCookieName = "oauthstate"

func generateStateOauthCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Println("Error generating rand: ", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		MaxAge:   600,
		HttpOnly: true,
	})
	return state
}

// OauthRedirector returns the handler that starts the flow by sending
// the browser to the provider's consent page with a fresh state cookie.
func OauthRedirector(oauthConfig *oauth2.Config) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		oauthState := generateStateOauthCookie(w)
		u := oauthConfig.AuthCodeURL(oauthState)
		http.Redirect(w, r, u, http.StatusFound)
	}
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
