package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/novaterm/novaauth"
)

// GoogleOAuth2 runs the Google sign-in flow.  Mount its Handler under
// a prefix and point the Google console's redirect URI at
// <prefix>/callback/.
type GoogleOAuth2 struct {
	BaseOAuth2
}

// NewGoogleOAuth2 creates the provider.  Empty credentials fall back
// to the OAUTH2_GOOGLE_CLIENT_ID, OAUTH2_GOOGLE_CLIENT_SECRET and
// OAUTH2_GOOGLE_CALLBACK_URL environment variables.
func NewGoogleOAuth2(clientID string, clientSecret string, callbackURL string, handleProfile HandleProfileFunc) *GoogleOAuth2 {
	out := &GoogleOAuth2{}
	out.HandleProfile = handleProfile
	out.init(clientID, clientSecret, callbackURL,
		"OAUTH2_GOOGLE_CLIENT_ID", "OAUTH2_GOOGLE_CLIENT_SECRET", "OAUTH2_GOOGLE_CALLBACK_URL",
		google.Endpoint,
		[]string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		})
	out.mux.HandleFunc("/callback/", out.handleCallback)
	return out
}

func (g *GoogleOAuth2) handleCallback(w http.ResponseWriter, r *http.Request) {
	oauthState, _ := r.Cookie(stateCookieName)
	if oauthState == nil {
		log.Println("oauth state cookie is missing")
		g.fail(w, r, "google_failed")
		return
	}
	if r.FormValue("state") != oauthState.Value {
		clearStateCookie(w)
		log.Println("oauth state mismatch: ", r.FormValue("state"))
		g.fail(w, r, "google_failed")
		return
	}
	clearStateCookie(w)

	code := r.FormValue("code")
	token, err := g.config.Exchange(r.Context(), code)
	if err != nil {
		log.Println("code exchange failed: ", err)
		g.fail(w, r, "google_failed")
		return
	}

	userInfo, err := getUserDataFromGoogle(token)
	if err != nil {
		log.Println("userinfo fetch failed: ", err)
		g.fail(w, r, "google_failed")
		return
	}

	profile := novaauth.FederatedProfile{
		ID:    asString(userInfo["id"]),
		Name:  asString(userInfo["name"]),
		Email: asString(userInfo["email"]),
	}
	g.HandleProfile(profile, w, r)
}

func getUserDataFromGoogle(token *oauth2.Token) (map[string]any, error) {
	const oauthGoogleUrlAPI = "https://www.googleapis.com/oauth2/v2/userinfo?access_token="
	response, err := http.Get(oauthGoogleUrlAPI + token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer response.Body.Close()
	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed read response: %w", err)
	}
	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("failed parsing user info: %w", err)
	}
	return userInfo, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
