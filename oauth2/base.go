package oauth2

import (
	"cmp"
	"net/http"
	"os"

	"golang.org/x/oauth2"
)

// BaseOAuth2 carries the pieces every provider needs: the exchange
// config, the sub-mux its handlers are registered on, and the hooks the
// host service supplies for success and failure.
type BaseOAuth2 struct {
	mux    *http.ServeMux
	config *oauth2.Config

	// HandleProfile is invoked with the provider's profile after a
	// successful exchange.  Required.
	HandleProfile HandleProfileFunc

	// OnFailure is invoked with a reason code when any step of the
	// flow fails.  If nil the handler writes a plain 401.
	OnFailure FailureFunc
}

func (b *BaseOAuth2) init(clientID, clientSecret, callbackURL string, idEnvVar, secretEnvVar, callbackEnvVar string, endpoint oauth2.Endpoint, scopes []string) {
	clientID = cmp.Or(clientID, os.Getenv(idEnvVar))
	clientSecret = cmp.Or(clientSecret, os.Getenv(secretEnvVar))
	callbackURL = cmp.Or(callbackURL, os.Getenv(callbackEnvVar))
	b.config = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
	b.mux = http.NewServeMux()
	b.mux.HandleFunc("/", OauthRedirector(b.config))
}

// Handler returns the http.Handler to mount under the provider's route
// prefix, eg service.AddAuth("/google", google.Handler()).
func (b *BaseOAuth2) Handler() http.Handler {
	return b.mux
}

func (b *BaseOAuth2) fail(w http.ResponseWriter, r *http.Request, reason string) {
	if b.OnFailure != nil {
		b.OnFailure(w, r, reason)
		return
	}
	http.Error(w, "Authentication failed", http.StatusUnauthorized)
}
