package novaauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestService(t *testing.T) (*AuthService, *memAccountStore) {
	t.Helper()
	store := newMemAccountStore()
	tokens, err := NewTokenIssuer("test-secret", "test")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	service := &AuthService{
		Accounts:  store,
		Tokens:    tokens,
		Sender:    newCaptureSender(),
		ClientURL: "http://client.example.com",
	}
	service.EnsureDefaults()
	return service, store
}

func TestFederatedHandoffRedirect(t *testing.T) {
	service, store := newTestService(t)

	req := httptest.NewRequest("GET", "/google/callback/", nil)
	w := httptest.NewRecorder()
	service.HandleFederatedProfile(FederatedProfile{
		ID: "google-1", Name: "Fed User", Email: "fed@example.com",
	}, w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect location: %v", err)
	}
	if loc.Host != "client.example.com" || loc.Path != "/overview" {
		t.Errorf("redirected to %s", loc)
	}

	token := loc.Query().Get("token")
	if token == "" {
		t.Fatal("redirect carries no token")
	}
	acct, err := store.GetByEmail("fed@example.com")
	if err != nil {
		t.Fatalf("account not created: %v", err)
	}
	if id, err := service.Tokens.Verify(token); err != nil || id != acct.ID {
		t.Errorf("token not bound to account: %v (%q)", err, id)
	}

	var summary AccountSummary
	if err := json.Unmarshal([]byte(loc.Query().Get("user")), &summary); err != nil {
		t.Fatalf("user parameter is not the summary json: %v", err)
	}
	if summary.ID != acct.ID || summary.Email != "fed@example.com" {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestFederatedFailureRedirect(t *testing.T) {
	service, store := newTestService(t)

	t.Run("provider failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.HandleFederatedFailure(w, httptest.NewRequest("GET", "/google/callback/", nil), "google_failed")
		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", w.Code)
		}
		if got := w.Header().Get("Location"); got != "http://client.example.com/login?error=google_failed" {
			t.Errorf("location = %q", got)
		}
	})

	t.Run("reconciliation failure", func(t *testing.T) {
		// A profile without an email cannot be reconciled.
		w := httptest.NewRecorder()
		service.HandleFederatedProfile(FederatedProfile{ID: "google-2", Name: "No Email"}, w,
			httptest.NewRequest("GET", "/google/callback/", nil))
		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", w.Code)
		}
		if got := w.Header().Get("Location"); !strings.Contains(got, "error=no_user_found") {
			t.Errorf("location = %q", got)
		}
		if len(store.accounts) != 0 {
			t.Error("failed reconciliation must not create accounts")
		}
	})
}

func TestServiceRoutes(t *testing.T) {
	service, _ := newTestService(t)
	handler := service.Handler()

	t.Run("signup route wired", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/signup", strings.NewReader(
			`{"name":"T","email":"route@example.com","password":"password123"}`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Errorf("status = %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("logout clears and reports", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/logout", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d", w.Code)
		}
		cleared := false
		for _, c := range w.Result().Cookies() {
			if c.Name == service.AuthTokenCookieName && c.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Error("auth cookie not cleared on logout")
		}
	})

	t.Run("provider mount redirects bare prefix", func(t *testing.T) {
		service.AddAuth("/fake", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		req := httptest.NewRequest("GET", "/fake", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusPermanentRedirect {
			t.Fatalf("bare prefix status = %d, want 308", w.Code)
		}

		req = httptest.NewRequest("GET", "/fake/", nil)
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusTeapot {
			t.Errorf("subtree status = %d, want the provider handler", w.Code)
		}
	})
}
