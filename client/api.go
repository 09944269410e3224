package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	na "github.com/novaterm/novaauth"
)

// API talks to the novaauth JSON endpoints.
type API struct {
	serverURL  string
	httpClient *http.Client

	// BasePath is where the auth handlers are mounted on the server.
	BasePath string
}

// authResponse is the server's envelope for every auth endpoint.
type authResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message,omitempty"`
	Code    string             `json:"code,omitempty"`
	User    *na.AccountSummary `json:"user,omitempty"`
	Token   string             `json:"token,omitempty"`
}

// APIError is a non-2xx response from the server, carrying the
// machine-readable code alongside the human message.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed: HTTP %d", e.StatusCode)
}

// NewAPI creates an API client for the server at serverURL.
func NewAPI(serverURL string) *API {
	if u, err := url.Parse(serverURL); err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	return &API{
		serverURL:  serverURL,
		httpClient: &http.Client{},
		BasePath:   "/api/auth",
	}
}

// SetHTTPClient replaces the underlying HTTP client, eg for timeouts
// or TLS config.
func (a *API) SetHTTPClient(c *http.Client) {
	if c != nil {
		a.httpClient = c
	}
}

// Signup registers a new local account and triggers the OTP email.
func (a *API) Signup(name, email, password string) error {
	_, _, err := a.post("/signup", map[string]any{
		"name":     name,
		"email":    email,
		"password": password,
	})
	return err
}

// ResendOTP asks for a fresh code for a pending signup.
func (a *API) ResendOTP(email string) error {
	_, _, err := a.post("/signup", map[string]any{
		"email":  email,
		"resend": true,
	})
	return err
}

// VerifyOtp submits the emailed code and returns the issued token and
// account on success.
func (a *API) VerifyOtp(email, otp string) (string, na.AccountSummary, error) {
	return a.post("/verify-otp", map[string]any{
		"email": email,
		"otp":   otp,
	})
}

// Login signs in with email and password.
func (a *API) Login(email, password string) (string, na.AccountSummary, error) {
	return a.post("/login", map[string]any{
		"email":    email,
		"password": password,
	})
}

func (a *API) post(path string, body map[string]any) (string, na.AccountSummary, error) {
	var summary na.AccountSummary

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", summary, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := a.httpClient.Post(a.serverURL+a.BasePath+path, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		return "", summary, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", summary, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed authResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", summary, fmt.Errorf("invalid response from server: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !parsed.Success {
		return "", summary, &APIError{
			StatusCode: resp.StatusCode,
			Code:       parsed.Code,
			Message:    parsed.Message,
		}
	}

	if parsed.User != nil {
		summary = *parsed.User
	}
	return parsed.Token, summary, nil
}
