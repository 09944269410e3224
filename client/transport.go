package client

import "net/http"

// authTransport is an http.RoundTripper that attaches the session's
// bearer token to each request.
type authTransport struct {
	session *Session
	base    http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if token := t.session.Token(); token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return t.base.RoundTrip(req)
}

// HTTPClient returns an http.Client whose requests carry the session's
// bearer token when one is loaded.
func (s *Session) HTTPClient() *http.Client {
	return &http.Client{
		Transport: &authTransport{session: s, base: http.DefaultTransport},
	}
}
