// Command authserver runs the standalone novaauth HTTP server: local
// signup/login with OTP email verification, Google sign-in, and a
// token-guarded API surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	na "github.com/novaterm/novaauth"
	naoauth2 "github.com/novaterm/novaauth/oauth2"
	"github.com/novaterm/novaauth/stores"
	"github.com/novaterm/novaauth/stores/gae"
)

func main() {
	if err := run(); err != nil {
		log.Fatal("server error: ", err)
	}
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	accounts, err := buildAccountStore(cfg)
	if err != nil {
		return err
	}

	// Fail at startup rather than ever minting an unsigned token.
	tokens, err := na.NewTokenIssuer(cfg.JWTSecret, cfg.AppName)
	if err != nil {
		return err
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = time.Duration(cfg.SessionTimeoutInSeconds) * time.Second

	service := &na.AuthService{
		Session:                 sessionManager,
		AppName:                 cfg.AppName,
		Accounts:                accounts,
		Tokens:                  tokens,
		Sender:                  buildOTPSender(cfg),
		ClientURL:               cfg.ClientURL,
		SessionTimeoutInSeconds: cfg.SessionTimeoutInSeconds,
	}
	service.EnsureDefaults()

	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		google := naoauth2.NewGoogleOAuth2(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL, service.HandleFederatedProfile)
		google.OnFailure = service.HandleFederatedFailure
		service.AddAuth("/google", google.Handler())
	} else {
		log.Println("google credentials not configured, skipping google sign-in")
	}

	middleware := &na.Middleware{
		VerifyToken:         tokens.VerifyFunc(),
		AuthTokenCookieName: service.AuthTokenCookieName,
	}

	router := mux.NewRouter()
	router.PathPrefix("/api/auth").Handler(
		http.StripPrefix("/api/auth", service.Handler()))
	router.Handle("/api/me", middleware.EnsureAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleMe(accounts, w, r)
	}))).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods("GET")

	handler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.TrustedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(sessionManager.LoadAndSave(router))

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Println("listening on ", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Println("shutting down on signal: ", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func buildAccountStore(cfg *Config) (na.AccountStore, error) {
	switch cfg.Storage {
	case "fs":
		return stores.NewFSAccountStore(cfg.StoragePath), nil
	case "datastore":
		if cfg.DatastoreProject == "" {
			return nil, fmt.Errorf("NOVAAUTH_DATASTORE_PROJECT is required for datastore storage")
		}
		client, err := datastore.NewClient(context.Background(), cfg.DatastoreProject)
		if err != nil {
			return nil, fmt.Errorf("failed to create datastore client: %w", err)
		}
		return gae.NewAccountStore(client, ""), nil
	}
	return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage)
}

func buildOTPSender(cfg *Config) na.OTPSender {
	if cfg.SMTPHost == "" {
		log.Println("SMTP not configured, logging verification codes to console")
		return &na.ConsoleOTPSender{}
	}
	return &na.SMTPOTPSender{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}

// handleMe returns the signed-in account's summary.
func handleMe(accounts na.AccountStore, w http.ResponseWriter, r *http.Request) {
	accountID := na.AuthenticatedAccountID(r.Context())
	acct, err := accounts.GetByID(accountID)
	if err != nil {
		na.WriteAuthError(w, na.NewAuthError(na.ErrCodeNotFound, "User not found", ""))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true, "user": acct.Summary()})
}
