package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is everything the server reads from the environment. A .env
// file in the working directory is loaded first when present.
type Config struct {
	Addr      string
	AppName   string
	ClientURL string

	// JWTSecret signs bearer tokens. Required.
	JWTSecret string

	// Storage selects the account backend: "fs" (default) or
	// "datastore".
	Storage          string
	StoragePath      string
	DatastoreProject string

	// Google OAuth2. When the client id or secret is missing the
	// provider is not mounted.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	// SMTP for OTP delivery. When the host is empty codes are logged
	// to the console instead.
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// TrustedOrigins is the CORS allowlist. Defaults to ClientURL.
	TrustedOrigins []string

	SessionTimeoutInSeconds int
}

// LoadConfig reads the environment, after loading .env when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Println("could not load .env file: ", err)
	}

	cfg := &Config{
		Addr:      getEnv("NOVAAUTH_ADDR", ":8080"),
		AppName:   getEnv("NOVAAUTH_APP_NAME", "NovaAuth"),
		ClientURL: getEnv("NOVAAUTH_CLIENT_URL", "http://localhost:5173"),

		JWTSecret: os.Getenv("NOVAAUTH_JWT_SECRET"),

		Storage:          getEnv("NOVAAUTH_STORAGE", "fs"),
		StoragePath:      getEnv("NOVAAUTH_STORAGE_PATH", "./data"),
		DatastoreProject: os.Getenv("NOVAAUTH_DATASTORE_PROJECT"),

		GoogleClientID:     os.Getenv("OAUTH2_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		SessionTimeoutInSeconds: getEnvInt("NOVAAUTH_SESSION_TIMEOUT", 86400),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("NOVAAUTH_JWT_SECRET is required")
	}

	if origins := os.Getenv("NOVAAUTH_TRUSTED_ORIGINS"); origins != "" {
		cfg.TrustedOrigins = splitAndTrim(origins)
	} else {
		cfg.TrustedOrigins = []string{cfg.ClientURL}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid value for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
