package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/jwt"
)

// Scopes requested for the service account token. Drive covers permission
// grants, spreadsheets covers cell writes.
var scopes = []string{
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/spreadsheets",
}

// serviceAccountKey is the subset of the credentials file the client needs
type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// loadJWTConfig reads the service account credentials file into a two-legged
// OAuth2 config
func loadJWTConfig(credentialsFile string) (*jwt.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("credentials file %s is missing client_email or private_key", credentialsFile)
	}

	conf := &jwt.Config{
		Email:      key.ClientEmail,
		PrivateKey: []byte(key.PrivateKey),
		TokenURL:   key.TokenURI,
		Scopes:     scopes,
	}
	if conf.TokenURL == "" {
		conf.TokenURL = "https://oauth2.googleapis.com/token"
	}

	return conf, nil
}

// NewAuthenticatedClient reads the service account credentials file and
// returns an http.Client whose transport injects OAuth2 tokens. The token
// source refreshes itself; the caller treats the client as an opaque
// credential capability.
func NewAuthenticatedClient(ctx context.Context, credentialsFile string) (*http.Client, error) {
	conf, err := loadJWTConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	return conf.Client(ctx), nil
}
