package sources

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials describes an OAuth2 client_credentials exchange.
// Basic is a pre-encoded base64(id:secret) credential and takes precedence
// over ClientID/ClientSecret. UseBasic sends the credentials in an
// Authorization header instead of the form body.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Basic        string
	UseBasic     bool
}

// Configured reports whether enough credentials are present to ask for a token.
func (cc ClientCredentials) Configured() bool {
	return cc.TokenURL != "" && (cc.Basic != "" || (cc.ClientID != "" && cc.ClientSecret != ""))
}

// Config builds the clientcredentials config for the exchange.
func (cc ClientCredentials) Config() (*clientcredentials.Config, error) {
	cfg := &clientcredentials.Config{
		ClientID:     cc.ClientID,
		ClientSecret: cc.ClientSecret,
		TokenURL:     cc.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if cc.Basic != "" {
		id, secret, err := decodeBasic(cc.Basic)
		if err != nil {
			return nil, err
		}
		cfg.ClientID, cfg.ClientSecret = id, secret
		cfg.AuthStyle = oauth2.AuthStyleInHeader
	} else if cc.UseBasic {
		cfg.AuthStyle = oauth2.AuthStyleInHeader
	}
	return cfg, nil
}

// decodeBasic splits a base64(id:secret) credential, with or without the
// "Basic " scheme prefix.
func decodeBasic(basic string) (string, string, error) {
	raw := strings.TrimSpace(basic)
	if len(raw) > 6 && strings.EqualFold(raw[:6], "basic ") {
		raw = strings.TrimSpace(raw[6:])
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", "", fmt.Errorf("decode basic credential: %w", err)
	}
	id, secret, ok := strings.Cut(string(decoded), ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("basic credential is not id:secret")
	}
	return id, secret, nil
}

// Refresher returns a RefreshFunc performing the exchange with client.
// A malformed Basic credential surfaces on every refresh.
func (cc ClientCredentials) Refresher(client *http.Client) RefreshFunc {
	cfg, cfgErr := cc.Config()
	return func(ctx context.Context) (Token, error) {
		if cfgErr != nil {
			return Token{}, cfgErr
		}
		if client != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
		}

		tok, err := cfg.Token(ctx)
		if err != nil {
			return Token{}, fmt.Errorf("token request: %w", err)
		}

		var ttl time.Duration
		if !tok.Expiry.IsZero() {
			ttl = time.Until(tok.Expiry)
		}
		return Token{AccessToken: tok.AccessToken, ExpiresIn: ttl}, nil
	}
}
