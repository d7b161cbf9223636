package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	dialog "github.com/goliatone/go-auth-dialog"
	"golang.org/x/oauth2"
)

// Identity is the external account resolved by a callback.
type Identity struct {
	Provider string `json:"provider"`
	Subject  string `json:"subject"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// DefaultProfileURL returns the profile endpoint of providers that do not
// issue id tokens through a configured issuer.
func DefaultProfileURL(p dialog.Provider) string {
	switch p {
	case dialog.ProviderGitHub:
		return "https://api.github.com/user"
	case dialog.ProviderFacebook:
		return "https://graph.facebook.com/me?fields=id,name,email"
	case dialog.ProviderGoogle:
		return "https://openidconnect.googleapis.com/v1/userinfo"
	default:
		return ""
	}
}

type idTokenClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
}

func identityFromIDToken(ctx context.Context, verifier *oidc.IDTokenVerifier, token *oauth2.Token) (Identity, error) {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return Identity{}, errors.New("token response has no id_token")
	}

	idToken, err := verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, err
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, err
	}

	return Identity{
		Subject:  idToken.Subject,
		Username: claims.PreferredUsername,
		Name:     claims.Name,
		Email:    claims.Email,
	}, nil
}

func fetchProfile(ctx context.Context, client *http.Client, profileURL string) (Identity, error) {
	if profileURL == "" {
		return Identity{}, errors.New("no profile endpoint configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("profile endpoint returned status %d", resp.StatusCode)
	}

	var profile map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&profile); err != nil {
		return Identity{}, fmt.Errorf("decode profile: %w", err)
	}

	identity := Identity{
		Subject:  firstString(profile, "id", "sub"),
		Username: firstString(profile, "login", "preferred_username"),
		Name:     firstString(profile, "name"),
		Email:    firstString(profile, "email"),
	}
	if identity.Subject == "" {
		return Identity{}, errors.New("profile has no subject")
	}
	return identity, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}
