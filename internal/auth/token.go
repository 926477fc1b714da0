package auth

import (
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
)

var now = time.Now

// Token is an OAuth2 access token as stored in the secret store.
//
// IssuedAt is stamped when the token is received and survives persistence, so expiry is computed against the original issue time.
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
}

// NewToken stamps a freshly granted token with the current time.
func NewToken(accessToken, tokenType string, expiresIn int, refreshToken, scope string) *Token {
	return &Token{
		AccessToken:  accessToken,
		TokenType:    tokenType,
		ExpiresIn:    expiresIn,
		IssuedAt:     now(),
		RefreshToken: refreshToken,
		Scope:        scope,
	}
}

func fromOAuth2(t *oauth2.Token, issued time.Time) *Token {
	tok := &Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		ExpiresIn:    int(t.ExpiresIn),
		IssuedAt:     issued,
		RefreshToken: t.RefreshToken,
	}
	if tok.ExpiresIn == 0 && !t.Expiry.IsZero() {
		tok.ExpiresIn = int(t.Expiry.Sub(issued).Round(time.Second) / time.Second)
	}
	if scope, ok := t.Extra("scope").(string); ok {
		tok.Scope = scope
	}
	return tok
}

// UnmarshalJSON decodes a token, stamping IssuedAt only when the payload has none.
func (t *Token) UnmarshalJSON(data []byte) error {
	type alias Token
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.IssuedAt.IsZero() {
		a.IssuedAt = now()
	}
	*t = Token(a)
	return nil
}

// ExpiresAt is IssuedAt plus ExpiresIn.
func (t *Token) ExpiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// IsExpiredAt reports whether the token has expired at instant at.
func (t *Token) IsExpiredAt(at time.Time) bool {
	return at.After(t.ExpiresAt())
}

func (t *Token) IsExpired() bool {
	return t.IsExpiredAt(now())
}

// IsUser reports whether the token acts on behalf of a user. App-level tokens carry no refresh token.
func (t *Token) IsUser() bool {
	return t != nil && t.RefreshToken != ""
}

// ID is a short prefix of the access token, safe to log.
func (t *Token) ID() string {
	if t == nil {
		return ""
	}
	if len(t.AccessToken) <= 8 {
		return t.AccessToken
	}
	return t.AccessToken[:8]
}
