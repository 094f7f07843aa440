// Package auth implements the delegated authorization flow that turns a
// Sentry OAuth grant into an MCP session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// Scopes requested from Sentry.
var Scopes = []string{"org:read", "project:read", "project:write", "event:read"}

const authFailedMessage = "There was an issue authenticating your account and retrieving an access token. Please try again."

// Failure is an authorization flow error that maps directly onto an HTTP
// response.
type Failure struct {
	Status  int
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%d: %s", f.Status, f.Message)
}

func (f *Failure) Write(w http.ResponseWriter) {
	http.Error(w, f.Message, f.Status)
}

// User is the Sentry user a credential belongs to.
type User struct {
	ID    string
	Name  string
	Email string
}

// Credential is a Sentry access token obtained from a code exchange.
type Credential struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	Scope        string
	User         User
}

// ExchangeRequest holds the inputs of a code exchange.
type ExchangeRequest struct {
	Code          string
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	TokenEndpoint string
}

// Exchanger trades authorization codes for access tokens. It holds no state
// between exchanges.
type Exchanger struct {
	httpClient *http.Client
	logger     *log.Logger
}

// NewExchanger returns an exchanger. A nil httpClient uses the default.
func NewExchanger(httpClient *http.Client, logger *log.Logger) *Exchanger {
	if logger == nil {
		logger = log.Default()
	}

	return &Exchanger{
		httpClient: httpClient,
		logger:     logger.WithPrefix("auth"),
	}
}

// Exchange performs the code exchange. Every error it returns is a *Failure:
// 400 when the code is missing or rejected upstream, 500 when the token
// endpoint answers with something that is not a valid credential.
func (e *Exchanger) Exchange(ctx context.Context, req ExchangeRequest) (Credential, error) {
	if req.Code == "" {
		return Credential{}, &Failure{Status: http.StatusBadRequest, Message: "Missing code"}
	}

	cfg := oauth2.Config{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		RedirectURL:  req.RedirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  req.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}

	token, err := cfg.Exchange(ctx, req.Code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}

			e.logger.Error("Failed to exchange code for access token", "status", status, "body", string(retrieveErr.Body))
			return Credential{}, &Failure{Status: http.StatusBadRequest, Message: authFailedMessage}
		}

		e.logger.Error("Invalid token response", "error", err)
		return Credential{}, &Failure{Status: http.StatusInternalServerError, Message: authFailedMessage}
	}

	cred, err := credentialFromToken(token)
	if err != nil {
		e.logger.Error("Invalid token response", "error", err)
		return Credential{}, &Failure{Status: http.StatusInternalServerError, Message: authFailedMessage}
	}

	return cred, nil
}

func credentialFromToken(token *oauth2.Token) (Credential, error) {
	user, ok := token.Extra("user").(map[string]interface{})
	if !ok {
		return Credential{}, errors.New("token response has no user")
	}

	if _, ok := token.Extra("expires_in").(float64); !ok {
		return Credential{}, errors.New("token response expires_in is not a number")
	}

	expiresAt, ok := token.Extra("expires_at").(string)
	if !ok {
		return Credential{}, errors.New("token response has no expires_at")
	}

	expiry, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return Credential{}, fmt.Errorf("token response expires_at: %w", err)
	}

	scope, _ := token.Extra("scope").(string)

	cred := Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    expiry,
		Scope:        scope,
		User: User{
			ID:    stringField(user, "id"),
			Name:  stringField(user, "name"),
			Email: stringField(user, "email"),
		},
	}

	required := []struct{ field, value string }{
		{"refresh_token", cred.RefreshToken},
		{"token_type", cred.TokenType},
		{"scope", cred.Scope},
		{"user.id", cred.User.ID},
		{"user.name", cred.User.Name},
		{"user.email", cred.User.Email},
	}

	for _, r := range required {
		if r.value == "" {
			return Credential{}, fmt.Errorf("token response has no %s", r.field)
		}
	}

	return cred, nil
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}

	return ""
}
