package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const grantTTL = 10 * time.Minute

// Token endpoint authentication methods a client may register with.
const (
	AuthMethodNone              = "none"
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
)

var authMethods = []string{AuthMethodNone, AuthMethodClientSecretBasic, AuthMethodClientSecretPost}

// Session is what a bearer token issued by the provider resolves to.
type Session struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	AccessToken      string `json:"accessToken"`
	OrganizationSlug string `json:"organizationSlug"`
}

// ClientMetadata is the body of a dynamic client registration request.
type ClientMetadata struct {
	RedirectURIs []string `json:"redirect_uris"`
	ClientName   string   `json:"client_name,omitempty"`
	AuthMethod   string   `json:"token_endpoint_auth_method,omitempty"`
}

// RegisteredClient is an MCP client allowed to start the authorization flow.
type RegisteredClient struct {
	ID            string   `json:"client_id"`
	Secret        string   `json:"client_secret,omitempty"`
	IssuedAt      int64    `json:"client_id_issued_at"`
	Name          string   `json:"client_name,omitempty"`
	RedirectURIs  []string `json:"redirect_uris"`
	AuthMethod    string   `json:"token_endpoint_auth_method"`
	GrantTypes    []string `json:"grant_types"`
	ResponseTypes []string `json:"response_types"`
}

// Public reports whether the client holds no secret and must use PKCE.
func (c RegisteredClient) Public() bool {
	return c.AuthMethod == AuthMethodNone
}

type grant struct {
	request AuthRequest
	session Session
}

// TokenResponse is the body returned from the token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// OAuthError is an OAuth error response from the registration or token
// endpoint.
type OAuthError struct {
	Status      int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *OAuthError) Error() string {
	return e.Code + ": " + e.Description
}

func invalidGrant(description string) *OAuthError {
	return &OAuthError{Status: http.StatusBadRequest, Code: "invalid_grant", Description: description}
}

func invalidClient(description string) *OAuthError {
	return &OAuthError{Status: http.StatusUnauthorized, Code: "invalid_client", Description: description}
}

func invalidMetadata(code, description string) *OAuthError {
	return &OAuthError{Status: http.StatusBadRequest, Code: code, Description: description}
}

// Provider is the authorization server MCP clients talk to. It registers
// clients and issues one-shot grant codes and session tokens, all kept in
// memory.
type Provider struct {
	clients    *cache.Cache
	grants     *cache.Cache
	sessions   *cache.Cache
	redeem     sync.Mutex
	sessionTTL time.Duration
	logger     *log.Logger
}

// NewProvider returns a provider whose session tokens live for sessionTTL.
func NewProvider(sessionTTL time.Duration, logger *log.Logger) *Provider {
	if logger == nil {
		logger = log.Default()
	}

	return &Provider{
		clients:    cache.New(cache.NoExpiration, 0),
		grants:     cache.New(grantTTL, time.Minute),
		sessions:   cache.New(sessionTTL, 10*time.Minute),
		sessionTTL: sessionTTL,
		logger:     logger.WithPrefix("auth"),
	}
}

// RegisterClient stores a new client. Clients without a secret
// (token_endpoint_auth_method "none") are public and must use PKCE.
func (p *Provider) RegisterClient(meta ClientMetadata) (RegisteredClient, error) {
	if len(meta.RedirectURIs) == 0 {
		return RegisteredClient{}, invalidMetadata("invalid_redirect_uri", "at least one redirect_uri is required")
	}

	for _, raw := range meta.RedirectURIs {
		if !validRedirectURI(raw) {
			return RegisteredClient{}, invalidMetadata("invalid_redirect_uri", "redirect_uri must be an absolute URI without a fragment: "+raw)
		}
	}

	method := meta.AuthMethod
	if method == "" {
		method = AuthMethodClientSecretBasic
	}

	if !slices.Contains(authMethods, method) {
		return RegisteredClient{}, invalidMetadata("invalid_client_metadata", "unsupported token_endpoint_auth_method: "+method)
	}

	client := RegisteredClient{
		ID:            uuid.NewString(),
		IssuedAt:      time.Now().Unix(),
		Name:          meta.ClientName,
		RedirectURIs:  slices.Clone(meta.RedirectURIs),
		AuthMethod:    method,
		GrantTypes:    []string{"authorization_code"},
		ResponseTypes: []string{"code"},
	}

	if !client.Public() {
		client.Secret = uuid.NewString()
	}

	p.clients.SetDefault(client.ID, client)
	p.logger.Info("Client registered", "client_id", client.ID, "name", client.Name, "auth_method", client.AuthMethod)

	return client, nil
}

// LookupClient returns a registered client.
func (p *Provider) LookupClient(clientID string) (RegisteredClient, bool) {
	value, found := p.clients.Get(clientID)
	if !found {
		return RegisteredClient{}, false
	}

	return value.(RegisteredClient), true
}

// ParseAuthRequest reads an authorization request from the query of r and
// checks it against the client's registration.
func (p *Provider) ParseAuthRequest(r *http.Request) (AuthRequest, error) {
	q := r.URL.Query()

	req := AuthRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	if req.ResponseType != "" && req.ResponseType != "code" {
		return AuthRequest{}, invalidRequest()
	}
	req.ResponseType = "code"

	if req.CodeChallenge != "" && req.CodeChallengeMethod == "" {
		req.CodeChallengeMethod = "plain"
	}

	return p.checkRequest(req)
}

// checkRequest binds req to a registered client. A single registered
// redirect URI is used when the request names none.
func (p *Provider) checkRequest(req AuthRequest) (AuthRequest, error) {
	client, ok := p.LookupClient(req.ClientID)
	if !ok {
		return AuthRequest{}, invalidRequest()
	}

	if req.RedirectURI == "" && len(client.RedirectURIs) == 1 {
		req.RedirectURI = client.RedirectURIs[0]
	}

	if !slices.Contains(client.RedirectURIs, req.RedirectURI) {
		return AuthRequest{}, invalidRequest()
	}

	if client.Public() && req.CodeChallenge == "" {
		return AuthRequest{}, invalidRequest()
	}

	if req.CodeChallenge != "" && req.CodeChallengeMethod != "plain" && req.CodeChallengeMethod != "S256" {
		return AuthRequest{}, invalidRequest()
	}

	return req, nil
}

// CompleteAuthorization mints a grant code for session and returns the
// client callback URL carrying it. req is checked again because it comes
// back through the unsigned state parameter.
func (p *Provider) CompleteAuthorization(req AuthRequest, session Session) (string, error) {
	req, err := p.checkRequest(req)
	if err != nil {
		return "", &Failure{Status: http.StatusBadRequest, Message: "Invalid state"}
	}

	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", &Failure{Status: http.StatusBadRequest, Message: "Invalid state"}
	}

	code := uuid.NewString()
	p.grants.SetDefault(code, grant{request: req, session: session})

	q := redirect.Query()
	q.Set("code", code)
	if req.State != "" {
		q.Set("state", req.State)
	}
	redirect.RawQuery = q.Encode()

	p.logger.Info("Authorization completed", "client_id", req.ClientID, "user", session.ID, "organization", session.OrganizationSlug)

	return redirect.String(), nil
}

// ExchangeGrant redeems a grant code submitted to the token endpoint. The
// client must identify itself, confidential clients must present their
// secret, and codes are single use.
func (p *Provider) ExchangeGrant(form url.Values) (TokenResponse, error) {
	if grantType := form.Get("grant_type"); grantType != "authorization_code" {
		return TokenResponse{}, &OAuthError{Status: http.StatusBadRequest, Code: "unsupported_grant_type", Description: grantType}
	}

	clientID := form.Get("client_id")
	if clientID == "" {
		return TokenResponse{}, invalidClient("client_id is required")
	}

	client, ok := p.LookupClient(clientID)
	if !ok {
		return TokenResponse{}, invalidClient("unknown client")
	}

	if !client.Public() && subtle.ConstantTimeCompare([]byte(form.Get("client_secret")), []byte(client.Secret)) != 1 {
		return TokenResponse{}, invalidClient("client authentication failed")
	}

	g, found := p.take(form.Get("code"))
	if !found {
		return TokenResponse{}, invalidGrant("unknown or expired code")
	}

	if g.request.ClientID != clientID {
		return TokenResponse{}, invalidGrant("code was issued to another client")
	}

	if redirectURI := form.Get("redirect_uri"); redirectURI != "" && redirectURI != g.request.RedirectURI {
		return TokenResponse{}, invalidGrant("redirect_uri does not match")
	}

	if g.request.CodeChallenge != "" && !verifyChallenge(g.request.CodeChallenge, g.request.CodeChallengeMethod, form.Get("code_verifier")) {
		return TokenResponse{}, invalidGrant("code_verifier does not match")
	}

	token := uuid.NewString()
	p.sessions.SetDefault(token, g.session)

	return TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(p.sessionTTL.Seconds()),
		Scope:       g.request.Scope,
	}, nil
}

// take removes and returns the grant stored under code.
func (p *Provider) take(code string) (grant, bool) {
	p.redeem.Lock()
	defer p.redeem.Unlock()

	value, found := p.grants.Get(code)
	if !found {
		return grant{}, false
	}
	p.grants.Delete(code)

	return value.(grant), true
}

// LookupSession resolves a bearer token issued by ExchangeGrant.
func (p *Provider) LookupSession(token string) (Session, bool) {
	value, found := p.sessions.Get(token)
	if !found {
		return Session{}, false
	}

	return value.(Session), true
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

func invalidRequest() *Failure {
	return &Failure{Status: http.StatusBadRequest, Message: "Invalid request"}
}

func validRedirectURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	if u.Scheme == "" || u.Fragment != "" {
		return false
	}

	if u.Scheme == "http" || u.Scheme == "https" {
		return u.Host != ""
	}

	return true
}

func verifyChallenge(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}

	expected := verifier
	if strings.EqualFold(method, "S256") {
		sum := sha256.Sum256([]byte(verifier))
		expected = base64.RawURLEncoding.EncodeToString(sum[:])
	}

	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}
