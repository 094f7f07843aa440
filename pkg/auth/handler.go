package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mcp-server-sentry/pkg/sentry"
)

const (
	robotsTxt = "User-agent: *\nAllow: /$\nDisallow: /"

	maxRegistrationBytes = 64 << 10
)

// OrganizationLister lists the organizations visible to a credential.
type OrganizationLister interface {
	ListOrganizations(ctx context.Context) ([]sentry.Organization, error)
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	ClientID     string
	ClientSecret string

	// SentryHost derives AuthorizeURL and TokenURL when they are empty.
	SentryHost   string
	AuthorizeURL string
	TokenURL     string

	// BaseURL is the public URL of this server. When empty it is derived
	// from each request.
	BaseURL string

	Provider      *Provider
	Exchanger     *Exchanger
	Organizations func(accessToken string) OrganizationLister
	Logger        *log.Logger
}

// Handler serves the HTTP side of the authorization flow.
type Handler struct {
	cfg    HandlerConfig
	logger *log.Logger
}

// NewHandler returns a handler for cfg.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.SentryHost == "" {
		cfg.SentryHost = sentry.DefaultHost
	}

	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = "https://" + cfg.SentryHost + "/oauth/authorize/"
	}

	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://" + cfg.SentryHost + "/oauth/token/"
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	if cfg.Exchanger == nil {
		cfg.Exchanger = NewExchanger(nil, cfg.Logger)
	}

	if cfg.Organizations == nil {
		host := cfg.SentryHost
		cfg.Organizations = func(accessToken string) OrganizationLister {
			return sentry.NewClient(accessToken, host)
		}
	}

	return &Handler{
		cfg:    cfg,
		logger: cfg.Logger.WithPrefix("auth"),
	}
}

// Routes registers the authorization endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /authorize", h.authorize)
	mux.HandleFunc("GET /callback", h.callback)
	mux.HandleFunc("POST /token", h.token)
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("GET /.well-known/oauth-authorization-server", h.metadata)
	mux.HandleFunc("GET /robots.txt", h.robots)
	mux.HandleFunc("GET /llms.txt", h.llms)
}

// Protect refuses requests that carry no valid bearer token, and stores the
// session of those that do on the request context.
func (h *Handler) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := h.cfg.Provider.LookupSession(BearerToken(r))
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="sentry-mcp"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) {
	req, err := h.cfg.Provider.ParseAuthRequest(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	state, err := EncodeState(req)
	if err != nil {
		writeFailure(w, err)
		return
	}

	upstream, err := url.Parse(h.cfg.AuthorizeURL)
	if err != nil {
		writeFailure(w, err)
		return
	}

	q := upstream.Query()
	q.Set("client_id", h.cfg.ClientID)
	q.Set("redirect_uri", h.baseURL(r)+"/callback")
	q.Set("scope", strings.Join(Scopes, " "))
	q.Set("response_type", "code")
	q.Set("state", state)
	upstream.RawQuery = q.Encode()

	http.Redirect(w, r, upstream.String(), http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	req, err := DecodeState(r.URL.Query().Get("state"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	cred, err := h.cfg.Exchanger.Exchange(r.Context(), ExchangeRequest{
		Code:          r.URL.Query().Get("code"),
		ClientID:      h.cfg.ClientID,
		ClientSecret:  h.cfg.ClientSecret,
		RedirectURI:   h.baseURL(r) + "/callback",
		TokenEndpoint: h.cfg.TokenURL,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	orgs, err := h.cfg.Organizations(cred.AccessToken).ListOrganizations(r.Context())
	if err != nil {
		h.logger.Error("Failed to list organizations", "user", cred.User.ID, "error", err)
		http.Error(w, authFailedMessage, http.StatusInternalServerError)
		return
	}

	if len(orgs) == 0 {
		http.Error(w, "No organizations found", http.StatusBadRequest)
		return
	}

	redirectTo, err := h.cfg.Provider.CompleteAuthorization(req, Session{
		ID:               cred.User.ID,
		Name:             cred.User.Name,
		AccessToken:      cred.AccessToken,
		OrganizationSlug: orgs[0].Slug,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	http.Redirect(w, r, redirectTo, http.StatusFound)
}

func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, &OAuthError{Code: "invalid_request", Description: err.Error()})
		return
	}

	form := r.PostForm
	if id, secret, ok := r.BasicAuth(); ok {
		form.Set("client_id", id)
		form.Set("client_secret", secret)
	}

	resp, err := h.cfg.Provider.ExchangeGrant(form)
	if err != nil {
		writeOAuthError(w, h.logger, "Token request refused", err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var meta ClientMetadata
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegistrationBytes)).Decode(&meta); err != nil {
		writeJSON(w, http.StatusBadRequest, &OAuthError{Code: "invalid_client_metadata", Description: "malformed registration request"})
		return
	}

	client, err := h.cfg.Provider.RegisterClient(meta)
	if err != nil {
		writeOAuthError(w, h.logger, "Client registration refused", err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, client)
}

func (h *Handler) metadata(w http.ResponseWriter, r *http.Request) {
	base := h.baseURL(r)

	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                base,
		"authorization_endpoint":                base + "/authorize",
		"token_endpoint":                        base + "/token",
		"registration_endpoint":                 base + "/register",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code"},
		"code_challenge_methods_supported":      []string{"plain", "S256"},
		"token_endpoint_auth_methods_supported": authMethods,
	})
}

func (h *Handler) robots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, robotsTxt)
}

func (h *Handler) llms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "# sentry-mcp\n\nThis service provides a Model Context Provider for interacting with Sentry's API (https://sentry.io).\n\nThe MCP's server address is: %s/sse\n", h.baseURL(r))
}

func (h *Handler) baseURL(r *http.Request) string {
	if h.cfg.BaseURL != "" {
		return h.cfg.BaseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host
}

func writeFailure(w http.ResponseWriter, err error) {
	var failure *Failure
	if errors.As(err, &failure) {
		failure.Write(w)
		return
	}

	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeOAuthError(w http.ResponseWriter, logger *log.Logger, msg string, err error) {
	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		writeJSON(w, http.StatusInternalServerError, &OAuthError{Code: "server_error"})
		return
	}

	logger.Warn(msg, "error", oauthErr.Code, "description", oauthErr.Description)

	if oauthErr.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="sentry-mcp"`)
	}
	writeJSON(w, oauthErr.Status, oauthErr)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session stored by Protect.
func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(Session)
	return session, ok
}
