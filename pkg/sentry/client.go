// Package sentry is a typed client for the subset of the Sentry REST API the
// MCP tools use.
package sentry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mcp-server-sentry/pkg/metrics"
)

const (
	// DefaultHost is the multi-tenant Sentry host.
	DefaultHost = "sentry.io"

	apiPath = "/api/0"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 10 << 20
)

// Client issues authenticated requests against one Sentry host. It holds no
// mutable state and is safe for concurrent use.
type Client struct {
	accessToken string
	host        string
	apiPrefix   string
	httpClient  *http.Client
	logger      *log.Logger
	metrics     *metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger requests are reported to.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records every request on recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = recorder
	}
}

// WithAPIPrefix overrides the API base URL derived from the host. The host
// is still used to build links.
func WithAPIPrefix(prefix string) Option {
	return func(c *Client) {
		c.apiPrefix = strings.TrimRight(prefix, "/")
	}
}

// NewClient returns a client for host authenticated with accessToken. An
// empty token sends unauthenticated requests; an empty host means sentry.io.
func NewClient(accessToken, host string, opts ...Option) *Client {
	if host == "" {
		host = DefaultHost
	}

	c := &Client{
		accessToken: accessToken,
		host:        host,
		apiPrefix:   "https://" + host + apiPath,
		httpClient:  http.DefaultClient,
		logger:      log.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Host returns the Sentry host the client targets.
func (c *Client) Host() string {
	return c.host
}

func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	endpoint := c.apiPrefix + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	c.logger.Debug("sentry api request", "method", method, "url", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.UpstreamRequest(method, 0)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.metrics.UpstreamRequest(method, resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response of %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Body:       string(data),
		}
	}

	return data, nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}

	return text
}

// ListOrganizations returns the organizations the credential can access.
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	body, err := c.request(ctx, http.MethodGet, "/organizations/", nil)
	if err != nil {
		return nil, err
	}

	return decodeList[Organization]("organizations", body)
}

// ListTeams returns the first page of teams in an organization.
func (c *Client) ListTeams(ctx context.Context, organizationSlug string) ([]Team, error) {
	body, err := c.request(ctx, http.MethodGet, "/organizations/"+url.PathEscape(organizationSlug)+"/teams/", nil)
	if err != nil {
		return nil, err
	}

	return decodeList[Team]("teams", body)
}

// CreateTeam creates a team in an organization.
func (c *Client) CreateTeam(ctx context.Context, organizationSlug, name string) (Team, error) {
	body, err := c.request(ctx, http.MethodPost, "/organizations/"+url.PathEscape(organizationSlug)+"/teams/", map[string]string{
		"name": name,
	})
	if err != nil {
		return Team{}, err
	}

	return decodeOne[Team]("create team", body)
}

// ListProjects returns the first page of projects in an organization.
func (c *Client) ListProjects(ctx context.Context, organizationSlug string) ([]Project, error) {
	body, err := c.request(ctx, http.MethodGet, "/organizations/"+url.PathEscape(organizationSlug)+"/projects/", nil)
	if err != nil {
		return nil, err
	}

	return decodeList[Project]("projects", body)
}

// CreateProjectOptions are the inputs of CreateProject.
type CreateProjectOptions struct {
	OrganizationSlug string
	TeamSlug         string
	Name             string
	Platform         string
}

// CreateProject creates a project owned by a team and then provisions a
// client key for it. Key provisioning is best effort: when it fails the
// created project is still returned, with a nil key and no error.
func (c *Client) CreateProject(ctx context.Context, opts CreateProjectOptions) (Project, *ClientKey, error) {
	payload := map[string]string{"name": opts.Name}
	if opts.Platform != "" {
		payload["platform"] = opts.Platform
	}

	body, err := c.request(ctx, http.MethodPost, "/teams/"+url.PathEscape(opts.OrganizationSlug)+"/"+url.PathEscape(opts.TeamSlug)+"/projects/", payload)
	if err != nil {
		return Project{}, nil, err
	}

	project, err := decodeOne[Project]("create project", body)
	if err != nil {
		return Project{}, nil, err
	}

	key, err := c.createClientKey(ctx, opts.OrganizationSlug, project.Slug)
	if err != nil {
		c.logger.Error("Failed to provision client key", "organization", opts.OrganizationSlug, "project", project.Slug, "error", err)
		return project, nil, nil
	}

	return project, &key, nil
}

func (c *Client) createClientKey(ctx context.Context, organizationSlug, projectSlug string) (ClientKey, error) {
	body, err := c.request(ctx, http.MethodPost, "/projects/"+url.PathEscape(organizationSlug)+"/"+url.PathEscape(projectSlug)+"/keys/", map[string]string{
		"name": "Default",
	})
	if err != nil {
		return ClientKey{}, err
	}

	return decodeOne[ClientKey]("create client key", body)
}
