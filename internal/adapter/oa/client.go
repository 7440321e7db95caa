// Package oa implements the domain.OA port over the APS REST bus of an OA hub.
package oa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/go-resty/resty/v2"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// APS bus headers.
const (
	HeaderImpersonate = "aps-resource-id"
	HeaderTransaction = "aps-transaction-id"
)

// Config holds the settings of the OA bus client.
type Config struct {
	Timeout time.Duration
	// Attempts bounds how many times a call answered with 400 is sent.
	Attempts  int
	RetryWait time.Duration
}

// Provider hands out OA clients signing as an installation.
type Provider struct {
	cfg Config
}

// Compile-time check: Provider implements domain.OAProvider.
var _ domain.OAProvider = (*Provider)(nil)

// NewProvider creates a provider for the given configuration.
func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

// ForOrigin returns a client bound to the controller of the calling hub. Its
// calls are OAuth 1.0a signed with the installation credentials.
func (p *Provider) ForOrigin(origin domain.Origin, inst domain.Installation) domain.OA {
	signed := oauth1.NewConfig(inst.OAuthKey, inst.OAuthSecret).
		Client(context.Background(), oauth1.NewToken("", ""))

	rest := resty.NewWithClient(signed).
		SetBaseURL(strings.TrimSuffix(origin.ControllerURI, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "apsconnect")
	if p.cfg.Timeout > 0 {
		rest.SetTimeout(p.cfg.Timeout)
	}
	if p.cfg.Attempts > 1 {
		rest.SetRetryCount(p.cfg.Attempts - 1).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err == nil && r != nil && r.StatusCode() == http.StatusBadRequest
			})
		if p.cfg.RetryWait > 0 {
			rest.SetRetryWaitTime(p.cfg.RetryWait)
		}
	}

	return &Client{rest: rest, transactionID: origin.TransactionID}
}

// Client is an OA bus client bound to one controller.
type Client struct {
	rest          *resty.Client
	transactionID string
}

// Compile-time check: Client implements domain.OA.
var _ domain.OA = (*Client)(nil)

func (c *Client) request(ctx context.Context, opts domain.ResourceOptions) *resty.Request {
	req := c.rest.R().SetContext(ctx)
	if opts.ImpersonateAs != "" {
		req.SetHeader(HeaderImpersonate, opts.ImpersonateAs)
	}
	if !opts.WithoutTransaction && c.transactionID != "" {
		req.SetHeader(HeaderTransaction, c.transactionID)
	}
	return req
}

// send executes the request and returns the raw answer of a 2xx response.
func send(req *resty.Request, method, path string) ([]byte, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("oa %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return nil, &domain.OAError{
			StatusCode: resp.StatusCode(),
			Method:     method,
			URL:        resp.Request.URL,
			Body:       resp.String(),
		}
	}
	return resp.Body(), nil
}

func resourcePath(id string) string {
	return "/aps/2/resources/" + url.PathEscape(id)
}

func (c *Client) GetResource(ctx context.Context, id string, opts domain.ResourceOptions) (json.RawMessage, error) {
	body, err := send(c.request(ctx, opts), http.MethodGet, resourcePath(id))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) FindResources(ctx context.Context, query string, opts domain.ResourceOptions) ([]json.RawMessage, error) {
	body, err := send(c.request(ctx, opts), http.MethodGet, "/aps/2/resources?"+query)
	if err != nil {
		return nil, err
	}
	var out []json.RawMessage
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding resources: %w", err)
	}
	return out, nil
}

func (c *Client) PutTenant(ctx context.Context, id string, doc json.RawMessage) error {
	_, err := send(c.request(ctx, domain.ResourceOptions{}).SetBody([]byte(doc)), http.MethodPut, resourcePath(id))
	return err
}

func (c *Client) Subscribe(ctx context.Context, resourceID string, sub domain.EventSubscription) error {
	_, err := send(c.request(ctx, domain.ResourceOptions{}).SetBody(sub), http.MethodPost, resourcePath(resourceID)+"/aps/subscriptions")
	return err
}

func (c *Client) Subscriptions(ctx context.Context, resourceID string) ([]domain.EventSubscription, error) {
	body, err := send(c.request(ctx, domain.ResourceOptions{}), http.MethodGet, resourcePath(resourceID)+"/aps/subscriptions")
	if err != nil {
		return nil, err
	}
	var out []domain.EventSubscription
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding subscriptions: %w", err)
	}
	return out, nil
}

type application struct {
	Tenant struct {
		Schema string `json:"schema"`
	} `json:"tenant"`
}

// TenantSchema reads the tenant type the application declares. An
// application without a tenant type yields an empty schema.
func (c *Client) TenantSchema(ctx context.Context) (domain.TenantSchema, error) {
	outside := domain.ResourceOptions{WithoutTransaction: true}

	body, err := send(c.request(ctx, outside), http.MethodGet, "/aps/2/application")
	if err != nil {
		return domain.TenantSchema{}, err
	}
	var app application
	if err := json.Unmarshal(body, &app); err != nil {
		return domain.TenantSchema{}, fmt.Errorf("decoding application: %w", err)
	}
	if app.Tenant.Schema == "" {
		return domain.TenantSchema{}, nil
	}

	body, err = send(c.request(ctx, outside), http.MethodGet, "/"+strings.TrimPrefix(app.Tenant.Schema, "/"))
	if err != nil {
		return domain.TenantSchema{}, err
	}
	var schema domain.TenantSchema
	if err := json.Unmarshal(body, &schema); err != nil {
		return domain.TenantSchema{}, fmt.Errorf("decoding tenant schema: %w", err)
	}
	return schema, nil
}
