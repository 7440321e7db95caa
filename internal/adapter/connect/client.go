// Package connect implements the domain.Connect port over the Connect REST API.
package connect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// Config holds the settings of the Connect API client.
type Config struct {
	BaseURL string
	// APIKey is the extension key. With an ExtensionID set it is only used to
	// impersonate installations.
	APIKey      string
	ExtensionID string
	Timeout     time.Duration
	Retries     int
	RetryWait   time.Duration
}

// Provider hands out Connect clients acting for an installation.
type Provider struct {
	cfg  Config
	base *resty.Client
}

// Compile-time check: Provider implements domain.ConnectProvider.
var _ domain.ConnectProvider = (*Provider)(nil)

// NewProvider creates a provider for the given configuration.
func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: cfg, base: newRestClient(cfg, cfg.APIKey)}
}

func newRestClient(cfg Config, apiKey string) *resty.Client {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Authorization", apiKey).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "apsconnect").
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return false
			}
			switch r.StatusCode() {
			case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				return true
			}
			return false
		})
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	return c
}

type impersonation struct {
	InstallationAPIKey string `json:"installation_api_key"`
}

// ForInstallation returns a client authenticated with the installation key.
// Without an extension id the configured key is used as is.
func (p *Provider) ForInstallation(ctx context.Context, inst domain.Installation) (domain.Connect, error) {
	if p.cfg.ExtensionID == "" || inst.InstallationID == "" {
		return &Client{rest: p.base}, nil
	}

	var out impersonation
	path := fmt.Sprintf("/devops/services/%s/installations/%s/impersonate",
		url.PathEscape(p.cfg.ExtensionID), url.PathEscape(inst.InstallationID))
	if err := call(p.base.R().SetContext(ctx).SetResult(&out), http.MethodPost, path); err != nil {
		return nil, fmt.Errorf("impersonating installation: %w", err)
	}
	return &Client{rest: newRestClient(p.cfg, out.InstallationAPIKey)}, nil
}

// Client is a Connect API client bound to one API key.
type Client struct {
	rest *resty.Client
}

// Compile-time check: Client implements domain.Connect.
var _ domain.Connect = (*Client)(nil)

// errorBody is the error document Connect answers with.
type errorBody struct {
	ErrorCode string                `json:"error_code"`
	Errors    []string              `json:"errors"`
	Params    domain.ConflictParams `json:"params"`
}

// call executes the request and turns error answers into *domain.ConnectError.
func call(req *resty.Request, method, path string) error {
	var body errorBody
	resp, err := req.SetError(&body).Execute(method, path)
	if err != nil {
		return fmt.Errorf("connect %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return &domain.ConnectError{
			StatusCode: resp.StatusCode(),
			ErrorCode:  body.ErrorCode,
			Errors:     body.Errors,
			Params:     body.Params,
		}
	}
	return nil
}

func (c *Client) CreateRequest(ctx context.Context, body domain.RequestBody) (domain.Request, error) {
	var out domain.Request
	err := call(c.rest.R().SetContext(ctx).SetBody(body).SetResult(&out), http.MethodPost, "/requests")
	return out, err
}

func (c *Client) UpdateRequest(ctx context.Context, id string, body domain.RequestBody) (domain.Request, error) {
	var out domain.Request
	err := call(c.rest.R().SetContext(ctx).SetBody(body).SetResult(&out), http.MethodPut, "/requests/"+url.PathEscape(id))
	return out, err
}

func (c *Client) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	var out domain.Request
	err := call(c.rest.R().SetContext(ctx).SetResult(&out), http.MethodGet, "/requests/"+url.PathEscape(id))
	return out, err
}

func (c *Client) FindRequests(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
	var out []domain.Request
	path := "/requests?" + requestsQuery(filter)
	if err := call(c.rest.R().SetContext(ctx).SetResult(&out), http.MethodGet, path); err != nil {
		return nil, err
	}
	return out, nil
}

// requestsQuery renders the RQL query selecting the requests of a tenant,
// newest first.
func requestsQuery(filter domain.RequestFilter) string {
	conds := []string{"eq(asset.external_uid," + rqlValue(filter.ExternalUID) + ")"}
	if filter.Type != "" {
		conds = append(conds, "eq(type,"+string(filter.Type)+")")
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "in(status,("+strings.Join(statuses, ",")+"))")
	}

	q := "and(" + strings.Join(conds, ",") + ")&select(-asset.configuration)&ordering(-created)"
	if filter.Limit > 0 {
		q += fmt.Sprintf("&limit=%d", filter.Limit)
	}
	return q
}

// rqlValue escapes a value for use inside an RQL expression.
func rqlValue(v string) string {
	return url.QueryEscape(v)
}

func (c *Client) RequestAction(ctx context.Context, id string, action domain.RequestAction, payload any) (domain.Request, error) {
	if payload == nil {
		payload = struct{}{}
	}
	var out domain.Request
	path := "/requests/" + url.PathEscape(id) + "/" + string(action)
	err := call(c.rest.R().SetContext(ctx).SetBody(payload).SetResult(&out), http.MethodPost, path)
	return out, err
}

func (c *Client) FindAsset(ctx context.Context, externalUID string) (domain.Asset, error) {
	var out []domain.Asset
	path := "/assets?eq(external_uid," + rqlValue(externalUID) + ")&limit=1"
	if err := call(c.rest.R().SetContext(ctx).SetResult(&out), http.MethodGet, path); err != nil {
		return domain.Asset{}, err
	}
	if len(out) == 0 {
		return domain.Asset{}, domain.ErrMissingAsset
	}
	return out[0], nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var out domain.Product
	err := call(c.rest.R().SetContext(ctx).SetResult(&out), http.MethodGet, "/products/"+url.PathEscape(id))
	return out, err
}

type connection struct {
	ID string `json:"id"`
}

// FindConnection returns the id of the product connection whose hub instance
// is the given OA hub uuid, or "" when the hub has none.
func (c *Client) FindConnection(ctx context.Context, productID, hubID string) (string, error) {
	var out []connection
	path := "/products/" + url.PathEscape(productID) + "/connections?eq(hub.instance.id," + rqlValue(hubID) + ")&limit=1"
	if err := call(c.rest.R().SetContext(ctx).SetResult(&out), http.MethodGet, path); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", nil
	}
	return out[0].ID, nil
}

func (c *Client) ProductParameters(ctx context.Context, productID string) ([]domain.ParameterDefinition, error) {
	var out []domain.ParameterDefinition
	path := "/products/" + url.PathEscape(productID) + "/parameters"
	if err := call(c.rest.R().SetContext(ctx).SetResult(&out), http.MethodGet, path); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ProductItems(ctx context.Context, productID string, localIDs []string) ([]domain.ProductItem, error) {
	escaped := make([]string, len(localIDs))
	for i, id := range localIDs {
		escaped[i] = rqlValue(id)
	}
	var out []domain.ProductItem
	path := fmt.Sprintf("/products/%s/items?in(local_id,(%s))&limit=%d",
		url.PathEscape(productID), strings.Join(escaped, ","), len(localIDs))
	if err := call(c.rest.R().SetContext(ctx).SetResult(&out), http.MethodGet, path); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ProductActions(ctx context.Context, productID, scope string) ([]domain.ProductAction, error) {
	var out []domain.ProductAction
	path := "/products/" + url.PathEscape(productID) + "/actions?eq(scope," + rqlValue(scope) + ")"
	if err := call(c.rest.R().SetContext(ctx).SetResult(&out), http.MethodGet, path); err != nil {
		return nil, err
	}
	return out, nil
}

type actionLink struct {
	Link string `json:"link"`
}

func (c *Client) ActionLink(ctx context.Context, productID, actionID, assetID string) (string, error) {
	var out actionLink
	path := "/products/" + url.PathEscape(productID) + "/actions/" + url.PathEscape(actionID) + "/actionLink"
	req := c.rest.R().SetContext(ctx).SetQueryParam("asset_id", assetID).SetResult(&out)
	if err := call(req, http.MethodGet, path); err != nil {
		return "", err
	}
	return out.Link, nil
}

func (c *Client) CreateSubscriptionRequest(ctx context.Context, body domain.BillingRequestBody) error {
	return call(c.rest.R().SetContext(ctx).SetBody(body), http.MethodPost, "/subscriptions/requests")
}
