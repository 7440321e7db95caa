package domain

import (
	"context"
	"encoding/json"
)

// Connect defines the contract of the subscription backend.
type Connect interface {
	CreateRequest(ctx context.Context, body RequestBody) (Request, error)
	UpdateRequest(ctx context.Context, id string, body RequestBody) (Request, error)
	GetRequest(ctx context.Context, id string) (Request, error)
	FindRequests(ctx context.Context, filter RequestFilter) ([]Request, error)
	RequestAction(ctx context.Context, id string, action RequestAction, payload any) (Request, error)
	FindAsset(ctx context.Context, externalUID string) (Asset, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	FindConnection(ctx context.Context, productID, hubID string) (string, error)
	ProductParameters(ctx context.Context, productID string) ([]ParameterDefinition, error)
	ProductItems(ctx context.Context, productID string, localIDs []string) ([]ProductItem, error)
	ProductActions(ctx context.Context, productID, scope string) ([]ProductAction, error)
	ActionLink(ctx context.Context, productID, actionID, assetID string) (string, error)
	CreateSubscriptionRequest(ctx context.Context, body BillingRequestBody) error
}

// ResourceOptions tune a single OA bus call.
type ResourceOptions struct {
	ImpersonateAs      string
	WithoutTransaction bool
}

// OA defines the contract of the OA/APS bus.
type OA interface {
	GetResource(ctx context.Context, id string, opts ResourceOptions) (json.RawMessage, error)
	FindResources(ctx context.Context, query string, opts ResourceOptions) ([]json.RawMessage, error)
	PutTenant(ctx context.Context, id string, doc json.RawMessage) error
	Subscribe(ctx context.Context, resourceID string, sub EventSubscription) error
	Subscriptions(ctx context.Context, resourceID string) ([]EventSubscription, error)
	TenantSchema(ctx context.Context) (TenantSchema, error)
}

// ConnectProvider yields a Connect client acting for an installation.
type ConnectProvider interface {
	ForInstallation(ctx context.Context, inst Installation) (Connect, error)
}

// OAProvider yields an OA client signing as the installation and bound to the
// controller of the calling hub.
type OAProvider interface {
	ForOrigin(origin Origin, inst Installation) OA
}

// SchemaCache stores tenant schemas by APS type.
type SchemaCache interface {
	Get(ctx context.Context, apsType string) (TenantSchema, error)
	Set(ctx context.Context, schema TenantSchema) error
}

// InstallationRepository defines the persistence contract for installations,
// app-to-hub bindings and known hubs.
type InstallationRepository interface {
	GetByOAuthKey(ctx context.Context, oauthKey string) (Installation, error)
	Save(ctx context.Context, inst Installation) error
	BindApp(ctx context.Context, appID, hubID string) error
	HubForApp(ctx context.Context, appID string) (string, error)
	UnbindApp(ctx context.Context, appID string) error
	TouchHub(ctx context.Context, hub HubInstance) error
}

// EffectPublisher defines the contract for handing off best-effort work.
type EffectPublisher interface {
	Publish(ctx context.Context, effect Effect) error
}

// ActionValidator checks that an action may be invoked on a request in the
// given status and returns the status it leads to.
type ActionValidator interface {
	Apply(ctx context.Context, current RequestStatus, action RequestAction) (RequestStatus, error)
}
