package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/apsconnect/internal/app"
	"github.com/neomorfeo/apsconnect/internal/domain"
)

// APSOutput carries an answer to OA with its APS control headers.
type APSOutput struct {
	Status         int
	RetryTimeout   string `header:"APS-Retry-Timeout"`
	Info           string `header:"APS-Info"`
	TransientError string `header:"APS-Transient-Error"`
	Body           any
}

func toOutput(resp app.Response) *APSOutput {
	return &APSOutput{
		Status:         resp.Status,
		RetryTimeout:   resp.Headers.RetryTimeout,
		Info:           resp.Headers.Info,
		TransientError: resp.Headers.TransientError,
		Body:           resp.Body,
	}
}

func message(status int, msg string) *APSOutput {
	return &APSOutput{Status: status, Body: map[string]string{"message": msg}}
}

// --- Inputs ---

type PhaseHeaders struct {
	Phase       string `header:"aps-request-phase" required:"false" doc:"Provisioning phase, sync or async"`
	ScheduledOn string `header:"APS-Scheduled-On-Date" required:"false" doc:"Planned date of a scheduled operation"`
}

func (p PhaseHeaders) async() bool {
	return p.Phase != "" && p.Phase != string(domain.PhaseSync)
}

type TenantDocInput struct {
	PhaseHeaders
	RawBody []byte
}

type TenantChangeInput struct {
	PhaseHeaders
	ID      string `path:"id" doc:"Tenant resource ID"`
	RawBody []byte
}

type TenantInput struct {
	PhaseHeaders
	ID string `path:"id" doc:"Tenant resource ID"`
}

type TenantBodyInput struct {
	ID      string `path:"id" doc:"Tenant resource ID"`
	RawBody []byte
}

type TenantActionInput struct {
	ID       string `path:"id" doc:"Tenant resource ID"`
	ActionID string `path:"action_id" doc:"Local ID of the product action"`
}

type TenantValidateInput struct {
	ID       string `path:"id" doc:"Tenant resource ID"`
	Customer string `header:"X-OSA-End-Customer" required:"false" doc:"Customer account resource ID"`
	RawBody  []byte
}

type AppValidateInput struct {
	AppID     string `path:"app_id" doc:"Application instance ID"`
	Customer  string `header:"X-OSA-End-Customer" required:"false" doc:"Customer account resource ID"`
	Hierarchy string `header:"Aps-Account-Hierarchy" required:"false" doc:"Account chain, customer last"`
	RawBody   []byte
}

// customer prefers the explicit header, then the last account of the chain.
func (in AppValidateInput) customer() string {
	if in.Customer != "" {
		return in.Customer
	}
	if in.Hierarchy == "" {
		return ""
	}
	chain := strings.Split(in.Hierarchy, ",")
	return strings.TrimSpace(chain[len(chain)-1])
}

type CreateAppInput struct {
	RawBody []byte
}

type AppInput struct {
	AppID   string `path:"app_id" doc:"Application instance ID"`
	RawBody []byte
}

type HealthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok"`
	}
}

// Handler serves the APS endpoints of the connector.
type Handler struct {
	svc *app.Service
}

// run resolves the scope of the authenticated call and translates the
// outcome of fn.
func (h *Handler) run(ctx context.Context, fn func(sc app.Scope) (app.Response, error)) (*APSOutput, error) {
	origin, ok := OriginFrom(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthenticated call")
	}
	sc, err := h.svc.Scope(ctx, origin)
	if err != nil {
		return h.fail(err)
	}
	resp, err := fn(sc)
	if err != nil {
		return h.fail(err)
	}
	return toOutput(resp), nil
}

// fail answers backend timeouts with a retry and everything else through
// toHumaError.
func (h *Handler) fail(err error) (*APSOutput, error) {
	if errors.Is(err, domain.ErrMissingAsset) {
		return &APSOutput{Status: http.StatusNoContent}, nil
	}
	if isTimeout(err) {
		return toOutput(h.svc.RetryLater("")), nil
	}
	return nil, toHumaError(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// simple runs a suspend, resume or cancel in the phase OA asked for.
func (h *Handler) simple(ctx context.Context, in *TenantInput, op domain.Operation) (*APSOutput, error) {
	if in.ScheduledOn != "" {
		return toOutput(app.ScheduleRejected()), nil
	}
	return h.run(ctx, func(sc app.Scope) (app.Response, error) {
		if in.async() {
			return h.svc.TrackSimple(ctx, sc, op, in.ID)
		}
		return h.svc.Simple(ctx, sc, op, in.ID)
	})
}

// Register adds all APS routes to the Huma API.
func Register(api huma.API, svc *app.Service) {
	h := &Handler{svc: svc}

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Health check",
		Tags:        []string{"Service"},
	}, func(_ context.Context, _ *struct{}) (*HealthOutput, error) {
		out := &HealthOutput{}
		out.Body.Status = "ok"
		return out, nil
	})

	registerTenant(api, h)
	registerTenantExtras(api, h)
	registerApp(api, h)
}

func registerTenant(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/tenant",
		Summary:     "Listing tenants is not allowed",
		Tags:        []string{"Tenants"},
	}, func(_ context.Context, _ *struct{}) (*APSOutput, error) {
		return message(http.StatusMethodNotAllowed, "Listing tenants is not allowed"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "purchase-tenant",
		Method:      http.MethodPost,
		Path:        "/tenant",
		Summary:     "Purchase a subscription",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, in *TenantDocInput) (*APSOutput, error) {
		if in.ScheduledOn != "" {
			return toOutput(app.ScheduleRejected()), nil
		}
		return h.run(ctx, func(sc app.Scope) (app.Response, error) {
			if in.async() {
				return h.svc.Track(ctx, sc, domain.OpPurchase, in.RawBody, "")
			}
			return h.svc.Purchase(ctx, sc, in.RawBody)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-tenant",
		Method:      http.MethodPut,
		Path:        "/tenant/{id}",
		Summary:     "Change the limits of a subscription",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, in *TenantChangeInput) (*APSOutput, error) {
		return h.run(ctx, func(sc app.Scope) (app.Response, error) {
			if in.async() {
				return h.svc.Track(ctx, sc, domain.OpChange, in.RawBody, in.ScheduledOn)
			}
			return h.svc.Change(ctx, sc, in.RawBody, in.ScheduledOn)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "poll-tenant",
		Method:      http.MethodGet,
		Path:        "/tenant/{id}",
		Summary:     "Report the state of the latest request",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, in *TenantInput) (*APSOutput, error) {
		return h.run(ctx, func(sc app.Scope) (app.Response, error) {
			return h.svc.Poll(ctx, sc, in.ID)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-tenant",
		Method:      http.MethodDelete,
		Path:        "/tenant/{id}",
		Summary:     "Cancel a subscription",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, in *TenantInput) (*APSOutput, error) {
		return h.simple(ctx, in, domain.OpCancel)
	})

	huma.Register(api, huma.Operation{
		OperationID: "suspend-tenant",
		Method:      http.MethodPut,
		Path:        "/tenant/{id}/disable",
		Summary:     "Suspend a subscription",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, in *TenantInput) (*APSOutput, error) {
		return h.simple(ctx, in, domain.OpSuspend)
	})

	huma.Register(api, huma.Operation{
		OperationID: "resume-tenant",
		Method:      http.MethodPut,
		Path:        "/tenant/{id}/enable",
		Summary:     "Resume a subscription",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, in *TenantInput) (*APSOutput, error) {
		return h.simple(ctx, in, domain.OpResume)
	})

	for _, path := range []string{"/tenant/{id}/billing", "/tenant/{id}/renew"} {
		huma.Register(api, huma.Operation{
			OperationID: "bill-tenant-" + strings.TrimPrefix(path, "/tenant/{id}/"),
			Method:      http.MethodPost,
			Path:        path,
			Summary:     "Report a subscription renewal for billing",
			Tags:        []string{"Tenants"},
		}, func(ctx context.Context, in *TenantBodyInput) (*APSOutput, error) {
			return h.run(ctx, func(sc app.Scope) (app.Response, error) {
				return h.svc.Bill(ctx, sc, in.ID, in.RawBody)
			})
		})
	}

	scheduled := map[string]domain.ScheduledOperation{
		"onActivateScheduledChanges": domain.ScheduledActivate,
		"onCancelScheduledChanges":   domain.ScheduledCancel,
	}
	for event, op := range scheduled {
		huma.Register(api, huma.Operation{
			OperationID: "scheduled-" + string(op),
			Method:      http.MethodPost,
			Path:        "/tenant/{id}/" + event,
			Summary:     "Handle a scheduled change event",
			Tags:        []string{"Tenants"},
		}, func(ctx context.Context, in *TenantBodyInput) (*APSOutput, error) {
			return h.run(ctx, func(sc app.Scope) (app.Response, error) {
				return h.svc.TrackScheduled(ctx, sc, in.ID, op)
			})
		})
	}
}

func registerTenantExtras(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "validate-change",
		Method:      http.MethodPost,
		Path:        "/tenant/{id}/validate",
		Summary:     "Validate a change draft",
		Tags:        []string{"Validation"},
	}, func(ctx context.Context, in *TenantValidateInput) (*APSOutput, error) {
		return h.run(ctx, func(sc app.Scope) (app.Response, error) {
			return h.svc.ValidateDraft(ctx, sc, app.ValidationInput{
				TenantID: in.ID,
				Customer: in.Customer,
				Raw:      in.RawBody,
			})
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "last-request-status",
		Method:      http.MethodGet,
		Path:        "/tenant/{id}/lastRequestStatus",
		Summary:     "Summarise the latest request",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, in *TenantInput) (*APSOutput, error) {
		return h.run(ctx, func(sc app.Scope) (app.Response, error) {
			return h.svc.LastRequestStatus(ctx, sc, in.ID)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "tenant-action",
		Method:      http.MethodPost,
		Path:        "/tenant/{id}/action/{action_id}",
		Summary:     "Resolve a product action link",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, in *TenantActionInput) (*APSOutput, error) {
		return h.run(ctx, func(sc app.Scope) (app.Response, error) {
			return h.svc.ActionLink(ctx, sc, in.ID, in.ActionID)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "migration-pre-check",
		Method:      http.MethodPost,
		Path:        "/tenant/{id}/migrationPreCheck",
		Summary:     "Allow moving a subscription between accounts",
		Tags:        []string{"Tenants"},
	}, func(_ context.Context, _ *TenantBodyInput) (*APSOutput, error) {
		return &APSOutput{Status: http.StatusOK, Body: map[string]bool{"canMigrate": true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "account-relink",
		Method:      http.MethodPost,
		Path:        "/tenant/{id}/account",
		Summary:     "Acknowledge an account relink",
		Tags:        []string{"Tenants"},
	}, func(_ context.Context, _ *TenantBodyInput) (*APSOutput, error) {
		return &APSOutput{Status: http.StatusNoContent}, nil
	})
}

func registerApp(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "create-app-instance",
		Method:      http.MethodPost,
		Path:        "/app",
		Summary:     "Register an application instance",
		Tags:        []string{"Application"},
	}, func(ctx context.Context, in *CreateAppInput) (*APSOutput, error) {
		var doc struct {
			APS domain.APSRef `json:"aps"`
		}
		if err := json.Unmarshal(in.RawBody, &doc); err != nil || doc.APS.ID == "" {
			return nil, huma.Error400BadRequest("application instance without aps id")
		}
		return h.run(ctx, func(sc app.Scope) (app.Response, error) {
			return h.svc.CreateAppInstance(ctx, sc, doc.APS)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-app-instance",
		Method:      http.MethodPut,
		Path:        "/app/{app_id}",
		Summary:     "Refresh an application instance",
		Tags:        []string{"Application"},
	}, func(ctx context.Context, in *AppInput) (*APSOutput, error) {
		return h.run(ctx, func(sc app.Scope) (app.Response, error) {
			return h.svc.UpdateAppInstance(ctx, sc, in.AppID, in.RawBody)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-app-instance",
		Method:      http.MethodDelete,
		Path:        "/app/{app_id}",
		Summary:     "Forget an application instance",
		Tags:        []string{"Application"},
	}, func(ctx context.Context, in *AppInput) (*APSOutput, error) {
		return h.run(ctx, func(_ app.Scope) (app.Response, error) {
			return h.svc.DeleteAppInstance(ctx, in.AppID)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "validate-purchase",
		Method:      http.MethodPost,
		Path:        "/app/{app_id}/validate",
		Summary:     "Validate a purchase draft",
		Tags:        []string{"Validation"},
	}, func(ctx context.Context, in *AppValidateInput) (*APSOutput, error) {
		return h.run(ctx, func(sc app.Scope) (app.Response, error) {
			return h.svc.ValidateDraft(ctx, sc, app.ValidationInput{
				AppID:    in.AppID,
				Customer: in.customer(),
				Raw:      in.RawBody,
			})
		})
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	var missing *domain.MissingRequiredFieldError
	if errors.As(err, &missing) {
		return huma.Error400BadRequest(missing.Error())
	}

	var period *domain.InvalidPeriodError
	if errors.As(err, &period) {
		return huma.Error400BadRequest(period.Error())
	}

	var phone *domain.InvalidPhoneError
	if errors.As(err, &phone) {
		return huma.Error409Conflict(phone.Error())
	}

	if errors.Is(err, domain.ErrConfigurationNotFound) {
		return huma.Error401Unauthorized("configuration not found")
	}

	if errors.Is(err, domain.ErrHubNotFound) {
		return huma.Error404NotFound(domain.ErrHubNotFound.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error409Conflict(trErr.Error())
	}

	var unexpected *domain.UnexpectedBackendError
	if errors.As(err, &unexpected) {
		return huma.Error500InternalServerError(unexpected.Cause.Joined())
	}

	return huma.Error500InternalServerError("internal server error")
}
