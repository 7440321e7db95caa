package domain

// Operation is a lifecycle operation OA asks the adapter to carry out.
type Operation string

const (
	OpPurchase Operation = "purchase"
	OpChange   Operation = "change"
	OpSuspend  Operation = "suspend"
	OpResume   Operation = "resume"
	OpCancel   Operation = "cancel"
)

// RequestType is the Connect request type the operation creates.
func (o Operation) RequestType() RequestType {
	return RequestType(o)
}

// Simple reports whether the operation only references an existing asset.
func (o Operation) Simple() bool {
	return o == OpSuspend || o == OpResume || o == OpCancel
}

// Phase is the OA provisioning phase of a webhook.
type Phase string

const (
	PhaseSync  Phase = "sync"
	PhaseAsync Phase = "async"
)

// ScheduledOperation is the kind of scheduled-change event OA delivers.
type ScheduledOperation string

const (
	ScheduledActivate ScheduledOperation = "activate"
	ScheduledCancel   ScheduledOperation = "cancel"
)

// OA event types and handlers the adapter subscribes tenants to.
const (
	RenewEventType           = "http://parallels.com/aps/events/pa/subscription/renewed"
	RenewHandler             = "renewSubscription"
	DelayedActivationType    = "http://parallels.com/aps/events/pa/subscription/activate/changes"
	DelayedActivationHandler = "onActivateScheduledChanges"
	DelayedCancelType        = "http://parallels.com/aps/events/pa/subscription/cancel/changes"
	DelayedCancelHandler     = "onCancelScheduledChanges"
	SubscriptionSourceType   = "http://parallels.com/aps/types/pa/subscription/1.0"
)

// EventSubscription is an OA event subscription on a resource.
type EventSubscription struct {
	Event    string      `json:"event"`
	Source   EventSource `json:"source"`
	Relation string      `json:"relation"`
	Handler  string      `json:"handler"`
}

// EventSource is the resource type an event originates from.
type EventSource struct {
	Type string `json:"type"`
}

// NewEventSubscription subscribes a tenant to subscription-level events.
func NewEventSubscription(event, handler string) EventSubscription {
	return EventSubscription{
		Event:   event,
		Source:  EventSource{Type: SubscriptionSourceType},
		Handler: handler,
	}
}
