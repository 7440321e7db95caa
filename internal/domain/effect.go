package domain

// EffectKind names a best-effort side effect.
type EffectKind string

const (
	// EffectRenewalSubscription subscribes a tenant to OA renewal events.
	EffectRenewalSubscription EffectKind = "renewal_subscription"
	// EffectTenantWriteBack copies the outcome of a request onto the OA tenant.
	EffectTenantWriteBack EffectKind = "tenant_write_back"
)

// Effect is work that follows a response but must never change it. Failures
// are logged and retried by the queue, never surfaced to OA.
type Effect struct {
	ID       string     `json:"id"`
	Kind     EffectKind `json:"kind"`
	TenantID string     `json:"tenant_id"`
	Origin   Origin     `json:"origin"`
	Request  *Request   `json:"request,omitempty"`
	// Schedule is set when the request was a scheduled change. An activated
	// change also resets the scheduled request pointer.
	Schedule ScheduledOperation `json:"schedule,omitempty"`
}
