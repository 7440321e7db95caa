package app

import (
	"net/http"
	"strconv"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// Base and spread of the retry timeout announced to OA, in seconds.
const (
	retryTimeoutBase   = 60
	retryTimeoutSpread = 60
)

// Headers are the APS control headers of a response.
type Headers struct {
	RetryTimeout   string
	Info           string
	TransientError string
}

// Response is what the adapter answers to an OA call.
type Response struct {
	Status  int
	Body    any
	Headers Headers
}

// Answer is the tenant properties OA applies from a response, plus the error
// fields of a failure. Unset fields are left untouched by OA.
type Answer struct {
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`

	AccountInfo           *domain.AccountInfo     `json:"accountInfo,omitempty"`
	ActivationKey         *string                 `json:"activationKey,omitempty"`
	ParamsFormURL         *string                 `json:"paramsFormUrl,omitempty"`
	AssetID               *string                 `json:"assetId,omitempty"`
	MarketplaceID         *string                 `json:"marketPlaceId,omitempty"`
	VendorSubscriptionID  *string                 `json:"vendorSubscriptionId,omitempty"`
	ActivationDate        *string                 `json:"activationDate,omitempty"`
	DraftRequestID        *string                 `json:"draftRequestId,omitempty"`
	LastPlannedRequest    *string                 `json:"last_planned_request,omitempty"`
	ActivationParameters  []domain.ParameterValue `json:"activationParameters,omitzero"`
	FulfillmentParameters []domain.ParameterValue `json:"fulfillmentParameters,omitzero"`
	ActivationParams      []domain.RequestParam   `json:"activationParams,omitzero"`
}

func str(s string) *string { return &s }

// retryHeaders asks OA to poll again after a randomised delay.
func (s *Service) retryHeaders(info string) Headers {
	return Headers{
		RetryTimeout: strconv.Itoa(retryTimeoutBase + s.jitter(retryTimeoutSpread)),
		Info:         info,
	}
}

func noRetryHeaders() Headers {
	return Headers{TransientError: "False"}
}

func (s *Service) retry(info string) Response {
	if info == "" {
		info = msgWaitingVendor
	}
	return Response{Status: http.StatusAccepted, Body: Answer{}, Headers: s.retryHeaders(info)}
}

func accepted() Response {
	return Response{Status: http.StatusOK, Body: Answer{}}
}

func noContent() Response {
	return Response{Status: http.StatusNoContent}
}

func conflict(answer Answer) Response {
	return Response{Status: http.StatusConflict, Body: answer}
}

// RetryLater asks OA to repeat the call later, for backends that did not
// answer in time.
func (s *Service) RetryLater(info string) Response {
	return s.retry(info)
}
