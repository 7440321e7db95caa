package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

const (
	msgWaitingVendor      = "Waiting vendor to process request"
	msgWaitingActivation  = "Waiting for subscription to be activated"
	msgWaitingChange      = "Waiting for limits change to be approved"
	msgTenantUnreadable   = "Error when obtaining tenant object from APS bus"
	msgEmptyItems         = "All items purchased has quantity 0, at least one item must be purchased"
	msgMarketplaceMisconf = "There is a marketplace misconfiguration that prevents order processing. " +
		"Ensure that one of the involved tiers in this request matches a marketplace configured in CloudBlue Connect."
	msgChangeWhileSuspended = "Change is not allowed when asset is in suspended state at vendor side, resume it first"
	msgPlannedNotSupported  = "Scheduled actions are not supported by installed product, please contact support to upgrade it"
	msgScheduleRejected     = "An scheduled operation has been requested and is not supported yet"
	msgValidationError      = "Missing connection from this hub or missing assetId for change requests"
	msgValidationMessage    = "Validation can't be performed at this moment on time"

	errProvisioningFailed = "ProvisioningFailed"
	errNotSupported       = "NotSupported"
	errConflict           = "CONFLICT"

	utcOffset = "+00:00"
	separator = ">>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>"
)

func vendorLabel(req domain.Request) string {
	v := req.Asset.Connection.Vendor
	if v.ID == "" || v.Name == "" {
		return ""
	}
	return fmt.Sprintf("%s (%s) ", v.Name, v.ID)
}

// pendingInfo describes what OA is waiting for while the vendor works on req.
func pendingInfo(req domain.Request) string {
	var msg string
	if req.Status == domain.StatusTiersSetup {
		msg = fmt.Sprintf("Waiting vendor %sto complete related tier requests for request %s on asset %s",
			vendorLabel(req), req.ID, req.Asset.ID)
	} else {
		msg = fmt.Sprintf("Waiting vendor %sto complete request %s on asset %s",
			vendorLabel(req), req.ID, req.Asset.ID)
	}

	if req.PlannedDate == "" {
		return msg
	}
	switch req.Status {
	case domain.StatusScheduled:
		date := strings.ReplaceAll(req.PlannedDate, "T", " at ")
		date = strings.ReplaceAll(date, utcOffset, " UTC")
		msg += ". Vendor has scheduled the request to be processed on " + date
	case domain.StatusRevoking:
		msg += ". Request has been requested to be revoked by provider but vendor did not process it yet."
	}
	return msg
}

func inquireInfo(req domain.Request) string {
	var name, email string
	if c := req.Asset.Tiers.Customer; c != nil && c.ContactInfo != nil {
		person := c.ContactInfo.Contact
		name = person.FirstName + " " + person.LastName
		email = person.Email
	}
	return fmt.Sprintf("Vendor %shas set request %s for asset %s to inquire. "+
		"Technical Contact %s has been notified at email %s to populate form %s",
		vendorLabel(req), req.ID, req.Asset.ID, name, email, req.ParamsFormURL)
}

func approvedInfo(req domain.Request) string {
	return fmt.Sprintf("Vendor has approved request %s for asset %s", req.ID, req.Asset.ID)
}

// noRequest answers a poll for a tenant Connect knows nothing about.
func noRequest(tenantID string) Response {
	return Response{
		Status: http.StatusConflict,
		Body: Answer{
			StatusCode: http.StatusConflict,
			Error:      "No request for APS tenant with id " + tenantID,
			Message:    "We did not found an asset that matches the APS id " + tenantID,
		},
		Headers: noRetryHeaders(),
	}
}

// failed answers a poll whose request was rejected or revoked by the vendor.
func failed(req domain.Request) Response {
	var b strings.Builder
	fmt.Fprintf(&b, "\n\nThe %s request %s has not been completed.\n", req.Type, req.ID)
	if req.Status == domain.StatusRevoked {
		b.WriteString("The vendor has accepted revoking the request done by provider with following reason:\n\n ")
		b.WriteString(separator + "\n\n")
		b.WriteString("Revokation reason: " + req.Reason)
	} else {
		b.WriteString("The vendor has rejected the request with following reason:\n\n")
		b.WriteString(separator + "\n\n")
		b.WriteString("Message from the Vendor: " + req.Reason)
	}
	b.WriteString("\n\n" + separator + "\n\n")
	if req.Type == domain.TypePurchase {
		b.WriteString("Important note: submitting again this order will fail due previous reason\n" +
			"please create a new purchase request to correct it or contact support")
	}

	return Response{
		Status: http.StatusConflict,
		Body: Answer{
			StatusCode: http.StatusConflict,
			Error:      fmt.Sprintf("Vendor has failed request %s with following reason: %s", req.ID, req.Reason),
			Message:    b.String(),
		},
		Headers: noRetryHeaders(),
	}
}

// approved answers a poll whose request the vendor approved. Inquiry
// leftovers and the original ordering parameters are cleared.
func approved(req domain.Request, answer Answer, draftRequestID string) Response {
	answer.ActivationKey = str("")
	answer.ParamsFormURL = str("")
	if key, ok := req.ApprovalKey(); ok {
		answer.ActivationKey = str(key)
	}
	if draftRequestID != "" {
		answer.DraftRequestID = str("")
	}
	answer.ActivationParams = []domain.RequestParam{}

	return Response{
		Status:  http.StatusOK,
		Body:    answer,
		Headers: Headers{Info: approvedInfo(req)},
	}
}

// pending answers a poll whose request is still in the vendor's hands.
func (s *Service) pending(req domain.Request, op domain.Operation, answer Answer) Response {
	if op == domain.OpPurchase {
		answer.ActivationKey = str("")
	}
	answer.ParamsFormURL = str("")
	return Response{
		Status:  http.StatusAccepted,
		Body:    answer,
		Headers: s.retryHeaders(pendingInfo(req)),
	}
}

func (s *Service) inquiring(req domain.Request, op domain.Operation, answer Answer) Response {
	if op == domain.OpPurchase {
		message := ""
		if req.Template != nil {
			message = req.Template.Message
		}
		answer.ActivationKey = str(message)
		answer.ParamsFormURL = str(req.ParamsFormURL)
	}
	return Response{
		Status:  http.StatusAccepted,
		Body:    answer,
		Headers: s.retryHeaders(inquireInfo(req)),
	}
}

// ScheduleRejected answers an operation OA asked to run at a planned date.
func ScheduleRejected() Response {
	return Response{Status: http.StatusBadRequest, Body: Answer{Message: msgScheduleRejected}}
}

func validationNotPossible() Response {
	return conflict(Answer{Error: msgValidationError, Message: msgValidationMessage})
}
