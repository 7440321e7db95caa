package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BillingTimeFormat is the timestamp layout of OA billing events.
const BillingTimeFormat = "2006-01-02T15:04:05Z"

// Billing units of measure.
const (
	UOMDaily   = "daily"
	UOMHourly  = "hourly"
	UOMMonthly = "monthly"
	UOMYearly  = "yearly"
)

var periodUnits = map[string]string{
	"Day(s)":   UOMDaily,
	"Hour(s)":  UOMHourly,
	"Month(s)": UOMMonthly,
	"Year(s)":  UOMYearly,
}

// Messages of the billing validation failures.
const (
	msgIncorrectBilling  = "Incorrect billing information data"
	msgUnsupportedPeriod = "Unsupported period type."
)

// BillingEvent is the renewal notification OA sends for a tenant.
type BillingEvent struct {
	Period     string
	PeriodType string
	StartDate  string
}

// NewBillingEvent parses an OA billing event. The new period starts at the
// expiration date of the previous one, or at startDate when absent.
func NewBillingEvent(raw []byte) (BillingEvent, error) {
	var doc struct {
		Parameters *struct {
			NewPeriod *struct {
				Period     json.RawMessage `json:"period" validate:"required"`
				PeriodType *string         `json:"periodType" validate:"required"`
			} `json:"newPeriod" validate:"required"`
			ExpirationDate string `json:"expirationDate"`
			StartDate      string `json:"startDate"`
		} `json:"parameters" validate:"required"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return BillingEvent{}, fmt.Errorf("decoding event: %w", err)
	}
	if err := validateStruct("event", doc); err != nil {
		return BillingEvent{}, err
	}

	start := doc.Parameters.ExpirationDate
	if start == "" {
		start = doc.Parameters.StartDate
	}
	if start == "" {
		return BillingEvent{}, &MissingRequiredFieldError{Object: "event", Field: "parameters.startDate"}
	}

	period := strings.Trim(string(doc.Parameters.NewPeriod.Period), `"`)
	return BillingEvent{
		Period:     period,
		PeriodType: *doc.Parameters.NewPeriod.PeriodType,
		StartDate:  start,
	}, nil
}

// BillingPeriod is the period block of a provider subscription request.
type BillingPeriod struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Delta int    `json:"delta"`
	UOM   string `json:"uom"`
}

// CoveredPeriod computes the billing period covered by the event. Calendar months
// are clamped to the end of the target month and Feb 29 maps to Feb 28 in
// non-leap years.
func (e BillingEvent) CoveredPeriod() (BillingPeriod, error) {
	from, err := time.Parse(BillingTimeFormat, e.StartDate)
	if err != nil {
		return BillingPeriod{}, &InvalidPeriodError{Reason: msgIncorrectBilling}
	}
	delta, err := strconv.Atoi(e.Period)
	if err != nil {
		return BillingPeriod{}, &InvalidPeriodError{Reason: msgIncorrectBilling}
	}
	uom, ok := periodUnits[e.PeriodType]
	if !ok {
		return BillingPeriod{}, &InvalidPeriodError{Reason: msgUnsupportedPeriod}
	}

	var to time.Time
	switch uom {
	case UOMDaily:
		to = from.AddDate(0, 0, delta)
	case UOMHourly:
		to = from.Add(time.Duration(delta) * time.Hour)
	case UOMMonthly:
		to = addMonths(from, delta)
	case UOMYearly:
		to = addMonths(from, 12*delta)
	}

	return BillingPeriod{
		From:  e.StartDate,
		To:    to.Format(BillingTimeFormat),
		Delta: delta,
		UOM:   uom,
	}, nil
}

// addMonths adds calendar months without overflowing into the next month.
func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)
	last := target.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// BillingRequestBody is the provider subscription request posted to Connect.
type BillingRequestBody struct {
	Type   RequestType   `json:"type"`
	Asset  AssetBody     `json:"asset"`
	Items  []Item        `json:"items"`
	Period BillingPeriod `json:"period"`
}

// NewBillingBody builds the provider request for a renewal. Zero quantities
// and system counters are left out.
func NewBillingBody(tenant Tenant, period BillingPeriod) BillingRequestBody {
	items := tenant.PurchasedItems()
	if items == nil {
		items = []Item{}
	}
	return BillingRequestBody{
		Type:   TypeProvider,
		Asset:  AssetBody{ExternalUID: tenant.ID},
		Items:  items,
		Period: period,
	}
}
