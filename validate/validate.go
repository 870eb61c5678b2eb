// Package validate implements the field validators used while collecting
// transactional request details. Every validator returns the normalized value
// on success and a user-facing message on failure; validators never panic on
// malformed input.
package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/chemfalcon/chembot/core"
)

// Result is the outcome of validating one field.
type Result struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"` // Normalized value when valid
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"` // Violated constraint when invalid
}

// DefaultPhoneRegion is used for phone numbers supplied without a country
// prefix. The marketplace operates out of Bangladesh.
const DefaultPhoneRegion = "BD"

// Unit validates a unit of measurement. Matching is case-insensitive and the
// canonical uppercase form is returned.
func Unit(value string) Result {
	trimmed := strings.TrimSpace(value)
	upper := strings.ToUpper(trimmed)
	for _, opt := range core.SelectionOptions(core.FieldUnit) {
		if upper == opt {
			return Result{Field: core.FieldUnit, Value: opt, Valid: true}
		}
	}
	return Result{
		Field:   core.FieldUnit,
		Valid:   false,
		Message: fmt.Sprintf("unit must be one of %s", strings.Join(core.SelectionOptions(core.FieldUnit), ", ")),
	}
}

// Quantity validates a quantity against the product's bounds. Sample requests
// are exempt from the lower bound so a user can request a trial amount below
// the product's minimum order quantity; the upper bound always applies.
func Quantity(value string, request core.RequestType, minQty, maxQty float64) Result {
	qty, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return Result{Field: core.FieldQuantity, Valid: false, Message: "quantity must be a number"}
	}
	if qty <= 0 {
		return Result{Field: core.FieldQuantity, Valid: false, Message: "quantity must be greater than zero"}
	}
	if maxQty > 0 && qty > maxQty {
		return Result{
			Field:   core.FieldQuantity,
			Valid:   false,
			Message: fmt.Sprintf("quantity exceeds the product maximum of %s", formatNumber(maxQty)),
		}
	}
	if !request.IsSample() && minQty > 0 && qty < minQty {
		return Result{
			Field:   core.FieldQuantity,
			Valid:   false,
			Message: fmt.Sprintf("quantity is below the product minimum of %s", formatNumber(minQty)),
		}
	}
	return Result{Field: core.FieldQuantity, Value: formatNumber(qty), Valid: true}
}

// PricePerUnit validates an offered per-unit price as a positive number.
func PricePerUnit(value string) Result {
	price, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return Result{Field: core.FieldPricePerUnit, Valid: false, Message: "price per unit must be a number"}
	}
	if price <= 0 {
		return Result{Field: core.FieldPricePerUnit, Valid: false, Message: "price per unit must be greater than zero"}
	}
	return Result{Field: core.FieldPricePerUnit, Value: formatNumber(price), Valid: true}
}

// DeliveryDate validates a delivery date. The date must be well formed
// (YYYY-MM-DD) and strictly after today; a date equal to today is rejected.
func DeliveryDate(value string, now time.Time) Result {
	trimmed := strings.TrimSpace(value)
	parsed, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return Result{
			Field:   core.FieldDeliveryDate,
			Valid:   false,
			Message: "delivery date must be in YYYY-MM-DD format",
		}
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !parsed.After(today) {
		return Result{
			Field:   core.FieldDeliveryDate,
			Valid:   false,
			Message: "delivery date must be after today, in YYYY-MM-DD format",
		}
	}
	return Result{Field: core.FieldDeliveryDate, Value: trimmed, Valid: true}
}

// Selection validates a value against the canonical option list of a
// select-type field. Matching is case-insensitive; the canonical casing is
// returned, not the user's raw input.
func Selection(field, value string) Result {
	options := core.SelectionOptions(field)
	if options == nil {
		return Result{Field: field, Valid: false, Message: fmt.Sprintf("%s is not a selection field", field)}
	}
	trimmed := strings.TrimSpace(value)
	for _, opt := range options {
		if strings.EqualFold(trimmed, opt) {
			return Result{Field: field, Value: opt, Valid: true}
		}
	}
	return Result{
		Field:   field,
		Valid:   false,
		Message: fmt.Sprintf("%s must be one of %s", field, strings.Join(options, ", ")),
	}
}

// Phone validates a contact number as a structurally plausible international
// phone number. Numbers without a country prefix are interpreted against
// DefaultPhoneRegion. The E.164 form is returned on success.
func Phone(value string) Result {
	trimmed := strings.TrimSpace(value)
	num, err := phonenumbers.Parse(trimmed, DefaultPhoneRegion)
	if err != nil {
		return Result{
			Field:   core.FieldPhone,
			Valid:   false,
			Message: "phone number could not be parsed, include the country code (e.g. +8801712345678)",
		}
	}
	if !phonenumbers.IsValidNumber(num) {
		return Result{
			Field:   core.FieldPhone,
			Valid:   false,
			Message: "phone number is not valid for its region",
		}
	}
	return Result{
		Field: core.FieldPhone,
		Value: phonenumbers.Format(num, phonenumbers.E164),
		Valid: true,
	}
}

// ExpectedPrice computes quantity * price_per_unit. Non-numeric input yields
// a zero result with ok=false, never an error.
func ExpectedPrice(quantity, pricePerUnit string) (float64, bool) {
	qty, err1 := strconv.ParseFloat(strings.TrimSpace(quantity), 64)
	price, err2 := strconv.ParseFloat(strings.TrimSpace(pricePerUnit), 64)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return qty * price, true
}

// Field dispatches a single field value to its validator. Unknown fields are
// accepted verbatim so forward-compatible extra fields do not block a user.
func Field(field, value string, request core.RequestType, minQty, maxQty float64) Result {
	switch field {
	case core.FieldUnit:
		return Unit(value)
	case core.FieldQuantity:
		return Quantity(value, request, minQty, maxQty)
	case core.FieldPricePerUnit:
		return PricePerUnit(value)
	case core.FieldExpectedPrice:
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return Result{Field: field, Valid: false, Message: "expected price must be a number"}
		}
		return Result{Field: field, Value: strings.TrimSpace(value), Valid: true}
	case core.FieldDeliveryDate:
		return DeliveryDate(value, time.Now())
	case core.FieldIncoterm, core.FieldModeOfPayment, core.FieldPackagingPref:
		return Selection(field, value)
	case core.FieldPhone:
		return Phone(value)
	default:
		return Result{Field: field, Value: value, Valid: true}
	}
}

// Bulk validates a batch of fields with an all-or-nothing commit policy: when
// any field fails, no field is committed and the failures are returned so the
// user can be re-prompted with the violated constraints.
func Bulk(fields map[string]string, request core.RequestType, minQty, maxQty float64) (map[string]string, []Result) {
	committed := make(map[string]string, len(fields))
	var failures []Result
	for field, value := range fields {
		res := Field(field, value, request, minQty, maxQty)
		if !res.Valid {
			failures = append(failures, res)
			continue
		}
		committed[res.Field] = res.Value
	}
	if len(failures) > 0 {
		return nil, failures
	}
	return committed, nil
}

// formatNumber renders a float without a trailing ".000000" when the value is
// integral, matching how quantities read in chat.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
