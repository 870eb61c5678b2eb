package core

import "strings"

// Detail field names collected by the request-details stage.
const (
	FieldUnit          = "unit"
	FieldQuantity      = "quantity"
	FieldPricePerUnit  = "price_per_unit"
	FieldExpectedPrice = "expected_price"
	FieldPhone         = "phone"
	FieldIncoterm      = "incoterm"
	FieldModeOfPayment = "mode_of_payment"
	FieldPackagingPref = "packaging_pref"
	FieldDeliveryDate  = "delivery_date"
)

// FieldInfo carries the validation metadata stored alongside a required field
// when the session is expanded for a new stage. It is surfaced to the model
// inside the instruction so the agent can restate constraints.
type FieldInfo struct {
	Type        string   `json:"type"`
	Options     []string `json:"options,omitempty"`
	Validation  string   `json:"validation,omitempty"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
}

// fieldMetadata is the static field definition table. Options listed here are
// the canonical casings returned by the selection validator.
var fieldMetadata = map[string]FieldInfo{
	FieldUnit: {
		Type:        "select",
		Options:     []string{"KG", "GAL", "LB", "L"},
		Description: "Unit of measurement for the product - select from KG, GAL, LB, or L",
		Required:    true,
	},
	FieldQuantity: {
		Type:        "number",
		Validation:  "quantity_bounds",
		Description: "Quantity required, within the product's minimum and maximum",
		Required:    true,
	},
	FieldPricePerUnit: {
		Type:        "number",
		Validation:  "positive_number",
		Description: "Offered price per unit in BDT",
		Required:    true,
	},
	FieldExpectedPrice: {
		Type:        "calculated",
		Validation:  "quantity * price_per_unit",
		Description: "Automatically calculated total price",
		Required:    true,
	},
	FieldPhone: {
		Type:        "phone",
		Validation:  "phone_number",
		Description: "Contact phone number in international format",
		Required:    true,
	},
	FieldIncoterm: {
		Type:        "select",
		Options:     []string{"Ex Factory", "Deliver to Buyer Factory"},
		Description: "International commercial terms",
		Required:    true,
	},
	FieldModeOfPayment: {
		Type:        "select",
		Options:     []string{"LC", "TT", "Cash"},
		Description: "Payment method",
		Required:    true,
	},
	FieldPackagingPref: {
		Type:        "select",
		Options:     []string{"Bulk Tanker", "PP Bag", "Jerry Can", "Drum"},
		Description: "Packaging preference",
		Required:    true,
	},
	FieldDeliveryDate: {
		Type:        "date",
		Validation:  "future_date",
		Description: "Delivery date in YYYY-MM-DD form, after today",
		Required:    true,
	},
}

// FieldMeta returns the static metadata for a detail field.
func FieldMeta(field string) (FieldInfo, bool) {
	fi, ok := fieldMetadata[field]
	return fi, ok
}

// SelectionOptions returns the canonical option list for a select-type field,
// or nil when the field is not enumerated.
func SelectionOptions(field string) []string {
	fi, ok := fieldMetadata[field]
	if !ok || fi.Type != "select" {
		return nil
	}
	return fi.Options
}

// RequiredFields is the static request-type → required-field table. PPR is a
// lighter-weight request and omits the delivery-logistics fields the other
// types require. Unrecognized request types fall back to the base set.
func RequiredFields(request RequestType) []string {
	base := []string{FieldUnit, FieldQuantity, FieldPricePerUnit, FieldExpectedPrice}
	switch strings.ToLower(string(request)) {
	case "order", "sample", "quote":
		return append(base,
			FieldPhone, FieldIncoterm, FieldModeOfPayment, FieldPackagingPref, FieldDeliveryDate)
	case "ppr":
		return append(base, FieldDeliveryDate)
	default:
		return base
	}
}

// CompletedFields filters the required set down to fields that already carry
// a non-empty, non-zero value.
func CompletedFields(details map[string]string, required []string) []string {
	var done []string
	for _, f := range required {
		switch details[f] {
		case "", "0":
		default:
			done = append(done, f)
		}
	}
	return done
}

// PendingFields returns the required fields not yet completed, preserving
// table order.
func PendingFields(details map[string]string, required []string) []string {
	completed := map[string]bool{}
	for _, f := range CompletedFields(details, required) {
		completed[f] = true
	}
	var pending []string
	for _, f := range required {
		if !completed[f] {
			pending = append(pending, f)
		}
	}
	return pending
}

// ExpandForDetails performs the one-time session expansion run when control
// passes to the request-details stage: every required field is initialized
// (empty) and its validation metadata recorded on the session.
func ExpandForDetails(s *Session) {
	required := RequiredFields(s.Request)
	if s.Details == nil {
		s.Details = map[string]string{}
	}
	if s.Validation == nil {
		s.Validation = map[string]FieldInfo{}
	}
	for _, f := range required {
		if _, ok := s.Details[f]; !ok {
			s.Details[f] = ""
		}
		if meta, ok := fieldMetadata[f]; ok {
			s.Validation[f] = meta
		}
	}
}

// ExpandForFinalize initializes the address/industry slots for the final
// stage.
func ExpandForFinalize(s *Session) {
	s.Address = nil
	s.IndustryID = ""
	s.IndustryName = ""
}
