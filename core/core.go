package core

import (
	"strings"

	"github.com/google/uuid"
)

// Stage identifies which agent currently owns a session. Exactly one stage is
// active at a time; routing dispatches on this value and handoffs mutate it
// through the pure Transition function.
type Stage string

const (
	// StageProductRequest is the initial stage: resolve a free-text query to
	// a confirmed product record plus a request type.
	StageProductRequest Stage = "product_request"
	// StageRequestDetails collects and validates the transactional fields.
	StageRequestDetails Stage = "request_details"
	// StageAddressPurpose collects delivery address and industry and places
	// the order.
	StageAddressPurpose Stage = "address_purpose"
	// StageTerminal is entered after a successful order placement. A terminal
	// session accepts no further mutations.
	StageTerminal Stage = "terminal"
)

// ParseStage maps a stored string onto a known stage. Unknown values fall back
// to StageProductRequest so a corrupted session restarts at the beginning
// instead of wedging.
func ParseStage(s string) Stage {
	switch Stage(s) {
	case StageProductRequest, StageRequestDetails, StageAddressPurpose, StageTerminal:
		return Stage(s)
	default:
		return StageProductRequest
	}
}

// CanTransition reports whether a handoff from one stage to another is legal.
// The pipeline only moves forward; the sole successor of address_purpose is
// terminal.
func CanTransition(from, to Stage) bool {
	switch from {
	case StageProductRequest:
		return to == StageRequestDetails
	case StageRequestDetails:
		return to == StageAddressPurpose
	case StageAddressPurpose:
		return to == StageTerminal
	default:
		return false
	}
}

// RequestType tags what kind of transaction the user is preparing.
type RequestType string

const (
	RequestSample RequestType = "Sample"
	RequestQuote  RequestType = "Quote"
	RequestPPR    RequestType = "PPR"
	RequestOrder  RequestType = "Order"
)

// ParseRequestType normalizes a free-form tag (any casing, common synonyms)
// to a canonical RequestType. The second result is false when the tag is not
// recognized.
func ParseRequestType(s string) (RequestType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sample":
		return RequestSample, true
	case "quote", "quotation":
		return RequestQuote, true
	case "ppr", "purchase price request":
		return RequestPPR, true
	case "order", "purchase order":
		return RequestOrder, true
	default:
		return "", false
	}
}

// IsSample reports whether the request type is a sample request, which
// relaxes the minimum-quantity rule.
func (r RequestType) IsSample() bool { return r == RequestSample }

// NewID generates a unique identifier for sessions and correlation.
func NewID() string { return uuid.NewString() }
