package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chemfalcon/chembot/core"
	"github.com/chemfalcon/chembot/internal/util"
	"github.com/chemfalcon/chembot/logging"
	"github.com/chemfalcon/chembot/marketplace"
	"github.com/chemfalcon/chembot/model"
	"github.com/chemfalcon/chembot/tool"
)

// fetchFailedReply is returned without consulting the model when neither
// addresses nor industries could be fetched.
const fetchFailedReply = "I apologize, but I'm unable to fetch the required data (industries and addresses) at the moment. Please try again later or contact support."

// orderPlacedReply is the terminal-stage response once an order has gone
// through; the session accepts no further mutation.
const orderPlacedReply = "Your order has already been placed. Please start a new conversation if you'd like to order something else."

const finalizeInstructionTemplate = `You are completing a {{.RequestType}} request for {{.ProductName}}. The buyer still needs to pick an industry and a delivery address, confirm the summary, and place the order.

Work through these steps strictly in order:
1. Show the available industries as a numbered list (call list_industries) and ask the buyer to pick one. Record the choice with select_industry.
2. Show the saved delivery addresses as a numbered list (call list_addresses) and record the choice with select_address. The buyer may answer with a number, a full address, or part of an address line.
3. When both are recorded, call show_final_confirmation and present the summary.
4. Only after the buyer explicitly confirms the summary, call place_order with user_confirmed=true. Report the outcome exactly as the tool returns it.

Rules:
- Only ever offer industries and addresses returned by the tools. If a list is empty, say so - never invent entries.
- Never place the order without an explicit confirmation in the buyer's own words.
- If placement fails, relay the failure message and offer to retry.
{{if .Industry}}
Industry selected: {{.Industry}}{{end}}{{if .Address}}
Address selected: {{.Address}}{{end}}`

// autoTriggerNote is injected on the first turn of this stage so the model
// leads with the industry list instead of waiting for a question.
const autoTriggerNote = "SYSTEM NOTE: first interaction at this step - immediately show the industry list and ask the buyer to select one.\n\n"

// NewFinalizeAgent builds the last specialist: industry and address selection
// followed by order placement.
func NewFinalizeAgent(llm model.Model, market *marketplace.Client, logger logging.Logger) *Agent {
	a := &Agent{
		name:        "address_purpose",
		stage:       core.StageAddressPurpose,
		llm:         llm,
		tools:       map[string]tool.Tool{},
		instruction: finalizeInstruction,
		logger:      ensureLogger(logger),
	}

	a.prepare = func(ctx context.Context, s *core.Session, logger logging.Logger) (string, bool, error) {
		if s.OrderPlaced {
			return orderPlacedReply, true, nil
		}
		if s.CachedDataFetched {
			if len(s.CachedAddresses) == 0 && len(s.CachedIndustries) == 0 {
				return fetchFailedReply, true, nil
			}
			return "", false, nil
		}

		// One fetch per session; failures leave empty lists rather than
		// synthetic data.
		var fetchErr error
		addresses, err := market.GetAddresses(ctx, s.UserAuth)
		if err != nil {
			logger.Error("agent.finalize.addresses_failed", "error", err.Error())
			fetchErr = err
		}
		industries, err := market.GetIndustries(ctx)
		if err != nil {
			logger.Error("agent.finalize.industries_failed", "error", err.Error())
			fetchErr = err
		}

		s.CachedAddresses = addresses
		s.CachedIndustries = industries
		s.CachedDataFetched = true

		if len(addresses) == 0 && len(industries) == 0 {
			return fetchFailedReply, true, fetchErr
		}
		return "", false, nil
	}

	a.augment = func(s *core.Session, input string) string {
		if len(s.RecentHistory(1)) == 0 && len(s.CachedIndustries) > 0 {
			return autoTriggerNote + input
		}
		return input
	}

	a.register(newListIndustriesTool())
	a.register(newListAddressesTool())
	a.register(newSelectIndustryTool())
	a.register(newSelectAddressTool())
	a.register(newFinalConfirmationTool())
	a.register(newPlaceOrderTool(market))
	return a
}

func finalizeInstruction(s *core.Session) (string, error) {
	return util.RenderTemplate(finalizeInstructionTemplate, map[string]any{
		"RequestType": string(s.Request),
		"ProductName": s.ProductName,
		"Industry":    s.IndustryName,
		"Address":     addressLine(s.Address),
	})
}

func addressLine(address map[string]any) string {
	if address == nil {
		return ""
	}
	if line, ok := address["addressLine"].(string); ok {
		return line
	}
	return ""
}

// newListIndustriesTool formats the cached industry list with 1-based display
// indexes. An empty cache is an explicit error, never substituted data.
func newListIndustriesTool() tool.Tool {
	return tool.NewFunctionTool(
		"list_industries",
		"List the available industries the buyer can order under.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			industries := tc.Session().CachedIndustries
			if len(industries) == 0 {
				return map[string]any{
					"status":     "error",
					"industries": []any{},
					"count":      0,
					"message":    "industry list could not be fetched",
				}, nil
			}
			items := make([]map[string]any, len(industries))
			for i, ind := range industries {
				items[i] = map[string]any{"number": i + 1, "id": ind.ID, "name": ind.Name}
			}
			return map[string]any{"status": "success", "industries": items, "count": len(items)}, nil
		},
	)
}

// newListAddressesTool formats the cached address list with 1-based display
// indexes.
func newListAddressesTool() tool.Tool {
	return tool.NewFunctionTool(
		"list_addresses",
		"List the buyer's saved delivery addresses.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			addresses := tc.Session().CachedAddresses
			if len(addresses) == 0 {
				return map[string]any{
					"status":    "error",
					"addresses": []any{},
					"count":     0,
					"message":   "no saved addresses could be fetched",
				}, nil
			}
			items := make([]map[string]any, len(addresses))
			for i, addr := range addresses {
				items[i] = map[string]any{
					"number":       i + 1,
					"id":           addr["_id"],
					"address_line": addr["addressLine"],
					"city":         addr["city"],
				}
			}
			return map[string]any{"status": "success", "addresses": items, "count": len(items)}, nil
		},
	)
}

// newSelectIndustryTool stages an industry choice after checking it against
// the cached list.
func newSelectIndustryTool() tool.Tool {
	return tool.NewFunctionTool(
		"select_industry",
		"Record the buyer's industry choice. The id must come from the listed industries.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"industry_id":   map[string]any{"type": "string"},
				"industry_name": map[string]any{"type": "string"},
			},
			"required": []string{"industry_id", "industry_name"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id := stringArg(args, "industry_id")
			name := stringArg(args, "industry_name")
			for _, ind := range tc.Session().CachedIndustries {
				if ind.ID == id {
					staged := tc.Staged()
					staged.IndustryID = &ind.ID
					staged.IndustryName = &ind.Name
					return map[string]any{"status": "success", "industry": ind.Name}, nil
				}
			}
			tc.Logger().Warn("agent.finalize.industry_rejected", "industry_id", id, "industry_name", name)
			return map[string]any{
				"status":  "error",
				"message": "industry id not found in the listed industries; pick one from list_industries",
			}, nil
		},
	)
}

// newSelectAddressTool resolves the buyer's address choice. Accepted forms,
// in order: a complete cached record, a 1-based list index, a substring of an
// address line, and finally a bare number scanned from the raw user message.
func newSelectAddressTool() tool.Tool {
	return tool.NewFunctionTool(
		"select_address",
		"Record the buyer's delivery address choice. Pass the complete address record, its list number, or the address text.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"address": map[string]any{
					"description": "Complete address record from list_addresses, a list number, or address text",
				},
			},
			"required": []string{"address"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			cached := tc.Session().CachedAddresses
			selected := resolveAddress(args["address"], cached)

			if selected == nil {
				// Last resort: a bare number in the raw utterance.
				selected = addressFromUtterance(tc.RawInput(), cached)
			}
			if selected == nil {
				return map[string]any{
					"status":  "error",
					"message": "no valid address selected; choose one of the listed addresses",
				}, nil
			}

			tc.Staged().Address = selected
			return map[string]any{
				"status":       "success",
				"address_id":   selected["_id"],
				"address_line": selected["addressLine"],
			}, nil
		},
	)
}

func resolveAddress(arg any, cached []map[string]any) map[string]any {
	switch v := arg.(type) {
	case map[string]any:
		if v["_id"] != nil {
			return v
		}
	case float64:
		return addressAt(int(v), cached)
	case string:
		text := strings.TrimSpace(v)
		if n, err := strconv.Atoi(text); err == nil {
			return addressAt(n, cached)
		}
		lower := strings.ToLower(text)
		for _, addr := range cached {
			if line, ok := addr["addressLine"].(string); ok && strings.Contains(strings.ToLower(line), lower) {
				return addr
			}
		}
	}
	return nil
}

func addressAt(position int, cached []map[string]any) map[string]any {
	if position < 1 || position > len(cached) {
		return nil
	}
	return cached[position-1]
}

func addressFromUtterance(input string, cached []map[string]any) map[string]any {
	for _, word := range strings.Fields(input) {
		if n, err := strconv.Atoi(word); err == nil {
			if addr := addressAt(n, cached); addr != nil {
				return addr
			}
		}
	}
	return nil
}

// newFinalConfirmationTool builds the order summary once both the industry
// and the address are known (persisted or staged this turn).
func newFinalConfirmationTool() tool.Tool {
	return tool.NewFunctionTool(
		"show_final_confirmation",
		"Produce the order summary for the buyer to confirm. Only succeeds once industry and address are both selected.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			s := tc.Session()
			staged := tc.Staged()

			industry := s.IndustryName
			if staged.IndustryName != nil {
				industry = *staged.IndustryName
			}
			address := s.Address
			if staged.Address != nil {
				address = staged.Address
			}

			if industry == "" || address == nil {
				return map[string]any{
					"status":  "not_ready",
					"message": "industry and address must both be selected before confirmation",
				}, nil
			}

			return map[string]any{
				"status": "ready",
				"summary": map[string]any{
					"product":         s.ProductName,
					"request_type":    string(s.Request),
					"quantity":        fmt.Sprintf("%s %s", s.Detail(core.FieldQuantity), s.Detail(core.FieldUnit)),
					"price_per_unit":  s.Detail(core.FieldPricePerUnit),
					"expected_price":  s.Detail(core.FieldExpectedPrice),
					"delivery_date":   s.Detail(core.FieldDeliveryDate),
					"mode_of_payment": s.Detail(core.FieldModeOfPayment),
					"packaging":       s.Detail(core.FieldPackagingPref),
					"incoterm":        s.Detail(core.FieldIncoterm),
					"phone":           s.Detail(core.FieldPhone),
					"industry":        industry,
					"address":         address["addressLine"],
				},
			}, nil
		},
	)
}

// newPlaceOrderTool submits the order. Selections staged earlier in the same
// turn are applied to a working copy first, so a single turn can select an
// address and place the order. Success latches the session terminal.
func newPlaceOrderTool(market *marketplace.Client) tool.Tool {
	return tool.NewFunctionTool(
		"place_order",
		"Place the order with the marketplace. Call only after the buyer explicitly confirms the summary.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_confirmed": map[string]any{
					"type":        "boolean",
					"description": "True only when the buyer has explicitly confirmed the final summary",
				},
			},
			"required": []string{"user_confirmed"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			confirmed, _ := args["user_confirmed"].(bool)
			if !confirmed {
				return map[string]any{
					"status":  "error",
					"message": "user confirmation required to place the order",
				}, nil
			}

			working := tc.Session().Clone()
			tc.Staged().Apply(working)

			result := market.Place(tc.Context(), working)
			if !result.Success() {
				tc.Logger().Warn("agent.finalize.placement_failed",
					"error_type", result.ErrorType, "message", result.Message)
				return map[string]any{
					"status":       "error",
					"message":      fmt.Sprintf("Order failed: %s (Error: %s)", result.Message, result.ErrorType),
					"error_type":   result.ErrorType,
					"order_placed": false,
				}, nil
			}

			staged := tc.Staged()
			staged.OrderPlaced = true
			tc.Handoff(core.StageTerminal)

			payload := map[string]any{
				"status":       "success",
				"message":      result.Message,
				"order_placed": true,
			}
			if result.OrderID != "" {
				payload["order_id"] = result.OrderID
			}
			if result.RequirementID != "" {
				payload["requirement_id"] = result.RequirementID
			}
			return payload, nil
		},
	)
}
