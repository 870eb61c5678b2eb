package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chemfalcon/chembot/core"
	"github.com/chemfalcon/chembot/internal/util"
	"github.com/chemfalcon/chembot/logging"
	"github.com/chemfalcon/chembot/model"
	"github.com/chemfalcon/chembot/tool"
	"github.com/chemfalcon/chembot/validate"
)

const detailsInstructionTemplate = `You are collecting the transactional details for a confirmed {{.RequestType}} request of {{.ProductName}}.

Required fields and their rules:
{{.FieldRules}}
Progress: {{.Completed}} of {{.Total}} fields collected.{{if .Pending}}
Still needed: {{join ", " .Pending}}.{{end}}

How to work:
- When the buyer supplies one or more values, call extract_and_validate_bulk with everything they provided in one call. Validation is all-or-nothing: if any value is rejected, nothing is saved and you must re-ask for the rejected values, restating the exact rule that was violated.
- expected_price is computed from quantity and price_per_unit; never ask the buyer for it.
- Use validate_single to pre-check a value when the buyer asks whether something would be accepted.
- After each successful save, call check_completion. When every field is collected it hands the buyer to the delivery team; tell the buyer that is happening.
- Ask for at most two or three missing fields at a time, in the order listed above.`

// NewDetailsAgent builds the second-stage specialist: validated collection of
// the transactional fields required by the confirmed request type.
func NewDetailsAgent(llm model.Model, logger logging.Logger) *Agent {
	a := &Agent{
		name:        "request_details",
		stage:       core.StageRequestDetails,
		llm:         llm,
		tools:       map[string]tool.Tool{},
		instruction: detailsInstruction,
		logger:      ensureLogger(logger),
	}

	a.register(newBulkValidateTool())
	a.register(newValidateSingleTool())
	a.register(newExpectedPriceTool())
	a.register(newCommitFieldTool())
	a.register(newCheckCompletionTool())
	return a
}

func detailsInstruction(s *core.Session) (string, error) {
	required := core.RequiredFields(s.Request)
	completed := core.CompletedFields(s.Details, required)
	pending := core.PendingFields(s.Details, required)

	var rules strings.Builder
	for _, field := range required {
		meta, ok := core.FieldMeta(field)
		if !ok {
			continue
		}
		if len(meta.Options) > 0 {
			fmt.Fprintf(&rules, "- %s: %s (options: %s)\n", field, meta.Description, strings.Join(meta.Options, ", "))
		} else {
			fmt.Fprintf(&rules, "- %s: %s\n", field, meta.Description)
		}
	}

	return util.RenderTemplate(detailsInstructionTemplate, map[string]any{
		"RequestType": string(s.Request),
		"ProductName": s.ProductName,
		"FieldRules":  rules.String(),
		"Completed":   len(completed),
		"Total":       len(required),
		"Pending":     pending,
	})
}

// quantityBounds reads the product's min/max quantity from the confirmed
// product record. Zero means "no bound".
func quantityBounds(s *core.Session) (minQty, maxQty float64) {
	return numberField(s.Product, "minQuantity"), numberField(s.Product, "maxQuantity")
}

func numberField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

// argText renders a JSON argument value as the string form the validators
// expect. Numbers arrive as float64 from the decoder.
func argText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// newBulkValidateTool validates a batch of fields with the all-or-nothing
// policy and stages the batch on success. When the batch carries a valid
// quantity and price_per_unit the expected price is computed and staged too.
func newBulkValidateTool() tool.Tool {
	return tool.NewFunctionTool(
		"extract_and_validate_bulk",
		"Validate and save every field value the buyer supplied in this message. All values must pass or none are saved.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"fields": map[string]any{
					"type":        "object",
					"description": "Mapping of field name to the value the buyer supplied, e.g. {\"unit\": \"kg\", \"quantity\": 500}",
				},
			},
			"required": []string{"fields"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			raw, _ := args["fields"].(map[string]any)
			if len(raw) == 0 {
				return nil, tool.NewToolError("extract_and_validate_bulk", "no fields supplied", core.ErrCodeValidation)
			}

			fields := make(map[string]string, len(raw))
			for name, value := range raw {
				fields[name] = argText(value)
			}

			s := tc.Session()
			minQty, maxQty := quantityBounds(s)
			committed, failures := validate.Bulk(fields, s.Request, minQty, maxQty)
			if len(failures) > 0 {
				return map[string]any{
					"status":   "error",
					"message":  "validation failed, no fields were saved",
					"failures": failures,
				}, nil
			}

			// Derive the total when both inputs are now known.
			quantity := firstNonEmpty(committed[core.FieldQuantity], s.Detail(core.FieldQuantity))
			price := firstNonEmpty(committed[core.FieldPricePerUnit], s.Detail(core.FieldPricePerUnit))
			if quantity != "" && price != "" {
				if total, ok := validate.ExpectedPrice(quantity, price); ok {
					committed[core.FieldExpectedPrice] = strconv.FormatFloat(total, 'f', -1, 64)
				}
			}

			for field, value := range committed {
				tc.Staged().SetDetail(field, value)
			}

			return map[string]any{
				"status":       "success",
				"saved_fields": committed,
			}, nil
		},
	)
}

// newValidateSingleTool validates one value without committing it.
func newValidateSingleTool() tool.Tool {
	return tool.NewFunctionTool(
		"validate_single",
		"Check whether a single field value would be accepted, without saving it.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"field_name":  map[string]any{"type": "string"},
				"field_value": map[string]any{"type": "string"},
			},
			"required": []string{"field_name", "field_value"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			s := tc.Session()
			minQty, maxQty := quantityBounds(s)
			result := validate.Field(stringArg(args, "field_name"), argText(args["field_value"]), s.Request, minQty, maxQty)
			return result, nil
		},
	)
}

// newExpectedPriceTool computes and stages quantity * price_per_unit.
func newExpectedPriceTool() tool.Tool {
	return tool.NewFunctionTool(
		"compute_expected_price",
		"Compute the total expected price as quantity times price per unit and save it.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"quantity":       map[string]any{"type": "number"},
				"price_per_unit": map[string]any{"type": "number"},
			},
			"required": []string{"quantity", "price_per_unit"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			total, ok := validate.ExpectedPrice(argText(args["quantity"]), argText(args["price_per_unit"]))
			if !ok {
				return map[string]any{
					"status":           "error",
					"calculated_value": 0,
					"message":          "quantity and price_per_unit must both be numeric",
				}, nil
			}
			value := strconv.FormatFloat(total, 'f', -1, 64)
			tc.Staged().SetDetail(core.FieldExpectedPrice, value)
			return map[string]any{
				"status":           "success",
				"calculated_value": total,
			}, nil
		},
	)
}

// newCommitFieldTool stages one field directly, still re-validating it.
func newCommitFieldTool() tool.Tool {
	return tool.NewFunctionTool(
		"commit_field",
		"Save a single already-discussed field value.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"field_name":  map[string]any{"type": "string"},
				"field_value": map[string]any{"type": "string"},
			},
			"required": []string{"field_name", "field_value"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			s := tc.Session()
			minQty, maxQty := quantityBounds(s)
			result := validate.Field(stringArg(args, "field_name"), argText(args["field_value"]), s.Request, minQty, maxQty)
			if !result.Valid {
				return map[string]any{
					"status":  "error",
					"message": result.Message,
				}, nil
			}
			tc.Staged().SetDetail(result.Field, result.Value)
			return map[string]any{
				"status":        "success",
				"field_updated": result.Field,
				"value":         result.Value,
			}, nil
		},
	)
}

// newCheckCompletionTool reports collection progress, counting both persisted
// and freshly staged values, and stages the handoff once nothing is pending.
func newCheckCompletionTool() tool.Tool {
	return tool.NewFunctionTool(
		"check_completion",
		"Check whether every required field has been collected; hands over to delivery selection when complete.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			s := tc.Session()
			required := core.RequiredFields(s.Request)

			merged := make(map[string]string, len(s.Details)+len(tc.Staged().Details))
			for k, v := range s.Details {
				merged[k] = v
			}
			for k, v := range tc.Staged().Details {
				merged[k] = v
			}

			pending := core.PendingFields(merged, required)
			completed := core.CompletedFields(merged, required)

			if len(pending) == 0 {
				tc.Handoff(core.StageAddressPurpose)
			}

			return map[string]any{
				"all_completed":    len(pending) == 0,
				"completed_fields": completed,
				"pending_fields":   pending,
			}, nil
		},
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
