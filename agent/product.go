package agent

import (
	"fmt"
	"strings"

	"github.com/chemfalcon/chembot/core"
	"github.com/chemfalcon/chembot/internal/util"
	"github.com/chemfalcon/chembot/logging"
	"github.com/chemfalcon/chembot/marketplace"
	"github.com/chemfalcon/chembot/model"
	"github.com/chemfalcon/chembot/tool"
)

const productInstructionTemplate = `You are a chemical marketplace assistant helping a buyer find and confirm a product.

Your job, in order:
1. Understand what chemical the buyer needs and call search_products to look it up. Only search again when the buyer asks about a different product.
2. Present the matching products as a numbered list showing name, brand, seller and the allowed quantity range. Only ever show products returned by search_products - never invent one.
3. Ask which product the buyer wants and what kind of request this is: Sample, Quote, PPR (purchase price request) or Order.
4. Once the buyer has explicitly confirmed BOTH the product and the request type, call confirm_selection with the exact product id and name from the search results.

Rules:
- Use only data returned by the tools. If a search returns nothing, say so and ask the buyer to rephrase.
- Never call confirm_selection before the buyer confirms the product AND the request type.
- If confirm_selection is rejected, retry it with the literal cached product record.
{{if .Products}}
Currently cached search results:
{{.Products}}{{end}}`

// NewProductAgent builds the first-stage specialist: product discovery and
// request-type confirmation.
func NewProductAgent(llm model.Model, market *marketplace.Client, logger logging.Logger) *Agent {
	a := &Agent{
		name:        "product_request",
		stage:       core.StageProductRequest,
		llm:         llm,
		tools:       map[string]tool.Tool{},
		instruction: productInstruction,
		logger:      ensureLogger(logger),
	}

	a.register(newSearchProductsTool(market))
	a.register(newConfirmSelectionTool())
	return a
}

func productInstruction(s *core.Session) (string, error) {
	return util.RenderTemplate(productInstructionTemplate, map[string]any{
		"Products": formatCachedProducts(s),
	})
}

// formatCachedProducts renders the current search results the way they were
// shown to the user, so the model and the buyer share one numbering.
func formatCachedProducts(s *core.Session) string {
	cache := s.EnsureCache()
	if len(cache.Current) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range cache.Current {
		fmt.Fprintf(&b, "%d. %s (id: %s, brand: %s, seller: %s, min: %v, max: %v)\n",
			i+1,
			displayField(p, "name_en"),
			displayField(p, "_id"),
			displayField(p, "brand"),
			displayField(p, "sellerName"),
			p["minQuantity"], p["maxQuantity"])
	}
	return b.String()
}

func displayField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return "N/A"
}

// newSearchProductsTool exposes the vendor inventory search with a
// session-scoped cache in front of it. A cached query with zero products is
// treated as invalid and refetched.
func newSearchProductsTool(market *marketplace.Client) tool.Tool {
	return tool.NewFunctionTool(
		"search_products",
		"Search the marketplace inventory for products. Only use when the buyer wants different products than the currently cached results.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Product name or description to search for",
				},
			},
			"required": []string{"query"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			cache := tc.Session().EnsureCache()

			if products, ok := cache.Lookup(query); ok {
				tc.Logger().Info("agent.search.cache_hit", "query", query, "products", len(products))
				return map[string]any{"products": products, "count": len(products), "cached": true}, nil
			}

			products, err := market.SearchInventory(tc.Context(), query)
			if err != nil {
				if apiErr, ok := err.(*marketplace.APIError); ok {
					return nil, tool.NewToolError("search_products", apiErr.Message, apiErr.Code)
				}
				return nil, err
			}

			cache.Store(query, products)
			return map[string]any{"products": products, "count": len(products), "cached": false}, nil
		},
	)
}

// newConfirmSelectionTool stages the confirmed product, request type and the
// handoff to detail collection. A confirmation whose product record lacks the
// record id is backfilled from the session cache by id before being rejected.
func newConfirmSelectionTool() tool.Tool {
	return tool.NewFunctionTool(
		"confirm_selection",
		"Record the confirmed product and request type once the buyer has explicitly confirmed both, and hand over to detail collection. Include the complete product record from the cached search results.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product_id": map[string]any{
					"type":        "string",
					"description": "Exact _id of the confirmed product from the cached results",
				},
				"product_name": map[string]any{
					"type":        "string",
					"description": "Exact name_en of the confirmed product from the cached results",
				},
				"product_details": map[string]any{
					"type":        "object",
					"description": "Complete product record from the cached results, including the _id field",
				},
				"request_type": map[string]any{
					"type":        "string",
					"description": "Confirmed request type",
					"enum":        []any{"Sample", "Quote", "PPR", "Order"},
				},
			},
			"required": []string{"product_id", "product_name", "request_type"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			productID, _ := args["product_id"].(string)
			productName, _ := args["product_name"].(string)
			details, _ := args["product_details"].(map[string]any)

			if details == nil || details["_id"] == nil {
				cached, ok := tc.Session().EnsureCache().Product(productID)
				if !ok {
					return nil, tool.NewToolError("confirm_selection",
						"product_details must be the complete product record from the cached search results, including the _id field; use the exact cached data",
						core.ErrCodeData)
				}
				tc.Logger().Info("agent.confirm.backfilled", "product_id", productID)
				details = cached
			}

			request, ok := core.ParseRequestType(stringArg(args, "request_type"))
			if !ok {
				return nil, tool.NewToolError("confirm_selection",
					"request_type must be one of Sample, Quote, PPR or Order",
					core.ErrCodeValidation)
			}

			staged := tc.Staged()
			staged.ProductID = &productID
			staged.ProductName = &productName
			staged.Product = details
			staged.Request = &request
			tc.Handoff(core.StageRequestDetails)

			return map[string]any{
				"status":       "success",
				"message":      "Selection recorded, handing over to detail collection",
				"product_id":   productID,
				"product_name": productName,
				"request_type": string(request),
			}, nil
		},
	)
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
