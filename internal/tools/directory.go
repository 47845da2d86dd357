package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opora-ua/opora/internal/directory"
	"github.com/opora-ua/opora/pkg/provider/live"
)

// maxSearchResults caps the number of organizations returned by one search so
// tool responses stay small enough for the model to read back.
const maxSearchResults = 10

// searchArgs are the model-facing parameters of the search tool.
type searchArgs struct {
	Query      string `json:"query"`
	Region     string `json:"region"`
	Category   string `json:"category"`
	Status     string `json:"status"`
	BudgetOnly bool   `json:"budget_only"`
}

// searchResponse is the tool result serialised back to the model.
type searchResponse struct {
	Total         int                      `json:"total"`
	Organizations []directory.Organization `json:"organizations"`
}

// SearchTool builds the built-in directory search tool over lister. Register
// it on a [Host] to let the model look up organizations beyond the snapshot
// embedded in its instructions.
func SearchTool(lister interface {
	List(ctx context.Context) ([]directory.Organization, error)
}) Builtin {
	return Builtin{
		Definition: live.ToolDefinition{
			Name: "search_organizations",
			Description: "Search the directory of social-service organizations. " +
				"All parameters are optional; combine them to narrow the results.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Free-text search over organization names and services.",
					},
					"region": map[string]any{
						"type":        "string",
						"description": "Oblast or city to search in, e.g. \"Lvivska\".",
					},
					"category": map[string]any{
						"type":        "string",
						"enum":        []string{"social", "medical", "legal", "psychological", "humanitarian"},
						"description": "Kind of support offered.",
					},
					"status": map[string]any{
						"type":        "string",
						"enum":        []string{"active", "limited", "inactive"},
						"description": "Operational status to filter by.",
					},
					"budget_only": map[string]any{
						"type":        "boolean",
						"description": "Restrict results to state-budget funded organizations.",
					},
				},
			},
		},
		Handler: func(ctx context.Context, args string) (string, error) {
			var params searchArgs
			if args != "" {
				if err := json.Unmarshal([]byte(args), &params); err != nil {
					return "", fmt.Errorf("tools: invalid search arguments: %w", err)
				}
			}

			orgs, err := lister.List(ctx)
			if err != nil {
				return "", fmt.Errorf("tools: load directory: %w", err)
			}

			matched := directory.Filter(orgs, directory.Query{
				Search:     params.Query,
				Region:     params.Region,
				Category:   directory.Category(params.Category),
				Status:     directory.Status(params.Status),
				BudgetOnly: params.BudgetOnly,
			})

			resp := searchResponse{Total: len(matched), Organizations: matched}
			if len(resp.Organizations) > maxSearchResults {
				resp.Organizations = resp.Organizations[:maxSearchResults]
			}
			if resp.Organizations == nil {
				resp.Organizations = []directory.Organization{}
			}

			out, err := json.Marshal(resp)
			if err != nil {
				return "", fmt.Errorf("tools: encode search result: %w", err)
			}
			return string(out), nil
		},
	}
}
