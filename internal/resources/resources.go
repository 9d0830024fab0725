package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mailfold/mailfold/internal/server"
)

// RegisterResources registers the session resources with the MCP server.
func RegisterResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	taxonomyResource := mcp.NewResource(
		"mailfold://taxonomy",
		"Label Taxonomy",
		mcp.WithResourceDescription("The label hierarchy, legacy migration table and classification rules this server organizes against"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(taxonomyResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleTaxonomy(ctx, request, sc)
	})

	reportResource := mcp.NewResource(
		"mailfold://report",
		"Latest Organize Report",
		mcp.WithResourceDescription("Report of the most recent organize run for the default account. Use the report_latest tool for other accounts."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(reportResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleReport(ctx, request, sc)
	})

	return nil
}

// taxonomyDocument is the wire form of the mailfold://taxonomy resource.
type taxonomyDocument struct {
	Labels   []string         `json:"labels"`
	Fallback string           `json:"fallback"`
	Legacy   []legacyDocument `json:"legacy,omitempty"`
	Rules    []ruleDocument   `json:"rules,omitempty"`
}

type legacyDocument struct {
	Pattern string `json:"pattern"`
	Target  string `json:"target"`
}

type ruleDocument struct {
	Name           string   `json:"name"`
	Priority       int      `json:"priority"`
	From           string   `json:"from,omitempty"`
	To             string   `json:"to,omitempty"`
	Subject        string   `json:"subject,omitempty"`
	Snippet        string   `json:"snippet,omitempty"`
	Label          string   `json:"label,omitempty"`
	HasUnsubscribe bool     `json:"has_unsubscribe,omitempty"`
	Labels         []string `json:"labels"`
}

func handleTaxonomy(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	tax := sc.Taxonomy()

	doc := taxonomyDocument{
		Fallback: tax.FallbackPath().String(),
	}
	for _, path := range tax.Paths() {
		doc.Labels = append(doc.Labels, path.String())
	}
	for _, rule := range tax.Legacy() {
		doc.Legacy = append(doc.Legacy, legacyDocument{
			// Patterns are compiled case-insensitively; strip the flag
			// so the resource mirrors the configuration input.
			Pattern: strings.TrimPrefix(rule.Pattern.String(), "(?i)"),
			Target:  rule.Target.String(),
		})
	}
	for _, rule := range tax.Rules() {
		doc.Rules = append(doc.Rules, ruleDocument{
			Name:           rule.Name,
			Priority:       rule.Priority,
			From:           rule.From,
			To:             rule.To,
			Subject:        rule.Subject,
			Snippet:        rule.Snippet,
			Label:          rule.Label,
			HasUnsubscribe: rule.HasUnsubscribe,
			Labels:         rule.Labels,
		})
	}

	jsonData, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal taxonomy: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

func handleReport(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	report, ok := sc.LatestReport("default")
	if !ok {
		return nil, fmt.Errorf("no organize run has finished in this session")
	}

	var buf bytes.Buffer
	if err := report.WriteJSON(&buf); err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     buf.String(),
		},
	}, nil
}
