package organize_tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mailfold/mailfold/internal/classify"
	"github.com/mailfold/mailfold/internal/organizer"
	"github.com/mailfold/mailfold/internal/server"
	"github.com/mailfold/mailfold/internal/tools/batch"
	"github.com/mailfold/mailfold/internal/tools/common"
)

// RegisterOrganizeTools registers the mailbox organization tools with the
// MCP server. Mutating tools (organize_run, labels_ensure) are skipped in
// read-only mode; organize_preview always runs against a dry-run stack and
// stays available.
func RegisterOrganizeTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if !readOnly {
		organizeRunTool := mcp.NewTool("organize_run",
			mcp.WithDescription("Organize the mailbox: ensure the label hierarchy, classify messages and apply label changes in batches"),
			mcp.WithString("account",
				mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
			),
			mcp.WithString("query",
				mcp.Description("Gmail search query narrowing which messages are scanned (default: all mail)"),
			),
			mcp.WithNumber("max_messages",
				mcp.Description("Stop after scanning this many messages (default: no limit)"),
			),
			mcp.WithNumber("batch_size",
				mcp.Description("Messages per batch mutation, up to 100 (default: 100)"),
			),
			mcp.WithNumber("timeout_seconds",
				mcp.Description("Abort the run after this many seconds (default: no deadline)"),
			),
			mcp.WithBoolean("labels_only",
				mcp.Description("Ensure the label hierarchy and stop without touching messages"),
			),
			mcp.WithBoolean("skip_migration",
				mcp.Description("Apply new labels but never remove legacy labels"),
			),
			mcp.WithBoolean("dry_run",
				mcp.Description("Log intended changes without modifying the mailbox"),
			),
		)

		s.AddTool(organizeRunTool, common.InstrumentedToolHandler("organize_run", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleOrganizeRun(ctx, request, sc, false)
			}))

		labelsEnsureTool := mcp.NewTool("labels_ensure",
			mcp.WithDescription("Create every missing label of the taxonomy hierarchy, parents before children"),
			mcp.WithString("account",
				mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
			),
			mcp.WithBoolean("dry_run",
				mcp.Description("Log intended label creations without modifying the mailbox"),
			),
		)

		s.AddTool(labelsEnsureTool, common.InstrumentedToolHandler("labels_ensure", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleLabelsEnsure(ctx, request, sc)
			}))
	}

	organizePreviewTool := mcp.NewTool("organize_preview",
		mcp.WithDescription("Preview an organize run without modifying the mailbox: reports which labels would be created and which messages would change"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("query",
			mcp.Description("Gmail search query narrowing which messages are scanned (default: all mail)"),
		),
		mcp.WithNumber("max_messages",
			mcp.Description("Stop after scanning this many messages (default: no limit)"),
		),
		mcp.WithNumber("timeout_seconds",
			mcp.Description("Abort the preview after this many seconds (default: no deadline)"),
		),
		mcp.WithBoolean("skip_migration",
			mcp.Description("Preview without legacy label removals"),
		),
	)

	s.AddTool(organizePreviewTool, common.InstrumentedToolHandler("organize_preview", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleOrganizeRun(ctx, request, sc, true)
		}))

	labelsListTool := mcp.NewTool("labels_list",
		mcp.WithDescription("List the mailbox labels and how the taxonomy sees them (system, hierarchy, legacy or unmanaged)"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
	)

	s.AddTool(labelsListTool, common.InstrumentedToolHandler("labels_list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleLabelsList(ctx, request, sc)
		}))

	classifyMessagesTool := mcp.NewTool("classify_messages",
		mcp.WithDescription("Classify one or more messages against the taxonomy rules without modifying anything"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("message_ids",
			mcp.Required(),
			mcp.Description("Message ID (string) or array of message IDs to classify"),
		),
	)

	s.AddTool(classifyMessagesTool, common.InstrumentedToolHandler("classify_messages", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleClassifyMessages(ctx, request, sc)
		}))

	reportLatestTool := mcp.NewTool("report_latest",
		mcp.WithDescription("Return the report of the most recent organize run or preview for an account"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("format",
			mcp.Description("Report format: 'summary' (default), 'json' or 'markdown'"),
		),
	)

	s.AddTool(reportLatestTool, common.InstrumentedToolHandler("report_latest", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleReportLatest(ctx, request, sc)
		}))

	return nil
}

func intArg(args map[string]interface{}, name string) (int, bool) {
	if v, ok := args[name].(float64); ok {
		return int(v), true
	}
	return 0, false
}

func boolArg(args map[string]interface{}, name string) bool {
	v, ok := args[name].(bool)
	return ok && v
}

func configFromArgs(args map[string]interface{}) organizer.Config {
	cfg := organizer.Config{}
	if query, ok := args["query"].(string); ok {
		cfg.Query = query
	}
	if n, ok := intArg(args, "max_messages"); ok && n > 0 {
		cfg.MaxMessages = n
	}
	if n, ok := intArg(args, "batch_size"); ok && n > 0 {
		cfg.BatchSize = n
	}
	if n, ok := intArg(args, "timeout_seconds"); ok && n > 0 {
		cfg.MaxRunTime = time.Duration(n) * time.Second
	}
	cfg.LabelsOnly = boolArg(args, "labels_only")
	cfg.SkipMigration = boolArg(args, "skip_migration")
	return cfg
}

func handleOrganizeRun(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, forceDryRun bool) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	cfg := configFromArgs(args)
	dryRun := forceDryRun || boolArg(args, "dry_run")

	org, err := sc.NewOrganizer(account, cfg, dryRun)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, runErr := org.Run(ctx)
	sc.StoreReport(account, report)

	var buf bytes.Buffer
	if err := report.WriteJSON(&buf); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode report: %v", err)), nil
	}

	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("organize run stopped early: %v\n\n%s", runErr, buf.String())), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func handleLabelsEnsure(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	cfg := organizer.Config{LabelsOnly: true}
	org, err := sc.NewOrganizer(account, cfg, boolArg(args, "dry_run"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, runErr := org.Run(ctx)
	sc.StoreReport(account, report)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to ensure label hierarchy: %v", runErr)), nil
	}

	mode := ""
	if report.DryRun {
		mode = " (dry run)"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Label hierarchy ready%s: %d created, %d already existed",
		mode, report.LabelsCreated, report.LabelsExisted)), nil
}

// labelEntry is one mailbox label annotated with the taxonomy's view of it.
type labelEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"` // "system", "hierarchy", "legacy" or "unmanaged"
}

func handleLabelsList(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	svc, _, err := sc.ServiceForAccount(account)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	labels, err := svc.ListLabels(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list labels: %v", err)), nil
	}

	tax := sc.Taxonomy()
	entries := make([]labelEntry, 0, len(labels))
	for _, l := range labels {
		entry := labelEntry{ID: l.ID, Name: l.Name, Kind: "unmanaged"}
		switch {
		case l.IsSystem():
			entry.Kind = "system"
		case tax.ContainsName(l.Name):
			entry.Kind = "hierarchy"
		default:
			if _, ok := tax.MapLegacy(l.Name); ok {
				entry.Kind = "legacy"
			}
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	jsonBytes, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode labels: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// classification is the per-message result of the classify_messages tool.
type classification struct {
	From    string   `json:"from,omitempty"`
	Subject string   `json:"subject,omitempty"`
	Rules   []string `json:"rules,omitempty"`
	Labels  []string `json:"labels"`
}

func handleClassifyMessages(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	messageIDs, err := batch.ParseStringOrArray(args["message_ids"], "message_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	svc, _, err := sc.ServiceForAccount(account)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	classifier, err := classify.FromTaxonomy(sc.Taxonomy())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compile classification rules: %v", err)), nil
	}

	// One listing resolves label ids to names for every message in the batch.
	labels, err := svc.ListLabels(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list labels: %v", err)), nil
	}
	nameByID := make(map[string]string, len(labels))
	for _, l := range labels {
		nameByID[l.ID] = l.Name
	}

	results := batch.ProcessBatch(ctx, messageIDs, func(ctx context.Context, id string) (string, error) {
		msg, err := svc.GetMetadata(ctx, id)
		if err != nil {
			return "", err
		}

		names := make([]string, 0, len(msg.LabelIDs))
		for _, labelID := range msg.LabelIDs {
			if name, ok := nameByID[labelID]; ok {
				names = append(names, name)
			}
		}

		cm := classify.Message{
			From:           msg.From,
			To:             msg.To,
			Subject:        msg.Subject,
			Snippet:        msg.Snippet,
			Labels:         names,
			HasUnsubscribe: msg.HasUnsubscribe,
		}

		targets := classifier.Classify(cm)
		paths := make([]string, len(targets))
		for i, p := range targets {
			paths[i] = p.String()
		}

		jsonBytes, err := json.Marshal(classification{
			From:    msg.From,
			Subject: msg.Subject,
			Rules:   classifier.MatchingRules(cm),
			Labels:  paths,
		})
		if err != nil {
			return "", err
		}
		return string(jsonBytes), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleReportLatest(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	report, ok := sc.LatestReport(account)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no organize run has finished for account %q in this session", account)), nil
	}

	format := "summary"
	if f, ok := args["format"].(string); ok && f != "" {
		format = f
	}

	switch format {
	case "summary":
		return mcp.NewToolResultText(report.Summary()), nil
	case "json":
		var buf bytes.Buffer
		if err := report.WriteJSON(&buf); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode report: %v", err)), nil
		}
		return mcp.NewToolResultText(buf.String()), nil
	case "markdown":
		var buf bytes.Buffer
		if err := report.WriteMarkdown(&buf); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode report: %v", err)), nil
		}
		return mcp.NewToolResultText(buf.String()), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q: use 'summary', 'json' or 'markdown'", format)), nil
	}
}
