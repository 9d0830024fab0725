package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mailfold/mailfold/internal/instrumentation"
	"github.com/mailfold/mailfold/internal/server"
)

// InstrumentedToolHandler wraps a tool handler with metrics and audit logging.
// It records tool invocation metrics and logs the invocation for audit purposes.
// Remote API operations are metered separately by the gateway, so the wrapper
// only accounts for the tool call itself.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(
	toolName string,
	sc *server.ServerContext,
	handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error),
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Get metrics and audit logger (may be nil if not configured)
		metrics := sc.Metrics()
		auditLogger := sc.AuditLogger()

		// If no instrumentation configured, just call the handler
		if metrics == nil && auditLogger == nil {
			return handler(ctx, request)
		}

		// Start timing and create invocation record
		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx)

		// Extract account from request arguments
		args := request.GetArguments()
		account := GetAccountFromArgs(args)
		if account != "" {
			invocation.WithAccount(account)
		}

		// Call the actual handler
		result, err := handler(ctx, request)
		duration := time.Since(start)

		// Determine status
		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
			if err != nil {
				invocation.CompleteWithError(err)
			} else {
				invocation.Complete(false, nil)
			}
		} else {
			invocation.CompleteSuccess()
		}

		// Record metrics
		if metrics != nil {
			metrics.RecordToolInvocation(ctx, toolName, status, duration)
		}

		// Log audit
		if auditLogger != nil {
			auditLogger.LogToolInvocation(invocation)
		}

		return result, err
	}
}
