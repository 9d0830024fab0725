package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ToolInvocation captures all information about a tool invocation for audit logging.
// This provides a comprehensive audit trail for all MCP tool calls.
//
// # Privacy Considerations
//
// The UserEmail field contains PII. When logging, consider:
//   - Using UserDomain() to get only the domain for metrics/general logs
//   - Only logging full email in audit-specific log streams
//   - Ensuring audit logs have appropriate access controls
type ToolInvocation struct {
	// Tool name
	Tool string

	// User identity (from OAuth)
	UserEmail string

	// Target information for Google services
	Account     string // Account name (default, work, personal)
	ServiceName string // Google service (gmail)
	Operation   string // Operation name (labels.list, messages.get, messages.batchModify, ...)

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// UserDomain returns the domain portion of the user's email for lower-cardinality logging.
func (ti *ToolInvocation) UserDomain() string {
	return ExtractUserDomain(ti.UserEmail)
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for structured logging.
// This provides a consistent set of fields for all tool invocation logs.
//
// # Cardinality
//
// This function uses cardinality-controlled values (user_domain)
// for metrics-compatible logging. For full audit logging, use LogAuditAttrs.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("user_domain", ti.UserDomain()),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	// Add optional fields only if present
	if ti.Account != "" && ti.Account != "default" {
		attrs = append(attrs, slog.String("account", ti.Account))
	}
	if ti.ServiceName != "" {
		attrs = append(attrs, slog.String("service", ti.ServiceName))
	}
	if ti.Operation != "" {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}

	return attrs
}

// LogAuditAttrs returns slog attributes for full audit logging.
// This includes the full user email for compliance/audit purposes.
//
// # Security Warning
//
// This method includes PII (full email). Ensure audit logs are:
//   - Stored securely with appropriate access controls
//   - Not exposed to general monitoring dashboards
//   - Retained according to compliance requirements
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("user", ti.UserEmail),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	// Add all optional fields
	if ti.Account != "" {
		attrs = append(attrs, slog.String("account", ti.Account))
	}
	if ti.ServiceName != "" {
		attrs = append(attrs, slog.String("service", ti.ServiceName))
	}
	if ti.Operation != "" {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}

	return attrs
}

// NewToolInvocation creates a new ToolInvocation with timing started.
// Call Complete() when the tool operation finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithUser sets the user identity information.
func (ti *ToolInvocation) WithUser(email string) *ToolInvocation {
	ti.UserEmail = email
	return ti
}

// WithAccount sets the Google account name.
func (ti *ToolInvocation) WithAccount(account string) *ToolInvocation {
	ti.Account = account
	return ti
}

// WithService sets the Google service and operation.
func (ti *ToolInvocation) WithService(serviceName, operation string) *ToolInvocation {
	ti.ServiceName = serviceName
	ti.Operation = operation
	return ti
}

// WithSpanContext extracts trace context from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ti.TraceID = span.SpanContext().TraceID().String()
		ti.SpanID = span.SpanContext().SpanID().String()
	}
	return ti
}

// Complete marks the invocation as completed and calculates duration.
// Returns the same ToolInvocation for method chaining.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// CompleteWithError marks the invocation as failed with the given error.
func (ti *ToolInvocation) CompleteWithError(err error) *ToolInvocation {
	return ti.Complete(false, err)
}

// CompleteSuccess marks the invocation as successful.
func (ti *ToolInvocation) CompleteSuccess() *ToolInvocation {
	return ti.Complete(true, nil)
}

// AuditLogger provides structured audit logging for tool invocations.
// It wraps slog.Logger with convenience methods for logging tool operations.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, PII is not included in logs (anonymized identifiers are used instead).
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: false,
		enabled:    true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether to include full email addresses in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogToolInvocation logs a tool invocation using the standard log attributes.
// This is suitable for general operational logging with cardinality controls.
// If the logger is configured with IncludePII, full user emails are logged;
// otherwise, only domain-based anonymized identifiers are used.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if !al.enabled {
		return
	}

	// Choose between PII and anonymized logging based on configuration
	var attrs []slog.Attr
	if al.includePII {
		attrs = ti.LogAuditAttrs()
	} else {
		attrs = ti.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}

// LogToolAudit logs a tool invocation with full audit details.
// This includes PII (full email addresses) for compliance/audit purposes.
// SECURITY: Ensure audit logs are routed to secure storage with appropriate access controls.
//
// Note: This method respects the enabled flag but always includes PII when called,
// regardless of the IncludePII configuration. Use LogToolInvocation for
// configuration-aware logging.
func (al *AuditLogger) LogToolAudit(ti *ToolInvocation) {
	if !al.enabled {
		return
	}

	attrs := ti.LogAuditAttrs()
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	al.logger.Info("tool_audit", args...)
}

// MutationEvent captures a label mutation applied to a single message.
// Mutations change user data remotely, so every applied (or planned, in
// dry-run mode) mutation is recorded in the audit trail.
type MutationEvent struct {
	// MessageID is the Gmail message identifier.
	MessageID string

	// Account is the Google account the mutation was applied to.
	Account string

	// Added and Removed hold the label paths involved in the mutation.
	Added   []string
	Removed []string

	// DryRun indicates the mutation was logged but not applied.
	DryRun bool

	// Execution details
	Success bool
	Error   string

	// Tracing context
	TraceID string
}

// WithSpanContext extracts trace context from the current span.
func (me *MutationEvent) WithSpanContext(ctx context.Context) *MutationEvent {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		me.TraceID = span.SpanContext().TraceID().String()
	}
	return me
}

// LogAttrs returns slog attributes for structured audit logging.
func (me *MutationEvent) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("message_id", me.MessageID),
		slog.Any("labels_added", me.Added),
		slog.Any("labels_removed", me.Removed),
		slog.Bool("success", me.Success),
	}

	// Add optional fields only if present
	if me.Account != "" && me.Account != "default" {
		attrs = append(attrs, slog.String("account", me.Account))
	}
	if me.DryRun {
		attrs = append(attrs, slog.Bool("dry_run", true))
	}
	if me.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", me.TraceID))
	}
	if me.Error != "" {
		attrs = append(attrs, slog.String("error", me.Error))
	}

	return attrs
}

// LogMutation logs a message label mutation to the audit trail.
// Dry-run mutations are logged as planned; failed mutations are logged
// at warn level so they stand out in operational logs.
func (al *AuditLogger) LogMutation(me *MutationEvent) {
	if !al.enabled {
		return
	}

	attrs := me.LogAttrs()
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	switch {
	case !me.Success:
		al.logger.Warn("labels_failed", args...)
	case me.DryRun:
		al.logger.Info("labels_planned", args...)
	default:
		al.logger.Info("labels_applied", args...)
	}
}
