// Package batch provides common utilities for batch operations across MCP tools.
//
// This package includes helpers for:
//   - Parsing parameters that accept single values, arrays, or JSON-encoded arrays
//   - Formatting batch results in a consistent structure
//   - Processing per-item operations with partial-failure reporting
//   - Stopping cleanly when the request context is cancelled
package batch
