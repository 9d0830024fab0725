// Package organize_tools provides MCP tools for the mailbox organize
// pipeline: running and previewing organize passes, ensuring the label
// hierarchy, listing labels with their taxonomy standing, classifying
// individual messages, and fetching the latest run report.
//
// Every tool accepts an optional account parameter for multi-account
// setups. Tools that modify the mailbox are not registered when the
// server runs in read-only mode; organize_preview is always available
// because it operates on a dry-run stack that performs no writes.
package organize_tools
