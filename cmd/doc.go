// Package cmd implements the command-line interface for mailfold.
//
// This package provides the following commands:
//   - organize: Classify messages and apply hierarchy labels
//   - labels: Ensure or list the label hierarchy
//   - migrate: Move messages off legacy labels into the hierarchy
//   - cleanup: Delete legacy labels that no longer hold messages
//   - report: Print the report of the last organize run
//   - auth: Authorize mailfold for a Google account
//   - serve: Start the MCP server to provide tools for AI assistants
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The organize command is the default command when no subcommand is specified.
package cmd
