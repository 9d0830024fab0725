// Package resources provides MCP resources for exposing session data.
// Resources are read-only data sources that MCP clients can fetch: the
// taxonomy this server organizes against and the report of the most
// recent organize run.
package resources
