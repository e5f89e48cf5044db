// Package resources provides the MCP resources exposed alongside the tools.
// Resources are read-only data sources that MCP clients can fetch:
// user://profile describes the authenticated account and its calendars,
// and user://detection/settings reports the active conflict and duplicate
// detection configuration.
package resources
