package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calguard/calguard/internal/calendar"
	"github.com/calguard/calguard/internal/mcp/oauth"
	"github.com/calguard/calguard/internal/server"
)

// RegisterUserResources registers session-specific user resources
// These resources provide information about the current authenticated user
func RegisterUserResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// Register user profile resource
	profileResource := mcp.NewResource(
		"user://profile",
		"Current User Profile",
		mcp.WithResourceDescription("Information about the currently authenticated Google account and its calendars"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleUserProfile(ctx, request, sc)
	})

	// Register detection settings resource
	settingsResource := mcp.NewResource(
		"user://detection/settings",
		"Conflict Detection Settings",
		mcp.WithResourceDescription("Active conflict and duplicate detection thresholds"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(settingsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleDetectionSettings(ctx, request, sc)
	})

	return nil
}

// extractAccountFromContext extracts the user's email from OAuth context
// Falls back to "default" for STDIO transport or if no OAuth context is available
func extractAccountFromContext(ctx context.Context) string {
	// Try to get user info from OAuth context (HTTP transport)
	if userInfo, ok := oauth.GetUserFromContext(ctx); ok && userInfo.Email != "" {
		return userInfo.Email
	}
	// Fallback to default for STDIO transport
	return "default"
}

// handleUserProfile returns the account's calendar list and primary calendar
func handleUserProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	account := extractAccountFromContext(ctx)

	client := sc.CalendarClientForAccount(account)
	if client == nil {
		if !calendar.HasTokenForAccount(account) {
			return nil, fmt.Errorf("no Calendar client available for account: %s", account)
		}
		var err error
		client, err = calendar.NewClientForAccount(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("failed to create Calendar client for account %s: %w", account, err)
		}
		sc.SetCalendarClientForAccount(account, client)
	}

	primary, err := client.GetPrimaryCalendar()
	if err != nil {
		return nil, fmt.Errorf("failed to get primary calendar: %w", err)
	}

	calendars, err := client.ListCalendars()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	calendarList := make([]map[string]interface{}, 0, len(calendars))
	for _, cal := range calendars {
		calendarList = append(calendarList, map[string]interface{}{
			"id":         cal.ID,
			"summary":    cal.Summary,
			"timeZone":   cal.TimeZone,
			"primary":    cal.Primary,
			"accessRole": cal.AccessRole,
		})
	}

	profileData := map[string]interface{}{
		"account":         account,
		"primaryCalendar": primary.ID,
		"timeZone":        primary.TimeZone,
		"calendars":       calendarList,
		"description":     "Google Calendar profile for the authenticated account",
	}

	jsonData, err := json.MarshalIndent(profileData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// handleDetectionSettings returns the detection tuning the server is running with
func handleDetectionSettings(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	cfg := sc.DetectionConfig()

	settingsData := map[string]interface{}{
		"duplicateThreshold": cfg.DuplicateThreshold,
		"blockingThreshold":  cfg.BlockingThreshold,
		"fetchPad":           cfg.FetchPad.String(),
		"proximityWindow":    cfg.ProximityWindow.String(),
		"writeMode":          sc.Yolo(),
		"description":        "Active conflict and duplicate detection settings",
	}

	jsonData, err := json.MarshalIndent(settingsData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
