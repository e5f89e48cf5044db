package calendar_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calguard/calguard/internal/schedule"
	"github.com/calguard/calguard/internal/server"
	"github.com/calguard/calguard/internal/tools/batch"
	"github.com/calguard/calguard/internal/tools/common"
)

// RegisterSchedulingTools registers the availability tools.
func RegisterSchedulingTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	queryFreeBusyTool := mcp.NewTool("calendar_query_freebusy",
		mcp.WithDescription("Check availability for one or more calendars/attendees in a time range"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start of the range: RFC3339, 'YYYY-MM-DD HH:MM', or natural language such as 'tomorrow 9am'"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End of the range, same formats as timeMin"),
		),
		mcp.WithString("timeZone",
			mcp.Description("Time zone for interpreting timeMin/timeMax (e.g., 'America/New_York'). Defaults to UTC."),
		),
		mcp.WithString("calendars",
			mcp.Required(),
			mcp.Description("Calendar ID(s) or email address(es) to check, as a single value, comma-separated list, or array"),
		),
	)

	s.AddTool(queryFreeBusyTool, common.InstrumentedToolHandlerWithService(
		"calendar_query_freebusy", "calendar", "freebusy", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleQueryFreeBusy(ctx, request, sc)
		}))

	findAvailableTimeTool := mcp.NewTool("calendar_find_available_time",
		mcp.WithDescription("Find available time slots for scheduling a meeting with one or more attendees"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("attendees",
			mcp.Required(),
			mcp.Description("Comma-separated list of attendee email addresses"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("Meeting duration in minutes"),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start of the search range: RFC3339, 'YYYY-MM-DD HH:MM', or natural language such as 'monday 9am'"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End of the search range, same formats as timeMin"),
		),
		mcp.WithString("timeZone",
			mcp.Description("Time zone for interpreting timeMin/timeMax (e.g., 'America/New_York'). Defaults to UTC."),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of available slots to return (default: 10)"),
		),
	)

	s.AddTool(findAvailableTimeTool, common.InstrumentedToolHandlerWithService(
		"calendar_find_available_time", "calendar", "freebusy", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindAvailableTime(ctx, request, sc)
		}))

	return nil
}

// parseTimeRange resolves the timeMin/timeMax arguments through the same
// normalizer event creation uses, so availability queries accept natural
// language too.
func parseTimeRange(args map[string]interface{}) (time.Time, time.Time, error) {
	timeZone, _ := args["timeZone"].(string)

	minStr, ok := args["timeMin"].(string)
	if !ok || minStr == "" {
		return time.Time{}, time.Time{}, errors.New("timeMin is required")
	}
	min, err := schedule.Normalize(minStr, timeZone).Resolve(timeZone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid timeMin: %v", err)
	}

	maxStr, ok := args["timeMax"].(string)
	if !ok || maxStr == "" {
		return time.Time{}, time.Time{}, errors.New("timeMax is required")
	}
	max, err := schedule.Normalize(maxStr, timeZone).Resolve(timeZone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid timeMax: %v", err)
	}

	if !max.After(min) {
		return time.Time{}, time.Time{}, errors.New("timeMax must be after timeMin")
	}

	return min, max, nil
}

func handleQueryFreeBusy(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	timeMin, timeMax, err := parseTimeRange(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rawCalendars, err := batch.ParseStringOrArray(args["calendars"], "calendars")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var calendars []string
	for _, entry := range rawCalendars {
		for _, id := range strings.Split(entry, ",") {
			if id = strings.TrimSpace(id); id != "" {
				calendars = append(calendars, id)
			}
		}
	}
	if len(calendars) == 0 {
		return mcp.NewToolResultError("calendars is required"), nil
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	freeBusyInfos, err := client.QueryFreeBusy(timeMin, timeMax, calendars)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to query free/busy: %v", err)), nil
	}

	result := fmt.Sprintf("Free/Busy information for %d calendar(s):\n\n", len(freeBusyInfos))
	for _, info := range freeBusyInfos {
		result += fmt.Sprintf("Calendar: %s\n", info.Calendar)

		if len(info.Errors) > 0 {
			result += fmt.Sprintf("  Errors: %s\n", strings.Join(info.Errors, ", "))
		}

		if len(info.Busy) == 0 {
			result += "  Status: FREE for entire range\n"
		} else {
			result += fmt.Sprintf("  Busy periods: %d\n", len(info.Busy))
			for i, busy := range info.Busy {
				result += fmt.Sprintf("  %d. %s to %s\n",
					i+1,
					busy.Start.Format("2006-01-02 15:04"),
					busy.End.Format("2006-01-02 15:04"))
			}
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}

func handleFindAvailableTime(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	attendeesStr, ok := args["attendees"].(string)
	if !ok || attendeesStr == "" {
		return mcp.NewToolResultError("attendees is required"), nil
	}

	attendees := strings.Split(attendeesStr, ",")
	for i := range attendees {
		attendees[i] = strings.TrimSpace(attendees[i])
	}

	durationMinutes, ok := args["durationMinutes"].(float64)
	if !ok || durationMinutes <= 0 {
		return mcp.NewToolResultError("durationMinutes is required and must be positive"), nil
	}
	duration := time.Duration(durationMinutes) * time.Minute

	timeMin, timeMax, err := parseTimeRange(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	maxResults := 10
	if maxResultsVal, ok := args["maxResults"].(float64); ok && maxResultsVal > 0 {
		maxResults = int(maxResultsVal)
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slots, err := client.FindAvailableSlots(attendees, duration, timeMin, timeMax)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to find available time: %v", err)), nil
	}

	if len(slots) == 0 {
		return mcp.NewToolResultText("No available time slots found for the specified criteria"), nil
	}

	if len(slots) > maxResults {
		slots = slots[:maxResults]
	}

	result := fmt.Sprintf("Found %d available time slot(s) for %d minute meeting:\n\n",
		len(slots), int(durationMinutes))

	for i, slot := range slots {
		result += fmt.Sprintf("%d. %s to %s (%s)\n",
			i+1,
			slot.Start.Format("Mon, Jan 2 at 3:04 PM"),
			slot.End.Format("3:04 PM MST"),
			slot.Start.Weekday())
	}

	return mcp.NewToolResultText(result), nil
}
