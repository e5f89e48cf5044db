package calendar_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calguard/calguard/internal/schedule"
	"github.com/calguard/calguard/internal/server"
	"github.com/calguard/calguard/internal/tools/common"
)

// RegisterDetectionTools registers the standalone conflict/duplicate check.
// It runs the same scoring as event creation but never writes anything, so
// agents can probe a time slot before committing to it.
func RegisterDetectionTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	checkConflictsTool := mcp.NewTool("calendar_check_conflicts",
		mcp.WithDescription("Check a proposed event against existing calendar events for overlaps and near-duplicates, without creating anything"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Proposed event title/summary"),
		),
		mcp.WithString("location",
			mcp.Description("Proposed event location"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Proposed start time: RFC3339, 'YYYY-MM-DD HH:MM', or natural language such as 'tomorrow 3pm'"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("Proposed end time, same formats as start"),
		),
		mcp.WithString("timeZone",
			mcp.Description("Time zone (e.g., 'America/New_York'). Defaults to UTC."),
		),
		mcp.WithString("additionalCalendars",
			mcp.Description("Extra calendar ID(s) to include in the check, as a single ID, comma-separated list, or array"),
		),
		mcp.WithBoolean("checkConflicts",
			mcp.Description("Check for overlapping events (default: true)"),
		),
		mcp.WithBoolean("checkDuplicates",
			mcp.Description("Check for near-duplicate events (default: true)"),
		),
		mcp.WithNumber("threshold",
			mcp.Description("Override the duplicate similarity threshold for this check (0.0 to 1.0). Near-certain duplicates are reported regardless."),
		),
	)

	s.AddTool(checkConflictsTool, common.InstrumentedToolHandlerWithService(
		"calendar_check_conflicts", "calendar", "detect", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckConflicts(ctx, request, sc)
		}))

	return nil
}

func handleCheckConflicts(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	calendarID := "primary"
	if calIDVal, ok := args["calendarId"].(string); ok && calIDVal != "" {
		calendarID = calIDVal
	}

	summary, ok := args["summary"].(string)
	if !ok || summary == "" {
		return mcp.NewToolResultError("summary is required"), nil
	}

	startStr, ok := args["start"].(string)
	if !ok || startStr == "" {
		return mcp.NewToolResultError("start is required"), nil
	}
	endStr, ok := args["end"].(string)
	if !ok || endStr == "" {
		return mcp.NewToolResultError("end is required"), nil
	}

	timeZone := ""
	if tz, ok := args["timeZone"].(string); ok {
		timeZone = tz
	}

	startCanonical := schedule.Normalize(startStr, timeZone)
	endCanonical := schedule.Normalize(endStr, timeZone)

	cand := schedule.Candidate{
		Title:      summary,
		Start:      startCanonical.Value,
		End:        endCanonical.Value,
		TimeZone:   timeZone,
		CalendarID: calendarID,
	}
	if loc, ok := args["location"].(string); ok {
		cand.Location = loc
	}

	opts, err := detectionOptionsFromArgs(args, calendarID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if v, ok := args["threshold"].(float64); ok {
		opts.Threshold = v
	}
	if !opts.CheckConflicts && !opts.CheckDuplicates {
		return mcp.NewToolResultError("at least one of checkConflicts and checkDuplicates must be enabled"), nil
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, err := runDetection(ctx, sc, client, cand, opts, false)
	if err != nil {
		var validation *schedule.ValidationError
		if errors.As(err, &validation) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Calendar availability could not be verified: %v", err)), nil
	}

	return mcp.NewToolResultText(formatDetectionReport(cand, report)), nil
}

func formatDetectionReport(cand schedule.Candidate, report *schedule.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Checked %q (%s to %s)\n\n", cand.Title, cand.Start, cand.End)

	if len(report.Conflicts) == 0 && len(report.Duplicates) == 0 {
		b.WriteString("No conflicts or duplicates found. The time slot is clear.\n")
	}

	if len(report.Conflicts) > 0 {
		fmt.Fprintf(&b, "Conflicts (%d):\n", len(report.Conflicts))
		for i, m := range report.Conflicts {
			fmt.Fprintf(&b, "%d. %q (ID: %s, calendar: %s)\n", i+1, m.Event.Title, m.Event.ID, m.Event.CalendarID)
			fmt.Fprintf(&b, "   %s\n", m.Suggestion)
		}
		b.WriteString("\n")
	}

	if len(report.Duplicates) > 0 {
		fmt.Fprintf(&b, "Possible duplicates (%d):\n", len(report.Duplicates))
		for i, m := range report.Duplicates {
			fmt.Fprintf(&b, "%d. %q (ID: %s, calendar: %s, %d%% similar)\n",
				i+1, m.Event.Title, m.Event.ID, m.Event.CalendarID, int(m.Similarity*100+0.5))
			fmt.Fprintf(&b, "   %s\n", m.Suggestion)
		}
		b.WriteString("\n")
	}

	if report.ShouldBlock {
		b.WriteString("Verdict: creating this event would be blocked as a near-certain duplicate.\n")
	}

	if len(report.FailedCalendars) > 0 {
		fmt.Fprintf(&b, "Note: calendar(s) could not be checked and results may be incomplete: %s\n",
			strings.Join(report.FailedCalendars, ", "))
	}

	return b.String()
}
