package calendar_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calguard/calguard/internal/calendar"
	"github.com/calguard/calguard/internal/instrumentation"
	"github.com/calguard/calguard/internal/schedule"
	"github.com/calguard/calguard/internal/server"
	"github.com/calguard/calguard/internal/tools/batch"
	"github.com/calguard/calguard/internal/tools/common"
)

// RegisterEventTools registers event-related tools with the MCP server.
// Update and delete are only registered in write mode; create is always
// available because duplicate detection gates it.
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// List events tool (read-only, always available)
	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List/search calendar events within a time range"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start of the range: RFC3339, 'YYYY-MM-DD HH:MM', or natural language such as 'today'"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End of the range, same formats as timeMin"),
		),
		mcp.WithString("timeZone",
			mcp.Description("Time zone for interpreting timeMin/timeMax (e.g., 'America/New_York'). Defaults to UTC."),
		),
		mcp.WithString("query",
			mcp.Description("Optional search query to filter events"),
		),
	)

	s.AddTool(listEventsTool, common.InstrumentedToolHandlerWithService(
		"calendar_list_events", "calendar", "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc)
		}))

	// Get event tool
	getEventTool := mcp.NewTool("calendar_get_event",
		mcp.WithDescription("Get details of a specific calendar event"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to retrieve"),
		),
	)

	s.AddTool(getEventTool, common.InstrumentedToolHandlerWithService(
		"calendar_get_event", "calendar", "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEvent(ctx, request, sc)
		}))

	// Create event tool. Start/end accept natural language; creation is
	// checked for conflicts and duplicates first.
	createEventTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a new calendar event. Checks the target calendars for conflicts and duplicates before writing; a near-certain duplicate blocks creation unless allowDuplicates is set."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title/summary"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time: RFC3339, 'YYYY-MM-DD HH:MM', or natural language such as 'tomorrow 3pm' or 'friday 09:30'"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time, same formats as start"),
		),
		mcp.WithString("timeZone",
			mcp.Description("Time zone (e.g., 'America/New_York'). Defaults to UTC."),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated list of attendee email addresses"),
		),
		mcp.WithString("recurrence",
			mcp.Description("Recurrence rule (e.g., 'RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR')"),
		),
		mcp.WithString("eventType",
			mcp.Description("Event type: 'default', 'outOfOffice', 'focusTime', 'workingLocation'"),
		),
		mcp.WithString("additionalCalendars",
			mcp.Description("Extra calendar ID(s) to include in conflict/duplicate detection, as a single ID, comma-separated list, or array"),
		),
		mcp.WithBoolean("checkConflicts",
			mcp.Description("Check for overlapping events before creating (default: true)"),
		),
		mcp.WithBoolean("checkDuplicates",
			mcp.Description("Check for near-duplicate events before creating (default: true)"),
		),
		mcp.WithBoolean("allowDuplicates",
			mcp.Description("Create the event even when a blocking duplicate is found"),
		),
		mcp.WithBoolean("allDay",
			mcp.Description("Create as all-day event (ignores time portion of start/end)"),
		),
		mcp.WithBoolean("addGoogleMeet",
			mcp.Description("Automatically add a Google Meet link to the event"),
		),
		mcp.WithBoolean("guestsCanModify",
			mcp.Description("Allow guests to modify the event"),
		),
		mcp.WithBoolean("guestsCanInviteOthers",
			mcp.Description("Allow guests to invite others"),
		),
		mcp.WithBoolean("guestsCanSeeOtherGuests",
			mcp.Description("Allow guests to see other guests"),
		),
	)

	s.AddTool(createEventTool, common.InstrumentedToolHandlerWithService(
		"calendar_create_event", "calendar", "create", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
		}))

	// Register update/delete tools only in write mode
	if sc.Yolo() {
		updateEventTool := mcp.NewTool("calendar_update_event",
			mcp.WithDescription("Update an existing calendar event"),
			mcp.WithString("account",
				mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
			),
			mcp.WithString("calendarId",
				mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
			),
			mcp.WithString("eventId",
				mcp.Required(),
				mcp.Description("The ID of the event to update"),
			),
			mcp.WithString("summary",
				mcp.Description("New event title/summary"),
			),
			mcp.WithString("description",
				mcp.Description("New event description"),
			),
			mcp.WithString("location",
				mcp.Description("New event location"),
			),
			mcp.WithString("start",
				mcp.Description("New start time (RFC3339 format)"),
			),
			mcp.WithString("end",
				mcp.Description("New end time (RFC3339 format)"),
			),
			mcp.WithString("timeZone",
				mcp.Description("Time zone (e.g., 'America/New_York')"),
			),
			mcp.WithString("attendees",
				mcp.Description("New comma-separated list of attendee email addresses"),
			),
			mcp.WithString("eventType",
				mcp.Description("New event type: 'default', 'outOfOffice', 'focusTime', 'workingLocation'"),
			),
			mcp.WithBoolean("allDay",
				mcp.Description("Update to be an all-day event (ignores time portion of start/end)"),
			),
			mcp.WithBoolean("guestsCanModify",
				mcp.Description("Allow guests to modify the event"),
			),
			mcp.WithBoolean("guestsCanInviteOthers",
				mcp.Description("Allow guests to invite others"),
			),
			mcp.WithBoolean("guestsCanSeeOtherGuests",
				mcp.Description("Allow guests to see other guests"),
			),
		)

		s.AddTool(updateEventTool, common.InstrumentedToolHandlerWithService(
			"calendar_update_event", "calendar", "update", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleUpdateEvent(ctx, request, sc)
			}))

		deleteEventTool := mcp.NewTool("calendar_delete_event",
			mcp.WithDescription("Delete a calendar event"),
			mcp.WithString("account",
				mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
			),
			mcp.WithString("calendarId",
				mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
			),
			mcp.WithString("eventId",
				mcp.Required(),
				mcp.Description("The ID of the event to delete"),
			),
		)

		s.AddTool(deleteEventTool, common.InstrumentedToolHandlerWithService(
			"calendar_delete_event", "calendar", "delete", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleDeleteEvent(ctx, request, sc)
			}))

		batchDeleteTool := mcp.NewTool("calendar_batch_delete_events",
			mcp.WithDescription("Delete multiple calendar events in one call. Typically used to clear duplicates reported by calendar_check_conflicts."),
			mcp.WithString("account",
				mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
			),
			mcp.WithString("calendarId",
				mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
			),
			mcp.WithString("eventIds",
				mcp.Required(),
				mcp.Description("Event ID(s) to delete, as a single ID or an array of IDs"),
			),
		)

		s.AddTool(batchDeleteTool, common.InstrumentedToolHandlerWithService(
			"calendar_batch_delete_events", "calendar", "delete", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleBatchDeleteEvents(ctx, request, sc)
			}))
	}

	// Get Meet link tool
	getMeetLinkTool := mcp.NewTool("calendar_get_meet_link",
		mcp.WithDescription("Get the Google Meet link from a calendar event"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event"),
		),
	)

	s.AddTool(getMeetLinkTool, common.InstrumentedToolHandlerWithService(
		"calendar_get_meet_link", "calendar", "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetMeetLink(ctx, request, sc)
		}))

	return nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	calendarID := "primary"
	if calIDVal, ok := args["calendarId"].(string); ok && calIDVal != "" {
		calendarID = calIDVal
	}

	timeMin, timeMax, err := parseTimeRange(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query := ""
	if queryVal, ok := args["query"].(string); ok {
		query = queryVal
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	events, err := client.ListEvents(calendarID, timeMin, timeMax, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
	}

	result := fmt.Sprintf("Found %d events:\n\n", len(events))
	for i, event := range events {
		result += fmt.Sprintf("%d. %s\n", i+1, event.Summary)
		result += fmt.Sprintf("   ID: %s\n", event.ID)
		result += fmt.Sprintf("   Start: %s\n", event.Start.Format(time.RFC3339))
		result += fmt.Sprintf("   End: %s\n", event.End.Format(time.RFC3339))
		if event.Location != "" {
			result += fmt.Sprintf("   Location: %s\n", event.Location)
		}
		if event.MeetLink != "" {
			result += fmt.Sprintf("   Meet: %s\n", event.MeetLink)
		}
		if len(event.Attendees) > 0 {
			result += fmt.Sprintf("   Attendees: %d\n", len(event.Attendees))
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}

func handleGetEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	calendarID := "primary"
	if calIDVal, ok := args["calendarId"].(string); ok && calIDVal != "" {
		calendarID = calIDVal
	}

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	event, err := client.GetEvent(calendarID, eventID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get event: %v", err)), nil
	}

	result := fmt.Sprintf("Event: %s\n", event.Summary)
	result += fmt.Sprintf("ID: %s\n", event.ID)
	result += fmt.Sprintf("Start: %s\n", event.Start.Format(time.RFC3339))
	result += fmt.Sprintf("End: %s\n", event.End.Format(time.RFC3339))
	result += fmt.Sprintf("Status: %s\n", event.Status)
	if event.Description != "" {
		result += fmt.Sprintf("Description: %s\n", event.Description)
	}
	if event.Location != "" {
		result += fmt.Sprintf("Location: %s\n", event.Location)
	}
	if event.Creator != "" {
		result += fmt.Sprintf("Creator: %s\n", event.Creator)
	}
	if event.Organizer != "" {
		result += fmt.Sprintf("Organizer: %s\n", event.Organizer)
	}
	if event.MeetLink != "" {
		result += fmt.Sprintf("Google Meet: %s\n", event.MeetLink)
	}
	if event.EventType != "" {
		result += fmt.Sprintf("Type: %s\n", event.EventType)
	}

	if len(event.Attendees) > 0 {
		result += fmt.Sprintf("\nAttendees (%d):\n", len(event.Attendees))
		for _, att := range event.Attendees {
			result += fmt.Sprintf("  - %s (%s)", att.Email, att.ResponseStatus)
			if att.DisplayName != "" {
				result += fmt.Sprintf(" - %s", att.DisplayName)
			}
			if att.Optional {
				result += " [optional]"
			}
			result += "\n"
		}
	}

	return mcp.NewToolResultText(result), nil
}

// detectionOptionsFromArgs reads the detection-related arguments shared by
// event creation and the standalone check tool. The per-call similarity
// threshold is not read here: only the check tool declares it, and event
// creation must always run against the configured thresholds.
func detectionOptionsFromArgs(args map[string]interface{}, calendarID string) (schedule.Options, error) {
	opts := schedule.Options{
		CheckConflicts:  true,
		CheckDuplicates: true,
		Calendars:       []string{calendarID},
	}

	if v, ok := args["checkConflicts"].(bool); ok {
		opts.CheckConflicts = v
	}
	if v, ok := args["checkDuplicates"].(bool); ok {
		opts.CheckDuplicates = v
	}

	if raw, present := args["additionalCalendars"]; present && raw != nil {
		extra, err := batch.ParseStringOrArray(raw, "additionalCalendars")
		if err != nil {
			return opts, err
		}
		for _, entry := range extra {
			for _, id := range strings.Split(entry, ",") {
				if id = strings.TrimSpace(id); id != "" {
					opts.Calendars = append(opts.Calendars, id)
				}
			}
		}
	}

	return opts, nil
}

// runDetection scores the candidate against existing events and records the
// outcome metric. The returned outcome already accounts for the caller's
// allowDuplicates choice.
func runDetection(ctx context.Context, sc *server.ServerContext, source schedule.EventSource, cand schedule.Candidate, opts schedule.Options, allowDuplicates bool) (*schedule.Report, error) {
	detector, err := schedule.NewDetector(source, sc.DetectionConfig(), sc.Logger())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report, err := detector.Detect(ctx, cand, opts)

	if metrics := sc.Metrics(); metrics != nil {
		outcome := detectionOutcome(report, err, allowDuplicates)
		if outcome != "" {
			metrics.RecordDetectionRun(ctx, outcome, time.Since(start))
		}
		if report != nil {
			metrics.RecordDetectionCalendarsFailed(ctx, len(report.FailedCalendars))
		}
	}

	return report, err
}

func detectionOutcome(report *schedule.Report, err error, allowDuplicates bool) string {
	var unavailable *schedule.UnavailableError
	switch {
	case errors.As(err, &unavailable):
		return instrumentation.DetectionOutcomeUnavailable
	case err != nil:
		// Validation errors are input faults, not detection runs.
		return ""
	case report.ShouldBlock && !allowDuplicates:
		return instrumentation.DetectionOutcomeBlocked
	case len(report.Duplicates) > 0:
		return instrumentation.DetectionOutcomeDuplicates
	case len(report.Conflicts) > 0:
		return instrumentation.DetectionOutcomeConflicts
	default:
		return instrumentation.DetectionOutcomeClean
	}
}

// blockedDuplicateMessage is the refusal shown when a near-certain duplicate
// stops event creation. It carries the duplicate's identity, the rounded
// similarity, and the override instruction, and nothing else.
func blockedDuplicateMessage(top schedule.Match) string {
	msg := "Event not created: an existing event looks like the same event.\n\n"
	msg += fmt.Sprintf("Duplicate: %q (ID: %s)\n", top.Event.Title, top.Event.ID)
	msg += fmt.Sprintf("Similarity: %d%%\n", int(top.Similarity*100+0.5))
	if top.Event.HTMLLink != "" {
		msg += fmt.Sprintf("Link: %s\n", top.Event.HTMLLink)
	}
	msg += "\n" + top.Suggestion
	return msg
}

// reportWarnings renders the non-blocking findings appended after a
// successful create.
func reportWarnings(report *schedule.Report) string {
	if report == nil || (len(report.Conflicts) == 0 && len(report.Duplicates) == 0 && len(report.FailedCalendars) == 0) {
		return ""
	}

	warnings := "\nWarnings:\n"
	for _, m := range report.Conflicts {
		warnings += fmt.Sprintf("- Conflict with %q (ID: %s): %s\n", m.Event.Title, m.Event.ID, m.Suggestion)
	}
	for _, m := range report.Duplicates {
		warnings += fmt.Sprintf("- Possible duplicate of %q (ID: %s, %d%% similar): %s\n",
			m.Event.Title, m.Event.ID, int(m.Similarity*100+0.5), m.Suggestion)
	}
	if len(report.FailedCalendars) > 0 {
		warnings += fmt.Sprintf("- Could not check calendar(s): %s\n", strings.Join(report.FailedCalendars, ", "))
	}
	return warnings
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
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

	// Natural-language and ISO inputs both pass through the normalizer;
	// whatever it cannot recognize fails at Resolve below.
	startCanonical := schedule.Normalize(startStr, timeZone)
	endCanonical := schedule.Normalize(endStr, timeZone)

	start, err := startCanonical.Resolve(timeZone)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid start format: %v", err)), nil
	}
	end, err := endCanonical.Resolve(timeZone)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid end format: %v", err)), nil
	}

	input := calendar.EventInput{
		Summary:  summary,
		Start:    start,
		End:      end,
		TimeZone: timeZone,
		AllDay:   startCanonical.AllDay,
	}

	if desc, ok := args["description"].(string); ok {
		input.Description = desc
	}
	if loc, ok := args["location"].(string); ok {
		input.Location = loc
	}
	if eventType, ok := args["eventType"].(string); ok {
		input.EventType = eventType
	}

	if attendeesStr, ok := args["attendees"].(string); ok && attendeesStr != "" {
		input.Attendees = strings.Split(attendeesStr, ",")
		for i := range input.Attendees {
			input.Attendees[i] = strings.TrimSpace(input.Attendees[i])
		}
	}

	if recurrence, ok := args["recurrence"].(string); ok && recurrence != "" {
		input.Recurrence = []string{recurrence}
	}

	if allDay, ok := args["allDay"].(bool); ok {
		input.AllDay = allDay
	}
	if addMeet, ok := args["addGoogleMeet"].(bool); ok {
		input.UseDefaultConferenceData = addMeet
	}
	if guestsCanModify, ok := args["guestsCanModify"].(bool); ok {
		input.GuestsCanModify = guestsCanModify
	}
	if guestsCanInvite, ok := args["guestsCanInviteOthers"].(bool); ok {
		input.GuestsCanInviteOthers = guestsCanInvite
	}
	if guestsCanSee, ok := args["guestsCanSeeOtherGuests"].(bool); ok {
		input.GuestsCanSeeOtherGuests = guestsCanSee
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	allowDuplicates := false
	if v, ok := args["allowDuplicates"].(bool); ok {
		allowDuplicates = v
	}

	opts, err := detectionOptionsFromArgs(args, calendarID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var report *schedule.Report
	if opts.CheckConflicts || opts.CheckDuplicates {
		cand := schedule.Candidate{
			Title:       summary,
			Description: input.Description,
			Location:    input.Location,
			Start:       startCanonical.Value,
			End:         endCanonical.Value,
			TimeZone:    timeZone,
			CalendarID:  calendarID,
		}

		report, err = runDetection(ctx, sc, client, cand, opts, allowDuplicates)
		if err != nil {
			var unavailable *schedule.UnavailableError
			if errors.As(err, &unavailable) {
				return mcp.NewToolResultError(fmt.Sprintf("Event not created: calendar availability could not be verified (%v). Retry, or disable checkConflicts and checkDuplicates to skip detection.", err)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("Detection failed: %v", err)), nil
		}

		if report.ShouldBlock && !allowDuplicates {
			return mcp.NewToolResultError(blockedDuplicateMessage(report.Duplicates[0])), nil
		}
	}

	event, err := client.CreateEvent(calendarID, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create event: %v", err)), nil
	}

	result := fmt.Sprintf("Successfully created event: %s\n", event.Summary)
	result += fmt.Sprintf("ID: %s\n", event.ID)
	result += fmt.Sprintf("Start: %s\n", event.Start.Format(time.RFC3339))
	result += fmt.Sprintf("End: %s\n", event.End.Format(time.RFC3339))
	if event.MeetLink != "" {
		result += fmt.Sprintf("Google Meet: %s\n", event.MeetLink)
	}
	result += reportWarnings(report)

	return mcp.NewToolResultText(result), nil
}

func handleUpdateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	calendarID := "primary"
	if calIDVal, ok := args["calendarId"].(string); ok && calIDVal != "" {
		calendarID = calIDVal
	}

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	input := calendar.EventInput{}

	if summary, ok := args["summary"].(string); ok {
		input.Summary = summary
	}
	if desc, ok := args["description"].(string); ok {
		input.Description = desc
	}
	if loc, ok := args["location"].(string); ok {
		input.Location = loc
	}
	if tz, ok := args["timeZone"].(string); ok {
		input.TimeZone = tz
	}
	if eventType, ok := args["eventType"].(string); ok {
		input.EventType = eventType
	}

	if startStr, ok := args["start"].(string); ok && startStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid start format: %v", err)), nil
		}
		input.Start = start
	}

	if endStr, ok := args["end"].(string); ok && endStr != "" {
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid end format: %v", err)), nil
		}
		input.End = end
	}

	if attendeesStr, ok := args["attendees"].(string); ok && attendeesStr != "" {
		input.Attendees = strings.Split(attendeesStr, ",")
		for i := range input.Attendees {
			input.Attendees[i] = strings.TrimSpace(input.Attendees[i])
		}
	}

	if allDay, ok := args["allDay"].(bool); ok {
		input.AllDay = allDay
	}
	if guestsCanModify, ok := args["guestsCanModify"].(bool); ok {
		input.GuestsCanModify = guestsCanModify
	}
	if guestsCanInvite, ok := args["guestsCanInviteOthers"].(bool); ok {
		input.GuestsCanInviteOthers = guestsCanInvite
	}
	if guestsCanSee, ok := args["guestsCanSeeOtherGuests"].(bool); ok {
		input.GuestsCanSeeOtherGuests = guestsCanSee
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	event, err := client.UpdateEvent(calendarID, eventID, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update event: %v", err)), nil
	}

	result := fmt.Sprintf("Successfully updated event: %s\n", event.Summary)
	result += fmt.Sprintf("ID: %s\n", event.ID)
	result += fmt.Sprintf("Start: %s\n", event.Start.Format(time.RFC3339))
	result += fmt.Sprintf("End: %s\n", event.End.Format(time.RFC3339))

	return mcp.NewToolResultText(result), nil
}

func handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	calendarID := "primary"
	if calIDVal, ok := args["calendarId"].(string); ok && calIDVal != "" {
		calendarID = calIDVal
	}

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := client.DeleteEvent(calendarID, eventID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete event: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Successfully deleted event %s", eventID)), nil
}

func handleBatchDeleteEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	calendarID := "primary"
	if calIDVal, ok := args["calendarId"].(string); ok && calIDVal != "" {
		calendarID = calIDVal
	}

	eventIDs, err := batch.ParseStringOrArray(args["eventIds"], "eventIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results := batch.ProcessBatch(eventIDs, func(id string) (string, error) {
		if err := client.DeleteEvent(calendarID, id); err != nil {
			return "", err
		}
		return "deleted", nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleGetMeetLink(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	calendarID := "primary"
	if calIDVal, ok := args["calendarId"].(string); ok && calIDVal != "" {
		calendarID = calIDVal
	}

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	meetLink, err := client.GetGoogleMeetLink(calendarID, eventID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get Meet link: %v", err)), nil
	}

	if meetLink == "" {
		return mcp.NewToolResultText("No Google Meet link found for this event"), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Google Meet link: %s", meetLink)), nil
}
