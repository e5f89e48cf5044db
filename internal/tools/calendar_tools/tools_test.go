package calendar_tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/calguard/calguard/internal/instrumentation"
	"github.com/calguard/calguard/internal/schedule"
	"github.com/calguard/calguard/internal/server"
)

// fakeEventSource serves canned events per calendar, with optional per-calendar
// failures, standing in for the Google Calendar API in detection tests.
type fakeEventSource struct {
	events map[string][]schedule.ExistingEvent
	errs   map[string]error
}

func (f *fakeEventSource) EventsBetween(_ context.Context, calendarID string, _, _ time.Time) ([]schedule.ExistingEvent, error) {
	if err, ok := f.errs[calendarID]; ok {
		return nil, err
	}
	return f.events[calendarID], nil
}

func newDetectionTestContext(t *testing.T) *server.ServerContext {
	t.Helper()
	sc, err := server.NewServerContext(context.Background(), nil, schedule.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestDetectionOptionsFromArgs(t *testing.T) {
	tests := []struct {
		name          string
		args          map[string]interface{}
		wantCalendars []string
		wantConflicts bool
		wantDupes     bool
		wantErr       bool
	}{
		{
			name:          "defaults",
			args:          map[string]interface{}{},
			wantCalendars: []string{"primary"},
			wantConflicts: true,
			wantDupes:     true,
		},
		{
			name: "checks disabled",
			args: map[string]interface{}{
				"checkConflicts":  false,
				"checkDuplicates": false,
			},
			wantCalendars: []string{"primary"},
		},
		{
			name: "additional calendars as comma list",
			args: map[string]interface{}{
				"additionalCalendars": "work@example.com, team@example.com",
			},
			wantCalendars: []string{"primary", "work@example.com", "team@example.com"},
			wantConflicts: true,
			wantDupes:     true,
		},
		{
			name: "additional calendars as array",
			args: map[string]interface{}{
				"additionalCalendars": []interface{}{"work@example.com", "team@example.com"},
			},
			wantCalendars: []string{"primary", "work@example.com", "team@example.com"},
			wantConflicts: true,
			wantDupes:     true,
		},
		{
			name: "additional calendars wrong type",
			args: map[string]interface{}{
				"additionalCalendars": 42,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := detectionOptionsFromArgs(tt.args, "primary")
			if tt.wantErr {
				if err == nil {
					t.Fatal("detectionOptionsFromArgs() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("detectionOptionsFromArgs() error = %v", err)
			}
			if opts.CheckConflicts != tt.wantConflicts {
				t.Errorf("CheckConflicts = %v, want %v", opts.CheckConflicts, tt.wantConflicts)
			}
			if opts.CheckDuplicates != tt.wantDupes {
				t.Errorf("CheckDuplicates = %v, want %v", opts.CheckDuplicates, tt.wantDupes)
			}
			if len(opts.Calendars) != len(tt.wantCalendars) {
				t.Fatalf("Calendars = %v, want %v", opts.Calendars, tt.wantCalendars)
			}
			for i, id := range tt.wantCalendars {
				if opts.Calendars[i] != id {
					t.Errorf("Calendars[%d] = %q, want %q", i, opts.Calendars[i], id)
				}
			}
		})
	}
}

func TestDetectionOptionsIgnoreThreshold(t *testing.T) {
	// The shared options helper feeds event creation, which must always run
	// against the configured thresholds. Only the check tool reads the
	// per-call threshold, and it does so itself.
	opts, err := detectionOptionsFromArgs(map[string]interface{}{"threshold": 0.99}, "primary")
	if err != nil {
		t.Fatalf("detectionOptionsFromArgs() error = %v", err)
	}
	if opts.Threshold != 0 {
		t.Errorf("Threshold = %v, want 0", opts.Threshold)
	}
}

func TestCreateDetectionBlocksDespiteThresholdArg(t *testing.T) {
	sc := newDetectionTestContext(t)

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	source := &fakeEventSource{events: map[string][]schedule.ExistingEvent{
		"primary": {{
			ID:         "ev-existing",
			Title:      "Team Standup",
			Start:      start,
			End:        start.Add(30 * time.Minute),
			CalendarID: "primary",
		}},
	}}

	// A threshold argument on the create tool must not weaken detection.
	opts, err := detectionOptionsFromArgs(map[string]interface{}{"threshold": 0.99}, "primary")
	if err != nil {
		t.Fatalf("detectionOptionsFromArgs() error = %v", err)
	}

	cand := schedule.Candidate{
		Title:      "Team Standups",
		Start:      "2026-09-01T09:00:00",
		End:        "2026-09-01T09:30:00",
		CalendarID: "primary",
	}

	report, err := runDetection(context.Background(), sc, source, cand, opts, false)
	if err != nil {
		t.Fatalf("runDetection() error = %v", err)
	}
	if len(report.Duplicates) == 0 {
		t.Fatal("runDetection() dropped a blocking duplicate")
	}
	if !report.ShouldBlock {
		t.Fatal("runDetection() expected blocking report despite threshold argument")
	}
}

func TestRunDetectionBlocksExactDuplicate(t *testing.T) {
	sc := newDetectionTestContext(t)

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	source := &fakeEventSource{events: map[string][]schedule.ExistingEvent{
		"primary": {{
			ID:         "ev-existing",
			Title:      "Team Standup",
			Start:      start,
			End:        start.Add(30 * time.Minute),
			CalendarID: "primary",
		}},
	}}

	cand := schedule.Candidate{
		Title:      "Team Standup",
		Start:      "2026-09-01T09:00:00",
		End:        "2026-09-01T09:30:00",
		CalendarID: "primary",
	}
	opts := schedule.Options{Calendars: []string{"primary"}, CheckConflicts: true, CheckDuplicates: true}

	report, err := runDetection(context.Background(), sc, source, cand, opts, false)
	if err != nil {
		t.Fatalf("runDetection() error = %v", err)
	}
	if !report.ShouldBlock {
		t.Fatal("runDetection() expected blocking report for identical title and time")
	}

	msg := blockedDuplicateMessage(report.Duplicates[0])
	if !strings.Contains(msg, "ev-existing") {
		t.Errorf("blocked message missing duplicate ID: %q", msg)
	}
	if !strings.Contains(msg, `"Team Standup"`) {
		t.Errorf("blocked message missing duplicate title: %q", msg)
	}
	if !strings.Contains(msg, "100%") {
		t.Errorf("blocked message missing similarity percentage: %q", msg)
	}
	if !strings.Contains(msg, "allowDuplicates") {
		t.Errorf("blocked message missing override instruction: %q", msg)
	}
}

func TestRunDetectionCleanSlot(t *testing.T) {
	sc := newDetectionTestContext(t)
	source := &fakeEventSource{}

	cand := schedule.Candidate{
		Title: "Dentist",
		Start: "2026-09-01T10:00:00",
		End:   "2026-09-01T11:00:00",
	}
	opts := schedule.Options{Calendars: []string{"primary"}, CheckConflicts: true, CheckDuplicates: true}

	report, err := runDetection(context.Background(), sc, source, cand, opts, false)
	if err != nil {
		t.Fatalf("runDetection() error = %v", err)
	}
	if report.ShouldBlock || len(report.Conflicts) != 0 || len(report.Duplicates) != 0 {
		t.Errorf("runDetection() = %+v, want clean report", report)
	}
}

func TestRunDetectionAllCalendarsFail(t *testing.T) {
	sc := newDetectionTestContext(t)
	source := &fakeEventSource{errs: map[string]error{"primary": context.DeadlineExceeded}}

	cand := schedule.Candidate{
		Title: "Dentist",
		Start: "2026-09-01T10:00:00",
		End:   "2026-09-01T11:00:00",
	}
	opts := schedule.Options{Calendars: []string{"primary"}, CheckConflicts: true}

	_, err := runDetection(context.Background(), sc, source, cand, opts, false)
	var unavailable *schedule.UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("runDetection() error = %v, want *schedule.UnavailableError", err)
	}
	if !strings.Contains(err.Error(), "primary") {
		t.Errorf("unavailable error %q does not name the failed calendar", err)
	}
}

func TestDetectionOutcome(t *testing.T) {
	blocked := &schedule.Report{ShouldBlock: true, Duplicates: []schedule.Match{{Similarity: 0.99}}}

	tests := []struct {
		name            string
		report          *schedule.Report
		err             error
		allowDuplicates bool
		want            string
	}{
		{
			name: "unavailable",
			err:  &schedule.UnavailableError{Failures: map[string]error{"primary": context.DeadlineExceeded}},
			want: instrumentation.DetectionOutcomeUnavailable,
		},
		{
			name: "validation error records nothing",
			err:  &schedule.ValidationError{Field: "start", Message: "bad"},
			want: "",
		},
		{
			name:   "blocked",
			report: blocked,
			want:   instrumentation.DetectionOutcomeBlocked,
		},
		{
			name:            "blocked but overridden counts as duplicates",
			report:          blocked,
			allowDuplicates: true,
			want:            instrumentation.DetectionOutcomeDuplicates,
		},
		{
			name:   "duplicates",
			report: &schedule.Report{Duplicates: []schedule.Match{{Similarity: 0.8}}},
			want:   instrumentation.DetectionOutcomeDuplicates,
		},
		{
			name:   "conflicts",
			report: &schedule.Report{Conflicts: []schedule.Match{{}}},
			want:   instrumentation.DetectionOutcomeConflicts,
		},
		{
			name:   "clean",
			report: &schedule.Report{},
			want:   instrumentation.DetectionOutcomeClean,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectionOutcome(tt.report, tt.err, tt.allowDuplicates); got != tt.want {
				t.Errorf("detectionOutcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReportWarnings(t *testing.T) {
	if got := reportWarnings(nil); got != "" {
		t.Errorf("reportWarnings(nil) = %q, want empty", got)
	}
	if got := reportWarnings(&schedule.Report{}); got != "" {
		t.Errorf("reportWarnings(empty) = %q, want empty", got)
	}

	report := &schedule.Report{
		Conflicts: []schedule.Match{{
			Event:      schedule.ExistingEvent{ID: "c1", Title: "Planning"},
			Suggestion: "consider a different time slot",
		}},
		Duplicates: []schedule.Match{{
			Event:      schedule.ExistingEvent{ID: "d1", Title: "Planning Session"},
			Similarity: 0.81,
			Suggestion: "set allowDuplicates to create it anyway",
		}},
		FailedCalendars: []string{"team@example.com"},
	}

	got := reportWarnings(report)
	for _, want := range []string{"c1", "Planning", "d1", "81%", "team@example.com"} {
		if !strings.Contains(got, want) {
			t.Errorf("reportWarnings() missing %q in %q", want, got)
		}
	}
}

func TestFormatDetectionReport(t *testing.T) {
	cand := schedule.Candidate{Title: "Standup", Start: "2026-09-01T09:00:00", End: "2026-09-01T09:30:00"}

	clean := formatDetectionReport(cand, &schedule.Report{})
	if !strings.Contains(clean, "clear") {
		t.Errorf("formatDetectionReport(clean) = %q, want clear verdict", clean)
	}

	blocked := formatDetectionReport(cand, &schedule.Report{
		ShouldBlock: true,
		Duplicates: []schedule.Match{{
			Event:      schedule.ExistingEvent{ID: "d1", Title: "Standup", CalendarID: "primary"},
			Similarity: 0.97,
			Suggestion: "set allowDuplicates to create it anyway",
		}},
		FailedCalendars: []string{"work@example.com"},
	})
	for _, want := range []string{"d1", "97%", "blocked", "work@example.com"} {
		if !strings.Contains(blocked, want) {
			t.Errorf("formatDetectionReport(blocked) missing %q in %q", want, blocked)
		}
	}
}
