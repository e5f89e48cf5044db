package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves canned events per calendar and records which windows
// were queried.
type fakeSource struct {
	mu      sync.Mutex
	events  map[string][]ExistingEvent
	errs    map[string]error
	queries []fetchQuery
}

type fetchQuery struct {
	calendarID string
	min, max   time.Time
}

func (f *fakeSource) EventsBetween(_ context.Context, calendarID string, min, max time.Time) ([]ExistingEvent, error) {
	f.mu.Lock()
	f.queries = append(f.queries, fetchQuery{calendarID: calendarID, min: min, max: max})
	f.mu.Unlock()
	if err, ok := f.errs[calendarID]; ok {
		return nil, err
	}
	return f.events[calendarID], nil
}

func newTestDetector(t *testing.T, source EventSource) *Detector {
	t.Helper()
	det, err := NewDetector(source, DefaultConfig(), nil)
	require.NoError(t, err)
	return det
}

func existing(id, title, start, end string) ExistingEvent {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		panic(err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		panic(err)
	}
	return ExistingEvent{ID: id, Title: title, Start: s, End: e, CalendarID: "primary"}
}

func TestDetectExactDuplicateBlocks(t *testing.T) {
	source := &fakeSource{events: map[string][]ExistingEvent{
		"primary": {existing("ev1", "Team Sync", "2024-01-15T10:00:00Z", "2024-01-15T11:00:00Z")},
	}}
	det := newTestDetector(t, source)

	report, err := det.Detect(context.Background(), Candidate{
		Title: "Team Sync",
		Start: "2024-01-15T10:00:00",
		End:   "2024-01-15T11:00:00",
	}, Options{CheckDuplicates: true})
	require.NoError(t, err)

	require.Len(t, report.Duplicates, 1)
	assert.Equal(t, "ev1", report.Duplicates[0].Event.ID)
	assert.GreaterOrEqual(t, report.Duplicates[0].Similarity, 0.95)
	assert.True(t, report.ShouldBlock)
	assert.Contains(t, report.Duplicates[0].Suggestion, "allowDuplicates")
}

func TestDetectOverlapIsConflictNotDuplicate(t *testing.T) {
	source := &fakeSource{events: map[string][]ExistingEvent{
		"primary": {existing("ev1", "Team Standup", "2024-01-15T10:00:00Z", "2024-01-15T11:00:00Z")},
	}}
	det := newTestDetector(t, source)

	report, err := det.Detect(context.Background(), Candidate{
		Title: "Deep Work Block",
		Start: "2024-01-15T10:30:00",
		End:   "2024-01-15T11:30:00",
	}, Options{CheckConflicts: true, CheckDuplicates: true})
	require.NoError(t, err)

	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, 30*time.Minute, report.Conflicts[0].Overlap)
	assert.Empty(t, report.Duplicates)
	assert.False(t, report.ShouldBlock)
}

func TestDetectTouchingEventsDoNotConflict(t *testing.T) {
	source := &fakeSource{events: map[string][]ExistingEvent{
		"primary": {existing("ev1", "Morning Review", "2024-01-15T09:00:00Z", "2024-01-15T10:00:00Z")},
	}}
	det := newTestDetector(t, source)

	report, err := det.Detect(context.Background(), Candidate{
		Title: "Planning",
		Start: "2024-01-15T10:00:00",
		End:   "2024-01-15T11:00:00",
	}, Options{CheckConflicts: true})
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)
}

func TestDetectSimilarTitleNearbyIsDuplicate(t *testing.T) {
	source := &fakeSource{events: map[string][]ExistingEvent{
		"primary": {existing("ev1", "Weekly Planning", "2024-01-15T14:00:00Z", "2024-01-15T15:00:00Z")},
	}}
	det := newTestDetector(t, source)

	// Same title thirty minutes later: high title score plus strong
	// proximity clears the detection threshold but not the blocking one.
	report, err := det.Detect(context.Background(), Candidate{
		Title: "Weekly Planning",
		Start: "2024-01-15T14:30:00",
		End:   "2024-01-15T15:30:00",
	}, Options{CheckDuplicates: true})
	require.NoError(t, err)

	require.Len(t, report.Duplicates, 1)
	assert.GreaterOrEqual(t, report.Duplicates[0].Similarity, 0.7)
	assert.Less(t, report.Duplicates[0].Similarity, 0.95)
	assert.False(t, report.ShouldBlock)
}

func TestDetectDissimilarEventsClean(t *testing.T) {
	source := &fakeSource{events: map[string][]ExistingEvent{
		"primary": {existing("ev1", "Dentist", "2024-01-15T08:00:00Z", "2024-01-15T09:00:00Z")},
	}}
	det := newTestDetector(t, source)

	report, err := det.Detect(context.Background(), Candidate{
		Title: "Quarterly Business Review",
		Start: "2024-01-15T16:00:00",
		End:   "2024-01-15T17:00:00",
	}, Options{CheckConflicts: true, CheckDuplicates: true})
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)
	assert.Empty(t, report.Duplicates)
	assert.False(t, report.ShouldBlock)
}

func TestDetectLocationBreaksTie(t *testing.T) {
	source := &fakeSource{events: map[string][]ExistingEvent{
		"primary": {
			{ID: "ev1", Title: "Standup", Start: mustTime("2024-01-15T10:00:00Z"), End: mustTime("2024-01-15T10:15:00Z"), Location: "Room A", CalendarID: "primary"},
		},
	}}
	det := newTestDetector(t, source)

	withLoc, err := det.Detect(context.Background(), Candidate{
		Title:    "Standup",
		Location: "Room A",
		Start:    "2024-01-15T10:00:00",
	}, Options{CheckDuplicates: true})
	require.NoError(t, err)

	withoutLoc, err := det.Detect(context.Background(), Candidate{
		Title:    "Standup",
		Location: "Room B",
		Start:    "2024-01-15T10:00:00",
	}, Options{CheckDuplicates: true})
	require.NoError(t, err)

	require.Len(t, withLoc.Duplicates, 1)
	require.Len(t, withoutLoc.Duplicates, 1)
	assert.Greater(t, withLoc.Duplicates[0].Similarity, withoutLoc.Duplicates[0].Similarity)
}

func TestDetectAllCalendarsFailing(t *testing.T) {
	source := &fakeSource{errs: map[string]error{
		"primary": errors.New("backend down"),
		"work":    errors.New("backend down"),
	}}
	det := newTestDetector(t, source)

	_, err := det.Detect(context.Background(), Candidate{
		Title: "Team Sync",
		Start: "2024-01-15T10:00:00",
	}, Options{Calendars: []string{"primary", "work"}, CheckDuplicates: true})

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Len(t, unavailable.Failures, 2)
}

func TestDetectPartialFailureDegrades(t *testing.T) {
	source := &fakeSource{
		events: map[string][]ExistingEvent{
			"primary": {existing("ev1", "Team Sync", "2024-01-15T10:00:00Z", "2024-01-15T11:00:00Z")},
		},
		errs: map[string]error{"work": errors.New("backend down")},
	}
	det := newTestDetector(t, source)

	report, err := det.Detect(context.Background(), Candidate{
		Title: "Team Sync",
		Start: "2024-01-15T10:00:00",
	}, Options{Calendars: []string{"primary", "work"}, CheckDuplicates: true})
	require.NoError(t, err)
	require.Len(t, report.Duplicates, 1)
}

func TestDetectFetchWindowIncludesPad(t *testing.T) {
	source := &fakeSource{}
	det := newTestDetector(t, source)

	_, err := det.Detect(context.Background(), Candidate{
		Title: "Solo",
		Start: "2024-01-15T10:00:00",
		End:   "2024-01-15T11:00:00",
	}, Options{CheckDuplicates: true})
	require.NoError(t, err)

	require.Len(t, source.queries, 1)
	q := source.queries[0]
	assert.Equal(t, mustTime("2024-01-14T10:00:00Z"), q.min)
	assert.Equal(t, mustTime("2024-01-16T11:00:00Z"), q.max)
}

func TestDetectDefaultsToCandidateCalendar(t *testing.T) {
	source := &fakeSource{}
	det := newTestDetector(t, source)

	_, err := det.Detect(context.Background(), Candidate{
		Title:      "Solo",
		Start:      "2024-01-15T10:00:00",
		CalendarID: "work",
	}, Options{CheckConflicts: true})
	require.NoError(t, err)

	require.Len(t, source.queries, 1)
	assert.Equal(t, "work", source.queries[0].calendarID)
}

func TestDetectAllDayIntervals(t *testing.T) {
	// An all-day candidate spans the full day and collides with a timed
	// event inside it.
	source := &fakeSource{events: map[string][]ExistingEvent{
		"primary": {existing("ev1", "Focus", "2024-01-20T09:00:00Z", "2024-01-20T10:00:00Z")},
	}}
	det := newTestDetector(t, source)

	report, err := det.Detect(context.Background(), Candidate{
		Title: "Conference Day",
		Start: "2024-01-20",
	}, Options{CheckConflicts: true})
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, time.Hour, report.Conflicts[0].Overlap)
}

func TestDetectOrderIsDeterministic(t *testing.T) {
	events := []ExistingEvent{
		existing("b", "Team Sync", "2024-01-15T10:00:00Z", "2024-01-15T11:00:00Z"),
		existing("a", "Team Sync", "2024-01-15T10:00:00Z", "2024-01-15T11:00:00Z"),
		existing("c", "Team Sync", "2024-01-15T09:00:00Z", "2024-01-15T10:00:00Z"),
	}
	orders := [][]ExistingEvent{
		{events[0], events[1], events[2]},
		{events[2], events[1], events[0]},
		{events[1], events[2], events[0]},
	}

	var reports []*Report
	for _, order := range orders {
		source := &fakeSource{events: map[string][]ExistingEvent{"primary": order}}
		det := newTestDetector(t, source)
		report, err := det.Detect(context.Background(), Candidate{
			Title: "Team Sync",
			Start: "2024-01-15T10:00:00",
			End:   "2024-01-15T11:00:00",
		}, Options{CheckDuplicates: true})
		require.NoError(t, err)
		reports = append(reports, report)
	}

	for i := 1; i < len(reports); i++ {
		require.Equal(t, len(reports[0].Duplicates), len(reports[i].Duplicates))
		for j := range reports[0].Duplicates {
			assert.Equal(t, reports[0].Duplicates[j].Event.ID, reports[i].Duplicates[j].Event.ID)
		}
	}
}

func TestDetectThresholdOverride(t *testing.T) {
	source := &fakeSource{events: map[string][]ExistingEvent{
		"primary": {existing("ev1", "Team Sync Meeting", "2024-01-15T10:00:00Z", "2024-01-15T11:00:00Z")},
	}}
	det := newTestDetector(t, source)

	cand := Candidate{Title: "Team Sync", Start: "2024-01-15T10:00:00"}

	strict, err := det.Detect(context.Background(), cand, Options{CheckDuplicates: true, Threshold: 0.99})
	require.NoError(t, err)
	assert.Empty(t, strict.Duplicates)

	loose, err := det.Detect(context.Background(), cand, Options{CheckDuplicates: true, Threshold: 0.5})
	require.NoError(t, err)
	assert.Len(t, loose.Duplicates, 1)
}

func TestDetectRaisedThresholdStillBlocks(t *testing.T) {
	// Scores roughly 0.95: near-identical title, same start, both locations
	// unset. Raising the per-call threshold past it must not let it through.
	source := &fakeSource{events: map[string][]ExistingEvent{
		"primary": {existing("ev1", "Team Standup", "2024-01-15T10:00:00Z", "2024-01-15T10:30:00Z")},
	}}
	det := newTestDetector(t, source)

	cand := Candidate{Title: "Team Standups", Start: "2024-01-15T10:00:00"}

	report, err := det.Detect(context.Background(), cand, Options{CheckDuplicates: true, Threshold: 0.99})
	require.NoError(t, err)
	require.Len(t, report.Duplicates, 1)
	assert.True(t, report.ShouldBlock, "blocking duplicate must survive a raised threshold")
}

func TestDetectTiebreakByCalendar(t *testing.T) {
	// The same event ID on two calendars with identical scores must order by
	// calendar, not by goroutine arrival.
	ev := existing("ev1", "Team Sync", "2024-01-15T10:00:00Z", "2024-01-15T11:00:00Z")
	evWork := ev
	evWork.CalendarID = "work"
	source := &fakeSource{events: map[string][]ExistingEvent{
		"primary": {ev},
		"work":    {evWork},
	}}
	det := newTestDetector(t, source)

	cand := Candidate{Title: "Team Sync", Start: "2024-01-15T10:00:00"}
	opts := Options{CheckDuplicates: true, Calendars: []string{"work", "primary"}}

	for i := 0; i < 20; i++ {
		report, err := det.Detect(context.Background(), cand, opts)
		require.NoError(t, err)
		require.Len(t, report.Duplicates, 2)
		assert.Equal(t, "primary", report.Duplicates[0].Event.CalendarID)
		assert.Equal(t, "work", report.Duplicates[1].Event.CalendarID)
	}
}

func TestDetectInvalidInput(t *testing.T) {
	det := newTestDetector(t, &fakeSource{})

	var verr *ValidationError

	_, err := det.Detect(context.Background(), Candidate{Title: "X"}, Options{})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "start", verr.Field)

	_, err = det.Detect(context.Background(), Candidate{
		Title: "X",
		Start: "2024-01-15T10:00:00",
		End:   "2024-01-15T09:00:00",
	}, Options{})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end", verr.Field)

	_, err = det.Detect(context.Background(), Candidate{
		Title: "X",
		Start: "2024-01-15T10:00:00",
	}, Options{Threshold: 1.5})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "threshold", verr.Field)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default is valid", mutate: func(c *Config) {}},
		{name: "duplicate threshold above one", mutate: func(c *Config) { c.DuplicateThreshold = 1.1 }, wantErr: true},
		{name: "blocking below duplicate", mutate: func(c *Config) { c.BlockingThreshold = 0.5 }, wantErr: true},
		{name: "negative fetch pad", mutate: func(c *Config) { c.FetchPad = -time.Hour }, wantErr: true},
		{name: "zero proximity window", mutate: func(c *Config) { c.ProximityWindow = 0 }, wantErr: true},
		{name: "equal thresholds", mutate: func(c *Config) { c.BlockingThreshold = c.DuplicateThreshold }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScoreMonotonicInTitleSimilarity(t *testing.T) {
	det := newTestDetector(t, &fakeSource{})
	start := mustTime("2024-01-15T10:00:00Z")
	ev := ExistingEvent{ID: "ev1", Title: "Team Sync", Start: start, End: start.Add(time.Hour)}

	// Progressively closer titles with time and location held fixed must
	// never score lower than a more distant title.
	titles := []string{"Dentist", "Team Standup", "Team Syncs", "Team Sync"}
	prev := -1.0
	for _, title := range titles {
		score := det.score(Candidate{Title: title}, start, ev)
		assert.GreaterOrEqual(t, score, prev, title)
		prev = score
	}
}

func TestOverlapExtentSymmetric(t *testing.T) {
	aStart := mustTime("2024-01-15T10:00:00Z")
	aEnd := mustTime("2024-01-15T11:00:00Z")
	bStart := mustTime("2024-01-15T10:30:00Z")
	bEnd := mustTime("2024-01-15T12:00:00Z")

	assert.Equal(t, overlapExtent(aStart, aEnd, bStart, bEnd), overlapExtent(bStart, bEnd, aStart, aEnd))
	assert.Equal(t, 30*time.Minute, overlapExtent(aStart, aEnd, bStart, bEnd))
}

func TestNewDetectorRejectsNilSource(t *testing.T) {
	_, err := NewDetector(nil, DefaultConfig(), nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}
