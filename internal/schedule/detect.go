package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// Score weights for duplicate detection. Title similarity dominates,
	// temporal proximity and location refine it.
	weightTitle     = 0.6
	weightProximity = 0.3
	weightLocation  = 0.1
)

// Config tunes the detector. All fields must be set; use DefaultConfig as a
// starting point.
type Config struct {
	// DuplicateThreshold is the minimum score for an existing event to be
	// reported as a duplicate.
	DuplicateThreshold float64
	// BlockingThreshold is the minimum score at which a duplicate blocks
	// event creation. It must be at least DuplicateThreshold.
	BlockingThreshold float64
	// FetchPad widens the query window on both sides of the candidate so
	// near-miss events on adjacent days are considered.
	FetchPad time.Duration
	// ProximityWindow is the start-time distance at which the temporal
	// proximity component decays to zero.
	ProximityWindow time.Duration
}

// Default tuning values.
const (
	DefaultDuplicateThreshold = 0.7
	DefaultBlockingThreshold  = 0.95
	DefaultFetchPad           = 24 * time.Hour
	DefaultProximityWindow    = 2 * time.Hour
)

// DefaultConfig returns the tuning used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		DuplicateThreshold: DefaultDuplicateThreshold,
		BlockingThreshold:  DefaultBlockingThreshold,
		FetchPad:           DefaultFetchPad,
		ProximityWindow:    DefaultProximityWindow,
	}
}

// Validate reports whether the configuration is internally consistent.
func (c Config) Validate() error {
	if c.DuplicateThreshold < 0 || c.DuplicateThreshold > 1 {
		return &ValidationError{Field: "duplicateThreshold", Message: "must be between 0 and 1"}
	}
	if c.BlockingThreshold < 0 || c.BlockingThreshold > 1 {
		return &ValidationError{Field: "blockingThreshold", Message: "must be between 0 and 1"}
	}
	if c.BlockingThreshold < c.DuplicateThreshold {
		return &ValidationError{Field: "blockingThreshold", Message: "must not be below duplicateThreshold"}
	}
	if c.FetchPad < 0 {
		return &ValidationError{Field: "fetchPad", Message: "must not be negative"}
	}
	if c.ProximityWindow <= 0 {
		return &ValidationError{Field: "proximityWindow", Message: "must be positive"}
	}
	return nil
}

// Candidate is an event being vetted before creation.
type Candidate struct {
	Title       string
	Description string
	Location    string
	// Start and End are canonical values as produced by Normalize: either a
	// bare date or a timezone-naive datetime.
	Start    string
	End      string
	TimeZone string
	// CalendarID names the calendar the event would be created on.
	CalendarID string
}

// ExistingEvent is a calendar event already on the user's schedule.
type ExistingEvent struct {
	ID         string
	Title      string
	Start      time.Time
	End        time.Time
	Location   string
	HTMLLink   string
	CalendarID string
}

// EventSource fetches events inside a time window. Implementations must be
// safe for concurrent use; the detector queries calendars in parallel.
type EventSource interface {
	EventsBetween(ctx context.Context, calendarID string, min, max time.Time) ([]ExistingEvent, error)
}

// Options selects what a single detection run checks.
type Options struct {
	// Calendars lists the calendar IDs to inspect. Empty means only the
	// candidate's own calendar (or "primary" when that is also unset).
	Calendars       []string
	CheckConflicts  bool
	CheckDuplicates bool
	// Threshold overrides Config.DuplicateThreshold when positive. It widens
	// or narrows what gets reported, never what blocks: events scoring at or
	// above the blocking threshold are always reported.
	Threshold float64
}

// Match is one existing event flagged by a detection run.
type Match struct {
	Event ExistingEvent
	// Similarity is the duplicate score; zero for pure conflicts.
	Similarity float64
	// Overlap is how long the existing event and the candidate coincide;
	// zero for pure duplicates.
	Overlap time.Duration
	// Suggestion tells the caller what to do about the match.
	Suggestion string
}

// Report is the outcome of a detection run.
type Report struct {
	Conflicts  []Match
	Duplicates []Match
	// ShouldBlock is set when the best duplicate scores at or above the
	// blocking threshold, meaning creation should be refused unless the
	// caller explicitly allows duplicates.
	ShouldBlock bool
	// FailedCalendars lists calendars that could not be queried. A non-empty
	// list means the verdict is based on partial data.
	FailedCalendars []string
}

// ValidationError reports unusable detector input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UnavailableError means every queried calendar failed, so no verdict can be
// given. Partial calendar failures do not produce this error; they degrade
// the result instead.
type UnavailableError struct {
	Failures map[string]error
}

func (e *UnavailableError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("detection unavailable: all calendars failed (%s)", strings.Join(ids, ", "))
}

// Detector scores candidate events against existing calendar events.
type Detector struct {
	source EventSource
	cfg    Config
	logger *slog.Logger
}

// NewDetector creates a detector over the given event source. A nil logger
// disables logging.
func NewDetector(source EventSource, cfg Config, logger *slog.Logger) (*Detector, error) {
	if source == nil {
		return nil, &ValidationError{Field: "source", Message: "must not be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Detector{source: source, cfg: cfg, logger: logger}, nil
}

// Detect checks the candidate against existing events on the selected
// calendars. It returns an UnavailableError only when every calendar query
// fails; a partial failure is logged and the surviving calendars decide the
// verdict.
func (d *Detector) Detect(ctx context.Context, cand Candidate, opts Options) (*Report, error) {
	start, end, err := resolveInterval(cand)
	if err != nil {
		return nil, err
	}

	threshold := d.cfg.DuplicateThreshold
	if opts.Threshold > 0 {
		if opts.Threshold > 1 {
			return nil, &ValidationError{Field: "threshold", Message: "must be between 0 and 1"}
		}
		threshold = opts.Threshold
	}

	calendars := opts.Calendars
	if len(calendars) == 0 {
		id := cand.CalendarID
		if id == "" {
			id = "primary"
		}
		calendars = []string{id}
	}

	events, failures := d.fetch(ctx, calendars, start.Add(-d.cfg.FetchPad), end.Add(d.cfg.FetchPad))
	if len(failures) == len(calendars) {
		return nil, &UnavailableError{Failures: failures}
	}
	report := &Report{}
	for id, ferr := range failures {
		d.logger.Warn("calendar query failed, detection degraded",
			slog.String("calendar_id", id),
			slog.String("error", ferr.Error()))
		report.FailedCalendars = append(report.FailedCalendars, id)
	}
	sort.Strings(report.FailedCalendars)
	for _, ev := range events {
		if opts.CheckConflicts {
			if overlap := overlapExtent(start, end, ev.Start, ev.End); overlap > 0 {
				report.Conflicts = append(report.Conflicts, Match{
					Event:      ev,
					Overlap:    overlap,
					Suggestion: conflictSuggestion(ev, overlap),
				})
			}
		}
		if opts.CheckDuplicates {
			// A raised per-call threshold must not hide a blocking duplicate.
			if score := d.score(cand, start, ev); score >= threshold || score >= d.cfg.BlockingThreshold {
				report.Duplicates = append(report.Duplicates, Match{
					Event:      ev,
					Similarity: score,
					Suggestion: duplicateSuggestion(ev, score),
				})
			}
		}
	}

	sort.SliceStable(report.Conflicts, func(i, j int) bool {
		return lessMatch(report.Conflicts[i], report.Conflicts[j], func(m Match) float64 {
			return m.Overlap.Seconds()
		})
	})
	sort.SliceStable(report.Duplicates, func(i, j int) bool {
		return lessMatch(report.Duplicates[i], report.Duplicates[j], func(m Match) float64 {
			return m.Similarity
		})
	})

	if len(report.Duplicates) > 0 && report.Duplicates[0].Similarity >= d.cfg.BlockingThreshold {
		report.ShouldBlock = true
	}

	d.logger.Debug("detection run complete",
		slog.Int("events_considered", len(events)),
		slog.Int("conflicts", len(report.Conflicts)),
		slog.Int("duplicates", len(report.Duplicates)),
		slog.Bool("should_block", report.ShouldBlock))

	return report, nil
}

// fetch queries every calendar concurrently and merges the results. Events
// are keyed by (calendar, ID) so a calendar listed twice contributes once.
func (d *Detector) fetch(ctx context.Context, calendars []string, min, max time.Time) ([]ExistingEvent, map[string]error) {
	type result struct {
		calendarID string
		events     []ExistingEvent
		err        error
	}

	results := make(chan result, len(calendars))
	var wg sync.WaitGroup
	for _, id := range calendars {
		wg.Add(1)
		go func(calendarID string) {
			defer wg.Done()
			events, err := d.source.EventsBetween(ctx, calendarID, min, max)
			results <- result{calendarID: calendarID, events: events, err: err}
		}(id)
	}
	wg.Wait()
	close(results)

	seen := make(map[string]struct{})
	var merged []ExistingEvent
	failures := make(map[string]error)
	for r := range results {
		if r.err != nil {
			failures[r.calendarID] = r.err
			continue
		}
		for _, ev := range r.events {
			key := ev.CalendarID + "\x00" + ev.ID
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, ev)
		}
	}
	if len(failures) == 0 {
		failures = nil
	}
	return merged, failures
}

// score combines title similarity, start-time proximity and location into a
// duplicate score in [0, 1].
func (d *Detector) score(cand Candidate, candStart time.Time, ev ExistingEvent) float64 {
	title := TitleSimilarity(cand.Title, ev.Title)

	delta := candStart.Sub(ev.Start)
	if delta < 0 {
		delta = -delta
	}
	proximity := 1 - float64(delta)/float64(d.cfg.ProximityWindow)
	if proximity < 0 {
		proximity = 0
	}

	// Two unset locations count as matching so identical minimal events
	// can still reach a blocking score.
	location := 0.0
	if strings.EqualFold(strings.TrimSpace(cand.Location), strings.TrimSpace(ev.Location)) {
		location = 1
	}

	score := weightTitle*title + weightProximity*proximity + weightLocation*location
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// resolveInterval turns the candidate's canonical start and end into a
// concrete half-open interval. All-day values resolve to midnight, a missing
// end defaults to one hour after the start, and an all-day event whose end
// lands on its own start spans the full day.
func resolveInterval(cand Candidate) (time.Time, time.Time, error) {
	loc := time.UTC
	if cand.TimeZone != "" {
		if l, err := time.LoadLocation(cand.TimeZone); err == nil {
			loc = l
		}
	}

	start, allDay, err := parseCanonical(cand.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "start", Message: err.Error()}
	}

	var end time.Time
	if cand.End == "" {
		if allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start.Add(time.Hour)
		}
	} else {
		end, _, err = parseCanonical(cand.End, loc)
		if err != nil {
			return time.Time{}, time.Time{}, &ValidationError{Field: "end", Message: err.Error()}
		}
		if allDay && end.Equal(start) {
			end = start.AddDate(0, 0, 1)
		}
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, &ValidationError{Field: "end", Message: "must not precede start"}
	}
	return start, end, nil
}

func parseCanonical(value string, loc *time.Location) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, fmt.Errorf("empty time value")
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc); err == nil {
		return t, false, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", value, loc); err == nil {
		return t, false, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, false, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unparseable time value %q", value)
}

// overlapExtent is the length of the intersection of two half-open
// intervals. Events that merely touch do not overlap.
func overlapExtent(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

// lessMatch orders matches by descending primary metric, then by start time,
// ID and calendar so equal scores still sort deterministically. The calendar
// tiebreak matters because the same event ID can appear on several calendars.
func lessMatch(a, b Match, metric func(Match) float64) bool {
	ma, mb := metric(a), metric(b)
	if ma != mb {
		return ma > mb
	}
	if !a.Event.Start.Equal(b.Event.Start) {
		return a.Event.Start.Before(b.Event.Start)
	}
	if a.Event.ID != b.Event.ID {
		return a.Event.ID < b.Event.ID
	}
	return a.Event.CalendarID < b.Event.CalendarID
}

func conflictSuggestion(ev ExistingEvent, overlap time.Duration) string {
	return fmt.Sprintf("Overlaps %q (%s to %s) by %s; consider a different time slot.",
		ev.Title,
		ev.Start.Format("2006-01-02 15:04"),
		ev.End.Format("15:04"),
		overlap.Round(time.Minute))
}

func duplicateSuggestion(ev ExistingEvent, score float64) string {
	return fmt.Sprintf("An event with a %d%% similar title (%q) already exists at %s; set allowDuplicates to create it anyway.",
		int(score*100+0.5),
		ev.Title,
		ev.Start.Format("2006-01-02 15:04"))
}
