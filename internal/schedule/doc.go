// Package schedule implements the event conflict and duplicate detection core.
//
// It has two parts: a date/time normalizer that converts ISO-8601 strings and
// natural-language phrases ("tomorrow 3pm", "friday") into a canonical local
// timestamp, and a detector that compares a candidate event against events
// already present on one or more calendars, classifying each existing event
// as a temporal conflict, a near-duplicate, or neither.
//
// The detector is pure with respect to calendar access: existing events are
// fetched through the EventSource interface, so it can be driven by the live
// Google Calendar client or by a fake in tests. All state is request-scoped;
// a Detector is safe for concurrent use.
//
// Example usage:
//
//	det, err := schedule.NewDetector(client, schedule.DefaultConfig(), slog.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := det.Detect(ctx, candidate, schedule.Options{
//	    CheckConflicts: true,
//	    CheckDuplicates: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if report.ShouldBlock {
//	    // refuse creation unless the caller opted into duplicates
//	}
package schedule
