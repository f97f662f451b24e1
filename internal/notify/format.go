package notify

import (
	"fmt"
	"strings"
	"time"
)

// Notification headings. English literals stand in for the host UI's
// localized string table.
const (
	headingStartingSoon     = "Starting soon"
	headingRecordingStarted = "Recording started"
	headingRecordingStopped = "Recording stopped"
	headingRecordingFailed  = "Recording failed"

	noFreeTunerText = "No free tuner available."
)

// shortClock renders a timestamp the way the UI shows airing times.
const shortClock = "15:04"

// formatTimeRange renders "Title 12:00-13:30".
func formatTimeRange(title string, start, end time.Time) string {
	return fmt.Sprintf("%s %s-%s", title, start.Format(shortClock), end.Format(shortClock))
}

// formatProgramBody renders the pre-alert body: title with the airing window,
// then genre and description when present.
func formatProgramBody(p PendingNotification) string {
	var b strings.Builder
	b.WriteString(formatTimeRange(p.Title, p.StartTime, p.EndTime))
	if g := strings.TrimSpace(p.Genre); g != "" {
		b.WriteString(" [")
		b.WriteString(g)
		b.WriteString("]")
	}
	if d := strings.TrimSpace(p.Description); d != "" {
		b.WriteString("\n")
		b.WriteString(d)
	}
	return b.String()
}
