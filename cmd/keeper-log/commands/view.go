// Package commands implements the keeper-log CLI commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/keeper-client/keeper-go/pkg/fault"
	"github.com/keeper-client/keeper-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Category  *log.Category
	SessionID int64
	Path      string
}

func (f ViewFilter) matches(event log.Event) bool {
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.SessionID != 0 && event.SessionID != f.SessionID {
		return false
	}
	if f.Path != "" && (event.Notification == nil || !strings.HasPrefix(event.Notification.Path, f.Path)) {
		return false
	}
	return true
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [client:id] [session] CATEGORY Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	clientID := shortenID(event.ClientID)

	fmt.Fprintf(w, "%s [client:%s] %s %s %s\n", ts, clientID, formatSession(event.SessionID), event.Category.String(), typeLabel(event))

	// Type-specific details
	switch {
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Notification != nil:
		if event.Notification.Path != "" {
			fmt.Fprintf(w, "  Path: %s\n", event.Notification.Path)
		}
		fmt.Fprintf(w, "  State: %s\n", event.Notification.State.String())
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	case event.Retry != nil:
		formatRetryDetails(w, event.Retry)
	}

	fmt.Fprintln(w) // Blank line between events
}

// typeLabel names the payload of event.
func typeLabel(event log.Event) string {
	switch {
	case event.StateChange != nil:
		return event.StateChange.Entity.String()
	case event.Notification != nil:
		return event.Notification.Type.String()
	case event.Error != nil:
		return event.Error.Source.String()
	case event.Retry != nil:
		if event.Retry.Retry {
			return "RETRY"
		}
		return "GIVE_UP"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of the ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatSession(id int64) string {
	if id == 0 {
		return "-"
	}
	return fmt.Sprintf("0x%x", id)
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
	if sc.Resumed {
		fmt.Fprintln(w, "  Resumed: true")
	}
	if sc.Duration > 0 {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(sc.Duration))
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %s (%d)\n", fault.Code(*err.Code).String(), *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatRetryDetails writes retry decision details.
func formatRetryDetails(w io.Writer, r *log.RetryEvent) {
	if r.Code != nil {
		fmt.Fprintf(w, "  Code: %s (%d)\n", fault.Code(*r.Code).String(), *r.Code)
	}
	if r.Closed {
		fmt.Fprintln(w, "  Closed: true")
	}
	if r.Message != "" {
		fmt.Fprintf(w, "  Message: %s\n", r.Message)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	c, ok := log.ParseCategory(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be state, notification, error, or retry)", s)
	}
	return c, nil
}

// ParseSessionFlag parses a session ID in hex ("0x1a2b" or "1a2b").
func ParseSessionFlag(s string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(strings.TrimPrefix(strings.ToLower(s), "0x"), "%x", &id)
	if err != nil {
		return 0, fmt.Errorf("invalid session id: %s", s)
	}
	return id, nil
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		if !filter.matches(event) {
			continue
		}

		formatEvent(output, event)
	}

	return nil
}
