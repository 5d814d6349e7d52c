package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	keeperevent "github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/fault"
	"github.com/keeper-client/keeper-go/pkg/log"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents         int
	EventsByCategory    map[log.Category]int
	NotificationsByType map[string]int
	FaultsByCode        map[string]int
	Sessions            map[int64]*SessionStats
	Clients             map[string]bool
	ConnectAttempts     int
	ConnectFailures     int
	Resumptions         int
	Expirations         int
	Errors              int
	TimeRange           struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single session.
type SessionStats struct {
	FirstSeen     time.Time
	LastSeen      time.Time
	Events        int
	Notifications int
	Resumed       bool
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func newStats() *Stats {
	return &Stats{
		EventsByCategory:    make(map[log.Category]int),
		NotificationsByType: make(map[string]int),
		FaultsByCode:        make(map[string]int),
		Sessions:            make(map[int64]*SessionStats),
		Clients:             make(map[string]bool),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++
	if event.ClientID != "" {
		s.Clients[event.ClientID] = true
	}

	// Track time range
	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	// Track session stats
	if event.SessionID != 0 {
		sess, ok := s.Sessions[event.SessionID]
		if !ok {
			sess = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
			s.Sessions[event.SessionID] = sess
		}
		sess.Events++
		if event.Timestamp.After(sess.LastSeen) {
			sess.LastSeen = event.Timestamp
		}
		if event.Notification != nil {
			sess.Notifications++
		}
		if event.StateChange != nil && event.StateChange.Resumed {
			sess.Resumed = true
		}
	}

	switch {
	case event.StateChange != nil:
		if event.StateChange.Entity == log.StateEntitySession {
			s.ConnectAttempts++
			if event.StateChange.Resumed {
				s.Resumptions++
			}
		}
	case event.Notification != nil:
		s.NotificationsByType[event.Notification.Type.String()]++
		if event.Notification.IsSession() && event.Notification.State == keeperevent.StateExpired {
			s.Expirations++
		}
	case event.Error != nil:
		s.Errors++
		if event.Error.Source == log.ErrorSourceConnect {
			s.ConnectAttempts++
			s.ConnectFailures++
		}
		if event.Error.Code != nil {
			s.FaultsByCode[fault.Code(*event.Error.Code).String()]++
		}
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Keeper Client Trace Statistics ===")
	fmt.Fprintln(w)

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintf(w, "Clients:      %d\n", len(stats.Clients))
	fmt.Fprintln(w)

	// Events by category
	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryState, log.CategoryNotification, log.CategoryError, log.CategoryRetry} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Connects
	fmt.Fprintf(w, "Connect Attempts: %d (failed: %d, resumed: %d)\n",
		stats.ConnectAttempts, stats.ConnectFailures, stats.Resumptions)
	fmt.Fprintf(w, "Expirations:      %d\n", stats.Expirations)

	if len(stats.NotificationsByType) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Notifications by Type:")
		printCounts(w, stats.NotificationsByType)
	}

	// Sessions
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		// Sort by first seen time
		ids := make([]int64, 0, len(stats.Sessions))
		for id := range stats.Sessions {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			return stats.Sessions[ids[i]].FirstSeen.Before(stats.Sessions[ids[j]].FirstSeen)
		})

		for _, id := range ids {
			s := stats.Sessions[id]
			duration := s.LastSeen.Sub(s.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [0x%x] %d events, %d notifications, duration %s", id, s.Events, s.Notifications, duration)
			if s.Resumed {
				fmt.Fprint(w, " (resumed)")
			}
			fmt.Fprintln(w)
		}
	}

	// Errors
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
		printCounts(w, stats.FaultsByCode)
	}
}

func printCounts(w io.Writer, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-24s %d\n", k+":", counts[k])
	}
}
