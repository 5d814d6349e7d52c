package client

import (
	"fmt"
	"time"

	"github.com/keeper-client/keeper-go/pkg/connection"
	"github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/fault"
	"github.com/keeper-client/keeper-go/pkg/log"
	"github.com/keeper-client/keeper-go/pkg/retry"
	"github.com/keeper-client/keeper-go/pkg/watch"
)

// route receives every notification from the connection manager.
// It runs on the collaborator's goroutine.
func (c *Client) route(n event.Notification) error {
	c.metrics.RecordNotification(n)
	c.emit(log.Event{Category: log.CategoryNotification, Notification: &n})

	if err := c.dispatcher.Enqueue(n); err != nil {
		c.emit(log.Event{
			Category: log.CategoryError,
			Error:    &log.ErrorEventData{Source: log.ErrorSourceDispatch, Message: err.Error(), Context: n.String()},
		})
		return err
	}
	return nil
}

func (c *Client) stateChanged(oldState, newState connection.State) {
	c.metrics.SetConnectionState(int(newState))
	c.emit(log.Event{
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState.String(),
			NewState: newState.String(),
		},
	})
}

func (c *Client) attempted(a connection.Attempt) {
	c.metrics.RecordConnect(a.Err, a.Duration, a.Resumed, a.Reused)

	if a.Err != nil {
		c.emit(log.Event{
			Category: log.CategoryError,
			Error: &log.ErrorEventData{
				Source:  log.ErrorSourceConnect,
				Message: a.Err.Error(),
				Code:    faultCode(a.Err),
				Context: fmt.Sprintf("resume=%t after %s", a.Resumed, a.Duration.Round(time.Millisecond)),
			},
		})
		return
	}

	c.emit(log.Event{
		Category:  log.CategoryState,
		SessionID: a.Session.ID,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			NewState: "ESTABLISHED",
			Resumed:  a.Reused,
			Duration: a.Duration,
		},
	})
}

func (c *Client) decided(d retry.Decision) {
	c.metrics.RecordRetryDecision(d.Code, d.Fault, d.Retry)

	re := &log.RetryEvent{Retry: d.Retry, Closed: d.Closed, Message: d.Err.Error()}
	if d.Fault {
		code := int32(d.Code)
		re.Code = &code
	}
	c.emit(log.Event{Category: log.CategoryRetry, Retry: re})
}

func (c *Client) watcherPanicked(w watch.Watcher, n event.Notification, recovered any) {
	c.metrics.RecordWatcherPanic()
	c.emit(log.Event{
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Source:  log.ErrorSourceWatcher,
			Message: fmt.Sprint(recovered),
			Context: fmt.Sprintf("%T on %s", w, n),
		},
	})
}

// emit stamps e with the client identity and hands it to the trace logger.
func (c *Client) emit(e log.Event) {
	e.Timestamp = time.Now()
	e.ClientID = c.id.String()
	e.Servers = c.ensemble.ConnectString()
	if e.SessionID == 0 {
		if s, ok := c.manager.Session(); ok {
			e.SessionID = s.ID
		}
	}
	c.trace.Log(e)
}

func faultCode(err error) *int32 {
	code, ok := fault.CodeOf(err)
	if !ok {
		return nil
	}
	v := int32(code)
	return &v
}
