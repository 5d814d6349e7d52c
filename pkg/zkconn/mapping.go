package zkconn

import (
	"errors"

	"github.com/go-zookeeper/zk"

	"github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/fault"
)

var eventTypes = map[zk.EventType]event.Type{
	zk.EventSession:             event.TypeNone,
	zk.EventNodeCreated:         event.TypeNodeCreated,
	zk.EventNodeDeleted:         event.TypeNodeDeleted,
	zk.EventNodeDataChanged:     event.TypeNodeDataChanged,
	zk.EventNodeChildrenChanged: event.TypeNodeChildrenChanged,
	zk.EventNotWatching:         event.TypeNotWatching,
}

var states = map[zk.State]event.State{
	zk.StateUnknown:           event.StateUnknown,
	zk.StateDisconnected:      event.StateDisconnected,
	zk.StateConnecting:        event.StateConnecting,
	zk.StateConnected:         event.StateConnecting,
	zk.StateHasSession:        event.StateConnected,
	zk.StateConnectedReadOnly: event.StateConnectedReadOnly,
	zk.StateAuthFailed:        event.StateAuthFailed,
	zk.StateExpired:           event.StateExpired,
}

// ToNotification translates a library event. It returns false for events
// with no counterpart, such as SASL progress.
func ToNotification(ev zk.Event) (event.Notification, bool) {
	typ, ok := eventTypes[ev.Type]
	if !ok {
		return event.Notification{}, false
	}
	state, ok := states[ev.State]
	if !ok {
		return event.Notification{}, false
	}
	if typ == event.TypeNone {
		return event.Session(state), true
	}
	return event.Notification{Type: typ, State: state, Path: ev.Path}, true
}

var faultCodes = []struct {
	err  error
	code fault.Code
}{
	{zk.ErrConnectionClosed, fault.CodeConnectionLoss},
	{zk.ErrNoServer, fault.CodeConnectionLoss},
	{zk.ErrUnknown, fault.CodeSystemError},
	{zk.ErrAPIError, fault.CodeAPIError},
	{zk.ErrNoNode, fault.CodeNoNode},
	{zk.ErrNoAuth, fault.CodeNoAuth},
	{zk.ErrBadVersion, fault.CodeBadVersion},
	{zk.ErrNoChildrenForEphemerals, fault.CodeNoChildrenForEphemerals},
	{zk.ErrNodeExists, fault.CodeNodeExists},
	{zk.ErrNotEmpty, fault.CodeNotEmpty},
	{zk.ErrSessionExpired, fault.CodeSessionExpired},
	{zk.ErrInvalidACL, fault.CodeInvalidACL},
	{zk.ErrAuthFailed, fault.CodeAuthFailed},
	{zk.ErrClosing, fault.CodeClosing},
	{zk.ErrNothing, fault.CodeNothing},
	{zk.ErrSessionMoved, fault.CodeSessionMoved},
	{zk.ErrBadArguments, fault.CodeBadArguments},
	{zk.ErrInvalidPath, fault.CodeBadArguments},
}

// Fault converts a library error into a *fault.Error carrying it, so the
// retry classifier can judge it. Unknown errors are returned unchanged.
func Fault(err error, path string) error {
	if err == nil {
		return nil
	}
	var fe *fault.Error
	if errors.As(err, &fe) {
		return err
	}
	for _, fc := range faultCodes {
		if errors.Is(err, fc.err) {
			return fault.Wrap(fc.code, path, err)
		}
	}
	return err
}
