package assistant

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by a Client when the requested remote object does
// not exist.
var ErrNotFound = errors.New("not found")

// NotFoundError reports that the configured assistant id is unknown remotely.
type NotFoundError struct {
	AssistantID string
	Err         error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("assistant %q not found", e.AssistantID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// TransportError wraps a failed call to the remote service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConsistencyError reports that the last user message is missing from a
// fresh listing of the thread.
type ConsistencyError struct {
	ThreadID string
	AnchorID string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("anchor message %s missing from listing of thread %s", e.AnchorID, e.ThreadID)
}

// UnsupportedError reports message content this client cannot render.
type UnsupportedError struct {
	MessageID string
	Reason    string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported content in message %s: %s", e.MessageID, e.Reason)
}

// RunFailedError reports a run that stopped without completing.
type RunFailedError struct {
	RunID     string
	Status    RunStatus
	LastError string
}

func (e *RunFailedError) Error() string {
	if e.LastError != "" {
		return fmt.Sprintf("run %s %s: %s", e.RunID, e.Status, e.LastError)
	}
	return fmt.Sprintf("run %s %s", e.RunID, e.Status)
}

// RunTimeoutError reports a run still active after the poll budget ran out.
type RunTimeoutError struct {
	RunID   string
	Status  RunStatus
	Polls   int
	Elapsed time.Duration
}

func (e *RunTimeoutError) Error() string {
	return fmt.Sprintf("run %s still %s after %d polls (%s)", e.RunID, e.Status, e.Polls, e.Elapsed)
}
