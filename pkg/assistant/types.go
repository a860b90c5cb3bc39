package assistant

import "time"

// RunStatus is the lifecycle state of a remote run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunIncomplete     RunStatus = "incomplete"
	RunExpired        RunStatus = "expired"
)

// Unsuccessful reports whether the run stopped without completing. Runs
// waiting on tool outputs count as stopped since this client never submits
// any.
func (s RunStatus) Unsuccessful() bool {
	switch s {
	case RunFailed, RunCancelled, RunExpired, RunIncomplete, RunRequiresAction:
		return true
	}
	return false
}

// AnnotationKind distinguishes citation annotations from file references.
type AnnotationKind string

const (
	AnnotationFileCitation AnnotationKind = "file_citation"
	AnnotationFilePath     AnnotationKind = "file_path"
)

// Annotation marks a span of message text that refers to a file.
type Annotation struct {
	// Text is the exact substring of the message text being annotated.
	Text   string
	Kind   AnnotationKind
	FileID string
	// Quote is the cited passage; only set for file citations.
	Quote string
}

// TextContent is the payload of a text content block.
type TextContent struct {
	Value       string
	Annotations []Annotation
}

// ContentBlock is one element of a message body. Text is nil for non-text
// blocks.
type ContentBlock struct {
	Type string
	Text *TextContent
}

// ThreadMessage is a read-only copy of a message stored in a remote thread.
type ThreadMessage struct {
	ID          string
	AssistantID string
	ThreadID    string
	RunID       string
	Role        string
	CreatedAt   time.Time
	Content     []ContentBlock
}

// Annotations returns the annotations of every text block, in order.
func (m ThreadMessage) Annotations() []Annotation {
	var out []Annotation
	for _, block := range m.Content {
		if block.Text != nil {
			out = append(out, block.Text.Annotations...)
		}
	}
	return out
}

// Run is a snapshot of a remote run.
type Run struct {
	ID          string
	ThreadID    string
	AssistantID string
	Status      RunStatus
	LastError   string
}
