package assistant

import (
	"context"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
)

// Client is the remote thread/run service.
type Client interface {
	// RetrieveAssistant returns the canonical id of the assistant, or an
	// error wrapping ErrNotFound when it does not exist.
	RetrieveAssistant(ctx context.Context, assistantID string) (string, error)
	CreateThread(ctx context.Context) (string, error)
	CreateMessage(ctx context.Context, threadID string, msg chat.Message) (ThreadMessage, error)
	CreateRun(ctx context.Context, threadID, assistantID string) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	// ListMessages returns every message of the thread, newest first.
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)
	FileNamer
}

// FileNamer resolves file ids to display names.
type FileNamer interface {
	FileName(ctx context.Context, fileID string) (string, error)
}
