package assistant

import (
	"context"
	"fmt"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
)

// fakeClient is an in-memory Client. Messages are kept oldest first and
// listed newest first like the remote service.
type fakeClient struct {
	assistants map[string]bool
	files      map[string]string

	threads   int
	messages  []ThreadMessage
	runs      []RunStatus
	runIndex  int
	getRuns   int
	fileCalls int

	retrieveErr  error
	threadErr    error
	createErr    error
	createRunErr error
	getRunErr    error
	listErr      error
	fileErr      error

	// replies are appended to the thread when a run is created.
	replies []ThreadMessage
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		assistants: map[string]bool{"asst_1": true},
		files:      map[string]string{},
		runs:       []RunStatus{RunCompleted},
	}
}

func (f *fakeClient) RetrieveAssistant(_ context.Context, id string) (string, error) {
	if f.retrieveErr != nil {
		return "", f.retrieveErr
	}
	if !f.assistants[id] {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return id, nil
}

func (f *fakeClient) CreateThread(context.Context) (string, error) {
	if f.threadErr != nil {
		return "", f.threadErr
	}
	f.threads++
	f.messages = nil
	return fmt.Sprintf("thread_%d", f.threads), nil
}

func (f *fakeClient) CreateMessage(_ context.Context, threadID string, msg chat.Message) (ThreadMessage, error) {
	if f.createErr != nil {
		return ThreadMessage{}, f.createErr
	}
	m := textMessage(fmt.Sprintf("msg_%d", len(f.messages)+1), msg.Content)
	m.ThreadID = threadID
	m.Role = string(msg.Role)
	f.messages = append(f.messages, m)
	return m, nil
}

func (f *fakeClient) CreateRun(_ context.Context, threadID, assistantID string) (Run, error) {
	if f.createRunErr != nil {
		return Run{}, f.createRunErr
	}
	f.messages = append(f.messages, f.replies...)
	f.runIndex = 0
	return Run{ID: "run_1", ThreadID: threadID, AssistantID: assistantID, Status: f.runs[0]}, nil
}

func (f *fakeClient) GetRun(_ context.Context, threadID, runID string) (Run, error) {
	f.getRuns++
	if f.getRunErr != nil {
		return Run{}, f.getRunErr
	}
	if f.runIndex < len(f.runs)-1 {
		f.runIndex++
	}
	return Run{ID: runID, ThreadID: threadID, Status: f.runs[f.runIndex], LastError: "boom"}, nil
}

func (f *fakeClient) ListMessages(context.Context, string) ([]ThreadMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]ThreadMessage, len(f.messages))
	for i, m := range f.messages {
		out[len(out)-1-i] = m
	}
	return out, nil
}

func (f *fakeClient) FileName(_ context.Context, fileID string) (string, error) {
	f.fileCalls++
	if f.fileErr != nil {
		return "", f.fileErr
	}
	name, ok := f.files[fileID]
	if !ok {
		return "", fmt.Errorf("no such file %s", fileID)
	}
	return name, nil
}

func textMessage(id, value string, annotations ...Annotation) ThreadMessage {
	return ThreadMessage{
		ID:   id,
		Role: "assistant",
		Content: []ContentBlock{{
			Type: "text",
			Text: &TextContent{Value: value, Annotations: annotations},
		}},
	}
}
