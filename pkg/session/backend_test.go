package session

import (
	"context"
	"fmt"
	"iter"
	"testing"

	"github.com/grid-link-inc/gpt-cli/pkg/assistant"
	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	"github.com/grid-link-inc/gpt-cli/pkg/config"
	"github.com/grid-link-inc/gpt-cli/pkg/provider"
	"github.com/grid-link-inc/gpt-cli/pkg/wrapper"
)

type chunkProvider struct {
	chunks []provider.Chunk
}

func (p chunkProvider) Complete(context.Context, []chat.Message, provider.Options, bool) iter.Seq2[provider.Chunk, error] {
	return func(yield func(provider.Chunk, error) bool) {
		for _, c := range p.chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

type tokenRecorder struct {
	tokens []string
}

func (r *tokenRecorder) OnNextToken(t string) { r.tokens = append(r.tokens, t) }
func (r *tokenRecorder) Close() error         { return nil }

func TestWrapperBackendSend(t *testing.T) {
	registry := provider.NewRegistry(provider.Credentials{}, provider.WithProvider(provider.KindOpenAI, chunkProvider{
		chunks: []provider.Chunk{{Text: "a"}, {Text: "b"}, {Usage: &provider.Usage{InputTokens: 2, OutputTokens: 1}}},
	}))
	model := "openai:gpt-4o"
	w := wrapper.New("general", config.WrapperConfig{Model: &model}, wrapper.WithFactory(registry))
	b := &WrapperBackend{Wrapper: w, Stream: true}

	rec := &tokenRecorder{}
	reply, err := b.Send(context.Background(), []chat.Message{chat.UserMessage("hi")}, rec)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Content != "ab" || reply.Model != "gpt-4o" || reply.Usage == nil || reply.Usage.InputTokens != 2 {
		t.Fatalf("reply = %+v", reply)
	}
	if len(rec.tokens) != 2 {
		t.Fatalf("tokens = %q", rec.tokens)
	}
}

// threadClient is a minimal assistant.Client that answers every run with a
// fixed reply.
type threadClient struct {
	messages []assistant.ThreadMessage
	reply    string
	threads  int
}

func (c *threadClient) RetrieveAssistant(_ context.Context, id string) (string, error) {
	return id, nil
}

func (c *threadClient) CreateThread(context.Context) (string, error) {
	c.threads++
	c.messages = nil
	return fmt.Sprintf("thread_%d", c.threads), nil
}

func (c *threadClient) CreateMessage(_ context.Context, _ string, msg chat.Message) (assistant.ThreadMessage, error) {
	m := text(fmt.Sprintf("msg_%d", len(c.messages)), msg.Content)
	c.messages = append(c.messages, m)
	return m, nil
}

func (c *threadClient) CreateRun(_ context.Context, threadID, assistantID string) (assistant.Run, error) {
	c.messages = append(c.messages, text(fmt.Sprintf("msg_%d", len(c.messages)), c.reply))
	return assistant.Run{ID: "run_1", ThreadID: threadID, AssistantID: assistantID, Status: assistant.RunCompleted}, nil
}

func (c *threadClient) GetRun(context.Context, string, string) (assistant.Run, error) {
	return assistant.Run{}, fmt.Errorf("unexpected poll")
}

func (c *threadClient) ListMessages(context.Context, string) ([]assistant.ThreadMessage, error) {
	out := make([]assistant.ThreadMessage, len(c.messages))
	for i, m := range c.messages {
		out[len(out)-1-i] = m
	}
	return out, nil
}

func (c *threadClient) FileName(context.Context, string) (string, error) { return "doc.pdf", nil }

func text(id, value string) assistant.ThreadMessage {
	return assistant.ThreadMessage{
		ID:      id,
		Content: []assistant.ContentBlock{{Type: "text", Text: &assistant.TextContent{Value: value}}},
	}
}

func TestAssistantBackend(t *testing.T) {
	client := &threadClient{reply: "Hello from the thread"}
	thread, err := assistant.New(context.Background(), client, config.AssistantConfig{ID: "asst_1"})
	if err != nil {
		t.Fatalf("assistant.New: %v", err)
	}
	b := &AssistantBackend{Thread: thread}
	if b.CanRerun() {
		t.Fatal("assistant backend must not offer rerun")
	}

	rec := &tokenRecorder{}
	reply, err := b.Send(context.Background(), []chat.Message{chat.UserMessage("earlier"), chat.UserMessage("hi")}, rec)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Content != "Hello from the thread" || reply.Usage != nil {
		t.Fatalf("reply = %+v", reply)
	}
	if len(client.messages) != 2 || client.messages[0].Content[0].Text.Value != "hi" {
		t.Fatalf("thread messages = %+v", client.messages)
	}

	if err := b.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if thread.ThreadID() != "thread_2" {
		t.Fatalf("ThreadID after clear = %q", thread.ThreadID())
	}
}
