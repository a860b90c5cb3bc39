package session

import (
	"context"
	"errors"
	"strings"

	"github.com/grid-link-inc/gpt-cli/pkg/assistant"
	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	"github.com/grid-link-inc/gpt-cli/pkg/provider"
	"github.com/grid-link-inc/gpt-cli/pkg/wrapper"
)

// Reply is the backend's answer to one turn.
type Reply struct {
	Content string
	// Model is the served model name, without any provider tag.
	Model    string
	Provider provider.Kind
	Usage    *provider.Usage
}

// Backend answers user turns.
type Backend interface {
	InitMessages() []chat.Message
	// Send answers the last message of messages, reporting text to streamer
	// as it arrives.
	Send(ctx context.Context, messages []chat.Message, streamer Streamer) (Reply, error)
	// Clear forgets any remote conversation state.
	Clear(ctx context.Context) error
	// CanRerun reports whether the last reply can be regenerated.
	CanRerun() bool
}

// WrapperBackend answers turns with a chat-completion wrapper.
type WrapperBackend struct {
	Wrapper   *wrapper.Wrapper
	Overrides chat.Overrides
	Stream    bool
}

func (b *WrapperBackend) InitMessages() []chat.Message { return b.Wrapper.InitMessages() }

func (b *WrapperBackend) Clear(context.Context) error { return nil }

func (b *WrapperBackend) CanRerun() bool { return true }

func (b *WrapperBackend) Send(ctx context.Context, messages []chat.Message, streamer Streamer) (Reply, error) {
	seq, err := b.Wrapper.CompleteChat(ctx, messages, b.Overrides, b.Stream)
	if err != nil {
		return Reply{}, err
	}
	reply := Reply{Model: b.Wrapper.Params(b.Overrides).Model}
	if kind, model, err := provider.SplitModel(reply.Model); err == nil {
		reply.Provider, reply.Model = kind, model
	}

	var content strings.Builder
	for chunk, err := range seq {
		if err != nil {
			reply.Content = content.String()
			return reply, err
		}
		if chunk.Text != "" {
			content.WriteString(chunk.Text)
			streamer.OnNextToken(chunk.Text)
		}
		if chunk.Usage != nil {
			reply.Usage = chunk.Usage
		}
	}
	reply.Content = content.String()
	return reply, nil
}

// AssistantBackend answers turns through a remote assistant thread. Only the
// last message is sent; the thread keeps the history.
type AssistantBackend struct {
	Thread *assistant.Thread
}

func (b *AssistantBackend) InitMessages() []chat.Message { return b.Thread.InitMessages() }

func (b *AssistantBackend) Clear(ctx context.Context) error { return b.Thread.Reset(ctx) }

func (b *AssistantBackend) CanRerun() bool { return false }

func (b *AssistantBackend) Send(ctx context.Context, messages []chat.Message, streamer Streamer) (Reply, error) {
	if len(messages) == 0 {
		return Reply{}, errors.New("no message to send")
	}
	if _, err := b.Thread.AddMessage(ctx, messages[len(messages)-1]); err != nil {
		return Reply{}, err
	}
	if _, err := b.Thread.RunThread(ctx); err != nil {
		return Reply{}, err
	}
	texts, err := b.Thread.FetchMessages(ctx, true)
	if err != nil {
		return Reply{}, err
	}
	content := strings.Join(texts, "\n\n")
	streamer.OnNextToken(content)
	return Reply{Content: content}, nil
}
