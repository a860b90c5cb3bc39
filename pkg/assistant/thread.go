// Package assistant drives a conversation with a remote assistant: one thread
// per session, runs polled to completion, and replies rendered with
// footnoted citations.
package assistant

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	"github.com/grid-link-inc/gpt-cli/pkg/clock"
	"github.com/grid-link-inc/gpt-cli/pkg/config"
	loggerpkg "github.com/grid-link-inc/gpt-cli/pkg/logger"
)

// Option configures a Thread.
type Option func(*Thread)

// WithClock sets the time source used between run polls.
func WithClock(c clock.Clock) Option {
	return func(t *Thread) {
		t.clock = c
	}
}

// WithPollInterval sets the wait between run status checks.
func WithPollInterval(d time.Duration) Option {
	return func(t *Thread) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// WithMaxPolls bounds how many status checks a run may take.
func WithMaxPolls(n int) Option {
	return func(t *Thread) {
		if n > 0 {
			t.maxPolls = n
		}
	}
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(t *Thread) {
		t.logger = l
	}
}

// Thread is one remote conversation bound to one assistant. It is not safe
// for concurrent use.
type Thread struct {
	client    Client
	annotator *Annotator
	clock     clock.Clock
	logger    loggerpkg.Logger

	pollInterval time.Duration
	maxPolls     int

	assistantID       string
	threadID          string
	seed              []chat.Message
	lastUserMessageID string
}

// New resolves the configured assistant and opens a fresh thread for it.
func New(ctx context.Context, client Client, cfg config.AssistantConfig, opts ...Option) (*Thread, error) {
	t := &Thread{
		client:       client,
		annotator:    NewAnnotator(client),
		clock:        clock.Real(),
		logger:       loggerpkg.NopLogger{},
		pollInterval: config.DefaultPollInterval,
		maxPolls:     config.DefaultMaxPolls,
		seed:         chat.CloneMessages(cfg.Messages),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	assistantID, err := client.RetrieveAssistant(ctx, cfg.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{AssistantID: cfg.ID, Err: err}
		}
		return nil, &TransportError{Op: "retrieve assistant", Err: err}
	}
	t.assistantID = assistantID

	if err := t.Reset(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Reset opens a new remote thread and forgets the last user message.
func (t *Thread) Reset(ctx context.Context) error {
	threadID, err := t.client.CreateThread(ctx)
	if err != nil {
		return &TransportError{Op: "create thread", Err: err}
	}
	t.threadID = threadID
	t.lastUserMessageID = ""
	loggerpkg.Debug(t.logger, "thread created", map[string]any{
		"assistant_id": t.assistantID,
		"thread_id":    threadID,
	})
	return nil
}

// InitMessages returns a fresh copy of the seed messages.
func (t *Thread) InitMessages() []chat.Message {
	return chat.CloneMessages(t.seed)
}

// ThreadID returns the remote thread id.
func (t *Thread) ThreadID() string { return t.threadID }

// AssistantID returns the resolved assistant id.
func (t *Thread) AssistantID() string { return t.assistantID }

// AddMessage appends msg to the thread and records it as the anchor for
// FetchMessages.
func (t *Thread) AddMessage(ctx context.Context, msg chat.Message) (ThreadMessage, error) {
	created, err := t.client.CreateMessage(ctx, t.threadID, msg)
	if err != nil {
		return ThreadMessage{}, &TransportError{Op: "create message", Err: err}
	}
	t.lastUserMessageID = created.ID
	loggerpkg.Debug(t.logger, "message added", map[string]any{
		"thread_id":  t.threadID,
		"message_id": created.ID,
	})
	return created, nil
}

// RunThread starts a run and blocks until it completes, fails, exhausts the
// poll budget or ctx is done.
func (t *Thread) RunThread(ctx context.Context) (Run, error) {
	run, err := t.client.CreateRun(ctx, t.threadID, t.assistantID)
	if err != nil {
		return Run{}, &TransportError{Op: "create run", Err: err}
	}

	started := t.clock.Now()
	for polls := 0; ; polls++ {
		loggerpkg.Debug(t.logger, "run status", map[string]any{
			"run_id": run.ID,
			"status": string(run.Status),
			"polls":  polls,
		})
		if run.Status == RunCompleted {
			loggerpkg.Debug(t.logger, "run completed", map[string]any{
				"run_id":  run.ID,
				"elapsed": t.clock.Now().Sub(started).String(),
			})
			return run, nil
		}
		if run.Status.Unsuccessful() {
			return run, &RunFailedError{RunID: run.ID, Status: run.Status, LastError: run.LastError}
		}
		if polls >= t.maxPolls {
			return run, &RunTimeoutError{
				RunID:   run.ID,
				Status:  run.Status,
				Polls:   polls,
				Elapsed: t.clock.Now().Sub(started),
			}
		}

		if err := ctx.Err(); err != nil {
			return run, err
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-t.clock.After(t.pollInterval):
		}

		next, err := t.client.GetRun(ctx, t.threadID, run.ID)
		if err != nil {
			return run, &TransportError{Op: "get run", Err: err}
		}
		run = next
	}
}

// FetchMessages lists the thread in chronological order and renders each
// message with footnoted citations. With sinceLastUserMessage, only messages
// after the last AddMessage are returned.
func (t *Thread) FetchMessages(ctx context.Context, sinceLastUserMessage bool) ([]string, error) {
	messages, err := t.client.ListMessages(ctx, t.threadID)
	if err != nil {
		return nil, &TransportError{Op: "list messages", Err: err}
	}
	slices.Reverse(messages)

	if sinceLastUserMessage && t.lastUserMessageID != "" {
		idx := slices.IndexFunc(messages, func(m ThreadMessage) bool {
			return m.ID == t.lastUserMessageID
		})
		if idx < 0 {
			return nil, &ConsistencyError{ThreadID: t.threadID, AnchorID: t.lastUserMessageID}
		}
		messages = messages[idx+1:]
	}
	return t.annotator.Annotate(ctx, messages)
}
