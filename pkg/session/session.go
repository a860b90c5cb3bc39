// Package session runs the interactive chat loop on top of a Backend and
// reports every event to a Listener.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	loggerpkg "github.com/grid-link-inc/gpt-cli/pkg/logger"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithTurnContext sets how each turn's context is derived from the session
// context. The command line uses it to cancel a turn on interrupt.
func WithTurnContext(f func(context.Context) (context.Context, context.CancelFunc)) Option {
	return func(s *Session) {
		s.turnContext = f
	}
}

// Session holds the conversation for one interactive run.
type Session struct {
	backend     Backend
	listener    Listener
	logger      loggerpkg.Logger
	turnContext func(context.Context) (context.Context, context.CancelFunc)

	initMessages []chat.Message
	messages     []chat.Message
}

// New creates a Session seeded with the backend's initial messages.
func New(backend Backend, listener Listener, opts ...Option) *Session {
	s := &Session{
		backend:     backend,
		listener:    listener,
		logger:      loggerpkg.NopLogger{},
		turnContext: context.WithCancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.initMessages = backend.InitMessages()
	s.messages = chat.CloneMessages(s.initMessages)
	return s
}

// Messages returns a copy of the conversation so far.
func (s *Session) Messages() []chat.Message {
	return chat.CloneMessages(s.messages)
}

// Loop reads one line per turn from in until EOF or a quit command.
func (s *Session) Loop(ctx context.Context, in LineReader) error {
	if in == nil {
		return fmt.Errorf("input reader is required")
	}

	s.listener.OnChatStart()
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := in.ReadLine("> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if quit := s.Process(ctx, line); quit {
			return nil
		}
	}
}

// Process handles one line of input and reports whether the session should
// end.
func (s *Session) Process(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	if strings.HasPrefix(input, "/") {
		return s.command(ctx, input)
	}

	msg := chat.UserMessage(input)
	s.messages = append(s.messages, msg)
	s.listener.OnChatMessage(msg)
	if !s.respond(ctx) {
		s.messages = s.messages[:len(s.messages)-1]
	}
	return false
}

func (s *Session) command(ctx context.Context, input string) bool {
	switch strings.ToLower(input) {
	case "/help", "/h":
		s.listener.OnHelp()
	case "/clear", "/c":
		s.clear(ctx)
	case "/rerun", "/r":
		s.rerun(ctx)
	case "/quit", "/exit", "/q":
		return true
	default:
		s.listener.OnError(fmt.Errorf("unknown command: %s. Type /help for available commands", input))
	}
	return false
}

func (s *Session) clear(ctx context.Context) {
	if err := s.backend.Clear(ctx); err != nil {
		s.listener.OnError(err)
		return
	}
	s.messages = chat.CloneMessages(s.initMessages)
	s.listener.OnChatClear()
}

func (s *Session) rerun(ctx context.Context) {
	if !s.backend.CanRerun() || len(s.messages)-len(s.initMessages) < 2 {
		s.listener.OnChatRerun(false)
		return
	}
	s.messages = s.messages[:len(s.messages)-1]
	s.listener.OnChatRerun(true)
	s.respond(ctx)
}

// respond asks the backend to answer the last message and records the reply.
// An interrupted turn keeps whatever was received.
func (s *Session) respond(ctx context.Context) bool {
	turnCtx, cancel := s.turnContext(ctx)
	defer cancel()

	streamer := s.listener.ResponseStreamer()
	reply, err := s.backend.Send(turnCtx, s.Messages(), streamer)
	if closeErr := streamer.Close(); closeErr != nil {
		loggerpkg.Warn(s.logger, "close response streamer", map[string]any{"error": closeErr.Error()})
	}

	if err != nil {
		interrupted := turnCtx.Err() != nil && ctx.Err() == nil
		if !interrupted || !errors.Is(err, context.Canceled) {
			s.listener.OnError(err)
			return false
		}
		loggerpkg.Info(s.logger, "turn interrupted", nil)
	}

	response := chat.AssistantMessage(reply.Content)
	s.listener.OnChatResponse(Response{Messages: s.Messages(), Reply: reply})
	s.messages = append(s.messages, response)
	s.listener.OnChatMessage(response)
	return true
}
