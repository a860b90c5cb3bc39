package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	loggerpkg "github.com/grid-link-inc/gpt-cli/pkg/logger"
	"github.com/grid-link-inc/gpt-cli/pkg/pricing"
	"github.com/grid-link-inc/gpt-cli/pkg/provider"
	"github.com/grid-link-inc/gpt-cli/pkg/render"
)

// CLIListener prints the conversation to a terminal.
type CLIListener struct {
	BaseListener
	out      io.Writer
	renderer render.Renderer
}

// NewCLIListener prints to out. A Plain renderer streams tokens as they
// arrive; any other renderer formats the complete reply.
func NewCLIListener(out io.Writer, renderer render.Renderer) *CLIListener {
	if renderer == nil {
		renderer = render.Plain{}
	}
	return &CLIListener{out: out, renderer: renderer}
}

func (l *CLIListener) OnChatStart() {
	_, _ = fmt.Fprintln(l.out, "Hi! I'm here to help. Type a message and press Enter.")
	l.OnHelp()
}

func (l *CLIListener) OnHelp() {
	_, _ = fmt.Fprintln(l.out, "Commands:")
	_, _ = fmt.Fprintln(l.out, "  /help  - Show this help message")
	_, _ = fmt.Fprintln(l.out, "  /clear - Clear the conversation")
	_, _ = fmt.Fprintln(l.out, "  /rerun - Re-generate the last reply")
	_, _ = fmt.Fprintln(l.out, "  /quit  - Exit the program")
	_, _ = fmt.Fprintln(l.out, "  /exit  - Exit the program")
	_, _ = fmt.Fprintln(l.out)
}

func (l *CLIListener) OnChatClear() {
	_, _ = fmt.Fprintln(l.out, "Cleared the conversation.")
	_, _ = fmt.Fprintln(l.out)
}

func (l *CLIListener) OnChatRerun(success bool) {
	if success {
		_, _ = fmt.Fprintln(l.out, "Re-generating the last message.")
		return
	}
	_, _ = fmt.Fprintln(l.out, "Nothing to re-generate.")
}

func (l *CLIListener) OnError(err error) {
	_, _ = fmt.Fprintf(l.out, "Error: %v\n\n", err)
}

func (l *CLIListener) ResponseStreamer() Streamer {
	if _, ok := l.renderer.(render.Plain); ok {
		return &plainStreamer{out: l.out}
	}
	return &renderedStreamer{out: l.out, renderer: l.renderer}
}

type plainStreamer struct {
	out     io.Writer
	written bool
}

func (s *plainStreamer) OnNextToken(token string) {
	s.written = true
	_, _ = io.WriteString(s.out, token)
}

func (s *plainStreamer) Close() error {
	if !s.written {
		return nil
	}
	_, err := io.WriteString(s.out, "\n\n")
	return err
}

type renderedStreamer struct {
	out      io.Writer
	renderer render.Renderer
	buf      strings.Builder
}

func (s *renderedStreamer) OnNextToken(token string) {
	s.buf.WriteString(token)
}

func (s *renderedStreamer) Close() error {
	if s.buf.Len() == 0 {
		return nil
	}
	text, err := s.renderer.Render(s.buf.String())
	if err != nil {
		text = s.buf.String()
	}
	_, werr := fmt.Fprintln(s.out, text)
	if err != nil {
		return err
	}
	return werr
}

// LoggingListener writes the conversation to the application log.
type LoggingListener struct {
	BaseListener
	logger loggerpkg.Logger
}

// NewLoggingListener creates a LoggingListener.
func NewLoggingListener(logger loggerpkg.Logger) *LoggingListener {
	return &LoggingListener{logger: logger}
}

func (l *LoggingListener) OnChatClear() {
	loggerpkg.Info(l.logger, "Cleared the conversation.", nil)
}

func (l *LoggingListener) OnChatRerun(success bool) {
	if success {
		loggerpkg.Info(l.logger, "Re-generating the last message.", nil)
	}
}

func (l *LoggingListener) OnError(err error) {
	loggerpkg.Error(l.logger, "chat error", map[string]any{"error": err.Error()})
}

func (l *LoggingListener) OnChatMessage(msg chat.Message) {
	loggerpkg.Info(l.logger, fmt.Sprintf("%s: %s", roleLabel(msg.Role), msg.Content), nil)
}

func roleLabel(r chat.Role) string {
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// PriceListener prints the estimated cost of each reply and the running total.
type PriceListener struct {
	BaseListener
	out    io.Writer
	table  pricing.Table
	logger loggerpkg.Logger
	total  float64
}

// NewPriceListener creates a PriceListener.
func NewPriceListener(out io.Writer, table pricing.Table, logger loggerpkg.Logger) *PriceListener {
	return &PriceListener{out: out, table: table, logger: logger}
}

// Total returns the session cost so far.
func (l *PriceListener) Total() float64 { return l.total }

func (l *PriceListener) OnChatResponse(resp Response) {
	usage := resp.Reply.Usage
	if usage == nil {
		return
	}
	cost, ok := l.table.Cost(resp.Reply.Model, usage.InputTokens, usage.OutputTokens)
	if resp.Reply.Provider == provider.KindLocal {
		cost, ok = 0, true
	}
	if !ok {
		loggerpkg.Debug(l.logger, "no price for model", map[string]any{"model": resp.Reply.Model})
		return
	}
	l.total += cost
	loggerpkg.Info(l.logger, "price", map[string]any{
		"model":         resp.Reply.Model,
		"input_tokens":  usage.InputTokens,
		"output_tokens": usage.OutputTokens,
		"cost":          cost,
		"total":         l.total,
	})
	_, _ = fmt.Fprintf(l.out, "Tokens: %d in, %d out | Price: %s | Total: %s\n\n",
		usage.InputTokens, usage.OutputTokens, pricing.Format(cost), pricing.Format(l.total))
}

// PersistListener appends the conversation to a transcript file.
type PersistListener struct {
	BaseListener
	f      *os.File
	thread ThreadInfo
	logger loggerpkg.Logger
}

// ThreadInfo identifies the remote thread a transcript belongs to.
type ThreadInfo interface {
	AssistantID() string
	ThreadID() string
}

// TranscriptPath returns the transcript file for an assistant thread.
func TranscriptPath(dir, assistantID, threadID string) string {
	return filepath.Join(dir, fmt.Sprintf("gptcli-%s-%s.log", assistantID, threadID))
}

// NewPersistListener creates dir if needed and opens the transcript named
// after the thread's current ids.
func NewPersistListener(dir string, thread ThreadInfo, logger loggerpkg.Logger) (*PersistListener, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	f, err := os.Create(TranscriptPath(dir, thread.AssistantID(), thread.ThreadID()))
	if err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}
	return &PersistListener{f: f, thread: thread, logger: logger}, nil
}

// Close closes the transcript file.
func (l *PersistListener) Close() error {
	return l.f.Close()
}

func (l *PersistListener) write(line string) {
	if _, err := fmt.Fprintln(l.f, line); err != nil {
		loggerpkg.Warn(l.logger, "write transcript", map[string]any{"error": err.Error()})
	}
}

func (l *PersistListener) OnChatStart() { l.write("Chat started") }

// OnChatClear records the thread the conversation continues on.
func (l *PersistListener) OnChatClear() {
	l.write("Cleared the conversation. Thread: " + l.thread.ThreadID())
}

func (l *PersistListener) OnChatRerun(success bool) {
	if success {
		l.write("Re-generating the last message.")
	}
}

func (l *PersistListener) OnError(err error) { l.write("Error: " + err.Error()) }

func (l *PersistListener) OnChatMessage(msg chat.Message) {
	l.write(fmt.Sprintf("%s: %s", msg.Role, msg.Content))
}
