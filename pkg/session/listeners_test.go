package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	"github.com/grid-link-inc/gpt-cli/pkg/pricing"
	"github.com/grid-link-inc/gpt-cli/pkg/provider"
	"github.com/grid-link-inc/gpt-cli/pkg/render"
)

func TestCLIListenerStreamsPlainText(t *testing.T) {
	var out bytes.Buffer
	l := NewCLIListener(&out, render.Plain{})

	s := l.ResponseStreamer()
	s.OnNextToken("Hel")
	s.OnNextToken("lo")
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if out.String() != "Hello\n\n" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestCLIListenerRendersMarkdownOnClose(t *testing.T) {
	md, err := render.NewMarkdown(60, "notty")
	if err != nil {
		t.Fatalf("NewMarkdown: %v", err)
	}
	var out bytes.Buffer
	l := NewCLIListener(&out, md)

	s := l.ResponseStreamer()
	s.OnNextToken("# Title\n")
	if out.Len() != 0 {
		t.Fatalf("markdown output written before close: %q", out.String())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !strings.Contains(out.String(), "Title") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestCLIListenerMessages(t *testing.T) {
	var out bytes.Buffer
	l := NewCLIListener(&out, nil)
	l.OnChatRerun(false)
	l.OnError(errors.New("boom"))
	l.OnChatClear()

	want := "Nothing to re-generate.\nError: boom\n\nCleared the conversation.\n\n"
	if out.String() != want {
		t.Fatalf("output = %q", out.String())
	}
}

func TestPriceListener(t *testing.T) {
	table, err := pricing.Parse([]byte("models:\n  gpt-4:\n    input: 30\n    output: 60\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var out bytes.Buffer
	l := NewPriceListener(&out, table, nil)

	reply := Reply{Model: "gpt-4", Usage: &provider.Usage{InputTokens: 1000, OutputTokens: 500}}
	l.OnChatResponse(Response{Reply: reply})
	l.OnChatResponse(Response{Reply: reply})
	l.OnChatResponse(Response{Reply: Reply{Model: "gpt-4"}})
	l.OnChatResponse(Response{Reply: Reply{Model: "llama3", Usage: &provider.Usage{InputTokens: 1}}})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n\n")
	if len(lines) != 2 {
		t.Fatalf("output = %q", out.String())
	}
	if lines[1] != "Tokens: 1000 in, 500 out | Price: $0.060 | Total: $0.120" {
		t.Fatalf("second line = %q", lines[1])
	}
	if l.Total() < 0.1199 || l.Total() > 0.1201 {
		t.Fatalf("Total = %v", l.Total())
	}

	out.Reset()
	l.OnChatResponse(Response{Reply: Reply{Model: "llama3", Provider: provider.KindLocal, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}}})
	if got := out.String(); got != "Tokens: 10 in, 5 out | Price: $0.000 | Total: $0.120\n\n" {
		t.Fatalf("local reply = %q", got)
	}
}

type threadIDs struct {
	assistant, thread string
}

func (t *threadIDs) AssistantID() string { return t.assistant }
func (t *threadIDs) ThreadID() string    { return t.thread }

func TestPersistListener(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	ids := &threadIDs{assistant: "asst_1", thread: "thread_9"}
	l, err := NewPersistListener(dir, ids, nil)
	if err != nil {
		t.Fatalf("NewPersistListener: %v", err)
	}
	l.OnChatStart()
	l.OnChatMessage(chat.UserMessage("hi"))
	l.OnChatMessage(chat.AssistantMessage("hello"))
	l.OnChatRerun(false)
	ids.thread = "thread_10"
	l.OnChatClear()
	l.OnChatMessage(chat.UserMessage("again"))
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "gptcli-asst_1-thread_9.log"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	want := "Chat started\nuser: hi\nassistant: hello\nCleared the conversation. Thread: thread_10\nuser: again\n"
	if string(data) != want {
		t.Fatalf("transcript = %q", data)
	}
}

type entry struct {
	level, msg string
}

type recordingLogger struct {
	entries []entry
}

func (l *recordingLogger) Info(msg string, _ any)  { l.entries = append(l.entries, entry{"info", msg}) }
func (l *recordingLogger) Warn(msg string, _ any)  { l.entries = append(l.entries, entry{"warn", msg}) }
func (l *recordingLogger) Debug(msg string, _ any) { l.entries = append(l.entries, entry{"debug", msg}) }
func (l *recordingLogger) Error(msg string, _ any) { l.entries = append(l.entries, entry{"error", msg}) }

func TestLoggingListener(t *testing.T) {
	logger := &recordingLogger{}
	l := NewLoggingListener(logger)
	l.OnChatMessage(chat.UserMessage("hi"))
	l.OnChatMessage(chat.AssistantMessage("hello"))
	l.OnError(errors.New("boom"))

	want := []entry{{"info", "User: hi"}, {"info", "Assistant: hello"}, {"error", "chat error"}}
	if len(logger.entries) != len(want) {
		t.Fatalf("entries = %+v", logger.entries)
	}
	for i := range want {
		if logger.entries[i] != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, logger.entries[i], want[i])
		}
	}
}
