package assistant

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	"github.com/grid-link-inc/gpt-cli/pkg/clock"
	"github.com/grid-link-inc/gpt-cli/pkg/config"
)

func newTestThread(t *testing.T, client *fakeClient, opts ...Option) (*Thread, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(time.Unix(0, 0))
	opts = append([]Option{WithClock(fake)}, opts...)
	thread, err := New(context.Background(), client, config.AssistantConfig{ID: "asst_1"}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return thread, fake
}

func TestNewCopiesSeedMessages(t *testing.T) {
	cfg := config.AssistantConfig{
		ID:       "asst_1",
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "seed"}},
	}
	thread, err := New(context.Background(), newFakeClient(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if thread.AssistantID() != "asst_1" || thread.ThreadID() != "thread_1" {
		t.Fatalf("ids = %q, %q", thread.AssistantID(), thread.ThreadID())
	}

	seed := thread.InitMessages()
	if !reflect.DeepEqual(seed, cfg.Messages) {
		t.Fatalf("InitMessages = %#v", seed)
	}
	seed[0].Content = "changed"
	if cfg.Messages[0].Content != "seed" || thread.InitMessages()[0].Content != "seed" {
		t.Fatal("seed messages share storage with caller")
	}

	cfg.Messages[0].Content = "mutated config"
	if thread.InitMessages()[0].Content != "seed" {
		t.Fatal("thread aliases config messages")
	}
}

func TestNewUnknownAssistant(t *testing.T) {
	_, err := New(context.Background(), newFakeClient(), config.AssistantConfig{ID: "asst_missing"})
	var notFound *NotFoundError
	if !errors.As(err, &notFound) || notFound.AssistantID != "asst_missing" {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound, got %v", err)
	}
}

func TestNewTransportFailure(t *testing.T) {
	client := newFakeClient()
	client.retrieveErr = errors.New("dial tcp: timeout")
	_, err := New(context.Background(), client, config.AssistantConfig{ID: "asst_1"})
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestRunThreadPollsUntilCompleted(t *testing.T) {
	client := newFakeClient()
	client.runs = []RunStatus{RunInProgress, RunInProgress, RunCompleted}
	thread, fake := newTestThread(t, client, WithPollInterval(2*time.Second))

	run, err := thread.RunThread(context.Background())
	if err != nil {
		t.Fatalf("RunThread: %v", err)
	}
	if run.Status != RunCompleted {
		t.Fatalf("status = %q", run.Status)
	}
	if waits := fake.Waits(); !reflect.DeepEqual(waits, []time.Duration{2 * time.Second, 2 * time.Second}) {
		t.Fatalf("waits = %v", waits)
	}
	if client.getRuns != 2 {
		t.Fatalf("GetRun calls = %d", client.getRuns)
	}
}

func TestRunThreadQueuedAndCancellingKeepPolling(t *testing.T) {
	client := newFakeClient()
	client.runs = []RunStatus{RunQueued, RunCancelling, RunCompleted}
	thread, fake := newTestThread(t, client)

	if _, err := thread.RunThread(context.Background()); err != nil {
		t.Fatalf("RunThread: %v", err)
	}
	if len(fake.Waits()) != 2 {
		t.Fatalf("waits = %v", fake.Waits())
	}
}

func TestRunThreadUnsuccessfulStatuses(t *testing.T) {
	for _, status := range []RunStatus{RunFailed, RunCancelled, RunExpired, RunIncomplete, RunRequiresAction} {
		t.Run(string(status), func(t *testing.T) {
			client := newFakeClient()
			client.runs = []RunStatus{RunQueued, status}
			thread, _ := newTestThread(t, client)

			_, err := thread.RunThread(context.Background())
			var failed *RunFailedError
			if !errors.As(err, &failed) {
				t.Fatalf("expected RunFailedError, got %v", err)
			}
			if failed.Status != status || failed.LastError != "boom" {
				t.Fatalf("RunFailedError = %+v", failed)
			}
		})
	}
}

func TestRunThreadTimeout(t *testing.T) {
	client := newFakeClient()
	client.runs = []RunStatus{RunInProgress}
	thread, fake := newTestThread(t, client, WithMaxPolls(3), WithPollInterval(2*time.Second))

	_, err := thread.RunThread(context.Background())
	var timeout *RunTimeoutError
	if !errors.As(err, &timeout) || timeout.Polls != 3 {
		t.Fatalf("expected RunTimeoutError after 3 polls, got %v", err)
	}
	if timeout.Elapsed != 6*time.Second {
		t.Fatalf("Elapsed = %v, want 6s of clock time", timeout.Elapsed)
	}
	if len(fake.Waits()) != 3 || client.getRuns != 3 {
		t.Fatalf("waits = %v, GetRun calls = %d", fake.Waits(), client.getRuns)
	}
}

func TestRunThreadContextCancelled(t *testing.T) {
	client := newFakeClient()
	client.runs = []RunStatus{RunInProgress}
	thread, fake := newTestThread(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := thread.RunThread(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(fake.Waits()) != 0 {
		t.Fatalf("expected no waits, got %v", fake.Waits())
	}
}

func TestFetchMessagesSinceLastUserMessage(t *testing.T) {
	client := newFakeClient()
	thread, _ := newTestThread(t, client)

	if _, err := thread.AddMessage(context.Background(), chat.UserMessage("first")); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	client.messages = append(client.messages, textMessage("msg_r1", "first reply"))

	if _, err := thread.AddMessage(context.Background(), chat.UserMessage("second")); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	client.replies = []ThreadMessage{
		textMessage("msg_r2", "second reply"),
		textMessage("msg_r3", "and more"),
	}
	if _, err := thread.RunThread(context.Background()); err != nil {
		t.Fatalf("RunThread: %v", err)
	}

	got, err := thread.FetchMessages(context.Background(), true)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"second reply", "and more"}) {
		t.Fatalf("FetchMessages(true) = %q", got)
	}

	all, err := thread.FetchMessages(context.Background(), false)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if !reflect.DeepEqual(all, []string{"first", "first reply", "second", "second reply", "and more"}) {
		t.Fatalf("FetchMessages(false) = %q", all)
	}
}

func TestFetchMessagesMissingAnchor(t *testing.T) {
	client := newFakeClient()
	thread, _ := newTestThread(t, client)

	if _, err := thread.AddMessage(context.Background(), chat.UserMessage("hi")); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	client.messages = []ThreadMessage{textMessage("msg_other", "unrelated")}

	got, err := thread.FetchMessages(context.Background(), true)
	var consistency *ConsistencyError
	if !errors.As(err, &consistency) || consistency.AnchorID != "msg_1" {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected no partial result, got %q", got)
	}
}

func TestFetchMessagesWithoutAnchorReturnsAll(t *testing.T) {
	client := newFakeClient()
	thread, _ := newTestThread(t, client)
	client.messages = []ThreadMessage{textMessage("msg_a", "a"), textMessage("msg_b", "b")}

	got, err := thread.FetchMessages(context.Background(), true)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("FetchMessages = %q", got)
	}
}

func TestAddMessageTransportError(t *testing.T) {
	client := newFakeClient()
	thread, _ := newTestThread(t, client)
	client.createErr = errors.New("502 bad gateway")

	_, err := thread.AddMessage(context.Background(), chat.UserMessage("hi"))
	var transport *TransportError
	if !errors.As(err, &transport) || transport.Op != "create message" {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestListTransportError(t *testing.T) {
	client := newFakeClient()
	thread, _ := newTestThread(t, client)
	client.listErr = errors.New("reset")

	_, err := thread.FetchMessages(context.Background(), false)
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestResetOpensNewThread(t *testing.T) {
	client := newFakeClient()
	thread, _ := newTestThread(t, client)
	if _, err := thread.AddMessage(context.Background(), chat.UserMessage("hi")); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	if err := thread.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if thread.ThreadID() != "thread_2" {
		t.Fatalf("ThreadID = %q", thread.ThreadID())
	}
	client.messages = []ThreadMessage{textMessage("msg_x", "fresh")}
	got, err := thread.FetchMessages(context.Background(), true)
	if err != nil {
		t.Fatalf("FetchMessages after reset: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"fresh"}) {
		t.Fatalf("FetchMessages = %q", got)
	}
}

func TestEndToEnd(t *testing.T) {
	client := newFakeClient()
	client.replies = []ThreadMessage{textMessage("msg_reply", "Hello! How can I help?")}
	thread, fake := newTestThread(t, client)

	if _, err := thread.AddMessage(context.Background(), chat.Message{Role: chat.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := thread.RunThread(context.Background()); err != nil {
		t.Fatalf("RunThread: %v", err)
	}
	got, err := thread.FetchMessages(context.Background(), true)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Hello! How can I help?"}) {
		t.Fatalf("FetchMessages = %q", got)
	}
	if len(fake.Waits()) != 0 {
		t.Fatalf("expected no waits, got %v", fake.Waits())
	}
}

func assertTransportError(t *testing.T, err error, op string, cause error) {
	t.Helper()
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transport.Op != op {
		t.Fatalf("Op = %q, want %q", transport.Op, op)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not wrapped: %v", err)
	}
}

func TestNewCreateThreadTransportError(t *testing.T) {
	client := newFakeClient()
	cause := errors.New("connection refused")
	client.threadErr = cause

	thread, err := New(context.Background(), client, config.AssistantConfig{ID: "asst_1"})
	assertTransportError(t, err, "create thread", cause)
	if thread != nil {
		t.Fatal("expected no thread on failure")
	}
}

func TestResetTransportErrorKeepsThread(t *testing.T) {
	client := newFakeClient()
	thread, _ := newTestThread(t, client)
	cause := errors.New("503 service unavailable")
	client.threadErr = cause

	assertTransportError(t, thread.Reset(context.Background()), "create thread", cause)
	if thread.ThreadID() != "thread_1" {
		t.Fatalf("ThreadID = %q, want the previous thread", thread.ThreadID())
	}
}

func TestRunThreadCreateRunTransportError(t *testing.T) {
	client := newFakeClient()
	thread, fake := newTestThread(t, client)
	cause := errors.New("429 too many requests")
	client.createRunErr = cause

	_, err := thread.RunThread(context.Background())
	assertTransportError(t, err, "create run", cause)
	if len(fake.Waits()) != 0 || client.getRuns != 0 {
		t.Fatalf("waits = %v, GetRun calls = %d", fake.Waits(), client.getRuns)
	}
}

func TestRunThreadGetRunTransportError(t *testing.T) {
	client := newFakeClient()
	client.runs = []RunStatus{RunInProgress}
	thread, fake := newTestThread(t, client)
	cause := errors.New("read: connection reset")
	client.getRunErr = cause

	run, err := thread.RunThread(context.Background())
	assertTransportError(t, err, "get run", cause)
	if run.ID != "run_1" || run.Status != RunInProgress {
		t.Fatalf("run = %+v, want the last known state", run)
	}
	if len(fake.Waits()) != 1 || client.getRuns != 1 {
		t.Fatalf("waits = %v, GetRun calls = %d", fake.Waits(), client.getRuns)
	}
}

func TestFetchMessagesAnnotatesReplies(t *testing.T) {
	client := newFakeClient()
	client.files["file_1"] = "doc.pdf"
	client.replies = []ThreadMessage{textMessage("msg_reply", "See source A for details.", Annotation{
		Text:   "source A",
		Kind:   AnnotationFileCitation,
		FileID: "file_1",
		Quote:  "the quoted six word span here extra",
	})}
	thread, _ := newTestThread(t, client)

	if _, err := thread.AddMessage(context.Background(), chat.UserMessage("where?")); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := thread.RunThread(context.Background()); err != nil {
		t.Fatalf("RunThread: %v", err)
	}
	got, err := thread.FetchMessages(context.Background(), true)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	want := []string{"See [0] for details.\n\n[0] doc.pdf - (Search: \"the quoted six word span here\")"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FetchMessages = %q, want %q", got, want)
	}
	if client.fileCalls != 1 {
		t.Fatalf("file lookups = %d", client.fileCalls)
	}
}
