package session

import (
	"errors"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
)

// Streamer receives a reply as it is produced. Close is called once the
// reply is finished or aborted.
type Streamer interface {
	OnNextToken(token string)
	Close() error
}

// Response describes one completed exchange.
type Response struct {
	Messages []chat.Message
	Reply    Reply
}

// Listener observes a chat session.
type Listener interface {
	OnChatStart()
	OnHelp()
	OnChatClear()
	OnChatRerun(success bool)
	OnError(err error)
	OnChatMessage(msg chat.Message)
	OnChatResponse(resp Response)
	ResponseStreamer() Streamer
}

// BaseListener implements Listener with no-ops; embed it to override only
// the events of interest.
type BaseListener struct{}

func (BaseListener) OnChatStart()               {}
func (BaseListener) OnHelp()                    {}
func (BaseListener) OnChatClear()               {}
func (BaseListener) OnChatRerun(bool)           {}
func (BaseListener) OnError(error)              {}
func (BaseListener) OnChatMessage(chat.Message) {}
func (BaseListener) OnChatResponse(Response)    {}
func (BaseListener) ResponseStreamer() Streamer { return nopStreamer{} }

type nopStreamer struct{}

func (nopStreamer) OnNextToken(string) {}
func (nopStreamer) Close() error       { return nil }

// Composite fans every event out to its listeners in order.
type Composite []Listener

func (c Composite) OnChatStart() {
	for _, l := range c {
		l.OnChatStart()
	}
}

func (c Composite) OnHelp() {
	for _, l := range c {
		l.OnHelp()
	}
}

func (c Composite) OnChatClear() {
	for _, l := range c {
		l.OnChatClear()
	}
}

func (c Composite) OnChatRerun(success bool) {
	for _, l := range c {
		l.OnChatRerun(success)
	}
}

func (c Composite) OnError(err error) {
	for _, l := range c {
		l.OnError(err)
	}
}

func (c Composite) OnChatMessage(msg chat.Message) {
	for _, l := range c {
		l.OnChatMessage(msg)
	}
}

func (c Composite) OnChatResponse(resp Response) {
	for _, l := range c {
		l.OnChatResponse(resp)
	}
}

func (c Composite) ResponseStreamer() Streamer {
	streamers := make(compositeStreamer, 0, len(c))
	for _, l := range c {
		streamers = append(streamers, l.ResponseStreamer())
	}
	return streamers
}

type compositeStreamer []Streamer

func (c compositeStreamer) OnNextToken(token string) {
	for _, s := range c {
		s.OnNextToken(token)
	}
}

func (c compositeStreamer) Close() error {
	var errs []error
	for _, s := range c {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
