package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jask/formdesk/internal/logging"
)

// FallbackReply replaces the assistant's answer whenever a request fails.
const FallbackReply = "Sorry, I encountered an error. Please try again later."

// Sender says who wrote a message.
type Sender int

const (
	User Sender = iota
	Assistant
)

func (s Sender) String() string {
	if s == Assistant {
		return "assistant"
	}
	return "user"
}

// Message is one transcript entry.
type Message struct {
	Sender Sender
	Text   string
}

// Asker is the transport the session talks through.
type Asker interface {
	Ask(ctx context.Context, text string) (string, error)
}

// Outcome is the result of one Task.
type Outcome struct {
	Seq   uint64
	Reply string
	Err   error
}

// Task runs one chat request off the event loop.
type Task func(ctx context.Context) Outcome

// Session is an append-only transcript. Like the workflow controller it is
// owned by one event loop and not safe for concurrent use.
type Session struct {
	asker    Asker
	log      *zap.Logger
	messages []Message
	seq      uint64
	pending  map[uint64]bool
}

// NewSession starts an empty transcript.
func NewSession(a Asker, log *zap.Logger) *Session {
	return &Session{asker: a, log: logging.OrNop(log).Named("chat"), pending: map[uint64]bool{}}
}

// Begin appends the user's message, raises the pending indicator and returns
// the request to run. Blank text is ignored and yields a nil Task.
func (s *Session) Begin(text string) Task {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	s.messages = append(s.messages, Message{Sender: User, Text: text})
	s.seq++
	seq := s.seq
	s.pending[seq] = true

	a := s.asker
	return func(ctx context.Context) Outcome {
		reply, err := a.Ask(ctx, text)
		return Outcome{Seq: seq, Reply: reply, Err: err}
	}
}

// Apply clears the outcome's pending indicator and appends exactly one
// assistant message. Applying the same outcome twice is a no-op; the second
// call reports false.
func (s *Session) Apply(o Outcome) bool {
	if !s.pending[o.Seq] {
		return false
	}
	delete(s.pending, o.Seq)

	reply := o.Reply
	if o.Err != nil || strings.TrimSpace(reply) == "" {
		if o.Err != nil {
			s.log.Warn("chat request failed", zap.Error(o.Err))
		}
		reply = FallbackReply
	}
	s.messages = append(s.messages, Message{Sender: Assistant, Text: reply})
	return true
}

// Send is Begin, the request and Apply in one call, for synchronous front ends.
// It returns the assistant's message, or false for blank input.
func (s *Session) Send(ctx context.Context, text string) (Message, bool) {
	task := s.Begin(text)
	if task == nil {
		return Message{}, false
	}
	s.Apply(task(ctx))
	return s.messages[len(s.messages)-1], true
}

// Pending reports whether any reply is outstanding.
func (s *Session) Pending() bool { return len(s.pending) > 0 }

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	return append([]Message(nil), s.messages...)
}
