// Package chat holds the assistant conversation: a client for the chat
// endpoint and the transcript it feeds.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/jask/formdesk/internal/httpapi"
)

const chatPath = "/api/chat"

// ErrEmptyReply is returned when the backend answers without a message.
var ErrEmptyReply = errors.New("empty assistant reply")

// Client asks the backend assistant.
type Client struct {
	t *httpapi.Transport
}

// NewClient wraps a transport.
func NewClient(t *httpapi.Transport) *Client {
	return &Client{t: t}
}

type askRequest struct {
	UserChat string `json:"user_chat"`
}

type askResponse struct {
	AIMessage string `json:"aiMessage"`
}

// Ask sends one user message and returns the assistant's reply.
func (c *Client) Ask(ctx context.Context, text string) (string, error) {
	var resp askResponse
	if err := c.t.PostJSON(ctx, "chat", chatPath, askRequest{UserChat: text}, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.AIMessage) == "" {
		return "", ErrEmptyReply
	}
	return resp.AIMessage, nil
}
