package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// NoReply is returned when the assistant answers with an empty reply.
const NoReply = "No response received."

// ChatClient relays messages to the assistant service.
type ChatClient struct {
	client
}

func NewChatClient(opts Options, log zerolog.Logger) *ChatClient {
	return &ChatClient{client: newClient("chat", opts, log)}
}

func (c *ChatClient) Send(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: empty message", ErrInvalidRequest)
	}

	req := struct {
		Message string `json:"message"`
	}{message}
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := c.postJSON(ctx, "/api/chat", req, nil, &resp); err != nil {
		return "", err
	}
	if resp.Reply == "" {
		return NoReply, nil
	}
	return resp.Reply, nil
}
