// Package paddock answers F1 questions through the Paddock AI assistant
// backend, caching replies by normalized question and recent chat
// context so repeated questions cost nothing.
package paddock

import (
	"context"
	"errors"

	"github.com/pitsnap/paddock/fetch"
)

// Turn is one message of the conversation so far.
type Turn struct {
	Text   string `json:"text"`
	IsUser bool   `json:"isUser"`
}

type askRequest struct {
	Question string `json:"question"`
	History  []Turn `json:"chat_history"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

func (r askResponse) Validate() error {
	if r.Answer == "" {
		return errors.New("missing answer")
	}
	return nil
}

// Client talks to the assistant backend.
type Client struct {
	api *fetch.Client
}

// NewClient returns a client for the assistant at baseURL.
func NewClient(baseURL string, opts ...fetch.Option) (*Client, error) {
	api, err := fetch.New(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

// Ask sends the question plus chat history and returns the answer text.
func (c *Client) Ask(ctx context.Context, question string, history []Turn) (string, error) {
	var resp askResponse
	if err := c.api.PostJSON(ctx, "/ask", askRequest{Question: question, History: history}, &resp); err != nil {
		return "", err
	}
	return resp.Answer, nil
}
