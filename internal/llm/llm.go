// Package llm wraps the OpenAI chat completions API behind the single
// call the services need.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"github.com/pitsnap/paddock/fetch"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

const completionsPath = "/chat/completions"

// Client calls the chat completions endpoint with a fixed model.
type Client struct {
	api     openai.Client
	model   string
	baseURL string
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a client authenticated with the given API key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		model: DefaultModel,
		log:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	c.api = openai.NewClient(reqOpts...)

	return c
}

// Complete sends a system and user message and returns the assistant
// text. Failures come back in the shared remote-error taxonomy.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	})
	if err != nil {
		return "", c.remoteErr(err)
	}
	if len(completion.Choices) == 0 {
		return "", &fetch.ParseError{Path: completionsPath, Err: errors.New("no choices in completion")}
	}

	return completion.Choices[0].Message.Content, nil
}

// remoteErr maps API failures onto the fetch error types so callers
// treat the model like any other upstream.
func (c *Client) remoteErr(err error) error {
	var apierr *openai.Error
	if !errors.As(err, &apierr) {
		return &fetch.NetworkError{Method: http.MethodPost, Path: completionsPath, Err: err}
	}

	if apierr.StatusCode == http.StatusUnauthorized {
		c.log.Error().Msg("openai rejected the API key, check OPENAI_API_KEY")
	}

	return &fetch.RemoteError{
		Method:     http.MethodPost,
		Path:       completionsPath,
		StatusCode: apierr.StatusCode,
		Body:       []byte(apierr.Error()),
	}
}

// StripFences extracts the payload from a markdown code fence when the
// reply is wrapped in one, which models do even when told not to.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}

	t = strings.TrimPrefix(t, "```")
	if i := strings.Index(t, "\n"); i >= 0 {
		t = t[i+1:]
	} else {
		return strings.TrimSpace(strings.TrimSuffix(t, "```"))
	}
	if i := strings.LastIndex(t, "```"); i >= 0 {
		t = t[:i]
	}

	return strings.TrimSpace(t)
}
