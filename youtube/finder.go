package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pitsnap/paddock/cache"
	"github.com/pitsnap/paddock/internal/llm"
	"github.com/pitsnap/paddock/internal/prompt"
)

// Namespace is the cache keyspace for video lookups.
const Namespace = cache.Keyspace("media")

// TTL keeps a topic's video list for six hours.
const TTL = 6 * time.Hour

// ErrEmptyTopic is returned when Find is called with nothing to search.
var ErrEmptyTopic = errors.New("youtube: empty topic")

// Completer produces the search query for a topic.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Finder resolves a fan topic to a cached list of embeddable videos.
type Finder struct {
	cache   *cache.Cache
	client  *Client
	model   Completer
	prompts *prompt.Generator
	max     int
	log     zerolog.Logger
}

// Option configures a Finder.
type Option func(*Finder)

// WithModel enables LLM search-query generation. Without it the finder
// uses the template query.
func WithModel(m Completer) Option {
	return func(f *Finder) { f.model = m }
}

// WithPrompts overrides the prompt generator.
func WithPrompts(g *prompt.Generator) Option {
	return func(f *Finder) { f.prompts = g }
}

// WithMaxResults bounds how many search hits are considered.
func WithMaxResults(n int) Option {
	return func(f *Finder) { f.max = n }
}

// WithLogger sets the finder logger.
func WithLogger(log zerolog.Logger) Option {
	return func(f *Finder) { f.log = log }
}

// NewFinder wires a finder over the given cache and API client.
func NewFinder(c *cache.Cache, client *Client, opts ...Option) *Finder {
	f := &Finder{
		cache:   c,
		client:  client,
		prompts: prompt.NewGenerator(""),
		max:     DefaultMaxResults,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Find returns embeddable videos for the topic, cached by the
// normalized topic text.
func (f *Finder) Find(ctx context.Context, topic string) ([]Video, bool, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, false, ErrEmptyTopic
	}

	key := Namespace.Key(cache.Normalize(topic))
	return cache.Do(ctx, f.cache, key, TTL, func(fctx context.Context) ([]Video, error) {
		return f.find(fctx, topic)
	})
}

func (f *Finder) find(ctx context.Context, topic string) ([]Video, error) {
	found, err := f.client.Search(ctx, f.searchQuery(ctx, topic), f.max)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(found))
	for _, v := range found {
		ids = append(ids, v.ID)
	}
	embeddable, err := f.client.Embeddable(ctx, ids)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(embeddable))
	for _, id := range embeddable {
		keep[id] = true
	}
	videos := make([]Video, 0, len(embeddable))
	for _, v := range found {
		if keep[v.ID] {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

// searchQuery asks the model to phrase the search, falling back to the
// template query whenever that goes sideways.
func (f *Finder) searchQuery(ctx context.Context, topic string) string {
	if f.model == nil {
		return fallbackQuery(topic)
	}

	reply, err := f.model.Complete(ctx, f.prompts.VideoQuery(), topic)
	if err != nil {
		f.log.Warn().Err(err).Msg("query generation failed, using template query")
		return fallbackQuery(topic)
	}

	q := strings.TrimSpace(llm.StripFences(reply))
	if i := strings.Index(q, "\n"); i >= 0 {
		q = strings.TrimSpace(q[:i])
	}
	if q == "" {
		return fallbackQuery(topic)
	}
	return q
}

func fallbackQuery(topic string) string {
	return fmt.Sprintf("F1 %s highlights", topic)
}
