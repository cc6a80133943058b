package paddock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pitsnap/paddock/cache"
	"github.com/pitsnap/paddock/f1api"
	"github.com/pitsnap/paddock/fetch"
)

// Namespace is the cache keyspace for assistant answers.
const Namespace = cache.Keyspace("paddock")

// DefaultContextWindow is how many trailing turns of chat history feed
// the cache key. Small on purpose: folding the whole conversation in
// would make every answer a cache miss.
const DefaultContextWindow = 2

// ErrEmptyQuestion is returned when Ask is called with nothing to ask.
var ErrEmptyQuestion = errors.New("paddock: empty question")

// User-facing text served when the assistant cannot answer and no
// cached answer exists. These are the only strings this layer invents.
const (
	fallbackNetwork = "Connection failed. Please check your network and try again."
	fallbackTimeout = "The request timed out. Please try again."
	fallbackGeneric = "Something went wrong. Please try again later."
)

// Answer is what Ask hands back to the transport layer.
type Answer struct {
	Text     string   `json:"answer"`
	Category Category `json:"category"`
	Cached   bool     `json:"cached"`
	Stale    bool     `json:"stale"`
}

// StandingsSource supplies the last locally cached standings so answers
// about the championship can quote real numbers. Implementations must
// not fetch.
type StandingsSource interface {
	LastKnownStandings(ctx context.Context) (f1api.Standings, bool)
}

// Service orchestrates classify, cache and the assistant call.
type Service struct {
	cache     *cache.Cache
	client    *Client
	standings StandingsSource
	window    int
	log       zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStandings attaches a local standings source used to enrich
// standings and results questions.
func WithStandings(src StandingsSource) Option {
	return func(s *Service) { s.standings = src }
}

// WithContextWindow overrides how many trailing history turns feed the
// cache key.
func WithContextWindow(n int) Option {
	return func(s *Service) { s.window = n }
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New wires an assistant service over the given cache and client.
func New(c *cache.Cache, client *Client, opts ...Option) *Service {
	s := &Service{
		cache:  c,
		client: client,
		window: DefaultContextWindow,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ask answers a question, serving from cache when the same normalized
// question (with the same recent context) was answered within the
// category's TTL. Upstream failure degrades to the last cached answer,
// then to a plain-language fallback; it never surfaces as an error.
func (s *Service) Ask(ctx context.Context, question string, history []Turn) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, ErrEmptyQuestion
	}

	cat := Classify(question)
	key := Namespace.Key(cache.QuestionKey(question, turnTexts(history), s.window))

	var fetched bool
	text, stale, err := cache.Do(ctx, s.cache, key, cat.TTL(), func(fctx context.Context) (string, error) {
		fetched = true
		return s.client.Ask(fctx, s.outbound(fctx, cat, question), history)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("category", string(cat)).Msg("assistant unavailable, serving fallback")
		return Answer{Text: fallbackFor(err), Category: cat}, nil
	}

	return Answer{Text: text, Category: cat, Cached: !fetched, Stale: stale}, nil
}

// outbound folds the last known standings into the question for
// categories where the assistant benefits from current numbers. The
// cache key never sees the folded text.
func (s *Service) outbound(ctx context.Context, cat Category, question string) string {
	if s.standings == nil || (cat != CategoryStandings && cat != CategoryResults) {
		return question
	}
	st, ok := s.standings.LastKnownStandings(ctx)
	if !ok {
		return question
	}
	summary := st.Summary()
	if summary == "" {
		return question
	}
	return fmt.Sprintf("Current standings: %s\n\n%s", summary, question)
}

func turnTexts(history []Turn) []string {
	texts := make([]string, 0, len(history))
	for _, t := range history {
		texts = append(texts, t.Text)
	}
	return texts
}

func fallbackFor(err error) string {
	var nerr *fetch.NetworkError
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return fallbackTimeout
		}
		return fallbackNetwork
	}
	return fallbackGeneric
}
