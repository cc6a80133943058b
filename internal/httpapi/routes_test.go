package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitsnap/paddock/cache"
	"github.com/pitsnap/paddock/countdown"
	"github.com/pitsnap/paddock/digest"
	"github.com/pitsnap/paddock/f1api"
	"github.com/pitsnap/paddock/paddock"
	"github.com/pitsnap/paddock/pitwall"
	"github.com/pitsnap/paddock/youtube"
)

type racesStub struct {
	schedule  f1api.Schedule
	next      f1api.NextRace
	results   f1api.RaceResults
	standings f1api.Standings
	stale     bool
	err       error

	nextCalls int
	refreshed int
}

func (rs *racesStub) Schedule(ctx context.Context) (f1api.Schedule, bool, error) {
	return rs.schedule, rs.stale, rs.err
}

func (rs *racesStub) NextRace(ctx context.Context) (f1api.NextRace, bool, error) {
	rs.nextCalls++
	return rs.next, rs.stale, rs.err
}

func (rs *racesStub) LatestResults(ctx context.Context) (f1api.RaceResults, bool, error) {
	return rs.results, rs.stale, rs.err
}

func (rs *racesStub) Standings(ctx context.Context) (f1api.Standings, bool, error) {
	return rs.standings, rs.stale, rs.err
}

func (rs *racesStub) PitWall(ctx context.Context) (pitwall.PitWallData, bool, error) {
	return pitwall.PitWallData{Schedule: &rs.schedule}, rs.stale, rs.err
}

func (rs *racesStub) ForceRefresh(ctx context.Context) (int, error) {
	if rs.err != nil {
		return 0, rs.err
	}
	rs.refreshed++
	return 4, nil
}

type assistantStub struct {
	answer paddock.Answer
	err    error
	asked  []string
}

func (as *assistantStub) Ask(ctx context.Context, question string, history []paddock.Turn) (paddock.Answer, error) {
	as.asked = append(as.asked, question)
	return as.answer, as.err
}

type digestStub struct {
	digest digest.Digest
	stale  bool
	err    error
}

func (ds *digestStub) Today(ctx context.Context) (digest.Digest, bool, error) {
	return ds.digest, ds.stale, ds.err
}

type videoStub struct {
	videos []youtube.Video
	stale  bool
	err    error
	topics []string
}

func (vs *videoStub) Find(ctx context.Context, topic string) ([]youtube.Video, bool, error) {
	vs.topics = append(vs.topics, topic)
	return vs.videos, vs.stale, vs.err
}

func newTestServer(t *testing.T, opts ServerOptions) *Server {
	t.Helper()
	if opts.Cache == nil {
		opts.Cache = cache.New(cache.NewMemoryStore())
	}
	if opts.Engine == nil {
		opts.Engine = countdown.NewEngine(countdown.WithInterval(10 * time.Millisecond))
		t.Cleanup(opts.Engine.Stop)
	}
	opts.Logger = zerolog.Nop()
	return New(opts)
}

func doRequest(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, ServerOptions{Races: &racesStub{}})

	rec := doRequest(s, http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestScheduleEndpoint(t *testing.T) {
	races := &racesStub{schedule: f1api.Schedule{Season: 2025, TotalRounds: 24}}
	s := newTestServer(t, ServerOptions{Races: races})

	rec := doRequest(s, http.MethodGet, "/f1/schedule", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Stale"))
	body := decodeBody[f1api.Schedule](t, rec)
	assert.Equal(t, 2025, body.Season)
	assert.Equal(t, 24, body.TotalRounds)
}

func TestStaleResponsesCarryHeader(t *testing.T) {
	races := &racesStub{standings: f1api.Standings{Race: "Austrian Grand Prix"}, stale: true}
	s := newTestServer(t, ServerOptions{Races: races})

	rec := doRequest(s, http.MethodGet, "/f1/standings", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Stale"))
}

func TestScheduleFailureReturnsError(t *testing.T) {
	races := &racesStub{err: errors.New("upstream down")}
	s := newTestServer(t, ServerOptions{Races: races})

	rec := doRequest(s, http.MethodGet, "/f1/schedule", "", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "schedule unavailable", body["error"])
}

func TestRefreshGuardedByAdminKey(t *testing.T) {
	races := &racesStub{}
	s := newTestServer(t, ServerOptions{Races: races, AdminKey: "pit-lane"})

	rec := doRequest(s, http.MethodPost, "/f1/refresh", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(s, http.MethodPost, "/f1/refresh", "", map[string]string{AdminKeyHeader: "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, races.refreshed)

	rec = doRequest(s, http.MethodPost, "/f1/refresh", "", map[string]string{AdminKeyHeader: "pit-lane"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, races.refreshed)
	body := decodeBody[map[string]int](t, rec)
	assert.Equal(t, 4, body["cleared"])
}

func TestRefreshOpenWithoutAdminKey(t *testing.T) {
	races := &racesStub{}
	s := newTestServer(t, ServerOptions{Races: races})

	rec := doRequest(s, http.MethodPost, "/f1/refresh", "", nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, races.refreshed)
}

func TestAskEndpoint(t *testing.T) {
	assistant := &assistantStub{answer: paddock.Answer{
		Text:     "Lando Norris won in Austria.",
		Category: paddock.CategoryResults,
		Cached:   true,
	}}
	s := newTestServer(t, ServerOptions{Races: &racesStub{}, Assistant: assistant})

	rec := doRequest(s, http.MethodPost, "/ask",
		`{"question":"who won the last race?","chat_history":[{"text":"hi","isUser":true}]}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Lando Norris won in Austria.", body["answer"])
	assert.Equal(t, "results", body["category"])
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, false, body["stale"])
	require.Len(t, assistant.asked, 1)
	assert.Equal(t, "who won the last race?", assistant.asked[0])
}

func TestAskWithoutAssistant(t *testing.T) {
	s := newTestServer(t, ServerOptions{Races: &racesStub{}})

	rec := doRequest(s, http.MethodPost, "/ask", `{"question":"hello"}`, nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAskRejectsBadInput(t *testing.T) {
	assistant := &assistantStub{err: paddock.ErrEmptyQuestion}
	s := newTestServer(t, ServerOptions{Races: &racesStub{}, Assistant: assistant})

	rec := doRequest(s, http.MethodPost, "/ask", `{"question":"   "}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/ask", `{not json`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCountdownSnapshot(t *testing.T) {
	now := time.Now()
	races := &racesStub{next: f1api.NextRace{
		Round: 12,
		Name:  "British Grand Prix",
		Date:  now.Add(90 * time.Second),
	}}
	s := newTestServer(t, ServerOptions{Races: races})
	s.Now = func() time.Time { return now }

	rec := doRequest(s, http.MethodGet, "/f1/countdown", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[countdownSnapshot](t, rec)
	assert.Equal(t, "British Grand Prix", body.Race)
	assert.Equal(t, 12, body.Round)
	assert.Equal(t, int64(90), body.Countdown.TotalSecondsRemaining)

	// The resolved target is cached, a second request stays off the
	// race data layer.
	rec = doRequest(s, http.MethodGet, "/f1/countdown", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, races.nextCalls)
}

func TestCountdownWithoutTarget(t *testing.T) {
	races := &racesStub{err: errors.New("upstream down")}
	s := newTestServer(t, ServerOptions{Races: races})

	rec := doRequest(s, http.MethodGet, "/f1/countdown", "", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCountdownStreamEndsAfterPastTarget(t *testing.T) {
	races := &racesStub{next: f1api.NextRace{
		Round: 11,
		Name:  "Austrian Grand Prix",
		Date:  time.Now().Add(-2 * time.Hour),
	}}
	s := newTestServer(t, ServerOptions{Races: races})

	rec := doRequest(s, http.MethodGet, "/f1/countdown/stream", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.NotEmpty(t, lines)
	require.True(t, strings.HasPrefix(lines[0], "data: "))

	var tick countdown.CountdownTime
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[0], "data: ")), &tick))
	assert.True(t, tick.IsPast)
	assert.False(t, s.Engine.Active("race-11"))
}

func TestCountdownStreamUnsubscribesOnDisconnect(t *testing.T) {
	races := &racesStub{next: f1api.NextRace{
		Round: 12,
		Name:  "British Grand Prix",
		Date:  time.Now().Add(time.Hour),
	}}
	s := newTestServer(t, ServerOptions{Races: races})
	srv := httptest.NewServer(s.Router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/f1/countdown/stream")
	require.NoError(t, err)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))
	require.True(t, s.Engine.Active("race-12"))

	require.NoError(t, resp.Body.Close())

	assert.Eventually(t, func() bool {
		return !s.Engine.Active("race-12")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDigestEndpoint(t *testing.T) {
	ds := &digestStub{digest: digest.Digest{Headline: "Six days to Silverstone"}}
	s := newTestServer(t, ServerOptions{Races: &racesStub{}, Digest: ds})

	rec := doRequest(s, http.MethodGet, "/digest", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[digest.Digest](t, rec)
	assert.Equal(t, "Six days to Silverstone", body.Headline)
}

func TestDigestWithoutService(t *testing.T) {
	s := newTestServer(t, ServerOptions{Races: &racesStub{}})

	rec := doRequest(s, http.MethodGet, "/digest", "", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVideosEndpoint(t *testing.T) {
	vs := &videoStub{videos: []youtube.Video{{ID: "vid-a", Title: "Race Highlights"}}}
	s := newTestServer(t, ServerOptions{Races: &racesStub{}, Videos: vs})

	rec := doRequest(s, http.MethodGet, "/videos?topic=Silverstone", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Silverstone", body["topic"])
	require.Len(t, vs.topics, 1)

	vs.err = youtube.ErrEmptyTopic
	rec = doRequest(s, http.MethodGet, "/videos", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheStatsEndpoint(t *testing.T) {
	c := cache.New(cache.NewMemoryStore())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("pitwall:entry-%d", i)
		require.NoError(t, c.Store().Set(ctx, key, []byte(`{}`), time.Minute))
	}
	s := newTestServer(t, ServerOptions{Races: &racesStub{}, Cache: c})

	rec := doRequest(s, http.MethodGet, "/cache/stats?ns=pitwall", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, float64(3), body["count"])

	rec = doRequest(s, http.MethodGet, "/cache/stats", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
