package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL:         srv.URL,
		Token:           "tok",
		Timeout:         time.Second,
		GenerateTimeout: time.Second,
		HTTPClient:      srv.Client(),
		Logger:          zerolog.Nop(),
	})
}

func TestEntitlementsNormalizesCap(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entitlements", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{"is_authenticated":true,"max_legs":0,"mix_sports_allowed":true,"player_props_allowed":false}`))
	})

	ent, err := c.Entitlements(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ent.IsAuthenticated)
	assert.True(t, ent.MixSportsAllowed)
	assert.Equal(t, parlay.DefaultMaxLegs, ent.MaxLegs)
}

func TestAnonymousEntitlementsSendEmptyUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.True(t, q.Has("user_id"))
		assert.Empty(t, q.Get("user_id"))
		_, _ = w.Write([]byte(`{"is_authenticated":false,"max_legs":5}`))
	})

	ent, err := c.Entitlements(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ent.IsAuthenticated)
}

func TestCandidateLegsCountQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "NFL", q.Get("sport"))
		assert.Equal(t, "7", q.Get("week"))
		assert.Equal(t, "5", q.Get("num_legs"))
		assert.Equal(t, "true", q.Get("include_player_props"))
		assert.Equal(t, "triple", q.Get("mode"))
		_, _ = w.Write([]byte(`{"count":12,"strong_edge_count":2,"unique_games":6,"top_exclusion_reasons":[{"reason":"NO_ODDS","count":3}]}`))
	})

	week := 7
	got, err := c.CandidateLegsCount(context.Background(), parlay.CandidateQuery{
		Sport: parlay.SportNFL, Week: &week, LegCountHint: 5, IncludePlayerProps: true, Mode: parlay.ModeTriple,
	})
	require.NoError(t, err)
	assert.Equal(t, parlay.SportNFL, got.Sport)
	require.NotNil(t, got.Count)
	assert.Equal(t, 12, *got.Count)
	require.NotNil(t, got.StrongEdgeCount)
	assert.Equal(t, 2, *got.StrongEdgeCount)
	assert.Equal(t, parlay.ReasonNoOdds, parlay.PrimaryReason(got.TopExclusionReasons))
}

func TestCandidateLegsCountDropsStrongEdgesOutsideTriple(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"count":12,"strong_edge_count":9}`))
	})
	got, err := c.CandidateLegsCount(context.Background(), parlay.CandidateQuery{Sport: parlay.SportNBA, Mode: parlay.ModeSingle})
	require.NoError(t, err)
	assert.Nil(t, got.StrongEdgeCount)
}

func TestSuggestParlaySendsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/parlay/suggest", r.URL.Path)
		var body SuggestRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 4, body.NumLegs)
		assert.Equal(t, []string{"NFL", "NBA"}, body.Sports)
		assert.True(t, body.MixSports)
		_, _ = w.Write([]byte(`{"legs":[{"game":"A @ B","outcome":"A ML","odds":-110,"adjusted_prob":0.55}],"parlay_odds":250}`))
	})

	cfg := parlay.DefaultRequest()
	cfg.LegCount = 4
	cfg.Sports = []parlay.Sport{parlay.SportNFL, parlay.SportNBA}
	cfg.MixSports = true
	resp, err := c.SuggestParlay(context.Background(), NewSuggestRequest(cfg))
	require.NoError(t, err)
	legs := resp.ParlayLegs()
	require.Len(t, legs, 1)
	assert.Equal(t, "A ML", legs[0].Pick)
	assert.Equal(t, 250, resp.ParlayMetrics().AmericanOdds)
}

func TestErrorStatusKeepsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"needed":5,"have":1}`))
	})

	_, err := c.SuggestParlay(context.Background(), SuggestRequest{NumLegs: 5})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.JSONEq(t, `{"needed":5,"have":1}`, string(apiErr.Body))
	assert.ErrorIs(t, err, ErrStatus)
}

func TestTimeoutIsTagged(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	c.generateTimeout = 50 * time.Millisecond

	_, err := c.SuggestTripleParlay(context.Background(), TripleRequest{Sports: []string{"NFL"}})
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeTimeout, apiErr.Code)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDecodeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err := c.NFLWeeks(context.Background())
	assert.ErrorIs(t, err, ErrBadResponse)
}
