package transporthttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/eventcollector/internal/config"
	"example.com/eventcollector/internal/ingest"
	spg "example.com/eventcollector/internal/storage/postgres"
)

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, req ingest.Request) ingest.Response {
	args := m.Called(ctx, req)
	return args.Get(0).(ingest.Response)
}

type MockStats struct {
	mock.Mock
}

func (m *MockStats) QueryTotals(ctx context.Context, from, to time.Time, videoOnly *bool) (spg.StatsTotals, error) {
	args := m.Called(ctx, from, to, videoOnly)
	return args.Get(0).(spg.StatsTotals), args.Error(1)
}

func (m *MockStats) QueryBucketsDaily(ctx context.Context, from, to time.Time, videoOnly *bool) ([]spg.StatsBucket, error) {
	args := m.Called(ctx, from, to, videoOnly)
	return args.Get(0).([]spg.StatsBucket), args.Error(1)
}

type readiness struct{ err error }

func (r readiness) Ready(context.Context) error { return r.err }

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newDeps(p Processor, s StatsQuerier) *ServerDeps {
	return &ServerDeps{
		Cfg:      config.Config{MaxBodyBytes: 1024, RateLimitStatsPerMin: 100, APIKeys: map[string]struct{}{}},
		Pipeline: p,
		DB:       readiness{},
		Stats:    s,
		Log:      zerolog.Nop(),
		Now:      func() time.Time { return testNow },
	}
}

func postEvents(body string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v2/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestHandlePostEvents(t *testing.T) {
	t.Run("passes_lowercased_headers_and_raw_body", func(t *testing.T) {
		p := new(MockProcessor)
		body := `[{"href":"https://example.com/"}]`
		p.On("Process", mock.Anything, mock.MatchedBy(func(req ingest.Request) bool {
			return string(req.Body) == body &&
				req.Headers["x-yttrex-userid"] == "cookie" &&
				req.Headers["x-yttrex-signature"] == "sig" &&
				req.Headers["content-length"] == "33"
		})).Return(ingest.Response{Status: ingest.StatusOK, Info: []int64{1}})

		rec := httptest.NewRecorder()
		newDeps(p, nil).Router().ServeHTTP(rec, postEvents(body, map[string]string{
			"X-Yttrex-Userid":    "cookie",
			"X-Yttrex-Signature": "sig",
		}))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"status":"OK","info":[1]}`, rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get(HeaderXRequestID))
		p.AssertExpectations(t)
	})

	t.Run("error_envelope_is_200", func(t *testing.T) {
		p := new(MockProcessor)
		p.On("Process", mock.Anything, mock.Anything).Return(ingest.Response{Status: ingest.StatusError, Info: "signature does not match request body"})

		rec := httptest.NewRecorder()
		newDeps(p, nil).Router().ServeHTTP(rec, postEvents(`[]`, nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"error","info":"signature does not match request body"}`, rec.Body.String())
	})

	t.Run("body_too_large", func(t *testing.T) {
		p := new(MockProcessor)
		rec := httptest.NewRecorder()
		newDeps(p, nil).Router().ServeHTTP(rec, postEvents(strings.Repeat("x", 2048), nil))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		p.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
	})

	t.Run("wrong_content_type", func(t *testing.T) {
		p := new(MockProcessor)
		req := postEvents(`[]`, nil)
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		newDeps(p, nil).Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		p.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
	})

	t.Run("method_not_allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newDeps(new(MockProcessor), nil).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/events", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHeaderMap(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("abc"))
	req.Header.Add("X-Yttrex-Build", "first")
	req.Header.Add("X-Yttrex-Build", "second")

	m := headerMap(req)
	assert.Equal(t, "first", m["x-yttrex-build"])
	assert.Equal(t, "3", m["content-length"])

	empty := httptest.NewRequest(http.MethodPost, "/", nil)
	_, ok := headerMap(empty)["content-length"]
	assert.False(t, ok, "no body, no synthesized length")
}

func TestHealth(t *testing.T) {
	d := newDeps(nil, nil)

	rec := httptest.NewRecorder()
	d.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	d.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	d.DB = readiness{err: errors.New("down")}
	rec = httptest.NewRecorder()
	d.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleGetStats(t *testing.T) {
	t.Run("default_window", func(t *testing.T) {
		s := new(MockStats)
		s.On("QueryTotals", mock.Anything, testNow.Add(-24*time.Hour), testNow, (*bool)(nil)).
			Return(spg.StatsTotals{Count: 7, UniqueSupporters: 2}, nil)

		rec := httptest.NewRecorder()
		newDeps(nil, s).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/stats", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"totals":{"count":7,"unique_supporters":2}}`, rec.Body.String())
		s.AssertExpectations(t)
	})

	t.Run("daily_buckets_video_only", func(t *testing.T) {
		s := new(MockStats)
		from, to := time.Unix(1714521600, 0).UTC(), time.Unix(1714608000, 0).UTC()
		s.On("QueryTotals", mock.Anything, from, to, mock.MatchedBy(func(v *bool) bool { return v != nil && *v })).
			Return(spg.StatsTotals{Count: 3, UniqueSupporters: 1}, nil)
		s.On("QueryBucketsDaily", mock.Anything, from, to, mock.Anything).
			Return([]spg.StatsBucket{{BucketStart: 1714521600, Count: 3, UniqueSupporters: 1}}, nil)

		rec := httptest.NewRecorder()
		newDeps(nil, s).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/v2/stats?from=1714521600&to=1714608000&group_by=day&video=true", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp statsResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(3), resp.Totals.Count)
		require.Len(t, resp.Buckets, 1)
		assert.Equal(t, int64(1714521600), resp.Buckets[0].BucketStart)
	})

	t.Run("window_is_capped", func(t *testing.T) {
		s := new(MockStats)
		to := time.Unix(1714608000, 0).UTC()
		s.On("QueryTotals", mock.Anything, to.Add(-90*24*time.Hour), to, (*bool)(nil)).
			Return(spg.StatsTotals{}, nil)

		rec := httptest.NewRecorder()
		newDeps(nil, s).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/stats?from=0&to=1714608000", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		s.AssertExpectations(t)
	})

	for _, q := range []string{"from=abc", "to=abc", "video=maybe", "from=200&to=100"} {
		t.Run("bad_"+q, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newDeps(nil, new(MockStats)).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/stats?"+q, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	t.Run("query_error_is_hidden", func(t *testing.T) {
		s := new(MockStats)
		s.On("QueryTotals", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(spg.StatsTotals{}, errors.New("relation artifacts does not exist"))

		rec := httptest.NewRecorder()
		newDeps(nil, s).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/stats", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "relation")
	})

	t.Run("requires_api_key_when_configured", func(t *testing.T) {
		d := newDeps(nil, new(MockStats))
		d.Cfg.APIKeys = map[string]struct{}{"secret": {}}

		rec := httptest.NewRecorder()
		d.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/stats?from=abc", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/api/v2/stats?from=abc", nil)
		req.Header.Set("X-API-Key", "secret")
		rec = httptest.NewRecorder()
		d.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newDeps(nil, nil).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
