package transporthttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"example.com/eventcollector/internal/config"
	"example.com/eventcollector/internal/ingest"
	"example.com/eventcollector/internal/metrics"
	spg "example.com/eventcollector/internal/storage/postgres"
)

// Processor runs one event submission.
type Processor interface {
	Process(ctx context.Context, req ingest.Request) ingest.Response
}

type Readiness interface {
	Ready(ctx context.Context) error
}

type StatsQuerier interface {
	QueryTotals(ctx context.Context, from, to time.Time, videoOnly *bool) (spg.StatsTotals, error)
	QueryBucketsDaily(ctx context.Context, from, to time.Time, videoOnly *bool) ([]spg.StatsBucket, error)
}

type ServerDeps struct {
	Cfg      config.Config
	Pipeline Processor
	DB       Readiness
	Stats    StatsQuerier
	Log      zerolog.Logger
	Now      func() time.Time
}

// --- Health ---

func (d *ServerDeps) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *ServerDeps) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := d.DB.Ready(r.Context()); err != nil {
		WriteProblem(w, http.StatusServiceUnavailable, "not ready", "database not reachable", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- Events ---

// HandlePostEvents feeds the raw request to the pipeline. Both OK and error
// envelopes are answered with 200; only transport failures use problem+json.
func (d *ServerDeps) HandlePostEvents(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, http.StatusRequestEntityTooLarge, "payload too large", "request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes", nil)
			return
		}
		WriteProblem(w, http.StatusBadRequest, "unreadable body", err.Error(), nil)
		return
	}

	resp := d.Pipeline.Process(r.Context(), ingest.Request{
		Headers: headerMap(r),
		Body:    body,
	})
	writeJSON(w, http.StatusOK, resp)
}

// headerMap lower-cases header names and keeps the first value of each.
func headerMap(r *http.Request) map[string]string {
	m := make(map[string]string, len(r.Header)+1)
	for k, v := range r.Header {
		if len(v) > 0 {
			m[strings.ToLower(k)] = v[0]
		}
	}
	if _, ok := m["content-length"]; !ok && r.ContentLength > 0 {
		m["content-length"] = strconv.FormatInt(r.ContentLength, 10)
	}
	return m
}

// --- Stats ---

type statsResp struct {
	Totals  spg.StatsTotals   `json:"totals"`
	Buckets []spg.StatsBucket `json:"buckets,omitempty"`
}

const defaultWindow = 24 * time.Hour
const maxWindow = 90 * 24 * time.Hour

func parseEpoch(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(n, 0).UTC(), nil
}

// HandleGetStats reports stored artifact counts. from and to are epoch
// seconds; the window defaults to the last 24h and is capped at 90 days.
func (d *ServerDeps) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fromStr, toStr := q.Get("from"), q.Get("to")

	now := d.Now().UTC()
	from, to := now.Add(-defaultWindow), now
	var err error

	if toStr != "" {
		if to, err = parseEpoch(toStr); err != nil {
			WriteProblem(w, http.StatusBadRequest, "invalid parameters", "to must be epoch seconds", nil)
			return
		}
		from = to.Add(-defaultWindow)
	}
	if fromStr != "" {
		if from, err = parseEpoch(fromStr); err != nil {
			WriteProblem(w, http.StatusBadRequest, "invalid parameters", "from must be epoch seconds", nil)
			return
		}
	}
	if from.After(to) {
		WriteProblem(w, http.StatusBadRequest, "invalid parameters", "from must not be after to", nil)
		return
	}
	if to.Sub(from) > maxWindow {
		from = to.Add(-maxWindow)
	}

	var videoOnly *bool
	if v := q.Get("video"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			WriteProblem(w, http.StatusBadRequest, "invalid parameters", "video must be true or false", nil)
			return
		}
		videoOnly = &b
	}

	ctx := r.Context()
	var resp statsResp
	resp.Totals, err = d.Stats.QueryTotals(ctx, from, to, videoOnly)
	if err != nil {
		d.Log.Error().Err(err).Msg("stats totals query failed")
		WriteProblem(w, http.StatusInternalServerError, "query error", "stats are unavailable", nil)
		return
	}

	if q.Get("group_by") == "day" {
		resp.Buckets, err = d.Stats.QueryBucketsDaily(ctx, from, to, videoOnly)
		if err != nil {
			d.Log.Error().Err(err).Msg("stats bucket query failed")
			WriteProblem(w, http.StatusInternalServerError, "query error", "stats are unavailable", nil)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Router ---

func (d *ServerDeps) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(AccessLog(d.Log))

	r.Get("/healthz", d.HandleHealthz)
	r.Get("/readyz", d.HandleReadyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v2", func(r chi.Router) {
		r.With(BodyLimit(d.Cfg.MaxBodyBytes), RequireJSON).Post("/events", d.HandlePostEvents)

		r.With(APIKeyAuth(d.Cfg.APIKeys), RateLimitPerMinute(d.Cfg.RateLimitStatsPerMin)).Get("/stats", d.HandleGetStats)
	})

	return r
}
