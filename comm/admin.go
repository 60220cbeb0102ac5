package comm

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nubilum/nubilum/internal/store"
	"github.com/nubilum/nubilum/jsonv"
)

// AdminConfig configures the admin router.
type AdminConfig struct {
	MetricsPath string // empty disables the metrics endpoint
	Gatherer    prometheus.Gatherer
}

// NewAdminRouter returns the read-only admin API over the message history.
//
//	GET /healthz
//	GET <metrics path>
//	GET /messages?header=&after=&limit=
//	GET /messages/{seq}
func NewAdminRouter(st store.Store, logger zerolog.Logger, cfg AdminConfig) chi.Router {
	h := &adminHandler{store: st, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(newLoggingMiddleware(logger, cfg.MetricsPath))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	if cfg.MetricsPath != "" {
		g := cfg.Gatherer
		if g == nil {
			g = prometheus.DefaultGatherer
		}
		r.Handle(cfg.MetricsPath, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}
	r.Get("/messages", h.list)
	r.Get("/messages/{seq}", h.get)

	return r
}

type adminHandler struct {
	store  store.Store
	logger zerolog.Logger
}

func (h *adminHandler) health(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("count messages")
		writeJSON(w, http.StatusServiceUnavailable, jsonv.Object(
			jsonv.M("status", jsonv.String("unhealthy")),
			jsonv.M("error", jsonv.String(err.Error())),
		))
		return
	}

	writeJSON(w, http.StatusOK, jsonv.Object(
		jsonv.M("status", jsonv.String("ok")),
		jsonv.M("messages", jsonv.Int(n)),
	))
}

func (h *adminHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{Header: q.Get("header")}

	var err error
	if s := q.Get("after"); s != "" {
		if f.AfterSeq, err = strconv.ParseInt(s, 10, 64); err != nil || f.AfterSeq < 0 {
			writeError(w, http.StatusBadRequest, "invalid after")
			return
		}
	}
	if s := q.Get("limit"); s != "" {
		if f.Limit, err = strconv.Atoi(s); err != nil || f.Limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	msgs, err := h.store.List(r.Context(), f)
	if err != nil {
		h.logger.Error().Err(err).Msg("list messages")
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}

	items := make([]*jsonv.Value, len(msgs))
	for i, m := range msgs {
		items[i] = m.Value()
	}
	writeJSON(w, http.StatusOK, jsonv.Object(
		jsonv.M("messages", jsonv.Array(items...)),
		jsonv.M("count", jsonv.Int(int64(len(items)))),
	))
}

func (h *adminHandler) get(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sequence")
		return
	}

	m, err := h.store.Get(r.Context(), seq)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Int64("seq", seq).Msg("get message")
		writeError(w, http.StatusInternalServerError, "get failed")
		return
	}

	writeJSON(w, http.StatusOK, m.Value())
}

func writeJSON(w http.ResponseWriter, status int, v *jsonv.Value) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(jsonv.AppendDump(nil, v), '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonv.Object(jsonv.M("error", jsonv.String(msg))))
}

func newLoggingMiddleware(logger zerolog.Logger, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if strings.HasPrefix(r.URL.Path, "/healthz") || (metricsPath != "" && r.URL.Path == metricsPath) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
