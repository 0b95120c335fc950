// Package service exposes the oracle operations over HTTP with JSON
// bodies, next to the Prometheus metrics endpoint.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/time-oracle/core/oracle"
)

type TimeOracle interface {
	TimeUTC(ctx context.Context, mode oracle.Mode, compensate bool) (oracle.TimeResult, error)
	TimeForTimezone(ctx context.Context, name string, mode oracle.Mode, compensate bool) (oracle.TimezoneResult, error)
	CompareSystemClock(ctx context.Context, mode oracle.Mode) (oracle.ClockComparison, error)
}

var _ TimeOracle = (*oracle.Oracle)(nil)

var errMissingZone = errors.New("missing tz parameter")

type handler struct {
	log *zap.Logger
	o   TimeOracle
}

func NewHandler(log *zap.Logger, o TimeOracle) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{log: log, o: o}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/time/utc", h.timeUTC)
	mux.HandleFunc("GET /v1/time/zone", h.timeForTimezone)
	mux.HandleFunc("GET /v1/clock/compare", h.compareSystemClock)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func parseArgs(r *http.Request) (oracle.Mode, bool, error) {
	q := r.URL.Query()
	mode, err := oracle.ParseMode(q.Get("mode"))
	if err != nil {
		return "", false, err
	}
	compensate := true
	if s := q.Get("compensate"); s != "" {
		compensate, err = strconv.ParseBool(s)
		if err != nil {
			return "", false, errors.New("invalid compensate parameter: " + s)
		}
	}
	return mode, compensate, nil
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.log.Info("failed to write response", zap.Error(err))
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, oracle.ErrInvalidMode):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, oracle.ErrNoServers):
		h.writeError(w, http.StatusServiceUnavailable, err)
	default:
		h.log.Error("request failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *handler) timeUTC(w http.ResponseWriter, r *http.Request) {
	mode, compensate, err := parseArgs(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.o.TimeUTC(r.Context(), mode, compensate)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *handler) timeForTimezone(w http.ResponseWriter, r *http.Request) {
	mode, compensate, err := parseArgs(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	name := r.URL.Query().Get("tz")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, errMissingZone)
		return
	}
	res, err := h.o.TimeForTimezone(r.Context(), name, mode, compensate)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *handler) compareSystemClock(w http.ResponseWriter, r *http.Request) {
	mode, err := oracle.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.o.CompareSystemClock(r.Context(), mode)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// StartHTTPServer serves h on addr in the background. It terminates the
// process if the listener cannot be created or fails.
func StartHTTPServer(ctx context.Context, log *zap.Logger, addr string, h http.Handler) {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		log.Fatal("failed to listen", zap.String("address", addr), zap.Error(err))
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	log.Info("serving", zap.Stringer("address", ln.Addr()))
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to serve", zap.Error(err))
		}
	}()
}
