package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"stocktracker/internal/model"
	"stocktracker/internal/pipeline"
	"stocktracker/internal/prewarm"
)

// reportRunner runs one orchestrated request.
type reportRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Report, error)
}

type reportHandler struct {
	runner       reportRunner
	lookbackDays int
	now          func() time.Time
	logger       *slog.Logger
}

func (h *reportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	req, err := parseRequest(r.URL.Query(), h.now(), h.lookbackDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.runner.Run(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		switch {
		case status == statusClientClosedRequest:
			h.logger.Debug("report abandoned by client", "symbol", req.Symbol)
		case status >= http.StatusInternalServerError:
			h.logger.Error("report failed", "symbol", req.Symbol, "status", status, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(report)
}

// parseRequest reads symbol, company, start and end. A missing end is
// today; a missing start is lookbackDays before end.
func parseRequest(q url.Values, now time.Time, lookbackDays int) (pipeline.Request, error) {
	req := pipeline.Request{
		Symbol:      q.Get("symbol"),
		CompanyName: strings.TrimSpace(q.Get("company")),
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return req, &model.InputError{Field: "symbol", Reason: "missing symbol query param"}
	}

	_, req.End = prewarm.Window(now, lookbackDays)
	if v := q.Get("end"); v != "" {
		end, err := time.Parse(model.DateLayout, strings.TrimSpace(v))
		if err != nil {
			return req, &model.InputError{Field: "end", Reason: "expected YYYY-MM-DD"}
		}
		req.End = end
	}
	req.Start = req.End.AddDate(0, 0, -lookbackDays)
	if v := q.Get("start"); v != "" {
		start, err := time.Parse(model.DateLayout, strings.TrimSpace(v))
		if err != nil {
			return req, &model.InputError{Field: "start", Reason: "expected YYYY-MM-DD"}
		}
		req.Start = start
	}
	return req, nil
}

// statusClientClosedRequest marks a request the caller abandoned. It is
// not an upstream failure.
const statusClientClosedRequest = 499

func statusFor(err error) int {
	var failure *model.Failure
	switch {
	case model.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &failure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	gzPool := sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, Writer: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// withRequestLog logs method, path, status and duration per request.
func withRequestLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// recoverPanic protects handlers from panics.
func recoverPanic(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("handler panic", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
