// Package server exposes the embedding pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz     liveness and version
//	POST /v1/layout   embed a line graph
//
// A layout request is a JSON object with the input graph, as a GeoJSON
// FeatureCollection under "graph" or as DOT source under "dot", and optional
// embedding options under "options". Options are decoded on top of the
// server's base options; options that name files or external services are
// fixed by the server and rejected when a request sets them.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/matzehuels/octi/pkg/buildinfo"
	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/linegraph"
	"github.com/matzehuels/octi/pkg/observability"
	"github.com/matzehuels/octi/pkg/pipeline"
)

// Defaults for Config.
const (
	DefaultMaxBody       = 32 << 20
	DefaultTimeout       = 5 * time.Minute
	DefaultMaxConcurrent = 4
)

// Config bounds the work a server accepts.
type Config struct {
	// MaxBody is the largest accepted request body in bytes.
	MaxBody int64
	// Timeout bounds a single layout request.
	Timeout time.Duration
	// MaxConcurrent is the number of layouts computed at once. Further
	// requests wait for a slot until their context ends.
	MaxConcurrent int64
}

func (c *Config) setDefaults() {
	if c.MaxBody <= 0 {
		c.MaxBody = DefaultMaxBody
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
}

// Server serves layout requests with a shared runner.
type Server struct {
	runner *pipeline.Runner
	base   pipeline.Options
	cfg    Config
	slots  *semaphore.Weighted
	logger *log.Logger
}

// New creates a server. base holds the options every request starts from.
func New(runner *pipeline.Runner, base pipeline.Options, cfg Config, logger *log.Logger) *Server {
	cfg.setDefaults()
	if logger == nil {
		logger = runner.Logger
	}
	return &Server{
		runner: runner,
		base:   base,
		cfg:    cfg,
		slots:  semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger,
	}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.hooks)

	r.Get("/healthz", s.health)
	r.Post("/v1/layout", s.layout)
	return r
}

// hooks reports every request to the registered HTTP hooks and the log.
func (s *Server) hooks(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		dur := time.Since(began)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, status, dur)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", status,
			"elapsed", dur.Round(time.Millisecond), "id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

// layoutRequest is the body of POST /v1/layout.
type layoutRequest struct {
	Graph   json.RawMessage `json:"graph,omitempty"`
	Dot     string          `json:"dot,omitempty"`
	Options json.RawMessage `json:"options,omitempty"`
}

// layoutResponse embeds the run summary next to the output graph.
type layoutResponse struct {
	*pipeline.Result
	Graph json.RawMessage `json:"graph"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) layout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode request"))
		return
	}

	opts, err := s.options(req)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	g, err := parseInput(ctx, req, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeAborted, err, "waiting for a free slot"))
		return
	}
	defer s.slots.Release(1)

	res, err := s.runner.Execute(ctx, g, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := linegraph.Write(&buf, res.Graph); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "encode output"))
		return
	}
	writeJSON(w, http.StatusOK, layoutResponse{Result: res, Graph: buf.Bytes()})
}

// options decodes the request options on top of the base options and
// rejects changes to server-controlled fields.
func (s *Server) options(req layoutRequest) (pipeline.Options, error) {
	opts := s.base
	if len(req.Options) > 0 {
		var err error
		if opts, err = pipeline.DecodeConfig(req.Options, ".json", s.base); err != nil {
			return opts, err
		}
	}
	fixed := []struct {
		name      string
		got, want string
	}{
		{"obstaclePath", opts.ObstaclePath, s.base.ObstaclePath},
		{"ilpPath", opts.ILPPath, s.base.ILPPath},
		{"ilpCacheDir", opts.ILPCacheDir, s.base.ILPCacheDir},
		{"cacheRedisAddr", opts.CacheRedisAddr, s.base.CacheRedisAddr},
		{"statsPath", opts.StatsPath, s.base.StatsPath},
		{"statsMongoURI", opts.StatsMongoURI, s.base.StatsMongoURI},
	}
	for _, f := range fixed {
		if f.got != f.want {
			return opts, errors.New(errors.ErrCodeInvalidConfig, "option %s cannot be set per request", f.name)
		}
	}
	opts.FromDot = req.Dot != ""
	opts.Solver = s.base.Solver
	opts.Logger = s.logger
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseInput(ctx context.Context, req layoutRequest, opts pipeline.Options) (*linegraph.Graph, error) {
	switch {
	case req.Dot != "" && len(req.Graph) > 0:
		return nil, errors.New(errors.ErrCodeInvalidGraph, "request has both graph and dot")
	case req.Dot != "":
		return pipeline.Parse(ctx, strings.NewReader(req.Dot), opts)
	case len(req.Graph) > 0:
		return pipeline.Parse(ctx, bytes.NewReader(req.Graph), opts)
	}
	return nil, errors.New(errors.ErrCodeInvalidGraph, "request has no graph")
}

// statusOf maps error codes to HTTP status codes.
func statusOf(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidGraph, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnroutable:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeAborted:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorResponse{Error: errors.UserMessage(err), Code: string(errors.GetCode(err))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully and returns nil.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}
