// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpserver provides an HTTP server which plugs into an
// application lifecycle as a managed server.
package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/armaturelabs/armature/health"
	"github.com/armaturelabs/armature/internal/noop"
	"github.com/armaturelabs/armature/internal/slogfield"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type options struct {
	addr       string
	mux        *http.ServeMux
	logHandler slog.Handler
	tlsConfig  *tls.Config
	readiness  []health.Metric
	liveness   []health.Metric
}

// Option configures a [Server].
type Option func(*options)

// Addr configures the address the server listens on.
//
// The default address is ":8080".
func Addr(addr string) Option {
	return func(ro *options) {
		ro.addr = addr
	}
}

// LogHandler configures the slog.Handler the server logs with.
func LogHandler(h slog.Handler) Option {
	return func(ro *options) {
		ro.logHandler = h
	}
}

// Handle registers a http.Handler for the given path pattern.
func Handle(pattern string, h http.Handler) Option {
	return func(ro *options) {
		registerEndpoint(ro.mux, pattern, h)
	}
}

// HandleFunc registers a http.HandlerFunc for the given path pattern.
func HandleFunc(pattern string, f func(http.ResponseWriter, *http.Request)) Option {
	return func(ro *options) {
		registerEndpoint(ro.mux, pattern, http.HandlerFunc(f))
	}
}

// TLSConfig configures the server to serve TLS traffic.
func TLSConfig(cfg *tls.Config) Option {
	return func(ro *options) {
		ro.tlsConfig = cfg
	}
}

// Readiness adds m to the metrics reported by the "/health/readiness"
// endpoint. The server always reports unready while it is not
// accepting requests, regardless of any added metrics.
func Readiness(m health.Metric) Option {
	return func(ro *options) {
		ro.readiness = append(ro.readiness, m)
	}
}

// Liveness adds m to the metrics reported by the "/health/liveness"
// endpoint.
//
// If no liveness metrics are added the endpoint always reports healthy.
func Liveness(m health.Metric) Option {
	return func(ro *options) {
		ro.liveness = append(ro.liveness, m)
	}
}

// Server serves HTTP traffic for as long as the application it is
// registered with is running. It starts accepting requests when its
// start hook runs and drains in-flight requests when its stop hook
// runs, so start and stop ordering relative to other lifecycle
// participants is controlled entirely by the application.
type Server struct {
	addr      string
	listen    func(network, addr string) (net.Listener, error)
	log       *slog.Logger
	tlsConfig *tls.Config
	h         http.Handler

	mu        sync.Mutex
	srv       *http.Server
	serveErr  chan error
	boundAddr net.Addr

	listening atomic.Bool
}

// New returns a [Server] configured with the given options.
func New(opts ...Option) *Server {
	ros := &options{
		addr:       ":8080",
		mux:        http.NewServeMux(),
		logHandler: noop.LogHandler{},
	}
	for _, opt := range opts {
		opt(ros)
	}

	s := &Server{
		addr:      ros.addr,
		listen:    net.Listen,
		log:       slog.New(ros.logHandler),
		tlsConfig: ros.tlsConfig,
	}

	readiness := append([]health.Metric{health.Listening(s)}, ros.readiness...)
	registerEndpoint(ros.mux, "/health/readiness", health.NewHandler(health.And(readiness...)))

	liveness := ros.liveness
	if len(liveness) == 0 {
		liveness = []health.Metric{health.MetricFunc(func(_ context.Context) bool {
			return true
		})}
	}
	registerEndpoint(ros.mux, "/health/liveness", health.NewHandler(health.And(liveness...)))

	s.h = otelhttp.NewHandler(
		ros.mux,
		"server",
		otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
	)

	return s
}

// Start binds the configured address and begins serving requests on
// a separate goroutine.
func (s *Server) Start(ctx context.Context) error {
	ls, err := s.listen("tcp", s.addr)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to listen for connections", slogfield.Error(err))
		return err
	}
	if s.tlsConfig != nil {
		ls = tls.NewListener(ls, s.tlsConfig)
	}

	srv := &http.Server{
		Handler: s.h,
	}
	ch := make(chan error, 1)

	s.mu.Lock()
	s.srv = srv
	s.serveErr = ch
	s.boundAddr = ls.Addr()
	s.mu.Unlock()

	s.listening.Store(true)
	s.log.InfoContext(ctx, "listening for connections", slogfield.String("addr", ls.Addr().String()))

	go func() {
		err := srv.Serve(ls)
		s.listening.Store(false)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("stopped serving unexpectedly", slogfield.Error(err))
		}
		ch <- err
	}()

	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight
// requests to complete until ctx is cancelled.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	ch := s.serveErr
	s.srv = nil
	s.serveErr = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.log.InfoContext(ctx, "shutting down server")
	err := srv.Shutdown(ctx)

	serveErr := <-ch
	s.listening.Store(false)
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		err = errors.Join(err, serveErr)
	}
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "shut down server")
	return nil
}

// Listening reports whether the server is currently accepting requests.
func (s *Server) Listening() bool {
	return s.listening.Load()
}

// Addr returns the address the server is bound to. Until the server
// has started for the first time it returns the empty string.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boundAddr == nil {
		return ""
	}
	return s.boundAddr.String()
}

func registerEndpoint(mux *http.ServeMux, path string, h http.Handler) {
	mux.Handle(
		path,
		otelhttp.WithRouteTag(path, h),
	)
}
