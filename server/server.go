// Package server exposes the dispatcher over HTTP.
//
// Routes:
//
//	POST /api/v1/agent   AgentRequest -> AgentResponse
//	GET  /api/v1/agents  registered agent names and their origins
//	GET  /healthz        liveness
//
// By default every well-formed agent request is answered with 200 and a
// response whose text carries any failure. With StrictStatus, not-found maps
// to 404 and construction or execution failures map to 502; the body is
// still an AgentResponse.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/logging"
	"github.com/hupe1980/useragents/registry"
)

// Dispatcher is the request pipeline served by the agent route.
type Dispatcher interface {
	Dispatch(ctx context.Context, req core.AgentRequest) (core.AgentResponse, error)
	Handle(ctx context.Context, req core.AgentRequest) core.AgentResponse
}

// Catalog lists registered agents. *registry.Registry implements it.
type Catalog interface {
	Entries() []registry.Entry
}

// Options configures a Server.
type Options struct {
	Address string
	Port    int
	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string
	// StrictStatus maps dispatch failures to HTTP status codes.
	StrictStatus bool
	// MaxBodyBytes limits the size of request bodies.
	MaxBodyBytes      int64
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	Logger            logging.Logger
}

// Server is the HTTP boundary of the service.
type Server struct {
	opts       Options
	dispatcher Dispatcher
	catalog    Catalog
	router     *mux.Router
	logger     logging.Logger
}

// New creates a Server. catalog may be nil, in which case the agent listing
// is empty.
func New(dispatcher Dispatcher, catalog Catalog, optFns ...func(o *Options)) *Server {
	opts := Options{
		Address:           "0.0.0.0",
		Port:              443,
		MaxBodyBytes:      1 << 20,
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		opts:       opts,
		dispatcher: dispatcher,
		catalog:    catalog,
		router:     mux.NewRouter(),
		logger:     opts.Logger,
	}

	s.router.Use(s.requestID, s.accessLog, s.recoverPanic)
	s.router.HandleFunc("/api/v1/agent", s.handleAgent).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/agents", s.handleAgents).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Address, strconv.Itoa(s.opts.Port))
}

// TLSEnabled reports whether the server serves HTTPS.
func (s *Server) TLSEnabled() bool {
	return s.opts.TLSCertFile != "" && s.opts.TLSKeyFile != ""
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully,
// letting in-flight requests finish within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.listening", "addr", ln.Addr().String(), "tls", s.TLSEnabled())

		var err error
		if s.TLSEnabled() {
			err = httpServer.ServeTLS(ln, s.opts.TLSCertFile, s.opts.TLSKeyFile)
		} else {
			err = httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("server.shutdown", "reason", ctx.Err().Error())
	case err, ok := <-errCh:
		if ok {
			s.logger.Error("server.failed", "error", err.Error())
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
