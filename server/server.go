// Package server exposes a runtime over the garnet.v1 inspection service.
//
// Handlers speak the Connect protocol and gRPC on the same port, with CBOR
// as the message codec. gRPC runs over cleartext HTTP/2 (h2c).
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	garnetv1 "github.com/chazu/garnet/api/garnetv1"
	"github.com/chazu/garnet/vm"
)

// Server wraps a runtime with the inspection service.
type Server struct {
	rt      *vm.Runtime
	handles *HandleStore
	mux     *http.ServeMux
	log     commonlog.Logger

	mu   sync.Mutex
	http *http.Server

	stopSweeper func()
}

// Option configures a Server.
type Option func(*options)

type options struct {
	sweepInterval time.Duration
	handleTTL     time.Duration
	log           commonlog.Logger
}

// WithHandleTTL sets how long an unused handle lives and how often
// expired handles are swept.
func WithHandleTTL(interval, ttl time.Duration) Option {
	return func(o *options) { o.sweepInterval, o.handleTTL = interval, ttl }
}

// WithLogger sets the server logger.
func WithLogger(log commonlog.Logger) Option {
	return func(o *options) { o.log = log }
}

// New creates a Server for rt.
func New(rt *vm.Runtime, opts ...Option) *Server {
	o := &options{
		sweepInterval: 5 * time.Minute,
		handleTTL:     30 * time.Minute,
		log:           commonlog.GetLogger("garnet.server"),
	}
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{
		rt:      rt,
		handles: NewHandleStore(),
		mux:     http.NewServeMux(),
		log:     o.log,
	}

	svc := NewInspectService(rt, s.handles)
	hopts := []connect.HandlerOption{
		connect.WithCodec(garnetv1.Codec{}),
		connect.WithInterceptors(s.logInterceptor()),
	}
	s.mux.Handle(garnetv1.AncestorsProcedure, connect.NewUnaryHandler(garnetv1.AncestorsProcedure, svc.Ancestors, hopts...))
	s.mux.Handle(garnetv1.InstanceMethodsProcedure, connect.NewUnaryHandler(garnetv1.InstanceMethodsProcedure, svc.InstanceMethods, hopts...))
	s.mux.Handle(garnetv1.ConstantsProcedure, connect.NewUnaryHandler(garnetv1.ConstantsProcedure, svc.Constants, hopts...))
	s.mux.Handle(garnetv1.SendProcedure, connect.NewUnaryHandler(garnetv1.SendProcedure, svc.Send, hopts...))
	s.mux.Handle(garnetv1.InspectProcedure, connect.NewUnaryHandler(garnetv1.InspectProcedure, svc.Inspect, hopts...))
	s.mux.Handle(garnetv1.ReleaseProcedure, connect.NewUnaryHandler(garnetv1.ReleaseProcedure, svc.Release, hopts...))
	s.mux.Handle(garnetv1.CacheStatsProcedure, connect.NewUnaryHandler(garnetv1.CacheStatsProcedure, svc.CacheStats, hopts...))

	s.stopSweeper = s.handles.StartSweeper(o.sweepInterval, o.handleTTL)
	return s
}

// logInterceptor logs each call and its failure, if any.
func (s *Server) logInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)
			if err != nil {
				s.log.Warningf("%s (%s): %v", req.Spec().Procedure, req.Peer().Protocol, err)
			} else {
				s.log.Debugf("%s (%s) in %s", req.Spec().Procedure, req.Peer().Protocol, time.Since(start))
			}
			return res, err
		}
	}
}

// Handles returns the server's handle store.
func (s *Server) Handles() *HandleStore { return s.handles }

// Handler returns the HTTP handler, accepting HTTP/1.1 and h2c.
func (s *Server) Handler() http.Handler {
	return h2c.NewHandler(s.mux, &http2.Server{})
}

// ListenAndServe starts serving on addr, "host:port" or ":port".
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = hs
	s.mu.Unlock()
	s.log.Noticef("inspection server listening on %s", l.Addr())
	s.log.Infof("  Connect: http://%s%s", l.Addr(), garnetv1.AncestorsProcedure)
	s.log.Infof("  gRPC:    grpc://%s", l.Addr())
	err := hs.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and the handle sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.mu.Lock()
	hs := s.http
	s.mu.Unlock()
	if hs == nil {
		return nil
	}
	s.log.Info("inspection server shutting down")
	return hs.Shutdown(ctx)
}
