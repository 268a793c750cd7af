// Package autozpages serves zPages of spans recorded by the pipeline tracer.
package autozpages

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/zpages"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SpanProcessorRegistry is a tracer provider accepting span processors,
// like [sdktrace.TracerProvider].
type SpanProcessorRegistry interface {
	RegisterSpanProcessor(sp sdktrace.SpanProcessor)
	UnregisterSpanProcessor(sp sdktrace.SpanProcessor)
}

// Server serves /tracez page.
type Server struct {
	provider SpanProcessorRegistry
	proc     *zpages.SpanProcessor
	ln       net.Listener
	srv      *http.Server
	lg       *zap.Logger
}

// Listen registers zPages span processor on provider and listens on addr.
//
// Returns nil server if provider does not accept span processors.
func Listen(provider trace.TracerProvider, addr string, lg *zap.Logger) (_ *Server, rerr error) {
	reg, ok := provider.(SpanProcessorRegistry)
	if !ok {
		lg.Warn("Tracer provider does not support zPages")
		return nil, nil
	}

	proc := zpages.NewSpanProcessor()
	reg.RegisterSpanProcessor(proc)
	defer func() {
		if rerr != nil {
			reg.UnregisterSpanProcessor(proc)
		}
	}()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %q", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/tracez", zpages.NewTracezHandler(proc))
	return &Server{
		provider: reg,
		proc:     proc,
		ln:       ln,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		lg: lg,
	}, nil
}

// Addr returns listen address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve serves zPages until Shutdown.
func (s *Server) Serve() error {
	s.lg.Info("Serving zPages", zap.Stringer("addr", s.ln.Addr()))
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops server and unregisters span processor.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.provider.UnregisterSpanProcessor(s.proc)
	return err
}
