// Package server exposes the runtime over HTTP as a Connect RPC service.
//
// Each runtime operation is a unary procedure under /cortex.v1.CortexService/
// carrying JSON bodies, so any Connect client, or plain curl, can call it:
//
//	curl -H 'Content-Type: application/json' \
//	     -d '{"query":"jazz","k":3}' \
//	     http://localhost:8080/cortex.v1.CortexService/Recall
//
// The same mux serves /healthz and, when a MetricsObserver is supplied,
// Prometheus metrics at /metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/cortex/core/protocol"
	"github.com/tailored-agentic-units/cortex/memory"
	"github.com/tailored-agentic-units/cortex/observability"
	"github.com/tailored-agentic-units/cortex/state"
)

// EventRPC is emitted once per handled procedure call.
const EventRPC observability.EventType = "server.rpc"

const (
	shutdownTimeout = 5 * time.Second
	tracerName      = "github.com/tailored-agentic-units/cortex/server"
)

// Runtime is the subset of *kernel.Kernel the service calls.
type Runtime interface {
	RememberWithMetadata(ctx context.Context, key, content string, metadata map[string]string) error
	RecallResults(ctx context.Context, query string, n int) ([]memory.SearchResult, error)
	Chat(ctx context.Context, msgs ...protocol.Message) (string, error)
	CheckpointNamed(ctx context.Context, name string) (state.Checkpoint, error)
	RestoreID(ctx context.Context, id string) error
	Checkpoints() []state.Checkpoint
	DeleteCheckpoint(ctx context.Context, id string) bool
}

// Option configures a Server.
type Option func(*Server)

// WithObserver sets the observer that receives one EventRPC per call.
func WithObserver(o observability.Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithMetrics mounts the observer's registry at /metrics.
func WithMetrics(m *observability.MetricsObserver) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTracerProvider sets the provider for per-call server spans. The
// global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tracer = tp.Tracer(tracerName) }
}

// Server serves a Runtime over Connect.
type Server struct {
	runtime  Runtime
	observer observability.Observer
	metrics  *observability.MetricsObserver
	tracer   trace.Tracer
}

// New creates a Server for rt.
func New(rt Runtime, opts ...Option) *Server {
	s := &Server{
		runtime:  rt,
		observer: observability.NoOpObserver{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler serving every procedure plus /healthz and
// /metrics.
func (s *Server) Handler() http.Handler {
	opts := []connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(s.observe()),
	}

	mux := http.NewServeMux()
	mux.Handle(RememberProcedure, connect.NewUnaryHandler(RememberProcedure, s.remember, opts...))
	mux.Handle(RecallProcedure, connect.NewUnaryHandler(RecallProcedure, s.recall, opts...))
	mux.Handle(ChatProcedure, connect.NewUnaryHandler(ChatProcedure, s.chat, opts...))
	mux.Handle(CheckpointProcedure, connect.NewUnaryHandler(CheckpointProcedure, s.checkpoint, opts...))
	mux.Handle(RestoreProcedure, connect.NewUnaryHandler(RestoreProcedure, s.restore, opts...))
	mux.Handle(ListCheckpointsProcedure, connect.NewUnaryHandler(ListCheckpointsProcedure, s.listCheckpoints, opts...))
	mux.Handle(DeleteCheckpointProcedure, connect.NewUnaryHandler(DeleteCheckpointProcedure, s.deleteCheckpoint, opts...))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// ListenAndServe serves Handler on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) remember(ctx context.Context, req *connect.Request[RememberRequest]) (*connect.Response[RememberResponse], error) {
	if req.Msg.Key == "" {
		return nil, invalid("key is required")
	}
	if err := s.runtime.RememberWithMetadata(ctx, req.Msg.Key, req.Msg.Content, req.Msg.Metadata); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RememberResponse{}), nil
}

func (s *Server) recall(ctx context.Context, req *connect.Request[RecallRequest]) (*connect.Response[RecallResponse], error) {
	if req.Msg.K < 0 {
		return nil, invalid("k must not be negative")
	}
	results, err := s.runtime.RecallResults(ctx, req.Msg.Query, req.Msg.K)
	if err != nil {
		return nil, toConnectError(err)
	}

	out := make([]RecallResult, len(results))
	for i, r := range results {
		out[i] = RecallResult{
			Key:      r.Entry.Key,
			Content:  r.Entry.Content,
			Score:    r.Score,
			Metadata: r.Entry.Metadata,
		}
	}
	return connect.NewResponse(&RecallResponse{Results: out}), nil
}

func (s *Server) chat(ctx context.Context, req *connect.Request[ChatRequest]) (*connect.Response[ChatResponse], error) {
	if len(req.Msg.Messages) == 0 {
		return nil, invalid("at least one message is required")
	}
	for i, m := range req.Msg.Messages {
		if !m.Role.Valid() {
			return nil, invalid("message %d: unknown role %q", i, m.Role)
		}
	}

	reply, err := s.runtime.Chat(ctx, req.Msg.Messages...)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ChatResponse{Reply: reply}), nil
}

func (s *Server) checkpoint(ctx context.Context, req *connect.Request[CheckpointRequest]) (*connect.Response[CheckpointResponse], error) {
	cp, err := s.runtime.CheckpointNamed(ctx, req.Msg.Name)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CheckpointResponse{Checkpoint: cp}), nil
}

func (s *Server) restore(ctx context.Context, req *connect.Request[RestoreRequest]) (*connect.Response[RestoreResponse], error) {
	if req.Msg.ID == "" {
		return nil, invalid("id is required")
	}
	if err := s.runtime.RestoreID(ctx, req.Msg.ID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RestoreResponse{}), nil
}

func (s *Server) listCheckpoints(_ context.Context, _ *connect.Request[ListCheckpointsRequest]) (*connect.Response[ListCheckpointsResponse], error) {
	return connect.NewResponse(&ListCheckpointsResponse{Checkpoints: s.runtime.Checkpoints()}), nil
}

func (s *Server) deleteCheckpoint(ctx context.Context, req *connect.Request[DeleteCheckpointRequest]) (*connect.Response[DeleteCheckpointResponse], error) {
	if req.Msg.ID == "" {
		return nil, invalid("id is required")
	}
	deleted := s.runtime.DeleteCheckpoint(ctx, req.Msg.ID)
	return connect.NewResponse(&DeleteCheckpointResponse{Deleted: deleted}), nil
}

// observe runs every call inside a server span and reports its outcome and
// latency to the observer. Runtime events emitted during the call share the
// span through ctx.
func (s *Server) observe() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure
			ctx, span := s.tracer.Start(ctx, procedure,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("rpc.system", "connect_rpc"),
					attribute.String("rpc.procedure", procedure),
				),
			)
			defer span.End()

			start := time.Now()
			resp, err := next(ctx, req)

			level := observability.LevelVerbose
			code := "ok"
			if err != nil {
				level = observability.LevelWarning
				code = connect.CodeOf(err).String()
				span.RecordError(err)
				span.SetStatus(codes.Error, code)
			}
			span.SetAttributes(attribute.String("rpc.connect_rpc.error_code", code))

			s.observer.OnEvent(ctx, observability.Event{
				Type:      EventRPC,
				Level:     level,
				Timestamp: time.Now(),
				Source:    "server",
				Data: map[string]any{
					"procedure":   procedure,
					"code":        code,
					"duration_ms": time.Since(start).Milliseconds(),
				},
			})
			return resp, err
		}
	}
}
