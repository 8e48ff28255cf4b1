// Package rpc exposes the engine hooks over gRPC so a platform process can
// drive a separately running controller.
package rpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/features"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/logging"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "nextapp.v1.Engine"

// #region backend
// Backend receives the hook calls. *host.Host satisfies it.
type Backend interface {
	AllowedToRun(app string, ctx features.Context) policy.Decision
	ForegroundChanged(prev, now string)
	TTLExpiredNoNextApp(app string)
	PrefetchTTLExpiredNotUsed(app, prefetched string)
}

// Checkpointer writes models on demand. *engine.Engine satisfies it.
type Checkpointer interface {
	Checkpoint() (logging.CheckpointRecord, error)
}

// #endregion backend

// #region service-desc
// EngineServer is the handler interface for ServiceName.
type EngineServer interface {
	AllowedToRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ForegroundChanged(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TTLExpiredNoNextApp(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PrefetchTTLExpiredNotUsed(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Checkpoint(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type handlerFunc func(EngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call handlerFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(EngineServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(EngineServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the engine service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EngineServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("AllowedToRun", EngineServer.AllowedToRun),
		unary("ForegroundChanged", EngineServer.ForegroundChanged),
		unary("TTLExpiredNoNextApp", EngineServer.TTLExpiredNoNextApp),
		unary("PrefetchTTLExpiredNotUsed", EngineServer.PrefetchTTLExpiredNotUsed),
		unary("Checkpoint", EngineServer.Checkpoint),
	},
	Metadata: "nextapp/v1/engine.proto",
}

// #endregion service-desc

// #region server
// Server adapts a Backend to EngineServer.
type Server struct {
	backend Backend
	cp      Checkpointer
	log     logrus.FieldLogger
	health  *health.Server
}

// NewServer creates a server. cp may be nil, in which case Checkpoint
// returns Unimplemented.
func NewServer(backend Backend, cp Checkpointer, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{backend: backend, cp: cp, log: log.WithField("component", "rpc"), health: health.NewServer()}
}

// NewGRPCServer builds a grpc.Server with the engine and health services
// registered and request logging installed.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.logInterceptor))
	g := grpc.NewServer(opts...)
	g.RegisterService(&ServiceDesc, s)
	healthpb.RegisterHealthServer(g, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return g
}

// Shutdown marks the service not serving so health checks fail before the
// listener closes.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

func (s *Server) logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	entry := s.log.WithFields(logrus.Fields{"method": info.FullMethod, "took": time.Since(start)})
	if err != nil {
		entry.WithError(err).Warn("rpc failed")
	} else {
		entry.Debug("rpc")
	}
	return resp, err
}

// #endregion server

// #region handlers
func (s *Server) AllowedToRun(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	app, fctx, err := decodeAllowed(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	out, err := encodeDecision(s.backend.AllowedToRun(app, fctx))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) ForegroundChanged(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	prev, now, err := pair(in, "prev", "now")
	if err != nil {
		return nil, err
	}
	s.backend.ForegroundChanged(prev, now)
	return &structpb.Struct{}, nil
}

func (s *Server) TTLExpiredNoNextApp(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	app, err := getString(in, "app")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.backend.TTLExpiredNoNextApp(app)
	return &structpb.Struct{}, nil
}

func (s *Server) PrefetchTTLExpiredNotUsed(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	app, prefetched, err := pair(in, "app", "prefetched")
	if err != nil {
		return nil, err
	}
	s.backend.PrefetchTTLExpiredNotUsed(app, prefetched)
	return &structpb.Struct{}, nil
}

func (s *Server) Checkpoint(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.cp == nil {
		return nil, status.Error(codes.Unimplemented, "checkpointing disabled")
	}
	rec, err := s.cp.Checkpoint()
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"checkpoint_id": structpb.NewStringValue(rec.CheckpointID),
		"outcome":       structpb.NewStringValue(rec.Outcome),
		"reason":        structpb.NewStringValue(rec.Reason),
	}}
	if err != nil {
		// a rejected snapshot is a normal answer, not a transport failure
		out.Fields["error"] = structpb.NewStringValue(err.Error())
	}
	return out, nil
}

func pair(in *structpb.Struct, aKey, bKey string) (string, string, error) {
	a, err := getString(in, aKey)
	if err != nil {
		return "", "", status.Error(codes.InvalidArgument, err.Error())
	}
	b, err := getString(in, bKey)
	if err != nil {
		return "", "", status.Error(codes.InvalidArgument, err.Error())
	}
	return a, b, nil
}

// #endregion handlers
