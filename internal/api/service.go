package api

import (
	"context"

	"google.golang.org/grpc"

	"github.com/miradorstack/mirador-rcm/internal/models"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mirador.rcm.v1.ReliabilityEngine"

// ReliabilityEngineServer is the server API for the ReliabilityEngine service.
type ReliabilityEngineServer interface {
	ScoreCriticality(context.Context, *ScoreCriticalityRequest) (*models.Criticality, error)
	DecideStrategy(context.Context, *DecideStrategyRequest) (*models.Decision, error)
	EvaluateReliability(context.Context, *EvaluateReliabilityRequest) (*EvaluateReliabilityResponse, error)
	FitWeibull(context.Context, *FitWeibullRequest) (*FitWeibullResponse, error)
	ComposeSystem(context.Context, *ComposeSystemRequest) (*models.SystemRamResult, error)
	UpsertCriticality(context.Context, *UpsertCriticalityRequest) (*UpsertCriticalityResponse, error)
	ComposeHierarchy(context.Context, *ComposeHierarchyRequest) (*ComposeHierarchyResponse, error)
	HealthCheck(context.Context, *HealthRequest) (*HealthResponse, error)
}

// ServiceDesc describes the ReliabilityEngine service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReliabilityEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ScoreCriticality", ReliabilityEngineServer.ScoreCriticality),
		unary("DecideStrategy", ReliabilityEngineServer.DecideStrategy),
		unary("EvaluateReliability", ReliabilityEngineServer.EvaluateReliability),
		unary("FitWeibull", ReliabilityEngineServer.FitWeibull),
		unary("ComposeSystem", ReliabilityEngineServer.ComposeSystem),
		unary("UpsertCriticality", ReliabilityEngineServer.UpsertCriticality),
		unary("ComposeHierarchy", ReliabilityEngineServer.ComposeHierarchy),
		unary("HealthCheck", ReliabilityEngineServer.HealthCheck),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterReliabilityEngineServer attaches srv to the registrar.
func RegisterReliabilityEngineServer(s grpc.ServiceRegistrar, srv ReliabilityEngineServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds the method descriptor for one request/response call, running the server's
// interceptor chain the same way generated stubs do.
func unary[Req, Resp any](method string, call func(ReliabilityEngineServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(ReliabilityEngineServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
