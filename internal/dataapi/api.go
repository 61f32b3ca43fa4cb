// Package dataapi implements the gRPC data plane for rule evaluation.
// It handles the high-performance read path for client SDKs.
//
// The service has no generated stubs: requests and responses are
// google.protobuf.Struct messages, and the descriptor below is what protoc
// would generate for
//
//	service Evaluator {
//	  rpc Evaluate(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc Explain(google.protobuf.Struct) returns (google.protobuf.Struct);
//	}
package dataapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rafaeljc/switchboard/internal/decision"
	"github.com/rafaeljc/switchboard/internal/validation"
)

// Fully qualified names of the service and its methods.
const (
	ServiceName    = "switchboard.v1.Evaluator"
	EvaluateMethod = "/" + ServiceName + "/Evaluate"
	ExplainMethod  = "/" + ServiceName + "/Explain"
)

// EvaluatorServer is the server API of switchboard.v1.Evaluator.
type EvaluatorServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Explain(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EvaluatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "Explain", Handler: explainHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "switchboard/v1/evaluator.proto",
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EvaluatorServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EvaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EvaluatorServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func explainHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EvaluatorServer).Explain(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExplainMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EvaluatorServer).Explain(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// API implements EvaluatorServer on top of the decision service.
type API struct {
	decisions *decision.Service
}

var _ EvaluatorServer = (*API)(nil)

// NewAPI creates a new data plane gRPC API instance.
func NewAPI(decisions *decision.Service) *API {
	validation.AssertNotNil(decisions, "decision service")
	return &API{decisions: decisions}
}

// Register connects this implementation to the grpc.Server engine.
func (a *API) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&serviceDesc, a)
}
