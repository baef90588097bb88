package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "labcheck.v1.JobService"

const (
	methodSubmit    = "Submit"
	methodPoll      = "Poll"
	methodReprocess = "Reprocess"
	methodExport    = "Export"
)

func fullMethod(m string) string { return "/" + ServiceName + "/" + m }

// JobServiceServer is the server API. Messages are well-known protobuf types,
// so no generated code is required on either side.
type JobServiceServer interface {
	Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Poll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Reprocess(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Export(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error)
}

// JobServiceDesc describes labcheck.v1.JobService for grpc.Server.RegisterService.
var JobServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JobServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodSubmit, Handler: structHandler(methodSubmit, func(s JobServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.Submit(ctx, in)
		})},
		{MethodName: methodPoll, Handler: structHandler(methodPoll, func(s JobServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.Poll(ctx, in)
		})},
		{MethodName: methodReprocess, Handler: structHandler(methodReprocess, func(s JobServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.Reprocess(ctx, in)
		})},
		{MethodName: methodExport, Handler: structHandler(methodExport, func(s JobServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.Export(ctx, in)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "labcheck/v1/jobs.proto",
}

// RegisterJobServiceServer registers srv on s.
func RegisterJobServiceServer(s grpc.ServiceRegistrar, srv JobServiceServer) {
	s.RegisterService(&JobServiceDesc, srv)
}

type structCall func(s JobServiceServer, ctx context.Context, in *structpb.Struct) (any, error)

func structHandler(method string, call structCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(JobServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(JobServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
