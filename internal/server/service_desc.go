package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "matcert.v1.CompositionService"

// Every method takes and returns a google.protobuf.Struct, so no generated
// stubs are needed on either side.
const (
	MethodParseText     = "/" + ServiceName + "/ParseText"
	MethodSubmitFile    = "/" + ServiceName + "/SubmitFile"
	MethodGetRun        = "/" + ServiceName + "/GetRun"
	MethodListRuns      = "/" + ServiceName + "/ListRuns"
	MethodListRecords   = "/" + ServiceName + "/ListRecords"
	MethodExportRecords = "/" + ServiceName + "/ExportRecords"
)

// CompositionServer is the server API for matcert.v1.CompositionService.
type CompositionServer interface {
	ParseText(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(CompositionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CompositionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CompositionServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CompositionServiceDesc describes matcert.v1.CompositionService for grpc.Server.
var CompositionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CompositionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ParseText", Handler: unaryHandler(MethodParseText, CompositionServer.ParseText)},
		{MethodName: "SubmitFile", Handler: unaryHandler(MethodSubmitFile, CompositionServer.SubmitFile)},
		{MethodName: "GetRun", Handler: unaryHandler(MethodGetRun, CompositionServer.GetRun)},
		{MethodName: "ListRuns", Handler: unaryHandler(MethodListRuns, CompositionServer.ListRuns)},
		{MethodName: "ListRecords", Handler: unaryHandler(MethodListRecords, CompositionServer.ListRecords)},
		{MethodName: "ExportRecords", Handler: unaryHandler(MethodExportRecords, CompositionServer.ExportRecords)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matcert/v1/composition.proto",
}

func RegisterCompositionServer(s grpc.ServiceRegistrar, srv CompositionServer) {
	s.RegisterService(&CompositionServiceDesc, srv)
}

// CompositionClient calls matcert.v1.CompositionService over an existing connection.
type CompositionClient struct {
	cc grpc.ClientConnInterface
}

func NewCompositionClient(cc grpc.ClientConnInterface) *CompositionClient {
	return &CompositionClient{cc: cc}
}

// Call invokes one of the Method* endpoints.
func (c *CompositionClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
