package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The compliance service speaks google.protobuf.Struct on the wire so it needs no
// generated code. Field names are documented on each method of ComplianceService.
const (
	ServiceName = "qabot.v1.ComplianceService"

	MethodCheck       = "/" + ServiceName + "/Check"
	MethodListClients = "/" + ServiceName + "/ListClients"
	MethodListMarkets = "/" + ServiceName + "/ListMarkets"
	MethodListRuns    = "/" + ServiceName + "/ListRuns"
)

// ComplianceServer is the server API for qabot.v1.ComplianceService.
type ComplianceServer interface {
	Check(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListClients(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMarkets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structCall func(ComplianceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(fullMethod string, call structCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ComplianceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ComplianceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ComplianceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ComplianceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Check", Handler: unary(MethodCheck, ComplianceServer.Check)},
		{MethodName: "ListClients", Handler: unary(MethodListClients, ComplianceServer.ListClients)},
		{MethodName: "ListMarkets", Handler: unary(MethodListMarkets, ComplianceServer.ListMarkets)},
		{MethodName: "ListRuns", Handler: unary(MethodListRuns, ComplianceServer.ListRuns)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "qabot/v1/compliance.proto",
}

// RegisterComplianceServer registers srv on s.
func RegisterComplianceServer(s grpc.ServiceRegistrar, srv ComplianceServer) {
	s.RegisterService(&ComplianceServiceDesc, srv)
}

// Client is the client API for qabot.v1.ComplianceService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Check(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCheck, in, opts...)
}

func (c *Client) ListClients(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListClients, in, opts...)
}

func (c *Client) ListMarkets(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListMarkets, in, opts...)
}

func (c *Client) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListRuns, in, opts...)
}
