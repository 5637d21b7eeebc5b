package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	TransferServiceName = "sheetsync.v1.Transfer"

	TransferRunMethod      = "/sheetsync.v1.Transfer/Run"
	TransferListRunsMethod = "/sheetsync.v1.Transfer/ListRuns"
)

// TransferServer is the server API for the Transfer service. Requests and
// responses are free-form structs; see TransferService for the field names.
type TransferServer interface {
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterTransferServer(s grpc.ServiceRegistrar, srv TransferServer) {
	s.RegisterService(&TransferServiceDesc, srv)
}

func transferRunHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransferServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: TransferRunMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransferServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func transferListRunsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransferServer).ListRuns(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: TransferListRunsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransferServer).ListRuns(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// TransferServiceDesc is the grpc.ServiceDesc for the Transfer service.
var TransferServiceDesc = grpc.ServiceDesc{
	ServiceName: TransferServiceName,
	HandlerType: (*TransferServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: transferRunHandler},
		{MethodName: "ListRuns", Handler: transferListRunsHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// TransferClient is the client API for the Transfer service.
type TransferClient struct {
	cc grpc.ClientConnInterface
}

func NewTransferClient(cc grpc.ClientConnInterface) *TransferClient {
	return &TransferClient{cc: cc}
}

func (c *TransferClient) Run(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, TransferRunMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TransferClient) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, TransferListRunsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
