// Package classifierpb defines the fugazzeta.v1.Classifier gRPC service.
//
// The service is expressed over protobuf well-known types, so it needs no
// generated message code:
//
//	service Classifier {
//	  rpc Predict(google.protobuf.BytesValue) returns (google.protobuf.Struct);
//	  rpc Labels(google.protobuf.Empty) returns (google.protobuf.ListValue);
//	}
package classifierpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "fugazzeta.v1.Classifier"

	Classifier_Predict_FullMethodName = "/fugazzeta.v1.Classifier/Predict"
	Classifier_Labels_FullMethodName  = "/fugazzeta.v1.Classifier/Labels"
)

// ClassifierClient is the client API for the Classifier service.
type ClassifierClient interface {
	// Predict returns label -> probability for an encoded image.
	Predict(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	// Labels returns the model's labels in output order.
	Labels(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type classifierClient struct {
	cc grpc.ClientConnInterface
}

func NewClassifierClient(cc grpc.ClientConnInterface) ClassifierClient {
	return &classifierClient{cc}
}

func (c *classifierClient) Predict(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Classifier_Predict_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *classifierClient) Labels(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, Classifier_Labels_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ClassifierServer is the server API for the Classifier service.
// All implementations must embed UnimplementedClassifierServer
// for forward compatibility.
type ClassifierServer interface {
	Predict(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	Labels(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	mustEmbedUnimplementedClassifierServer()
}

// UnimplementedClassifierServer must be embedded to have forward compatible implementations.
type UnimplementedClassifierServer struct{}

func (UnimplementedClassifierServer) Predict(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Predict not implemented")
}

func (UnimplementedClassifierServer) Labels(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Labels not implemented")
}

func (UnimplementedClassifierServer) mustEmbedUnimplementedClassifierServer() {}

func RegisterClassifierServer(s grpc.ServiceRegistrar, srv ClassifierServer) {
	s.RegisterService(&Classifier_ServiceDesc, srv)
}

func _Classifier_Predict_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassifierServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Classifier_Predict_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClassifierServer).Predict(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Classifier_Labels_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassifierServer).Labels(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Classifier_Labels_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClassifierServer).Labels(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Classifier_ServiceDesc is the grpc.ServiceDesc for the Classifier service.
var Classifier_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ClassifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Predict",
			Handler:    _Classifier_Predict_Handler,
		},
		{
			MethodName: "Labels",
			Handler:    _Classifier_Labels_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fugazzeta/v1/classifier.proto",
}
