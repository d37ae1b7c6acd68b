// internal/handler/handler_test.go
package handler

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/inference"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/middleware"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/predictor"
	pb "github.com/SyedDaiam9101/fugazzeta-service/proto/classifierpb"
)

var labels = []string{"fugazzeta", "pizza"}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func newHandler(t *testing.T, mock *inference.MockInference) *Handler {
	t.Helper()
	p, err := predictor.New(mock, labels)
	if err != nil {
		t.Fatalf("predictor.New failed: %v", err)
	}
	return New(p, nil)
}

func TestPredictWithNilClassifier(t *testing.T) {
	h := New(nil, nil)

	_, err := h.Predict(context.Background(), wrapperspb.Bytes(testImage(t)))
	if err == nil {
		t.Fatal("Expected error when classifier is nil, got nil")
	}

	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("Expected gRPC status error, got: %v", err)
	}

	if st.Code() != codes.FailedPrecondition {
		t.Errorf("Expected FailedPrecondition, got: %v", st.Code())
	}
}

func TestPredictWithEmptyInput(t *testing.T) {
	mock := inference.NewMock()
	h := newHandler(t, mock)

	for _, req := range []*wrapperspb.BytesValue{nil, wrapperspb.Bytes(nil)} {
		resp, err := h.Predict(context.Background(), req)
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		if len(resp.GetFields()) != 0 {
			t.Errorf("Expected empty struct, got %v", resp.GetFields())
		}
	}

	if mock.CallCount() != 0 {
		t.Errorf("Expected mock.CallCount=0, got %d", mock.CallCount())
	}
}

func TestPredictWithMockInference(t *testing.T) {
	// Mock returns logits [-1, 1]
	mock := inference.NewMock()
	h := newHandler(t, mock)

	resp, err := h.Predict(context.Background(), wrapperspb.Bytes(testImage(t)))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	fields := resp.GetFields()
	if len(fields) != len(labels) {
		t.Fatalf("Expected %d labels, got %d", len(labels), len(fields))
	}

	pizza := fields["pizza"].GetNumberValue()
	fugazzeta := fields["fugazzeta"].GetNumberValue()
	expected := 1 / (1 + math.Exp(-2))
	if math.Abs(pizza-expected) > 1e-6 {
		t.Errorf("pizza = %f, expected %f", pizza, expected)
	}
	if math.Abs(pizza+fugazzeta-1) > 1e-6 {
		t.Errorf("Probabilities sum to %f, expected 1", pizza+fugazzeta)
	}

	if mock.CallCount() != 1 {
		t.Errorf("Expected mock.CallCount=1, got %d", mock.CallCount())
	}
}

func TestPredictWithInvalidImage(t *testing.T) {
	h := newHandler(t, inference.NewMock())

	_, err := h.Predict(context.Background(), wrapperspb.Bytes([]byte("not an image")))
	if err == nil {
		t.Fatal("Expected error for invalid image, got nil")
	}

	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("Expected gRPC status error, got: %v", err)
	}

	if st.Code() != codes.InvalidArgument {
		t.Errorf("Expected InvalidArgument, got: %v", st.Code())
	}
}

func TestPredictWithInferenceError(t *testing.T) {
	mock := inference.NewMock()
	mock.SetError("model execution failed")
	h := newHandler(t, mock)

	_, err := h.Predict(context.Background(), wrapperspb.Bytes(testImage(t)))
	if err == nil {
		t.Fatal("Expected error from inference, got nil")
	}

	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("Expected gRPC status error, got: %v", err)
	}

	// Should be mapped to Internal error
	if st.Code() != codes.Internal {
		t.Errorf("Expected Internal error code, got: %v", st.Code())
	}
}

func TestPredictWithRequestID(t *testing.T) {
	h := newHandler(t, inference.NewMock())

	testRequestID := "test-request-id-123"
	md := metadata.Pairs(middleware.RequestIDHeader, testRequestID)
	ctx := metadata.NewIncomingContext(context.Background(), md)

	interceptor := middleware.UnaryRequestIDInterceptor()
	var capturedCtx context.Context

	wrappedHandler := func(ctx context.Context, req interface{}) (interface{}, error) {
		capturedCtx = ctx
		return h.Predict(ctx, req.(*wrapperspb.BytesValue))
	}

	_, err := interceptor(ctx, wrapperspb.Bytes(testImage(t)), nil, wrappedHandler)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}

	if extractedID := middleware.GetRequestID(capturedCtx); extractedID != testRequestID {
		t.Errorf("Expected request ID %s, got %s", testRequestID, extractedID)
	}
}

func TestLabels(t *testing.T) {
	h := newHandler(t, inference.NewMock())

	resp, err := h.Labels(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("Labels failed: %v", err)
	}

	values := resp.GetValues()
	if len(values) != len(labels) {
		t.Fatalf("Expected %d labels, got %d", len(labels), len(values))
	}
	for i, v := range values {
		if v.GetStringValue() != labels[i] {
			t.Errorf("Label[%d] = %s, expected %s", i, v.GetStringValue(), labels[i])
		}
	}
}

func TestGRPCError(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{predictor.ErrInvalidImage, codes.InvalidArgument},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{predictor.ErrBadOutput, codes.Internal},
		{errors.New("inference session is nil"), codes.FailedPrecondition},
		{errors.New("observation has wrong size: got 1, expected 2"), codes.Internal},
		{errors.New("something else"), codes.Internal},
	}

	for _, tt := range tests {
		if got := status.Code(grpcError(tt.err)); got != tt.want {
			t.Errorf("grpcError(%v) = %v, expected %v", tt.err, got, tt.want)
		}
	}
	if grpcError(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestClassifierOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		middleware.UnaryRequestIDInterceptor(),
		middleware.UnaryMetricsInterceptor(),
	))
	pb.RegisterClassifierServer(srv, newHandler(t, inference.NewMock()))
	go srv.Serve(lis)
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer conn.Close()

	client := pb.NewClassifierClient(conn)

	var header metadata.MD
	resp, err := client.Predict(context.Background(), wrapperspb.Bytes(testImage(t)), grpc.Header(&header))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(resp.GetFields()) != len(labels) {
		t.Errorf("Expected %d labels, got %v", len(labels), resp.GetFields())
	}
	if len(header.Get(middleware.RequestIDHeader)) != 1 {
		t.Errorf("Expected request ID response header, got %v", header)
	}

	list, err := client.Labels(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("Labels failed: %v", err)
	}
	if len(list.GetValues()) != len(labels) {
		t.Errorf("Expected %d labels, got %d", len(labels), len(list.GetValues()))
	}
}
