// internal/handler/errors.go
package handler

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/predictor"
)

// grpcError maps known internal errors to appropriate gRPC status errors
func grpcError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, predictor.ErrInvalidImage):
		return status.Errorf(codes.InvalidArgument, "%v", err)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request deadline exceeded")
	case errors.Is(err, predictor.ErrOutputSize), errors.Is(err, predictor.ErrBadOutput):
		return status.Errorf(codes.Internal, "model output invalid: %v", err)
	}

	errMsg := err.Error()

	// Engine errors carry no sentinel; match on message.
	switch {
	case strings.Contains(errMsg, "wrong size"):
		return status.Errorf(codes.Internal, "input shape mismatch: %v", err)

	case strings.Contains(errMsg, "session is nil"):
		return status.Errorf(codes.FailedPrecondition, "inference engine not initialized")

	case strings.Contains(errMsg, "failed to create input tensor"),
		strings.Contains(errMsg, "failed to create output tensor"):
		return status.Errorf(codes.Internal, "tensor creation failed: %v", err)

	case strings.Contains(errMsg, "inference failed"):
		return status.Errorf(codes.Internal, "inference execution failed: %v", err)

	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}

// failedPreconditionError creates a FailedPrecondition gRPC error
func failedPreconditionError(format string, args ...interface{}) error {
	return status.Errorf(codes.FailedPrecondition, format, args...)
}
