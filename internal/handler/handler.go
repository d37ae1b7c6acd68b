// internal/handler/handler.go
package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/middleware"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/predictor"
	pb "github.com/SyedDaiam9101/fugazzeta-service/proto/classifierpb"
)

// Classifier is the prediction surface the handler serves.
// *predictor.Predictor implements it.
type Classifier interface {
	PredictBytes(ctx context.Context, data []byte) (predictor.Distribution, error)
	Labels() []string
}

var _ Classifier = (*predictor.Predictor)(nil)

// Handler implements the ClassifierServer interface.
type Handler struct {
	pb.UnimplementedClassifierServer
	classifier Classifier
	log        *zap.Logger
}

// New creates a new Handler around the given classifier.
func New(c Classifier, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		classifier: c,
		log:        log,
	}
}

// Predict classifies an encoded image and returns label -> probability.
// An empty payload yields an empty struct.
func (h *Handler) Predict(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	start := time.Now()

	requestID := middleware.GetRequestID(ctx)
	if requestID == "" {
		requestID = "unknown"
	}

	if h.classifier == nil {
		return nil, failedPreconditionError("classifier not initialized")
	}
	if req == nil || len(req.GetValue()) == 0 {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
	}

	dist, err := h.classifier.PredictBytes(ctx, req.GetValue())
	if err != nil {
		h.log.Warn("prediction failed",
			zap.String("request_id", requestID),
			zap.Int("bytes", len(req.GetValue())),
			zap.Error(err))
		return nil, grpcError(err)
	}

	fields := make(map[string]*structpb.Value, len(dist))
	for _, p := range dist {
		fields[p.Label] = structpb.NewNumberValue(p.Probability)
	}

	best, _ := dist.Best()
	h.log.Info("Predict",
		zap.String("request_id", requestID),
		zap.String("label", best.Label),
		zap.Float64("confidence", best.Probability),
		zap.Float64("total_ms", float64(time.Since(start).Microseconds())/1000.0))

	return &structpb.Struct{Fields: fields}, nil
}

// Labels returns the model's labels in output order.
func (h *Handler) Labels(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	if h.classifier == nil {
		return nil, failedPreconditionError("classifier not initialized")
	}

	labels := h.classifier.Labels()
	values := make([]*structpb.Value, len(labels))
	for i, l := range labels {
		values[i] = structpb.NewStringValue(l)
	}
	return &structpb.ListValue{Values: values}, nil
}
