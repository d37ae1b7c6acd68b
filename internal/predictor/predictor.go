// Package predictor maps one image to a probability distribution over the
// classifier's label set.
package predictor

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/imageproc"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/inference"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/metrics"
)

const tracerName = "github.com/SyedDaiam9101/fugazzeta-service/internal/predictor"

var (
	ErrInvalidImage = errors.New("invalid image")
	ErrOutputSize   = errors.New("model output does not match label set")
	ErrBadOutput    = errors.New("model produced non-finite logits")
)

// Cache stores serialized distributions by key. GetPrediction returns "" on a miss.
type Cache interface {
	GetPrediction(ctx context.Context, key string) (string, error)
	SetPrediction(ctx context.Context, key, data string, ttl time.Duration) error
}

// Predictor is safe for concurrent use as long as its engine is.
type Predictor struct {
	engine   inference.InferenceEngine
	labels   []string
	pipeline imageproc.Pipeline
	modelID  string
	cache    Cache
	cacheTTL time.Duration
	log      *zap.Logger
	tracer   trace.Tracer
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithCache enables result caching for PredictBytes.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(p *Predictor) {
		p.cache = c
		p.cacheTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Predictor) { p.log = l }
}

// WithModelID scopes cache keys to one model, usually its artifact digest.
func WithModelID(id string) Option {
	return func(p *Predictor) { p.modelID = id }
}

// WithPipeline overrides the preprocessing pipeline.
func WithPipeline(pl imageproc.Pipeline) Option {
	return func(p *Predictor) { p.pipeline = pl }
}

// New creates a Predictor whose engine produces one logit per label, in order.
func New(engine inference.InferenceEngine, labels []string, opts ...Option) (*Predictor, error) {
	if engine == nil {
		return nil, errors.New("inference engine is nil")
	}
	if len(labels) == 0 {
		return nil, errors.New("label set is empty")
	}

	p := &Predictor{
		engine:   engine,
		labels:   slices.Clone(labels),
		pipeline: imageproc.Default(),
		log:      zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Labels returns the label set in output order.
func (p *Predictor) Labels() []string {
	return slices.Clone(p.labels)
}

// Predict classifies img. A nil img yields a nil distribution and no model call.
func (p *Predictor) Predict(ctx context.Context, img image.Image) (Distribution, error) {
	if img == nil {
		return nil, nil
	}

	_, span := p.tracer.Start(ctx, "predictor.Predict")
	defer span.End()

	dist, err := p.forward(img)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if best, ok := dist.Best(); ok {
		span.SetAttributes(attribute.String("prediction.label", best.Label))
		metrics.RecordPrediction(best.Label)
	}
	return dist, nil
}

// PredictBytes decodes an encoded image and classifies it. Empty data yields a
// nil distribution and no model call. Results are cached by content hash when
// a cache is configured.
func (p *Predictor) PredictBytes(ctx context.Context, data []byte) (Distribution, error) {
	if len(data) == 0 {
		return nil, nil
	}

	ctx, span := p.tracer.Start(ctx, "predictor.PredictBytes",
		trace.WithAttributes(attribute.Int("image.bytes", len(data))))
	defer span.End()

	key := p.cacheKey(data)
	if dist, ok := p.lookup(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return dist, nil
	}

	img, mtype, err := imageproc.Decode(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	span.SetAttributes(attribute.String("image.mime", mtype))

	dist, err := p.Predict(ctx, img)
	if err != nil {
		return nil, err
	}
	p.store(ctx, key, dist)
	return dist, nil
}

func (p *Predictor) forward(img image.Image) (Distribution, error) {
	c, h, w := p.pipeline.Shape()
	input := p.pipeline.Tensor(img)

	start := time.Now()
	logits, err := p.engine.Predict(input, int64(c), int64(h), int64(w))
	metrics.RecordInferenceLatency(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if len(logits) != len(p.labels) {
		return nil, fmt.Errorf("%w: %d logits for %d labels", ErrOutputSize, len(logits), len(p.labels))
	}
	for _, v := range logits {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, ErrBadOutput
		}
	}

	probs := softmax(logits)
	dist := make(Distribution, len(p.labels))
	for i, label := range p.labels {
		dist[i] = Prediction{Label: label, Probability: probs[i]}
	}
	return dist, nil
}

func (p *Predictor) cacheKey(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("prediction:%s:%s", p.modelID, hex.EncodeToString(sum[:]))
}

func (p *Predictor) lookup(ctx context.Context, key string) (Distribution, bool) {
	if p.cache == nil {
		return nil, false
	}

	raw, err := p.cache.GetPrediction(ctx, key)
	if err != nil {
		p.log.Warn("prediction cache read failed", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError()
		return nil, false
	}
	if raw == "" {
		metrics.RecordCacheLookup(false)
		return nil, false
	}

	var dist Distribution
	if err := json.Unmarshal([]byte(raw), &dist); err != nil || len(dist) != len(p.labels) {
		p.log.Warn("discarding malformed cached prediction", zap.String("key", key))
		metrics.RecordCacheLookup(false)
		return nil, false
	}
	metrics.RecordCacheLookup(true)
	return dist, true
}

func (p *Predictor) store(ctx context.Context, key string, dist Distribution) {
	if p.cache == nil {
		return
	}
	raw, err := json.Marshal(dist)
	if err != nil {
		p.log.Warn("failed to encode prediction for cache", zap.Error(err))
		return
	}
	if err := p.cache.SetPrediction(ctx, key, string(raw), p.cacheTTL); err != nil {
		p.log.Warn("prediction cache write failed", zap.String("key", key), zap.Error(err))
	}
}
