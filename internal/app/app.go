// Package app assembles a ready-to-serve predictor from configuration.
package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/artifact"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/cache"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/config"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/inference"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/metrics"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/model"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/nn"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/predictor"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/storage"
)

// App holds everything built from one configuration. Close releases it.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Engine    inference.InferenceEngine
	Predictor *predictor.Predictor
	// Model is set for the native engine only.
	Model *model.Model

	cache *cache.Cache
}

// OptionFunc customizes New.
type OptionFunc func(app *App) error

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

// WithoutCache skips Redis even when configured, e.g. for one-shot CLI runs.
func WithoutCache() OptionFunc {
	return func(app *App) error {
		app.Config.Redis = ""
		return nil
	}
}

// New loads the model and builds the predictor. A failure here is a load
// failure: nothing is returned and the caller should exit.
func New(ctx context.Context, cfg *config.Config, opts ...OptionFunc) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	c := *cfg
	a := &App{Config: &c, Logger: zap.NewNop()}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	engine, labels, modelID, err := a.loadEngine(ctx)
	if err != nil {
		return nil, err
	}
	a.Engine = engine

	predOpts := []predictor.Option{
		predictor.WithLogger(a.Logger),
		predictor.WithModelID(modelID),
	}

	// Redis is optional: a failed connection degrades to uncached predictions.
	if a.Config.Redis != "" {
		cc, err := cache.New(ctx, a.Config.Redis)
		if err != nil {
			a.Logger.Warn("redis unavailable, continuing without cache",
				zap.String("addr", a.Config.Redis), zap.Error(err))
		} else {
			a.cache = cc
			predOpts = append(predOpts, predictor.WithCache(cc, a.Config.CacheTTL))
			a.Logger.Info("redis connected", zap.String("addr", a.Config.Redis))
		}
	}

	p, err := predictor.New(engine, labels, predOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Predictor = p
	return a, nil
}

func (a *App) loadEngine(ctx context.Context) (inference.InferenceEngine, []string, string, error) {
	cfg := a.Config
	switch engine := cfg.ResolvedEngine(); engine {
	case config.EngineMock:
		a.Logger.Info("using mock inference engine")
		mock := inference.NewMock()
		if len(cfg.Labels) != len(mock.Logits) {
			mock = inference.NewMockWithLogits(make([]float32, len(cfg.Labels)))
		}
		metrics.SetModelInfo("mock", "mock", "")
		return mock, cfg.Labels, "mock", nil

	case config.EngineNative:
		path, err := a.resolve(ctx)
		if err != nil {
			return nil, nil, "", err
		}
		arch, err := BuildArchitecture(cfg.Architecture, len(cfg.Labels))
		if err != nil {
			return nil, nil, "", err
		}
		m, err := model.Load(path, arch, cfg.Labels, a.Logger)
		if err != nil {
			return nil, nil, "", err
		}
		a.Model = m
		metrics.SetModelInfo(m.Kind().String(), m.Spec().Name, m.Digest())
		return inference.NewNative(m), m.Labels(), m.Digest(), nil

	case config.EngineONNX:
		path, err := a.resolve(ctx)
		if err != nil {
			return nil, nil, "", err
		}
		digest, err := fileDigest(path)
		if err != nil {
			return nil, nil, "", fmt.Errorf("failed to read ONNX model: %w", err)
		}
		a.Logger.Info("loading ONNX model", zap.String("path", path))
		inf, err := inference.New(path, len(cfg.Labels))
		if err != nil {
			a.Logger.Error("model load failed", zap.String("path", path), zap.Error(err))
			return nil, nil, "", err
		}
		a.Logger.Info("model loaded", zap.String("path", path), zap.String("kind", "onnx"), zap.String("digest", digest))
		metrics.SetModelInfo("onnx", "onnx", digest)
		return inf, cfg.Labels, digest, nil

	default:
		return nil, nil, "", fmt.Errorf("unknown engine %q", engine)
	}
}

func (a *App) resolve(ctx context.Context) (string, error) {
	return storage.NewResolver(a.Config.S3, a.Logger).Resolve(ctx, a.Config.Model)
}

// BuildArchitecture constructs the network named by cfg with numClasses outputs.
func BuildArchitecture(cfg config.ArchitectureConfig, numClasses int) (nn.Architecture, error) {
	return nn.Build(artifact.ArchSpec{
		Name:       cfg.Name,
		InChannels: 3,
		NumClasses: numClasses,
		Features:   cfg.Features,
		Dropout:    cfg.Dropout,
	})
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Close releases the engine and the cache connection.
func (a *App) Close() error {
	var errs []error
	if a.Engine != nil {
		errs = append(errs, a.Engine.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	return errors.Join(errs...)
}
