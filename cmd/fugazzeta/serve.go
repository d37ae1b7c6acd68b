// cmd/fugazzeta/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/app"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/handler"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/httpapi"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/metrics"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/middleware"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/tracing"
	pb "github.com/SyedDaiam9101/fugazzeta-service/proto/classifierpb"
)

// drainDelay gives load balancers time to observe NOT_SERVING before the
// listeners close.
const drainDelay = 5 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over gRPC and the HTTP demo API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 50051, "gRPC server port")
	flags.Int("http-port", 7860, "HTTP demo API port")
	flags.Int("metrics-port", 9100, "Prometheus metrics port")
	flags.String("redis", "", "Redis address for the prediction cache (optional)")
	return cmd
}

func serve(ctx context.Context, c *cli) error {
	cfg, log := c.cfg, c.log

	log.Info("starting "+serviceName,
		zap.String("version", version),
		zap.Int("port", cfg.Port),
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("metrics_port", cfg.MetricsPort),
		zap.String("model", cfg.Model),
		zap.String("engine", cfg.ResolvedEngine()),
		zap.String("redis", cfg.Redis),
		zap.Bool("otel", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry tracer
	var tracerShutdown func(context.Context) error
	if cfg.OTELEnabled {
		var err error
		tracerShutdown, err = tracing.Init(tracing.Options{
			ServiceName:    serviceName,
			ServiceVersion: version,
			Endpoint:       cfg.OTELEndpoint,
			Logger:         log,
		})
		if err != nil {
			log.Warn("failed to initialize tracer", zap.Error(err))
		} else {
			log.Info("OpenTelemetry tracing enabled", zap.String("endpoint", cfg.OTELEndpoint))
		}
	}

	// The model is loaded before any listener starts; a load failure is fatal.
	a, err := app.New(ctx, cfg, app.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer a.Close()

	healthServer := health.NewServer()

	metricsServer := startMetricsServer(cfg.MetricsPort, healthServer, log)

	apiServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: httpapi.NewRouter(a.Predictor, httpapi.Options{
			MaxUploadBytes: cfg.MaxUploadBytes,
			Top:            cfg.NumTopClasses,
			CORSOrigins:    cfg.CORSOrigins,
			Logger:         log,
			Ready:          func() bool { return serving(context.Background(), healthServer) },
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("HTTP demo API listening", zap.String("addr", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP demo API error", zap.Error(err))
		}
	}()

	interceptors := []grpc.UnaryServerInterceptor{
		middleware.UnaryRequestIDInterceptor(),
		middleware.UnaryMetricsInterceptor(),
	}
	if cfg.OTELEnabled {
		interceptors = append(interceptors, otelgrpc.UnaryServerInterceptor())
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptors...),
	)

	pb.RegisterClassifierServer(grpcServer, handler.New(a.Predictor, log))
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Enable server reflection for debugging
	reflection.Register(grpcServer)

	addr := fmt.Sprintf(":%d", cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	healthServer.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING) // Overall health
	metrics.SetHealthy()

	go func() {
		<-ctx.Done()
		log.Info("shutting down gracefully")

		healthServer.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		metrics.SetUnhealthy()

		time.Sleep(drainDelay)

		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = apiServer.Shutdown(shutdownCtx)
		_ = metricsServer.Shutdown(shutdownCtx)

		if tracerShutdown != nil {
			_ = tracerShutdown(shutdownCtx)
		}
	}()

	log.Info("gRPC server listening", zap.String("addr", addr))
	log.Info(serviceName + " is ready to accept requests")

	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}

	log.Info("server shutdown complete")
	return nil
}

func serving(ctx context.Context, hs *health.Server) bool {
	resp, err := hs.Check(ctx, &healthpb.HealthCheckRequest{})
	return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
}

func startMetricsServer(port int, healthServer *health.Server, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !serving(r.Context(), healthServer) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service Unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !serving(r.Context(), healthServer) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Not Ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ready"))
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", zap.Error(err))
		}
	}()

	return server
}
