// Package httpapi serves the demo web API used by the upload widget.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/middleware"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/predictor"
)

const (
	DefaultMaxUploadBytes = 10 << 20
	DefaultTop            = 2

	formField = "image"
)

// Classifier is the prediction surface the API serves.
type Classifier interface {
	PredictBytes(ctx context.Context, data []byte) (predictor.Distribution, error)
	Labels() []string
}

// Options configures NewRouter. Zero values pick the defaults.
type Options struct {
	MaxUploadBytes int64
	Top            int
	CORSOrigins    []string
	Logger         *zap.Logger
	// Ready reports readiness for /readyz. Nil means always ready.
	Ready func() bool
}

// PredictResponse is the widget's {label, confidences} contract.
type PredictResponse struct {
	Label       string                 `json:"label"`
	Confidences []predictor.Prediction `json:"confidences"`
}

// ErrorResponse is the JSON error payload.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

type server struct {
	classifier Classifier
	opts       Options
	log        *zap.Logger
}

// NewRouter builds the demo API router.
func NewRouter(c Classifier, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Top <= 0 {
		opts.Top = DefaultTop
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &server{classifier: c, opts: opts, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.HTTPMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/predict", s.predict)
	r.Get("/labels", s.labels)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.classifier == nil || (opts.Ready != nil && !opts.Ready()) {
			writeJSONError(w, r, http.StatusServiceUnavailable, "not ready")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	return r
}

func (s *server) predict(w http.ResponseWriter, r *http.Request) {
	if s.classifier == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "classifier not initialized")
		return
	}

	top := s.opts.Top
	if q := r.URL.Query().Get("top"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeJSONError(w, r, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		top = n
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	data, err := readImage(r, s.opts.MaxUploadBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "image exceeds upload limit")
			return
		}
		writeJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	dist, err := s.classifier.PredictBytes(r.Context(), data)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, predictor.ErrInvalidImage) {
			status = http.StatusBadRequest
		}
		s.log.Warn("prediction failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		writeJSONError(w, r, status, err.Error())
		return
	}

	resp := PredictResponse{Confidences: []predictor.Prediction{}}
	if best, ok := dist.Best(); ok {
		resp.Label = best.Label
		resp.Confidences = dist.Top(top)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) labels(w http.ResponseWriter, r *http.Request) {
	if s.classifier == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "classifier not initialized")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"labels": s.classifier.Labels()})
}

// readImage returns the upload from the multipart "image" field, or the raw
// body for any other content type.
func readImage(r *http.Request, limit int64) ([]byte, error) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "multipart/form-data") {
		return io.ReadAll(r.Body)
	}

	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	f, _, err := r.FormFile(formField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:     msg,
		Code:      status,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}
