// Package api exposes the prediction pipeline over HTTP and WebSocket.
// Requests are validated against the request schema here; the pipeline only
// ever sees well-formed requests.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"house-pricer/internal/common"
	"house-pricer/internal/features"
	"house-pricer/internal/ml"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	HeaderRequestID    = "X-Request-ID"
	HeaderModelVersion = "X-Model-Version"
	maxBodyBytes       = 4 << 20
)

// Predictor is the pipeline surface served by the API.
type Predictor interface {
	Predict(ctx context.Context, req features.Request) (ml.Result, error)
	PredictBatch(ctx context.Context, reqs []features.Request) ([]ml.BatchItem, error)
	Health() ml.HealthStatus
	Info() ml.ModelInfo
	Version() string
}

// MetricsInterface defines the transport metrics used by the server
type MetricsInterface interface {
	RequestObserve(route string, code int)
	RequestTimeoutsInc()
	WSConnectionsAdd(delta float64)
}

// Options configures a Server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	// RequirePricePerSqft rejects requests that omit price_per_sqft instead
	// of estimating it.
	RequirePricePerSqft bool
	BatchPolicy         ml.BatchPolicy
	MetricsHandler      http.Handler // served on /metrics when set
	Metrics             MetricsInterface
}

// Server provides the HTTP API for price predictions
type Server struct {
	predictor Predictor
	validator *Validator
	opts      Options
	router    *mux.Router
	upgrader  websocket.Upgrader
	server    *http.Server
}

// NewServer creates a new HTTP server for the predictor.
func NewServer(predictor Predictor, opts Options) (*Server, error) {
	validator, err := NewValidator(opts.RequirePricePerSqft)
	if err != nil {
		return nil, err
	}
	if opts.Port == 0 {
		opts.Port = common.DefaultListenPort
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = common.DefaultRequestTimeout * time.Millisecond
	}
	if opts.BatchPolicy == "" {
		opts.BatchPolicy = ml.BatchIsolate
	}

	s := &Server{
		predictor: predictor,
		validator: validator,
		opts:      opts,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}

	r := mux.NewRouter()
	r.Use(s.requestMiddleware)
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	r.HandleFunc("/predict/batch", s.handlePredictBatch).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/model/info", s.handleModelInfo).Methods(http.MethodGet)
	r.HandleFunc("/ws/predict", s.handleWebSocket).Methods(http.MethodGet)
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler).Methods(http.MethodGet)
	}
	s.router = r

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: opts.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type ctxKey int

const requestIDKey ctxKey = 0

// RequestID returns the request ID assigned by the middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestMiddleware assigns a request ID, stamps the model version and
// records per-route metrics and access logs.
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		w.Header().Set(HeaderModelVersion, s.predictor.Version())

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.RequestObserve(route, rec.status)
		}

		log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("latency", time.Since(start)).
			Msg("request served")
	})
}
