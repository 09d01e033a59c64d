package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"house-pricer/internal/common"
	"house-pricer/internal/features"
	"house-pricer/internal/ml"

	"github.com/rs/zerolog/log"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	Step    string   `json:"step,omitempty"`
	Details []string `json:"details,omitempty"`
}

// BatchRequest is the body of POST /predict/batch.
type BatchRequest struct {
	Requests []json.RawMessage `json:"requests"`
}

// BatchItemResponse is one entry of a batch response.
type BatchItemResponse struct {
	Index  int            `json:"index"`
	Result *ml.Result     `json:"result,omitempty"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// BatchResponse is the body of a successful POST /predict/batch.
type BatchResponse struct {
	Results []BatchItemResponse `json:"results"`
}

// errRequestTimeout marks a request that exceeded the request deadline.
var errRequestTimeout = errors.New("request timed out")

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":       "house-pricer",
		"model_version": s.predictor.Version(),
		"status":        "ok",
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("read body: %v", err)})
		return
	}

	req, err := s.validator.Decode(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var result ml.Result
	err = s.withTimeout(r.Context(), func(ctx context.Context) error {
		var perr error
		result, perr = s.predictor.Predict(ctx, req)
		return perr
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if len(result.FeaturesImportance) > 0 {
		log.Debug().
			Str("request_id", RequestID(r.Context())).
			Strs("top_features", ml.TopFeatures(result.FeaturesImportance, 3)).
			Msg("prediction explained")
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var batch BatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&batch); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	// Schema failures are reported per item; only valid requests reach
	// the pipeline.
	responses := make([]BatchItemResponse, len(batch.Requests))
	valid := make([]features.Request, 0, len(batch.Requests))
	positions := make([]int, 0, len(batch.Requests))
	for i, raw := range batch.Requests {
		responses[i].Index = i
		req, err := s.validator.Decode(raw)
		if err != nil {
			if s.opts.BatchPolicy == ml.BatchFailFast {
				s.writeError(w, r, fmt.Errorf("batch item %d: %w", i, err))
				return
			}
			resp := errorBody(err)
			responses[i].Error = &resp
			continue
		}
		valid = append(valid, req)
		positions = append(positions, i)
	}

	var items []ml.BatchItem
	err := s.withTimeout(r.Context(), func(ctx context.Context) error {
		var berr error
		items, berr = s.predictor.PredictBatch(ctx, valid)
		return berr
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	for j, item := range items {
		pos := positions[j]
		if item.Err != nil {
			resp := errorBody(item.Err)
			responses[pos].Error = &resp
			continue
		}
		responses[pos].Result = item.Result
	}

	writeJSON(w, http.StatusOK, BatchResponse{Results: responses})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.predictor.Health()

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.predictor.Info())
}

// withTimeout runs fn under the request deadline. The caller stops waiting
// when the deadline passes; fn observes the cancelled context.
func (s *Server) withTimeout(parent context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.opts.RequestTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", errRequestTimeout, err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %v", errRequestTimeout, s.opts.RequestTimeout)
		}
		return ctx.Err()
	}
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, errRequestTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrPredictionFailed):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func errorBody(err error) ErrorResponse {
	resp := ErrorResponse{
		Error: err.Error(),
		Kind:  string(common.KindOf(err)),
		Step:  common.StepOf(err),
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		resp.Kind = "VALIDATION"
		resp.Details = verr.Details
	}
	return resp
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusGatewayTimeout && s.opts.Metrics != nil {
		s.opts.Metrics.RequestTimeoutsInc()
	}

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("request_id", RequestID(r.Context())).
		Int("status", status).
		Msg("request failed")

	writeJSON(w, status, errorBody(err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// statusRecorder captures the response status for metrics and logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
