package api

import (
	"context"
	"net/http"
	"time"

	"house-pricer/internal/ml"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// handleWebSocket streams predictions: every text message is one request
// and gets exactly one reply, either a result or an error body.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// The handshake response bypasses w, so the middleware headers are
	// passed explicitly.
	header := http.Header{}
	header.Set(HeaderRequestID, w.Header().Get(HeaderRequestID))
	header.Set(HeaderModelVersion, w.Header().Get(HeaderModelVersion))

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}
	defer conn.Close()

	if s.opts.Metrics != nil {
		s.opts.Metrics.WSConnectionsAdd(1)
		defer s.opts.Metrics.WSConnectionsAdd(-1)
	}

	connID := RequestID(r.Context())
	log.Info().Str("request_id", connID).Msg("websocket stream opened")

	conn.SetReadLimit(maxBodyBytes)
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("request_id", connID).Msg("websocket read error")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		reply := s.predictMessage(r.Context(), data)

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn().Err(err).Str("request_id", connID).Msg("websocket write error")
			break
		}
	}

	log.Info().Str("request_id", connID).Msg("websocket stream closed")
}

func (s *Server) predictMessage(ctx context.Context, data []byte) interface{} {
	req, err := s.validator.Decode(data)
	if err != nil {
		return errorBody(err)
	}

	var result ml.Result
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		var perr error
		result, perr = s.predictor.Predict(ctx, req)
		return perr
	})
	if err != nil {
		return errorBody(err)
	}
	return result
}
