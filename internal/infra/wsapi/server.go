package wsapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"token_market/internal/command"
	"token_market/internal/domain"
	"token_market/internal/infra"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// IdentityHeader carries the authenticated caller identity.
	IdentityHeader = "X-Market-Identity"

	maxFrameBytes = 64 << 10
	writeWait     = 10 * time.Second
)

// Transport-level codes; command failures use domain.Code.
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeUnavailable = "UNAVAILABLE"
)

// Submitter applies one request. *engine.Sequencer satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req command.Request) (command.Result, error)
}

// Frame is one client message.
type Frame struct {
	ID      string          `json:"id"`
	Request command.Request `json:"request"`
}

// Response answers one Frame.
type Response struct {
	ID       string         `json:"id"`
	Seq      uint64         `json:"seq,omitempty"`
	OrderID  uint64         `json:"order_id"`
	Quantity uint64         `json:"quantity"`
	Funds    string         `json:"funds,omitempty"`
	Approved bool           `json:"approved"`
	Orders   []domain.Order `json:"orders,omitempty"`
	Error    string         `json:"error,omitempty"`
	Code     string         `json:"code,omitempty"`
}

// Server exposes the market over WebSocket.
type Server struct {
	sub      Submitter
	metrics  *infra.Metrics
	upgrader websocket.Upgrader
}

func NewServer(sub Submitter, metrics *infra.Metrics, readBuf, writeBuf int) *Server {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Server{
		sub:     sub,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			// Origin checks belong to the authenticating proxy in front of us.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler routes /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("GET /healthz", s.serveHealth)
	return mux
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.metrics.Snapshot()); err != nil {
		slog.Warn("Failed to write health response", slog.Any("error", err))
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	identity := domain.Identity(r.Header.Get(IdentityHeader))
	if !identity.Valid() {
		http.Error(w, "missing "+IdentityHeader, http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	s.metrics.IncrementConnections()
	defer s.metrics.DecrementConnections()

	ctx := r.Context()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	slog.InfoContext(ctx, "Client connected", slog.String("identity", string(identity)))
	defer slog.InfoContext(ctx, "Client disconnected", slog.String("identity", string(identity)))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("WebSocket read failed", slog.Any("error", err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		resp := s.handleFrame(ctx, identity, data)

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(resp); err != nil {
			slog.Warn("WebSocket write failed", slog.Any("error", err))
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, identity domain.Identity, data []byte) Response {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Response{ID: frame.ID, Error: err.Error(), Code: CodeBadRequest}
	}
	if frame.ID == "" {
		frame.ID = uuid.NewString()
	}

	// Callers act only as themselves.
	frame.Request.Caller = identity

	res, err := s.sub.Submit(ctx, frame.Request)
	if err != nil {
		s.metrics.RecordError()
		return Response{ID: frame.ID, Error: err.Error(), Code: CodeUnavailable}
	}

	return toResponse(frame.ID, frame.Request.Kind, res)
}

func toResponse(id string, kind command.Kind, res command.Result) Response {
	resp := Response{
		ID:       id,
		Seq:      res.Seq,
		OrderID:  res.OrderID,
		Quantity: res.Quantity,
		Approved: res.Approved,
		Orders:   res.Orders,
	}
	if kind == command.KindFundsOf {
		resp.Funds = res.Funds.String()
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
		resp.Code = domain.Code(res.Err)
	}
	return resp
}
