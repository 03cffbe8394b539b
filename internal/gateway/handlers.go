package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"peerhub/internal/config"
	"peerhub/internal/exec"
	"peerhub/internal/identity"
	"peerhub/internal/metrics"
	"peerhub/internal/models"
	"peerhub/internal/session"
	"peerhub/internal/utils"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Handlers owns the websocket gateway and the HTTP surface around it.
type Handlers struct {
	hub         *session.Hub
	runner      *exec.Runner
	resolver    *identity.Resolver
	jwtSecret   []byte
	log         *zap.Logger
	dispatch    map[string]handlerFunc
	connections int64
}

func NewHandlers(cfg *config.Config, hub *session.Hub, log *zap.Logger) *Handlers {
	h := &Handlers{
		hub:       hub,
		runner:    exec.NewRunner(cfg.RunServiceURL, cfg.RunClientID, cfg.RunClientSecret),
		resolver:  identity.NewResolver(cfg.IdentityServiceURL, cfg.RedisAddr, cfg.ProfileCacheTTL, log),
		jwtSecret: []byte(cfg.JWTSecret),
		log:       log,
	}
	h.dispatch = h.buildDispatch()
	return h
}

// Hub exposes the room registry (used by status and tests).
func (h *Handlers) Hub() *session.Hub { return h.hub }

func (h *Handlers) addConn(delta int64) { atomic.AddInt64(&h.connections, delta) }
func (h *Handlers) connCount() int64    { return atomic.LoadInt64(&h.connections) }

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, models.StatusResponse{
		Status:      "running",
		Rooms:       h.hub.RoomCount(),
		Connections: int(h.connCount()),
	})
}

func (h *Handlers) GetWebRTCConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := utils.GetWebRTCConfig()
	writeJSON(w, map[string]any{"iceServers": cfg.ICEServers})
}

// RunCode proxies to the external execution service. It holds no room state
// and no room lock.
func (h *Handlers) RunCode(w http.ResponseWriter, r *http.Request) {
	var req models.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := h.runner.Run(ctx, req)
	if err != nil {
		h.log.Error("code execution failed", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "Code execution failed",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, result)
}

// GetProfile resolves a participant's display identity through the cached
// identity boundary.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	profile, err := h.resolver.Resolve(r.Context(), userID)
	if err != nil {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	writeJSON(w, profile)
}

// CollabWS is the single websocket endpoint. One goroutine per connection
// reads frames and feeds the dispatch table; the deferred Detach is the one
// and only cleanup path for presence and voice liveness.
func (h *Handlers) CollabWS(w http.ResponseWriter, r *http.Request) {
	if len(h.jwtSecret) > 0 {
		if token := r.URL.Query().Get("token"); token != "" {
			if _, err := utils.ValidateRoomToken(token, h.jwtSecret); err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client := session.NewClient(conn)
	h.addConn(1)
	metrics.ActiveConnections.Inc()
	h.log.Info("client connected", zap.String("conn", client.ID))

	defer func() {
		h.hub.Detach(client)
		h.addConn(-1)
		metrics.ActiveConnections.Dec()
		h.log.Info("client disconnected", zap.String("conn", client.ID))
	}()

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		h.Dispatch(client, frame)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
