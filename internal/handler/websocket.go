package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"memorialwall/internal/metrics"
	"memorialwall/internal/model"
)

// writeWait は1クライアントへの書き込みに許す時間
var writeWait = 10 * time.Second

// createUpgrader creates a WebSocket upgrader with the given allowed origins
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowedMap[origin]
		},
	}
}

// HandleWebSocket handles GET /ws?scope=...
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		writeError(w, http.StatusBadRequest, "scope is required")
		return
	}

	upgrader := createUpgrader(h.Config.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warnf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// 登録と ready フレームの送信をロック内で行い、ブロードキャスターとの
	// 同時書き込みを防ぐ
	h.ClientMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(model.Event{Type: model.EventReady, Scope: scope}); err != nil {
		h.ClientMu.Unlock()
		h.Log.Warnf("WebSocket ready frame error: %v", err)
		return
	}
	h.Clients[conn] = scope
	totalClients := len(h.Clients)
	h.ClientMu.Unlock()
	metrics.StreamClients.Inc()

	h.Log.Infof("New WebSocket connection for scope %s. Total clients: %d", scope, totalClients)

	// クライアントからのメッセージを受信（キープアライブ用）
	for {
		var msg interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			h.ClientMu.Lock()
			if _, ok := h.Clients[conn]; ok {
				delete(h.Clients, conn)
				metrics.StreamClients.Dec()
			}
			remainingClients := len(h.Clients)
			h.ClientMu.Unlock()
			h.Log.Infof("[WebSocket] Client disconnected. Total clients: %d", remainingClients)
			break
		}
	}
}

// HandleBroadcast sends change events to the WebSocket clients subscribed to
// the event's scope
func (h *Handler) HandleBroadcast() {
	for event := range h.Broadcast {
		// clients マップをスナップショットしてからロックを外すことで、
		// range 中に delete して "concurrent map iteration and map write"
		// が発生するのを防ぐ
		h.ClientMu.RLock()
		clientsSnapshot := make([]*websocket.Conn, 0, len(h.Clients))
		for client, scope := range h.Clients {
			if scope == event.Scope {
				clientsSnapshot = append(clientsSnapshot, client)
			}
		}
		h.ClientMu.RUnlock()

		for _, client := range clientsSnapshot {
			// 読まないクライアントで配信全体が止まらないよう期限を設定
			client.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.WriteJSON(event); err != nil {
				client.Close()
				h.ClientMu.Lock()
				if _, ok := h.Clients[client]; ok {
					delete(h.Clients, client)
					metrics.StreamClients.Dec()
				}
				h.ClientMu.Unlock()
				continue
			}
			metrics.EventsBroadcast.WithLabelValues(string(event.Type)).Inc()
		}
	}
}
