package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"memorialwall/internal/metrics"
	"memorialwall/internal/model"
	"memorialwall/internal/wall"
)

// maxEntriesPerRequest は1回のGETで返す最大レコード数
const maxEntriesPerRequest = 500

// createEntryRequest is the POST /entries payload. id and created_at are
// always assigned by the server.
type createEntryRequest struct {
	Scope  string `json:"scope"`
	Author string `json:"author"`
	Body   string `json:"body"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) isOriginAllowed(origin string) bool {
	for _, allowed := range h.Config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return false
}

// CreateEntry handles POST /entries
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	h.Log.Infof("[POST /entries] Request received from %s", r.RemoteAddr)

	if !h.limiter.Allow(r) {
		h.Log.Warnf("[POST /entries] ❌ Rate limited: %s", clientKey(r))
		metrics.RequestsRejected.WithLabelValues("rate_limited").Inc()
		writeError(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	// リクエストボディサイズを1MBに制限
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Log.Warnf("[POST /entries] ❌ Bad Request: %v", err)
		metrics.RequestsRejected.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Scope == "" {
		h.Log.Warnf("[POST /entries] ❌ Bad Request: missing scope")
		metrics.RequestsRejected.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "scope is required")
		return
	}

	author, body, err := wall.Normalize(req.Author, req.Body)
	if err != nil {
		h.Log.Warnf("[POST /entries] ❌ Bad Request: %v", err)
		metrics.RequestsRejected.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, "author and body are required")
		return
	}

	// Set server-side controlled fields
	e := model.Entry{
		ID:        uuid.NewString(),
		Scope:     req.Scope,
		Author:    author,
		Body:      body,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err = h.DB.ExecContext(r.Context(),
		"INSERT INTO entries (id, scope, author, body, created_at) VALUES (?, ?, ?, ?, ?)",
		e.ID, e.Scope, e.Author, e.Body, e.CreatedAt)
	if err != nil {
		h.Log.Errorf("[POST /entries] ❌ Database error: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create entry")
		return
	}

	h.Log.Infof("[POST /entries] ✅ Created entry: ID=%s, Scope=%s, Author=%q", e.ID, e.Scope, e.Author)
	metrics.EntriesCreated.WithLabelValues(e.Scope).Inc()

	// WebSocket経由で同じスコープのクライアントに通知
	h.Broadcast <- model.Created(e)

	writeJSON(w, http.StatusCreated, e)
}

// GetEntries handles GET /entries?scope=...
// 削除されていないレコードを新しい順に最大500件返す
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	h.Log.Infof("[GET /entries] Request received from %s", r.RemoteAddr)

	if origin := r.Header.Get("Origin"); origin != "" && !h.isOriginAllowed(origin) {
		h.Log.Warnf("[GET /entries] ❌ Forbidden origin: %s", origin)
		metrics.RequestsRejected.WithLabelValues("forbidden_origin").Inc()
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	scope := r.URL.Query().Get("scope")
	if scope == "" {
		h.Log.Warnf("[GET /entries] ❌ Bad Request: missing scope")
		writeError(w, http.StatusBadRequest, "scope is required")
		return
	}

	rows, err := h.DB.QueryContext(r.Context(),
		"SELECT id, scope, author, body, created_at FROM entries WHERE scope = ? AND deleted_at IS NULL ORDER BY created_at DESC LIMIT ?",
		scope, maxEntriesPerRequest,
	)
	if err != nil {
		h.Log.Errorf("[GET /entries] ❌ Database error: %v", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	entries := []model.Entry{}
	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.ID, &e.Scope, &e.Author, &e.Body, &e.CreatedAt); err != nil {
			h.Log.Errorf("[GET /entries] ❌ Scan error: %v", err)
			continue
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		h.Log.Errorf("[GET /entries] ❌ Rows iteration error: %v", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	h.Log.Infof("[GET /entries] ✅ Returned %d entries for scope %s", len(entries), scope)

	writeJSON(w, http.StatusOK, entries)
}

// DeleteEntry handles DELETE /entries/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.Log.Infof("[DELETE /entries/%s] Request received from %s", id, r.RemoteAddr)

	// Look up the scope of a row that is not already deleted
	var scope string
	err := h.DB.QueryRowContext(r.Context(),
		"SELECT scope FROM entries WHERE id = ? AND deleted_at IS NULL", id).Scan(&scope)
	if errors.Is(err, sql.ErrNoRows) {
		h.Log.Warnf("[DELETE /entries/%s] ❌ Not Found", id)
		writeError(w, http.StatusNotFound, "Entry not found")
		return
	}
	if err != nil {
		h.Log.Errorf("[DELETE /entries/%s] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Update deleted_at timestamp
	now := time.Now().UTC().Truncate(time.Microsecond)
	_, err = h.DB.ExecContext(r.Context(), "UPDATE entries SET deleted_at = ? WHERE id = ?", now, id)
	if err != nil {
		h.Log.Errorf("[DELETE /entries/%s] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete entry")
		return
	}

	h.Log.Infof("[DELETE /entries/%s] ✅ Deleted successfully", id)
	metrics.EntriesDeleted.WithLabelValues(scope).Inc()

	// WebSocket経由で他のクライアントに削除を通知
	h.Broadcast <- model.Deleted(scope, id, now)
	h.Log.Debugf("[WebSocket] 📢 Broadcasting delete event for entry: %s", id)

	w.WriteHeader(http.StatusNoContent)
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.PingContext(r.Context()); err != nil {
		h.Log.Warnf("[GET /healthz] ❌ Database unreachable: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
