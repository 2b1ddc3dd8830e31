package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"marianchat/pkg/auth"
	"marianchat/pkg/chat"
	"marianchat/pkg/logger"
	"marianchat/pkg/models"
	"marianchat/pkg/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// Origin checks already happened in the gateway middleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Subscribe serves the websocket snapshot streams. Each connected client
// holds a session: one conversation stream plus an optional unread
// stream, closed when the socket goes away.
type Subscribe struct {
	svc *chat.Service
}

// RegisterSubscribe registers the websocket endpoints.
func RegisterSubscribe(r *mux.Router, svc *chat.Service) {
	h := &Subscribe{svc: svc}
	r.HandleFunc("/subscribe", h.conversation).Methods(http.MethodGet)
	r.HandleFunc("/subscribe/unread", h.unread).Methods(http.MethodGet)
}

type snapshotFrame struct {
	Type     string           `json:"type"`
	Peer     string           `json:"peer,omitempty"`
	Messages []models.Message `json:"messages"`
}

type unreadFrame struct {
	Type   string            `json:"type"`
	Counts chat.UnreadCounts `json:"counts"`
}

// conversation streams full conversation snapshots with one peer.
// Connecting counts as having the exchange on screen, so incoming
// messages are marked seen as they arrive.
func (h *Subscribe) conversation(w http.ResponseWriter, r *http.Request) {
	userID, status, msg := auth.ResolveUserFromRequest(r)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	peer := r.URL.Query().Get("peer")
	if peer == "" {
		utils.JSONError(w, http.StatusBadRequest, "peer query param required")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conv, err := h.svc.OpenConversation(ctx, userID, peer)
	if err != nil {
		writeChatError(w, err)
		return
	}
	defer conv.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "error", err)
		return
	}
	defer conn.Close()
	logger.Info("ws_conversation_opened", "user", userID, "peer", peer)

	go readLoop(conn, cancel)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case snap, ok := <-conv.Snapshots():
			if !ok {
				return
			}
			if snap == nil {
				snap = []models.Message{}
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(snapshotFrame{Type: "snapshot", Peer: peer, Messages: snap}); err != nil {
				logger.Debug("ws_write_failed", "user", userID, "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// unread streams unseen-count snapshots for the connected user.
func (h *Subscribe) unread(w http.ResponseWriter, r *http.Request) {
	userID, status, msg := auth.ResolveUserFromRequest(r)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	watch := h.svc.WatchUnread(ctx, userID)
	defer watch.Cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "error", err)
		return
	}
	defer conn.Close()
	logger.Info("ws_unread_opened", "user", userID)

	go readLoop(conn, cancel)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case counts, ok := <-watch.Counts():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(unreadFrame{Type: "unread", Counts: counts}); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readLoop drains client frames so pings/pongs flow, canceling the
// stream when the socket closes.
func readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
