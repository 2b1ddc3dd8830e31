package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"marianchat/pkg/auth"
	"marianchat/pkg/chat"
	"marianchat/pkg/logger"
	"marianchat/pkg/models"
	"marianchat/pkg/telemetry"
	"marianchat/pkg/utils"
)

// Messages bundles the message endpoints around one chat service.
type Messages struct {
	svc *chat.Service
}

// RegisterMessages registers HTTP handlers for message endpoints.
func RegisterMessages(r *mux.Router, svc *chat.Service) {
	h := &Messages{svc: svc}

	r.HandleFunc("/messages", h.create).Methods(http.MethodPost)
	r.HandleFunc("/messages", h.list).Methods(http.MethodGet)

	r.HandleFunc("/messages/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", h.edit).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}", h.delete).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/seen", h.markSeen).Methods(http.MethodPost)
}

func (h *Messages) create(w http.ResponseWriter, r *http.Request) {
	userID, status, msg := auth.ResolveUserFromRequest(r)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	var payload struct {
		Receiver string `json:"receiver"`
		Body     string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	span := telemetry.StartSpan(r.Context(), "chat.send")
	m, err := h.svc.Send(userID, payload.Receiver, payload.Body)
	span()
	if err != nil {
		writeChatError(w, err)
		return
	}
	logger.Info("message_created", "id", m.ID, "sender", m.Sender, "receiver", m.Receiver)
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

func (h *Messages) list(w http.ResponseWriter, r *http.Request) {
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
	span := telemetry.StartSpan(r.Context(), "chat.snapshot")
	msgs, err := h.svc.Snapshot(func(m models.Message) bool {
		return m.Between(userID, peer)
	})
	span()
	if err != nil {
		writeChatError(w, err)
		return
	}
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim >= 0 && lim < len(msgs) {
			msgs = msgs[len(msgs)-lim:]
		}
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Peer     string           `json:"peer"`
		Messages []models.Message `json:"messages"`
	}{Peer: peer, Messages: msgs})
}

func (h *Messages) get(w http.ResponseWriter, r *http.Request) {
	userID, status, msg := auth.ResolveUserFromRequest(r)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	id := mux.Vars(r)["id"]
	m, err := h.svc.Get(id)
	if err != nil {
		writeChatError(w, err)
		return
	}
	if m.Sender != userID && m.Receiver != userID {
		utils.JSONError(w, http.StatusForbidden, "not a participant")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func (h *Messages) edit(w http.ResponseWriter, r *http.Request) {
	userID, status, msg := auth.ResolveUserFromRequest(r)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	id := mux.Vars(r)["id"]
	var payload struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	span := telemetry.StartSpan(r.Context(), "chat.edit")
	err := h.svc.Edit(userID, id, payload.Body)
	span()
	if err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Messages) markSeen(w http.ResponseWriter, r *http.Request) {
	userID, status, msg := auth.ResolveUserFromRequest(r)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.svc.MarkSeen(userID, id); err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Messages) delete(w http.ResponseWriter, r *http.Request) {
	userID, status, msg := auth.ResolveUserFromRequest(r)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	id := mux.Vars(r)["id"]
	span := telemetry.StartSpan(r.Context(), "chat.delete")
	err := h.svc.Delete(userID, id)
	span()
	if err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
