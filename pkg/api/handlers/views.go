package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"marianchat/pkg/auth"
	"marianchat/pkg/chat"
	"marianchat/pkg/directory"
	"marianchat/pkg/models"
	"marianchat/pkg/store"
	"marianchat/pkg/utils"
)

// Views serves the aggregate read endpoints: unread counts and the peer
// directory.
type Views struct {
	svc *chat.Service
}

// RegisterViews registers the unread and peers endpoints.
func RegisterViews(r *mux.Router, svc *chat.Service) {
	h := &Views{svc: svc}
	r.HandleFunc("/unread", h.unread).Methods(http.MethodGet)
	r.HandleFunc("/peers", h.peers).Methods(http.MethodGet)
}

func (h *Views) unread(w http.ResponseWriter, r *http.Request) {
	userID, status, msg := auth.ResolveUserFromRequest(r)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	counts, err := h.svc.CountUnread(userID)
	if err != nil {
		writeChatError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Counts chat.UnreadCounts `json:"counts"`
	}{Counts: counts})
}

func (h *Views) peers(w http.ResponseWriter, r *http.Request) {
	userID, status, msg := auth.ResolveUserFromRequest(r)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	viewer, err := store.GetUser(userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "unknown user")
			return
		}
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	entries, err := directory.Peers(viewer)
	if err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	counts, err := h.svc.CountUnread(userID)
	if err != nil {
		writeChatError(w, err)
		return
	}
	directory.ApplyUnread(entries, counts)
	directory.SortByUnread(entries)
	if entries == nil {
		entries = []models.PeerEntry{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Peers []models.PeerEntry `json:"peers"`
	}{Peers: entries})
}
