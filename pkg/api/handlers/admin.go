package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"marianchat/pkg/logger"
	"marianchat/pkg/models"
	"marianchat/pkg/store"
	"marianchat/pkg/utils"
)

// RegisterAdmin registers the directory administration endpoints. The
// gateway already scopes these away from frontend keys; requireBackend
// is a second check.
func RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/users", listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", putUser).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}", getUser).Methods(http.MethodGet)
	r.HandleFunc("/groups", listGroups).Methods(http.MethodGet)
	r.HandleFunc("/groups/{id}", putGroup).Methods(http.MethodPut)
	r.HandleFunc("/groups/{id}", getGroup).Methods(http.MethodGet)
}

func requireBackend(w http.ResponseWriter, r *http.Request) bool {
	role := r.Header.Get("X-Role-Name")
	if role != "backend" && role != "admin" {
		utils.JSONError(w, http.StatusForbidden, "backend key required")
		return false
	}
	return true
}

func listUsers(w http.ResponseWriter, r *http.Request) {
	if !requireBackend(w, r) {
		return
	}
	users, err := store.ListUsers()
	if err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if users == nil {
		users = []models.User{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Users []models.User `json:"users"`
	}{Users: users})
}

func putUser(w http.ResponseWriter, r *http.Request) {
	if !requireBackend(w, r) {
		return
	}
	id := mux.Vars(r)["id"]
	var u models.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	u.ID = id
	if strings.TrimSpace(u.Name) == "" {
		utils.JSONError(w, http.StatusBadRequest, "name is required")
		return
	}
	if u.Role == models.RoleUnknown {
		utils.JSONError(w, http.StatusBadRequest, "role is required")
		return
	}
	if err := store.SaveUser(u); err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	logger.AuditEvent("user_saved", "id", u.ID, "role", u.Role.String())
	_ = utils.JSONWrite(w, http.StatusOK, u)
}

func getUser(w http.ResponseWriter, r *http.Request) {
	if !requireBackend(w, r) {
		return
	}
	id := mux.Vars(r)["id"]
	u, err := store.GetUser(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "user not found")
			return
		}
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, u)
}

func listGroups(w http.ResponseWriter, r *http.Request) {
	if !requireBackend(w, r) {
		return
	}
	groups, err := store.ListGroups()
	if err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Groups []models.Group `json:"groups"`
	}{Groups: groups})
}

func putGroup(w http.ResponseWriter, r *http.Request) {
	if !requireBackend(w, r) {
		return
	}
	id := mux.Vars(r)["id"]
	var g models.Group
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	g.ID = id
	if strings.TrimSpace(g.Name) == "" {
		utils.JSONError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := store.SaveGroup(g); err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	logger.AuditEvent("group_saved", "id", g.ID, "members", len(g.Members))
	_ = utils.JSONWrite(w, http.StatusOK, g)
}

func getGroup(w http.ResponseWriter, r *http.Request) {
	if !requireBackend(w, r) {
		return
	}
	id := mux.Vars(r)["id"]
	g, err := store.GetGroup(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "group not found")
			return
		}
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, g)
}
