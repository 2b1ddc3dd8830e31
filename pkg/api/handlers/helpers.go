package handlers

import (
	"errors"
	"net/http"

	"marianchat/pkg/chat"
	"marianchat/pkg/utils"
)

// writeChatError maps messaging-core sentinel errors onto HTTP status
// codes.
func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrPermission):
		utils.JSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, chat.ErrEditWindow):
		utils.JSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrUnavailable):
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}
