package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"marianchat/pkg/api/handlers"
	"marianchat/pkg/auth"
	"marianchat/pkg/chat"
)

// Handler returns the /v1 API surface:
//   - POST   /v1/messages                 send a message
//   - GET    /v1/messages?peer=<id>       conversation snapshot with one peer
//   - GET    /v1/messages/{id}           fetch one message
//   - PUT    /v1/messages/{id}           edit (sender only, within window)
//   - POST   /v1/messages/{id}/seen      mark seen (receiver only)
//   - DELETE /v1/messages/{id}           delete (sender only, any time)
//   - GET    /v1/unread                  unseen counts grouped by sender
//   - GET    /v1/peers                   contact list sorted by unread
//   - GET    /v1/subscribe?peer=<id>     websocket conversation stream
//   - GET    /v1/subscribe/unread        websocket unread-count stream
//   - PUT/GET /v1/users, /v1/groups      directory admin (backend keys only)
func Handler(svc *chat.Service) http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(mux.MiddlewareFunc(auth.RequireSignedUser))

	handlers.RegisterMessages(v1, svc)
	handlers.RegisterViews(v1, svc)
	handlers.RegisterSubscribe(v1, svc)
	handlers.RegisterAdmin(v1)

	return r
}
