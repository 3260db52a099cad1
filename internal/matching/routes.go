package matching

import (
	"github.com/gorilla/mux"

	"github.com/imadgeboyega/kiekky-matchmaker/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, hub *Hub, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/matching").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Discovery
	api.HandleFunc("/discover", handler.Discover).Methods("GET")

	// Interactions
	api.HandleFunc("/users/{id:[0-9]+}/like", handler.Like).Methods("POST")
	api.HandleFunc("/users/{id:[0-9]+}/skip", handler.Skip).Methods("POST")
	api.HandleFunc("/users/{id:[0-9]+}/dislike", handler.Dislike).Methods("POST")
	api.HandleFunc("/users/{id:[0-9]+}/unmatch", handler.Unmatch).Methods("POST")

	// Matches
	api.HandleFunc("/matches", handler.GetMatches).Methods("GET")
	api.HandleFunc("/likes/received", handler.GetReceivedLikes).Methods("GET")

	// Real-time match notifications
	if hub != nil {
		api.HandleFunc("/ws", hub.ServeWS).Methods("GET")
	}
}
