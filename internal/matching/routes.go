package matching

import (
	"github.com/gorilla/mux"
)

func RegisterRoutes(router *mux.Router, handler *Handler) {
	api := router.PathPrefix("/api/v1/matching").Subrouter()

	api.HandleFunc("/run", handler.RunMatch).Methods("POST")
	api.HandleFunc("/chats/{chatId}", handler.GetChatMatches).Methods("GET")
	api.HandleFunc("/chats/{chatId}", handler.ResetChat).Methods("DELETE")
}
