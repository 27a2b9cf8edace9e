package server

import "net/http"

// NewMux assembles the gateway's HTTP surface: the websocket endpoint at the
// root path plus the REST routes.
func NewMux(ws *WebSocketHandler, rest *RestHandlers) *http.ServeMux {
	mux := http.NewServeMux()
	rest.Register(mux)
	mux.Handle("/", ws)
	return mux
}
