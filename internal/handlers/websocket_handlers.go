package handlers

import (
	"log"
	"net/http"

	"inkgate/internal/middleware"
	"inkgate/internal/websocket"

	ws "github.com/gorilla/websocket"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Restrict to Config.AllowedOrigins once the frontend domains settle
		return true
	},
}

// HandleWebSocket upgrades the connection and subscribes it to listing
// snapshots. A token is optional: anonymous subscribers get the locked
// rendering of every paid post, authenticated ones get their own gated view.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID := ""
		if tokenString := r.URL.Query().Get("token"); tokenString != "" {
			claims, err := middleware.ValidateToken(tokenString)
			if err != nil {
				log.Printf("WebSocket connection failed: invalid token: %v", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			viewerID = claims.ViewerID
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for viewer %q: %v", viewerID, err)
			return
		}

		client := &websocket.Client{
			Hub:      s.Hub,
			ViewerID: viewerID,
			Conn:     conn,
			Send:     make(chan []byte, 256),
		}
		client.Hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
