package utility

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Hub of connected clinician dashboards: Map[ClientID] -> Connection
var (
	Clients   = make(map[string]*websocket.Conn)
	ClientsMu sync.Mutex
	Upgrader  = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
)

const RefreshMessage = "RECORDS_UPDATED"

// RegisterClient stores a new dashboard connection and returns its id.
func RegisterClient(conn *websocket.Conn) string {
	id := uuid.New().String()
	ClientsMu.Lock()
	defer ClientsMu.Unlock()
	Clients[id] = conn
	log.Info().Str("client_id", id).Msg("WebSocket Client Connected")
	return id
}

// UnregisterClient drops a connection (when the tab is closed).
func UnregisterClient(id string) {
	ClientsMu.Lock()
	defer ClientsMu.Unlock()
	if _, ok := Clients[id]; ok {
		delete(Clients, id)
		log.Info().Str("client_id", id).Msg("WebSocket Client Disconnected")
	}
}

// ClientCount returns the number of connected dashboards.
func ClientCount() int {
	ClientsMu.Lock()
	defer ClientsMu.Unlock()
	return len(Clients)
}

// BroadcastToClients sends msg to every dashboard, dropping connections that fail.
func BroadcastToClients(msg string) {
	ClientsMu.Lock()
	defer ClientsMu.Unlock()

	for id, conn := range Clients {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			log.Error().Err(err).Str("client_id", id).Msg("Failed to send WS message, removing client")
			conn.Close()
			delete(Clients, id)
		}
	}
}

// TriggerDashboardUpdate tells every dashboard that records changed.
func TriggerDashboardUpdate() {
	BroadcastToClients(RefreshMessage)
}
