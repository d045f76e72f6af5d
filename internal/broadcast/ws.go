package broadcast

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin browser clients are expected; auth happens at the
		// gateway in front of this service.
		return true
	},
}

// WSHandler upgrades HTTP connections and registers them with the hub.
type WSHandler struct {
	hub *Hub
	log zerolog.Logger
}

func NewWSHandler(hub *Hub, log zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, log: log}
}

// RegisterRoutes mounts the websocket endpoints on an existing router.
func (h *WSHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/items/{id:[0-9]+}", h.handleItem)
	router.HandleFunc("/ws/events", h.handleFirehose)
}

func (h *WSHandler) handleItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || itemID <= 0 {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}
	h.serve(w, r, itemID)
}

func (h *WSHandler) handleFirehose(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, 0)
}

func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request, itemID int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		ID:     uuid.New().String(),
		ItemID: itemID,
		Conn:   conn,
		Send:   make(chan []byte, clientSendBuffer),
	}

	// Queue the welcome before Register starts the pumps; Send cannot be
	// closed until the pumps are running.
	welcome := fmt.Sprintf(`{"type":"connected","item_id":%d,"client_id":"%s"}`, itemID, client.ID)
	client.Send <- []byte(welcome)

	h.hub.Register(client)
}
