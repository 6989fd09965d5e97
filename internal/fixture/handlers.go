package fixture

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/arun0009/systemcerts/pkg/logger"
)

// Methods served on the root route.
var Methods = []string{
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
}

// Message is the fixed root payload.
type Message struct {
	Message string `json:"message"`
}

var helloWorld = Message{Message: "Hello World"}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	json.NewEncoder(w).Encode(helloWorld)
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

// websocketHandler echoes every message back to the sender.
func websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		if err := conn.WriteMessage(messageType, message); err != nil {
			logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}
