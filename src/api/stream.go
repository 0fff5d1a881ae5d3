package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamFrame is one websocket message of the streaming chat: deltas while
// the completion runs, then a single closing frame.
type streamFrame struct {
	Delta string `json:"delta,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleChatStream upgrades the connection, reads one ChatMessage frame and
// relays the LLM token stream back as delta frames.
func (s *Service) handleChatStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("websocket upgrade failed: %v", err))
		return
	}
	defer conn.Close()

	var req ChatMessage
	if err := conn.ReadJSON(&req); err != nil || req.Message == "" {
		conn.WriteJSON(streamFrame{Error: "expected a JSON frame with a message field", Done: true})
		return
	}

	deltas, err := s.chat.StreamChat(c.Request.Context(), req.Message, req.Context)
	if err != nil {
		conn.WriteJSON(streamFrame{Error: err.Error(), Done: true})
		return
	}

	for delta := range deltas {
		if err := conn.WriteJSON(streamFrame{Delta: delta}); err != nil {
			s.logger.Debug(fmt.Sprintf("stream client went away: %v", err))
			return
		}
	}

	conn.WriteJSON(streamFrame{Done: true})
}
