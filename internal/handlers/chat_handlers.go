package handlers

import (
	log "log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/pelusa-v/chatroom.git/internal/chat"
)

type ChatHandler struct {
	manager *chat.Manager
}

func NewChatHandler(m *chat.Manager) *ChatHandler {
	return &ChatHandler{manager: m}
}

// Serve GET /ws，非 websocket 请求由 websocket.New 返回 426
func (h *ChatHandler) Serve(c *websocket.Conn) {
	log.Debug("ws connected", "remote", c.RemoteAddr().String())
	h.manager.Serve(c)
	log.Debug("ws closed", "remote", c.RemoteAddr().String())
}

// UsersHandler GET /api/users
func (h *ChatHandler) UsersHandler(c *fiber.Ctx) error {
	return c.JSON(h.manager.Users())
}

// HealthHandler GET /health
func HealthHandler(c *fiber.Ctx) error {
	return c.SendString("OK")
}
