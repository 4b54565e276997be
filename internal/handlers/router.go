package handlers

import (
	"io"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pelusa-v/chatroom.git/internal/chat"
	"github.com/pelusa-v/chatroom.git/internal/config"
	"github.com/pelusa-v/chatroom.git/internal/logger"
)

// NewApp 组装路由；accessLog 为 nil 时请求日志只写控制台
func NewApp(m *chat.Manager, cfg config.ServerConfig, accessLog io.Writer) *fiber.App {
	app := fiber.New(fiber.Config{
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(logger.AccessLog(accessLog))

	h := NewChatHandler(m)

	// WS & APIs
	app.Get("/ws", websocket.New(h.Serve))
	app.Get("/api/users", h.UsersHandler)
	app.Get("/health", HealthHandler)

	// 前端打包产物
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir, fiber.Static{Index: "index.html"})
	}
	return app
}
