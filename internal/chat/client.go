package chat

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/pelusa-v/chatroom.git/internal/types"
)

type Client struct {
	Id   string // 连接 id
	User types.User
	Conn ConnLike
	Send chan []byte

	writeDone chan struct{} // WritePump 退出后关闭
	closed    bool // 只在 manager 循环里读写
}

type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// ReadPump 读到的文本帧交给 manager 路由，连接断开后通知下线
func (c *Client) ReadPump(m *Manager) {
	for {
		mt, data, err := c.Conn.ReadMessage()
		if err != nil {
			m.post(m.logoutChan, c)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if !m.postInbound(&inbound{client: c, raw: data}) {
			return
		}
	}
}

func newClient(id string, user types.User, conn ConnLike, buffer int) *Client {
	return &Client{
		Id:        id,
		User:      user,
		Conn:      conn,
		Send:      make(chan []byte, buffer),
		writeDone: make(chan struct{}),
	}
}

// WritePump 发送队列里的消息，并定时发心跳
func (c *Client) WritePump(heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
		close(c.writeDone)
	}()

	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, []byte("hi")); err != nil {
				return
			}
		}
	}
}
