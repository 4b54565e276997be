package chat

import (
	"context"
	"fmt"
	log "log/slog"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/pelusa-v/chatroom.git/internal/types"
)

const defaultHeartbeat = 20 * time.Second

type Option func(*Manager)

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithHeartbeat 心跳间隔，<= 0 时使用默认值
func WithHeartbeat(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.heartbeat = d
		}
	}
}

func WithSendBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.sendBuffer = n
		}
	}
}

// Manager 维护在线用户，所有路由都在 Run 的循环里完成
type Manager struct {
	mu    sync.RWMutex
	users map[string]*Client // user id -> client，只有 Run 循环写

	loginChan  chan *login
	logoutChan chan *Client
	sendChan   chan *inbound
	done       chan struct{}
	stopOnce   sync.Once

	logger     *log.Logger
	heartbeat  time.Duration
	sendBuffer int
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		users:      map[string]*Client{},
		loginChan:  make(chan *login),
		logoutChan: make(chan *Client),
		sendChan:   make(chan *inbound),
		done:       make(chan struct{}),
		logger:     log.Default(),
		heartbeat:  defaultHeartbeat,
		sendBuffer: defaultSendBacklog,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Users 在线用户，按名字排序
func (m *Manager) Users() []types.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usersLocked()
}

func (m *Manager) usersLocked() []types.User {
	out := make([]types.User, 0, len(m.users))
	for _, c := range m.users {
		out = append(out, c.User)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Serve 处理一条 websocket 连接，直到连接断开
func (m *Manager) Serve(conn ConnLike) {
	// 登录请求
	_, raw, err := conn.ReadMessage()
	if err != nil {
		m.reject(conn, ErrMsgLoginFailed)
		return
	}
	var data types.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		m.reject(conn, ErrMsgBadFormat)
		return
	}
	if data.Type != types.MsgLogin || data.Target == nil || data.Target.Id == "" {
		m.reject(conn, ErrMsgBadLogin)
		return
	}

	client := newClient(uuid.NewString(), types.User{Id: data.Target.Id, Name: data.Target.Name}, conn, m.sendBuffer)
	go client.WritePump(m.heartbeat)
	if !m.postLogin(&login{client: client, data: data}) {
		close(client.Send)
		<-client.writeDone
		return
	}
	client.ReadPump(m)
	// conn 在返回后会被回收复用，必须等写协程退出
	<-client.writeDone
}

func (m *Manager) reject(conn ConnLike, msg string) {
	_ = conn.WriteMessage(websocket.TextMessage, encode(errorData(msg)))
	_ = conn.Close()
}

func (m *Manager) postLogin(l *login) bool {
	select {
	case m.loginChan <- l:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) postInbound(in *inbound) bool {
	select {
	case m.sendChan <- in:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) post(ch chan *Client, c *Client) {
	select {
	case ch <- c:
	case <-m.done:
	}
}

// Run 启动聊天管理器，ctx 结束后断开所有连接并返回
func (m *Manager) Run(ctx context.Context) error {
	select {
	case <-m.done:
		return ErrManagerStopped
	default:
	}
	defer m.stop()

	m.logger.InfoContext(ctx, "chat manager started", "heartbeat", m.heartbeat, "send_buffer", m.sendBuffer)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case l := <-m.loginChan:
			m.onLogin(l)

		case c := <-m.logoutChan:
			m.onLogout(c)

		case in := <-m.sendChan:
			m.route(in.client, in.raw)
		}
	}
}

func (m *Manager) stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.mu.Lock()
		clients := make([]*Client, 0, len(m.users))
		for id, c := range m.users {
			clients = append(clients, c)
			delete(m.users, id)
		}
		m.mu.Unlock()
		for _, c := range clients {
			m.closeSend(c)
		}
		m.logger.Info("chat manager stopped", "clients", len(clients))
	})
}

func (m *Manager) onLogin(l *login) {
	c := l.client
	m.mu.Lock()
	old := m.users[c.User.Id]
	m.users[c.User.Id] = c
	m.mu.Unlock()
	// 同一用户重复登录，踢掉旧连接
	if old != nil && old != c {
		m.closeSend(old)
	}

	m.logger.Info("user login", "user_id", c.User.Id, "name", c.User.Name, "conn_id", c.Id)
	data := l.data
	data.Target = &c.User
	data.Msg = fmt.Sprintf(joinMsgTemplate, c.User.Name)
	m.broadcast(data)
}

func (m *Manager) onLogout(c *Client) {
	m.mu.Lock()
	cur, ok := m.users[c.User.Id]
	if ok && cur == c {
		delete(m.users, c.User.Id)
	}
	m.mu.Unlock()
	m.closeSend(c)
	// 已被新连接顶替，不广播下线
	if ok && cur != c {
		return
	}

	m.logger.Info("user logout", "user_id", c.User.Id, "name", c.User.Name, "conn_id", c.Id)
	user := c.User
	m.broadcast(types.CreateData(types.MsgLogout, fmt.Sprintf(leaveMsgTemplate, user.Name), user))
}

func (m *Manager) route(c *Client, raw []byte) {
	var data types.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		m.reply(c, errorData(ErrMsgBadPayload))
		return
	}
	target := data.Target
	data.Target, data.List = nil, nil
	sender := c.User

	switch {
	case data.Type == types.MsgPublic:
		data.Target = &sender
		m.broadcast(data)

	case data.Type == types.MsgPrivate && target != nil:
		to, ok := m.users[target.Id]
		if !ok {
			m.reply(c, errorData(ErrMsgOffline))
			return
		}
		data.Target = &sender
		if !deliver(to, encode(data)) {
			m.drop(to)
		}

	default:
		m.reply(c, errorData(ErrMsgBadType))
	}
}

func (m *Manager) reply(c *Client, d types.Data) {
	if !deliver(c, encode(d)) {
		m.drop(c)
	}
}

// broadcast 给所有在线用户发消息，发送失败的移出在线列表
func (m *Manager) broadcast(data types.Data) {
	if data.Type == types.MsgLogin || data.Type == types.MsgLogout {
		data.List = m.usersLocked()
	}
	b := encode(data)

	var failed []*Client
	for _, c := range m.users {
		if !deliver(c, b) {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		m.drop(c)
	}
}

func deliver(c *Client, b []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.Send <- b:
		return true
	default:
		return false
	}
}

func (m *Manager) drop(c *Client) {
	m.logger.Warn("dropping slow client", "user_id", c.User.Id, "conn_id", c.Id)
	m.mu.Lock()
	if cur, ok := m.users[c.User.Id]; ok && cur == c {
		delete(m.users, c.User.Id)
	}
	m.mu.Unlock()
	m.closeSend(c)
}

func (m *Manager) closeSend(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
