// Package client 是聊天室的客户端状态层：把服务端推送的消息写进会话缓存，
// 并负责发送公聊/私聊消息。
//
// Session 的缓存和在线列表只能在 Run 的循环里访问；其他 goroutine 通过 Do 投递操作。
package client

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"github.com/fasthttp/websocket"
	"github.com/goccy/go-json"
	"github.com/pelusa-v/chatroom.git/internal/cache"
	"github.com/pelusa-v/chatroom.git/internal/types"
)

// PublicKey 公共聊天室的会话 key
const PublicKey = "public"

var ErrSessionStopped = errors.New("client: session stopped")

type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Dial 连接聊天室服务端
func Dial(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

type Option func(*Session)

func WithCache(c *cache.CacheMsg) Option {
	return func(s *Session) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

type Session struct {
	self   types.User
	conn   Conn
	cache  *cache.CacheMsg
	users  []types.User
	active string

	cmds   chan func()
	done   chan struct{}
	logger *log.Logger
}

func NewSession(conn Conn, self types.User, opts ...Option) *Session {
	s := &Session{
		self:   self,
		conn:   conn,
		cache:  cache.New(),
		active: PublicKey,
		cmds:   make(chan func()),
		done:   make(chan struct{}),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Self() types.User       { return s.self }
func (s *Session) Cache() *cache.CacheMsg { return s.cache }
func (s *Session) Users() []types.User    { return s.users }
func (s *Session) Active() string         { return s.active }

// FindUser 按名字查在线用户
func (s *Session) FindUser(name string) (types.User, bool) {
	for _, u := range s.users {
		if u.Name == name {
			return u, true
		}
	}
	return types.User{}, false
}

func (s *Session) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Login 发送登录请求，需在 Run 之前调用
func (s *Session) Login() error {
	return s.write(types.CreateData(types.MsgLogin, "", s.self))
}

func (s *Session) SendPublic(msg string) error {
	return s.write(types.NewPublicMsg(s.self, msg))
}

// SendPrivate 服务端不回显私聊，发送成功后本地写入对方的会话
func (s *Session) SendPrivate(to types.User, msg string) error {
	if err := s.write(types.NewPrivateMsg(to, msg)); err != nil {
		return err
	}
	s.record(to.Name, types.CreateMsgCache(types.PositionRight, s.self, msg), true)
	return nil
}

// Open 切换当前会话并清空未读
func (s *Session) Open(key string) {
	s.active = key
	s.cache.SetUnread(key, 0)
}

// Close 删除会话；关闭当前会话时回到公共聊天室
func (s *Session) Close(key string) {
	s.cache.Remove(key)
	if s.active == key {
		s.active = PublicKey
	}
}

func (s *Session) record(key string, msg types.MsgCache, fromSelf bool) {
	s.cache.AppendMessage(key, msg)
	if !fromSelf && key != s.active {
		s.cache.IncUnread(key)
	}
}

// Apply 把一条服务端消息写入缓存
func (s *Session) Apply(d types.Data) {
	var target types.User
	if d.Target != nil {
		target = *d.Target
	}

	switch d.Type {
	case types.MsgLogin, types.MsgLogout:
		if d.List != nil {
			s.users = d.List
		}
		s.record(PublicKey, types.CreateMsgCache(types.PositionCenter, target, d.Msg), false)

	case types.MsgSystem:
		s.record(PublicKey, types.CreateMsgCache(types.PositionCenter, target, d.Msg), false)

	case types.MsgPublic:
		if target.Id == s.self.Id {
			s.record(PublicKey, types.CreateMsgCache(types.PositionRight, target, d.Msg), true)
			return
		}
		s.record(PublicKey, types.CreateMsgCache(types.PositionLeft, target, d.Msg), false)

	case types.MsgPrivate:
		s.record(target.Name, types.CreateMsgCache(types.PositionLeft, target, d.Msg), false)

	case types.MsgError:
		s.cache.AppendMessage(s.active, types.CreateMsgCache(types.PositionCenter, s.self, d.Msg))

	default:
		s.logger.Warn("ignoring unknown message type", "type", d.Type)
	}
}

// Do 在事件循环里执行 fn，并等待执行完成
func (s *Session) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.cmds <- task:
	case <-s.done:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrSessionStopped
	}
}

// Run 事件循环：读服务端消息、执行 Do 投递的操作，直到 ctx 结束或连接断开
func (s *Session) Run(ctx context.Context) error {
	select {
	case <-s.done:
		return ErrSessionStopped
	default:
	}
	defer close(s.done)

	inbox := make(chan types.Data)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			mt, raw, err := s.conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			var d types.Data
			if err := json.Unmarshal(raw, &d); err != nil {
				s.logger.Warn("dropping malformed frame", "err", err)
				continue
			}
			select {
			case inbox <- d:
			case <-stop:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
			return ctx.Err()
		case err := <-readErr:
			return fmt.Errorf("read: %w", err)
		case d := <-inbox:
			s.Apply(d)
		case fn := <-s.cmds:
			fn()
		}
	}
}
