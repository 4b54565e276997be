// Package cache 保存每个会话的消息列表和未读数。
//
// CacheMsg 没有锁，只能由一个 goroutine 读写（客户端事件循环）。
package cache

import (
	"sort"

	"github.com/pelusa-v/chatroom.git/internal/types"
)

type Entry struct {
	Unread int              `json:"unread"`
	Data   []types.MsgCache `json:"data"` // 按到达顺序，只追加
}

// Hook 接收每次变更
type Hook interface {
	Notify(Change)
}

type Option func(*CacheMsg)

func WithHook(h Hook) Option {
	return func(c *CacheMsg) {
		if h != nil {
			c.hook = h
		}
	}
}

type CacheMsg struct {
	data map[string]*Entry // 会话 key -> 会话
	hook Hook
}

func New(opts ...Option) *CacheMsg {
	c := &CacheMsg{data: map[string]*Entry{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CacheMsg) notify(kind ChangeKind, key string, e *Entry) {
	if c.hook != nil {
		c.hook.Notify(Change{Kind: kind, Key: key, Entry: e})
	}
}

// GetEntry 不存在时创建空会话并保存
func (c *CacheMsg) GetEntry(key string) *Entry {
	if e, ok := c.data[key]; ok {
		return e
	}
	e := &Entry{Data: []types.MsgCache{}}
	c.data[key] = e
	c.notify(EntryCreated, key, e)
	return e
}

func (c *CacheMsg) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Remove 删除会话，之后再取到的是新的空会话
func (c *CacheMsg) Remove(key string) {
	e, ok := c.data[key]
	if !ok {
		return
	}
	delete(c.data, key)
	c.notify(EntryRemoved, key, e)
}

// GetMessages 返回会话内部的切片，不做拷贝，调用方只读
func (c *CacheMsg) GetMessages(key string) []types.MsgCache {
	return c.GetEntry(key).Data
}

func (c *CacheMsg) AppendMessage(key string, msg types.MsgCache) {
	e := c.GetEntry(key)
	e.Data = append(e.Data, msg)
	c.notify(MessageAppended, key, e)
}

func (c *CacheMsg) GetUnread(key string) int {
	return c.GetEntry(key).Unread
}

// SetUnread 不检查负数
func (c *CacheMsg) SetUnread(key string, n int) {
	e := c.GetEntry(key)
	e.Unread = n
	c.notify(UnreadChanged, key, e)
}

// AddUnread delta 可为负，不做下限处理
func (c *CacheMsg) AddUnread(key string, delta int) {
	e := c.GetEntry(key)
	e.Unread += delta
	c.notify(UnreadChanged, key, e)
}

func (c *CacheMsg) IncUnread(key string) {
	c.AddUnread(key, 1)
}

// Keys 已有会话 key，按字典序
func (c *CacheMsg) Keys() []string {
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
