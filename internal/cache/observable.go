package cache

type ChangeKind int

const (
	EntryCreated ChangeKind = iota
	MessageAppended
	UnreadChanged
	EntryRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case EntryCreated:
		return "created"
	case MessageAppended:
		return "appended"
	case UnreadChanged:
		return "unread"
	case EntryRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change Entry 指向变更后的会话；EntryRemoved 时是被删掉的那个
type Change struct {
	Kind  ChangeKind
	Key   string
	Entry *Entry
}

type Listener func(Change)

// Observable 把变更分发给订阅者，和 CacheMsg 一样只在拥有者 goroutine 上使用
type Observable struct {
	next      int
	listeners map[int]Listener
	order     []int
}

func NewObservable() *Observable {
	return &Observable{listeners: map[int]Listener{}}
}

// Subscribe 返回取消订阅函数，可重复调用
func (o *Observable) Subscribe(l Listener) (cancel func()) {
	id := o.next
	o.next++
	o.listeners[id] = l
	o.order = append(o.order, id)
	return func() {
		if _, ok := o.listeners[id]; !ok {
			return
		}
		delete(o.listeners, id)
		for i, v := range o.order {
			if v == id {
				o.order = append(o.order[:i], o.order[i+1:]...)
				break
			}
		}
	}
}

// Notify 按订阅顺序同步调用；nil 的 Observable 什么都不做
func (o *Observable) Notify(ch Change) {
	if o == nil {
		return
	}
	for _, id := range append([]int(nil), o.order...) {
		if l, ok := o.listeners[id]; ok {
			l(ch)
		}
	}
}
