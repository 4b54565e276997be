package chat

import (
	"context"
	"errors"
	"io"
	log "log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/websocket"
	"github.com/pelusa-v/chatroom.git/internal/types"
)

var errConnClosed = errors.New("fake conn closed")

type frame struct {
	typ  int
	data []byte
}

type fakeConn struct {
	in        chan []byte
	out       chan frame
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan frame, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b, ok := <-f.in:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, b, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(t int, b []byte) error {
	select {
	case <-f.closed:
		return errConnClosed
	default:
	}
	select {
	case f.out <- frame{typ: t, data: append([]byte(nil), b...)}:
		return nil
	case <-f.closed:
		return errConnClosed
	}
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) send(t *testing.T, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	f.in <- b
}

// next 返回下一条文本帧，跳过心跳和关闭帧
func (f *fakeConn) next(t *testing.T) types.Data {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case fr := <-f.out:
			if fr.typ != websocket.TextMessage {
				continue
			}
			var d types.Data
			if err := json.Unmarshal(fr.data, &d); err != nil {
				t.Fatalf("unmarshal %s failed: %v", fr.data, err)
			}
			return d
		case <-deadline:
			t.Fatal("timed out waiting for frame")
		}
	}
}

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(
		WithLogger(log.New(log.NewTextHandler(io.Discard, nil))),
		WithHeartbeat(time.Hour),
		WithSendBuffer(16),
	)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return m
}

func connect(t *testing.T, m *Manager, u types.User) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	conn.send(t, types.CreateData(types.MsgLogin, "", u))
	go m.Serve(conn)
	return conn
}

func names(users []types.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Name)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var (
	alice = types.User{Id: "u-alice", Name: "alice"}
	bob   = types.User{Id: "u-bob", Name: "bob"}
)

func TestManagerLoginBroadcastsSortedRoster(t *testing.T) {
	m := startManager(t)

	bc := connect(t, m, bob)
	d := bc.next(t)
	if d.Type != types.MsgLogin || d.Msg != "用户 bob 加入聊天室" {
		t.Fatalf("first frame = %+v", d)
	}
	if !equalStrings(names(d.List), []string{"bob"}) {
		t.Fatalf("roster = %v", names(d.List))
	}

	ac := connect(t, m, alice)
	for _, c := range []*fakeConn{ac, bc} {
		d := c.next(t)
		if d.Type != types.MsgLogin || d.Target == nil || d.Target.Name != "alice" {
			t.Fatalf("login frame = %+v", d)
		}
		if !equalStrings(names(d.List), []string{"alice", "bob"}) {
			t.Fatalf("roster = %v, want sorted [alice bob]", names(d.List))
		}
	}

	if got := names(m.Users()); !equalStrings(got, []string{"alice", "bob"}) {
		t.Fatalf("Users() = %v", got)
	}
}

func TestManagerRouting(t *testing.T) {
	m := startManager(t)
	ac := connect(t, m, alice)
	ac.next(t)
	bc := connect(t, m, bob)
	ac.next(t)
	bc.next(t)

	t.Run("private is delivered with sender as target", func(t *testing.T) {
		ac.send(t, types.NewPrivateMsg(bob, "hi bob"))
		d := bc.next(t)
		if d.Type != types.MsgPrivate || d.Msg != "hi bob" || d.Target == nil || *d.Target != alice {
			t.Fatalf("bob got %+v", d)
		}
	})

	t.Run("private to offline user returns error", func(t *testing.T) {
		ac.send(t, types.NewPrivateMsg(types.User{Id: "ghost", Name: "ghost"}, "anyone?"))
		d := ac.next(t)
		if d.Type != types.MsgError || d.Msg != ErrMsgOffline {
			t.Fatalf("alice got %+v", d)
		}
	})

	t.Run("public is broadcast with sender as target", func(t *testing.T) {
		bc.send(t, types.NewPublicMsg(types.User{Id: "spoof", Name: "spoof"}, "hello all"))
		for _, c := range []*fakeConn{ac, bc} {
			d := c.next(t)
			if d.Type != types.MsgPublic || d.Msg != "hello all" || d.Target == nil || *d.Target != bob {
				t.Fatalf("got %+v", d)
			}
		}
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		ac.send(t, types.CreateData(types.MsgSystem, "x", alice))
		if d := ac.next(t); d.Type != types.MsgError || d.Msg != ErrMsgBadType {
			t.Fatalf("alice got %+v", d)
		}
	})

	t.Run("malformed payload is rejected", func(t *testing.T) {
		ac.in <- []byte("{not json")
		if d := ac.next(t); d.Type != types.MsgError || d.Msg != ErrMsgBadPayload {
			t.Fatalf("alice got %+v", d)
		}
	})

	t.Run("disconnect broadcasts logout", func(t *testing.T) {
		_ = bc.Close()
		d := ac.next(t)
		if d.Type != types.MsgLogout || d.Msg != "用户 bob 退出聊天室" {
			t.Fatalf("alice got %+v", d)
		}
		if !equalStrings(names(d.List), []string{"alice"}) {
			t.Fatalf("roster = %v", names(d.List))
		}
	})
}

func TestManagerRejectsBadLogin(t *testing.T) {
	tests := []struct {
		name  string
		first []byte
		want  string
	}{
		{name: "not json", first: []byte("hello"), want: ErrMsgBadFormat},
		{name: "wrong type", first: []byte(`{"type":"public","msg":"x","target":{"id":"1","name":"a"}}`), want: ErrMsgBadLogin},
		{name: "missing target", first: []byte(`{"type":"login","msg":""}`), want: ErrMsgBadLogin},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := startManager(t)
			conn := newFakeConn()
			conn.in <- tc.first

			done := make(chan struct{})
			go func() {
				m.Serve(conn)
				close(done)
			}()

			d := conn.next(t)
			if d.Type != types.MsgError || d.Msg != tc.want {
				t.Fatalf("got %+v, want error %q", d, tc.want)
			}
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("Serve did not return after rejecting login")
			}
			if len(m.Users()) != 0 {
				t.Fatalf("users = %v, want none", m.Users())
			}
		})
	}
}

func TestManagerRejectsReadFailure(t *testing.T) {
	m := startManager(t)
	conn := newFakeConn()
	close(conn.in)

	m.Serve(conn)
	if d := conn.next(t); d.Msg != ErrMsgLoginFailed {
		t.Fatalf("got %+v", d)
	}
}

func TestManagerRunAfterStop(t *testing.T) {
	m := NewManager(WithLogger(log.New(log.NewTextHandler(io.Discard, nil))))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if err := m.Run(context.Background()); !errors.Is(err, ErrManagerStopped) {
		t.Fatalf("err = %v, want ErrManagerStopped", err)
	}
}

// releasedConn 记录 Serve 返回后仍然发生的写和关闭
type releasedConn struct {
	*fakeConn
	released atomic.Bool
	late     atomic.Int32
}

func (r *releasedConn) WriteMessage(t int, b []byte) error {
	if r.released.Load() {
		r.late.Add(1)
	}
	return r.fakeConn.WriteMessage(t, b)
}

func (r *releasedConn) Close() error {
	if r.released.Load() {
		r.late.Add(1)
	}
	return r.fakeConn.Close()
}

func TestServeWaitsForWriter(t *testing.T) {
	tests := []struct {
		name string
		stop func(c *releasedConn, cancel context.CancelFunc)
	}{
		{name: "client disconnect", stop: func(c *releasedConn, _ context.CancelFunc) { close(c.in) }},
		{name: "manager stop", stop: func(_ *releasedConn, cancel context.CancelFunc) { cancel() }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager(
				WithLogger(log.New(log.NewTextHandler(io.Discard, nil))),
				WithHeartbeat(5 * time.Millisecond),
			)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = m.Run(ctx) }()

			conn := &releasedConn{fakeConn: newFakeConn()}
			conn.send(t, types.CreateData(types.MsgLogin, "", alice))
			served := make(chan struct{})
			go func() {
				m.Serve(conn)
				conn.released.Store(true)
				close(served)
			}()
			conn.next(t)
			go func() {
				for {
					select {
					case <-conn.out:
					case <-served:
						return
					}
				}
			}()

			tc.stop(conn, cancel)
			select {
			case <-served:
			case <-time.After(2 * time.Second):
				t.Fatal("Serve did not return")
			}
			// 给残留的写协程留出时间
			time.Sleep(20 * time.Millisecond)
			if n := conn.late.Load(); n != 0 {
				t.Fatalf("%d writes after Serve returned", n)
			}
		})
	}
}
