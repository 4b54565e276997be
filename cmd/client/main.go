package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pelusa-v/chatroom.git/internal/cache"
	"github.com/pelusa-v/chatroom.git/internal/client"
	"github.com/pelusa-v/chatroom.git/internal/config"
	"github.com/pelusa-v/chatroom.git/internal/logger"
	"github.com/pelusa-v/chatroom.git/internal/types"
	"github.com/pelusa-v/chatroom.git/internal/utils"
)

var (
	configDir = flag.String("config", "./configs", "directory containing config.yaml")
	name      = flag.String("name", "", "display name, overrides client.name")
	url       = flag.String("url", "", "server websocket url, overrides client.url")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger.InitLogger(cfg.Log)

	if *name != "" {
		cfg.Client.Name = *name
	}
	if *url != "" {
		cfg.Client.URL = *url
	}
	if strings.TrimSpace(cfg.Client.Name) == "" {
		log.Error("Fatal error: missing name, use -name or client.name")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := client.Dial(ctx, cfg.Client.URL)
	if err != nil {
		log.Error("Fatal error: failed to connect", "err", err)
		os.Exit(1)
	}

	obs := cache.NewObservable()
	self := types.User{Id: utils.NewUUID(), Name: cfg.Client.Name}
	session := client.NewSession(conn, self, client.WithCache(cache.New(cache.WithHook(obs))))
	obs.Subscribe(printer(os.Stdout))

	if err := session.Login(); err != nil {
		log.Error("Fatal error: login failed", "err", err)
		os.Exit(1)
	}
	log.Info("connected", "url", cfg.Client.URL, "name", session.Self().Name, "id", session.Self().Id)

	ctx, cancel := context.WithCancel(ctx)
	go readCommands(ctx, cancel, os.Stdin, session)

	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Disconnected", "err", err)
		os.Exit(1)
	}
}

// printer 打印新消息
func printer(w io.Writer) cache.Listener {
	return func(ch cache.Change) {
		if ch.Kind != cache.MessageAppended || len(ch.Entry.Data) == 0 {
			return
		}
		m := ch.Entry.Data[len(ch.Entry.Data)-1]
		switch m.Position {
		case types.PositionCenter:
			_, _ = fmt.Fprintf(w, "[%s] %s -- %s --\n", ch.Key, m.Time, m.Msg)
		default:
			_, _ = fmt.Fprintf(w, "[%s] %s %s: %s\n", ch.Key, m.Time, m.Target.Name, m.Msg)
		}
	}
}

func readCommands(ctx context.Context, cancel context.CancelFunc, r io.Reader, s *client.Session) {
	defer cancel()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return
		}
		var cmdErr error
		err := s.Do(ctx, func() { cmdErr = execute(s, line, os.Stdout) })
		if err != nil {
			return
		}
		if cmdErr != nil {
			_, _ = fmt.Fprintln(os.Stdout, cmdErr)
		}
	}
}

func execute(s *client.Session, line string, w io.Writer) error {
	if !strings.HasPrefix(line, "/") {
		return s.SendPublic(line)
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "/to":
		who, msg, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(msg) == "" {
			return errors.New("usage: /to <name> <msg>")
		}
		u, found := s.FindUser(who)
		if !found {
			return fmt.Errorf("用户 %s 不在线", who)
		}
		return s.SendPrivate(u, strings.TrimSpace(msg))

	case "/open":
		if rest == "" {
			return errors.New("usage: /open <name>")
		}
		s.Open(rest)
		for _, m := range s.Cache().GetMessages(rest) {
			_, _ = fmt.Fprintf(w, "  %s %s: %s\n", m.Time, m.Target.Name, m.Msg)
		}

	case "/close":
		if rest == "" {
			return errors.New("usage: /close <name>")
		}
		s.Close(rest)

	case "/users":
		for _, u := range s.Users() {
			_, _ = fmt.Fprintf(w, "  %s\n", u.Name)
		}

	case "/list":
		for _, k := range s.Cache().Keys() {
			mark := " "
			if k == s.Active() {
				mark = "*"
			}
			_, _ = fmt.Fprintf(w, "%s %s (%d)\n", mark, k, s.Cache().GetUnread(k))
		}

	default:
		return fmt.Errorf("unknown command %s", cmd)
	}
	return nil
}
