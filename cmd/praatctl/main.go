// praatctl is a terminal chat client: it logs in, follows one channel by
// polling and sends every typed line as a message.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/npezzotti/go-praat/internal/client"
	"github.com/npezzotti/go-praat/internal/config"
	"github.com/npezzotti/go-praat/internal/types"
	"golang.org/x/term"
)

var (
	serverURL string
	email     string
	prefsPath string
	channelId int
	interval  = client.DefaultPollInterval
)

type app struct {
	log    *log.Logger
	out    io.Writer
	api    *client.Client
	auth   *client.AuthContext
	prefs  *client.Prefs
	poller *client.Poller

	mu     sync.Mutex
	lastId map[int]int
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "praat", "prefs.json")
}

func main() {
	logger := log.New(os.Stderr, "[praatctl] ", log.LstdFlags)

	if err := config.LoadEnv(".env"); err != nil {
		logger.Fatal("env:", err)
	}

	flag.StringVar(&serverURL, "url", config.Env("PRAAT_URL", "http://localhost:8000"), "server base url")
	flag.StringVar(&email, "email", config.Env("PRAAT_EMAIL", ""), "login email")
	flag.StringVar(&prefsPath, "prefs", defaultPrefsPath(), "preferences file")
	flag.IntVar(&channelId, "channel", 0, "channel to join, defaults to the last one")
	flag.DurationVar(&interval, "interval", interval, "poll interval")
	flag.Parse()

	if prefsPath != "" {
		if err := os.MkdirAll(filepath.Dir(prefsPath), 0o700); err != nil {
			logger.Fatal("prefs dir:", err)
		}
	}

	prefs, err := client.LoadPrefs(prefsPath)
	if err != nil {
		logger.Fatal("prefs:", err)
	}

	api, err := client.NewClient(serverURL, nil)
	if err != nil {
		logger.Fatal("client:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		log:    logger,
		out:    os.Stdout,
		api:    api,
		auth:   client.NewAuthContext(api, prefs, logger),
		prefs:  prefs,
		lastId: make(map[int]int),
	}

	if err := a.run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal(err)
	}
}

func (a *app) run(ctx context.Context, in *os.File) error {
	if err := a.auth.Verify(ctx); err != nil {
		return fmt.Errorf("verify session: %w", err)
	}

	lines := bufio.NewScanner(in)
	if a.auth.State() != client.StateAuthenticated {
		if err := a.login(ctx, in, lines); err != nil {
			return err
		}
	}

	user, _ := a.auth.User()
	fmt.Fprintf(a.out, "logged in as %s (%s)\n", user.Username, user.Role)

	a.poller = client.NewPoller(a.api, a.log, client.PollerOptions{
		Interval: interval,
		OnUpdate: a.render,
		OnError:  func(err error) { a.auth.Observe(err) },
	})
	defer a.poller.Stop()

	if err := a.poller.Start(ctx, user.Id); err != nil {
		return fmt.Errorf("load channels: %w", err)
	}
	a.printChannels()

	if channelId == 0 {
		channelId = a.prefs.LastChatId()
	}
	if channelId == 0 {
		if channels := a.poller.Channels(); len(channels) > 0 {
			channelId = channels[0].Id
		}
	}
	a.join(channelId)

	input := make(chan string)
	go func() {
		defer close(input)
		for lines.Scan() {
			input <- lines.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-input:
			if !ok {
				return nil
			}
			if quit := a.handle(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func (a *app) login(ctx context.Context, in *os.File, lines *bufio.Scanner) error {
	if email == "" {
		fmt.Fprint(a.out, "email: ")
		if !lines.Scan() {
			return errors.New("no email given")
		}
		email = strings.TrimSpace(lines.Text())
	}

	fmt.Fprint(a.out, "password: ")
	var password string
	if term.IsTerminal(int(in.Fd())) {
		raw, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(a.out)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	} else {
		if !lines.Scan() {
			return errors.New("no password given")
		}
		password = lines.Text()
	}

	if _, err := a.auth.Login(ctx, email, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	return nil
}

// handle runs one input line and reports whether to quit.
func (a *app) handle(ctx context.Context, line string) bool {
	switch {
	case line == "":
	case line == "/quit":
		return true
	case line == "/channels":
		a.printChannels()
	case line == "/who":
		a.printRoster(a.poller.Online())
	case line == "/away":
		a.poller.SetOnline(false)
	case line == "/back":
		a.poller.SetOnline(true)
	case line == "/logout":
		if err := a.auth.Logout(ctx); err != nil {
			a.log.Println("logout:", err)
		}
		return true
	case strings.HasPrefix(line, "/join "):
		id, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/join ")))
		if err != nil {
			fmt.Fprintln(a.out, "usage: /join <channel id>")
			return false
		}
		a.join(id)
	case strings.HasPrefix(line, "/dm "):
		a.directMessage(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/dm ")))
	default:
		a.send(ctx, line)
	}

	return false
}

func (a *app) join(id int) {
	if id == 0 {
		fmt.Fprintln(a.out, "no channel to join")
		return
	}

	a.poller.Select(id)
	if err := a.prefs.SetLastChatId(id); err != nil {
		a.log.Println("save last chat:", err)
	}
	fmt.Fprintf(a.out, "-- joined channel %d\n", id)
}

func (a *app) send(ctx context.Context, text string) {
	user, ok := a.auth.User()
	if !ok {
		fmt.Fprintln(a.out, "not logged in")
		return
	}

	selected := a.poller.Selected()
	if selected == 0 {
		fmt.Fprintln(a.out, "join a channel first")
		return
	}

	if _, err := a.api.SendMessage(ctx, selected, user.Id, text); err != nil {
		fmt.Fprintln(a.out, "send failed:", a.auth.Observe(err))
	}
}

func (a *app) directMessage(ctx context.Context, username string) {
	user, ok := a.auth.User()
	if !ok {
		fmt.Fprintln(a.out, "not logged in")
		return
	}

	other, err := a.api.GetUserByUsername(ctx, username)
	if err != nil {
		fmt.Fprintln(a.out, "lookup failed:", a.auth.Observe(err))
		return
	}

	channel, err := a.api.CreatePrivateChat(ctx, user.Id, other.Id)
	if err != nil {
		fmt.Fprintln(a.out, "private chat failed:", a.auth.Observe(err))
		return
	}

	a.join(channel.Id)
}

// render prints the messages of a snapshot not printed before.
func (a *app) render(s client.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	last := a.lastId[s.ChannelId]
	for _, m := range s.Messages {
		if m.Id <= last || m.IsDeleted {
			continue
		}
		fmt.Fprintf(a.out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.User.Username, m.Text)
		last = m.Id
	}
	a.lastId[s.ChannelId] = last
}

func (a *app) printChannels() {
	for _, c := range a.poller.Channels() {
		fmt.Fprintf(a.out, "  %4d  %-8s %s\n", c.Id, c.Type, c.Name)
	}
}

func (a *app) printRoster(users []types.OnlineUser) {
	if len(users) == 0 {
		fmt.Fprintln(a.out, "nobody online")
		return
	}

	for _, u := range users {
		badge := u.Role
		switch {
		case u.IsAdmin:
			badge = "admin"
		case u.IsCreator:
			badge = "creator"
		}
		fmt.Fprintf(a.out, "  %-20s %s\n", u.Username, badge)
	}
}
