package client

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/npezzotti/go-praat/internal/types"
	"golang.org/x/sync/errgroup"
)

const DefaultPollInterval = 3 * time.Second

// ChatAPI is the part of the API the poller reads from.
type ChatAPI interface {
	PublicChannels(ctx context.Context) ([]types.Channel, error)
	PrivateChats(ctx context.Context, userId int) ([]types.Channel, error)
	ChannelMessages(ctx context.Context, channelId, limit int) ([]types.Message, error)
	OnlineUsers(ctx context.Context) ([]types.OnlineUser, error)
}

// Snapshot is the state published after every applied poll.
type Snapshot struct {
	ChannelId int
	Seq       uint64
	Messages  []types.Message
	Online    []types.OnlineUser
}

type PollerOptions struct {
	Interval time.Duration
	// Limit is passed to getChannelMessages; <= 0 uses the server default.
	Limit    int
	OnUpdate func(Snapshot)
	// OnError receives every failed fetch, e.g. AuthContext.Observe.
	OnError func(error)
}

type pollTask struct {
	channelId int
	cancel    context.CancelFunc
	wake      chan struct{}
	inFlight  atomic.Bool
	done      chan struct{}
}

// Poller keeps the selected channel's messages and the online roster fresh.
// Each selected channel gets its own task; selecting another channel
// cancels it, and responses from superseded polls are dropped.
type Poller struct {
	api  ChatAPI
	log  *log.Logger
	opts PollerOptions

	mu       sync.Mutex
	base     context.Context
	task     *pollTask
	seq      uint64
	channels []types.Channel
	messages []types.Message
	online   []types.OnlineUser
	isOnline bool
	visible  bool
}

func NewPoller(api ChatAPI, logger *log.Logger, opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}

	return &Poller{
		api:      api,
		log:      logger,
		opts:     opts,
		base:     context.Background(),
		isOnline: true,
		visible:  true,
	}
}

// Start loads the channel list and the roster once. userId 0 skips the
// private chats. Tasks started later are bound to ctx.
func (p *Poller) Start(ctx context.Context, userId int) error {
	p.mu.Lock()
	p.base = ctx
	p.mu.Unlock()

	channels, err := p.api.PublicChannels(ctx)
	if err != nil {
		return p.fail(err)
	}

	if userId != 0 {
		private, err := p.api.PrivateChats(ctx, userId)
		if err != nil {
			return p.fail(err)
		}
		channels = append(channels, private...)
	}

	online, err := p.api.OnlineUsers(ctx)
	if err != nil {
		return p.fail(err)
	}

	p.mu.Lock()
	p.channels = channels
	if p.active() {
		p.online = online
	}
	p.mu.Unlock()

	return nil
}

func (p *Poller) fail(err error) error {
	if p.opts.OnError != nil {
		p.opts.OnError(err)
	}
	return err
}

// active reports whether the roster should be shown. Callers hold p.mu.
func (p *Poller) active() bool {
	return p.isOnline && p.visible
}

func (p *Poller) Channels() []types.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.Channel(nil), p.channels...)
}

func (p *Poller) Messages() []types.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.Message(nil), p.messages...)
}

func (p *Poller) Online() []types.OnlineUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.OnlineUser(nil), p.online...)
}

// Selected returns the channel being polled, 0 when none.
func (p *Poller) Selected() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.task == nil {
		return 0
	}
	return p.task.channelId
}

// Select switches polling to channelId. Passing 0 stops polling.
func (p *Poller) Select(channelId int) {
	p.mu.Lock()
	old := p.task
	p.task = nil
	p.seq++
	p.messages = nil

	if channelId != 0 {
		ctx, cancel := context.WithCancel(p.base)
		t := &pollTask{
			channelId: channelId,
			cancel:    cancel,
			wake:      make(chan struct{}, 1),
			done:      make(chan struct{}),
		}
		p.task = t
		go p.run(ctx, t)
	}
	p.mu.Unlock()

	if old != nil {
		old.cancel()
	}
}

// Stop cancels the current task and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	t := p.task
	p.task = nil
	p.seq++
	p.mu.Unlock()

	if t != nil {
		t.cancel()
		<-t.done
	}
}

// SetOnline records presence. Going offline clears the roster; coming back
// polls immediately.
func (p *Poller) SetOnline(online bool) {
	p.setPresence(func() { p.isOnline = online })
}

// SetVisible records whether the chat view is shown, with the same effect
// as SetOnline.
func (p *Poller) SetVisible(visible bool) {
	p.setPresence(func() { p.visible = visible })
}

func (p *Poller) setPresence(apply func()) {
	p.mu.Lock()
	was := p.active()
	apply()
	now := p.active()
	if !now {
		p.online = nil
	}
	t := p.task
	p.mu.Unlock()

	if !was && now && t != nil {
		select {
		case t.wake <- struct{}{}:
		default:
		}
	}
}

func (p *Poller) run(ctx context.Context, t *pollTask) {
	defer close(t.done)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.trigger(ctx, t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.trigger(ctx, t)
		case <-t.wake:
			p.trigger(ctx, t)
		}
	}
}

// trigger starts a poll unless one is still in flight for t.
func (p *Poller) trigger(ctx context.Context, t *pollTask) {
	if !t.inFlight.CompareAndSwap(false, true) {
		return
	}

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	go func() {
		defer t.inFlight.Store(false)
		p.poll(ctx, t, seq)
	}()
}

func (p *Poller) poll(ctx context.Context, t *pollTask, seq uint64) {
	var (
		messages []types.Message
		online   []types.OnlineUser
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		messages, err = p.api.ChannelMessages(gctx, t.channelId, p.opts.Limit)
		return err
	})
	g.Go(func() error {
		var err error
		online, err = p.api.OnlineUsers(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() == nil {
			p.log.Printf("poll channel %d: %v", t.channelId, err)
			p.fail(err)
		}
		return
	}

	p.mu.Lock()
	if seq != p.seq || p.task != t {
		p.mu.Unlock()
		return
	}

	p.messages = messages
	if p.active() {
		p.online = online
	} else {
		p.online = nil
	}
	snap := Snapshot{
		ChannelId: t.channelId,
		Seq:       seq,
		Messages:  append([]types.Message(nil), p.messages...),
		Online:    append([]types.OnlineUser(nil), p.online...),
	}
	p.mu.Unlock()

	if p.opts.OnUpdate != nil {
		p.opts.OnUpdate(snap)
	}
}
