package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	rtsup "telewatch/internal/runtime/supervisor"
	kit "telewatch/internal/transport"
	logx "telewatch/pkg/logx"
)

// Config configures the Telegram adapter for one monitoring session.
type Config struct {
	Token       string
	PollTimeout time.Duration
	// SendRatePerSec throttles outbound API calls (sends and forwards).
	// Zero means no throttle.
	SendRatePerSec float64
	// Chats is the set of chat IDs to observe. Messages from any other
	// chat are ignored at the adapter boundary.
	Chats []int64
}

// Adapter bridges telebot long polling to the transport interfaces.
type Adapter struct {
	cfg   Config
	log   logx.Logger
	chats map[int64]bool

	bot     *tele.Bot
	out     atomic.Value // stores (chan<- kit.MessageEvent)
	limiter *rate.Limiter

	runMu   sync.Mutex
	running bool

	// sup owns adapter internal goroutines (poll loop, drop logger, stop watcher).
	// It is created on Start() and cancelled on Stop().
	sup *rtsup.Supervisor

	// droppedEvents counts events dropped because the consumer was slower
	// than the Telegram poll loop. Logged periodically to avoid per-event spam.
	droppedEvents uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	chats := make(map[int64]bool, len(cfg.Chats))
	for _, id := range cfg.Chats {
		chats[id] = true
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SendRatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRatePerSec), 1)
	}

	a := &Adapter{cfg: cfg, log: log, chats: chats, bot: b, limiter: limiter}
	// Ensure atomic.Value is initialized with a stable dynamic type.
	var nilOut chan<- kit.MessageEvent
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

// Supervisor returns the adapter's internal supervisor (nil if not started).
func (a *Adapter) Supervisor() *rtsup.Supervisor {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.sup
}

func (a *Adapter) registerHandlers() {
	// Handlers forward to the CURRENT output channel. Start() may swap it.
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Chat == nil {
			return nil
		}
		if !a.chats[m.Chat.ID] {
			return nil
		}
		ev := kit.MessageEvent{
			MessageID: m.ID,
			ChatID:    m.Chat.ID,
			ChatName:  chatName(m.Chat),
			Sender:    senderName(m.Sender),
			Text:      m.Text,
			At:        m.Time(),
		}
		a.sendEvent(ev)
		return nil
	})
}

func chatName(c *tele.Chat) string {
	if c == nil {
		return ""
	}
	if c.Title != "" {
		return c.Title
	}
	if c.Username != "" {
		return c.Username
	}
	return strconv.FormatInt(c.ID, 10)
}

func senderName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (a *Adapter) sendEvent(ev kit.MessageEvent) {
	v := a.out.Load()
	out, _ := v.(chan<- kit.MessageEvent)
	if out == nil {
		return
	}
	select {
	case out <- ev:
	default:
		atomic.AddUint64(&a.droppedEvents, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.MessageEvent) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "telegram.adapter"))),
		// adapter errors should not take down the whole app; treat as best-effort.
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	// Periodic summary for dropped events (avoid noisy per-event logs).
	sup.Go0("events.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				// Final flush.
				if n := atomic.SwapUint64(&a.droppedEvents, 0); n > 0 {
					a.log.Warn("incoming messages dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
				}
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedEvents, 0); n > 0 {
					a.log.Warn("incoming messages dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
				}
			}
		}
	})

	// Ensure we stop telebot when the adapter context is cancelled.
	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		if a.bot != nil {
			a.bot.Stop()
		}
	})

	// Telebot's Start() is a long-running loop. In some failure modes it can
	// exit unexpectedly; run it under a restart loop so the adapter self-heals.
	sup.GoRestart0("telebot.poll", func(c context.Context) {
		a.log.Info("polling started", logx.Int("chats", len(a.chats)))
		// Start blocks until Stop() called.
		if a.bot != nil {
			a.bot.Start()
		}
		a.log.Info("polling stopped")
	}, 500*time.Millisecond, 10*time.Second)

	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	// Best-effort graceful stop. Never block shutdown for too long on Telegram long-poll.
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- kit.MessageEvent
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		a.log.Debug("telegram stop called but not running")
		return nil
	}

	a.log.Info("stopping", logx.Uint64("dropped_events_pending", atomic.LoadUint64(&a.droppedEvents)))
	if sup != nil {
		sup.Cancel()
	}

	// telebot Stop is expected to be fast; run it async just in case.
	if a.bot != nil {
		go a.bot.Stop()
	}

	if sup == nil {
		return nil
	}

	// Grace window: keep shutdown snappy even if getUpdates long-poll is still waiting.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	if err := sup.Wait(wctx); err != nil {
		// Don't hard-fail shutdown for the adapter; just report.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			a.log.Warn("telegram stop timed out", logx.Err(err))
			return nil
		}
		a.log.Warn("telegram stop error", logx.Err(err))
	}
	return nil
}

// Forward relays the original message to the target chat using Telegram's
// native forward, preserving formatting and attribution.
func (a *Adapter) Forward(ctx context.Context, ref kit.MessageRef, to kit.ChatTarget) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	src := tele.StoredMessage{
		MessageID: strconv.Itoa(ref.MessageID),
		ChatID:    ref.ChatID,
	}
	_, err := a.bot.Forward(&tele.Chat{ID: to.ChatID}, src)
	return err
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text)
	return err
}
