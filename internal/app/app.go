// Package app wires the monitor together: config manager, logging,
// storage, the Telegram feed, the channel registry, and the dispatch
// session lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"telewatch/internal/config"
	"telewatch/internal/dispatch"
	"telewatch/internal/eventbus"
	"telewatch/internal/health"
	"telewatch/internal/notify"
	rtsup "telewatch/internal/runtime/supervisor"
	"telewatch/internal/storage"
	kit "telewatch/internal/transport"
	telegram "telewatch/internal/transport/telegram"
	logx "telewatch/pkg/logx"
)

type Option func(*App)

// WithLogLevel overrides the configured log level (the -v flags).
func WithLogLevel(level string) Option {
	return func(a *App) { a.levelOverride = level }
}

type App struct {
	cfgm  *config.Manager
	creds config.Credentials

	levelOverride string

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	hb *health.Service

	sup *rtsup.Supervisor

	sessMu sync.Mutex
	sess   *runningSession
}

// runningSession bundles everything that lives exactly as long as one
// monitoring session: the feed adapter, the dispatch state, and the
// intake goroutine.
type runningSession struct {
	cancel  context.CancelFunc
	adapter *telegram.Adapter
	disp    *dispatch.Session
	sup     *rtsup.Supervisor
}

func New(cfgPath string, opts ...Option) (*App, error) {
	a := &App{}
	for _, opt := range opts {
		opt(a)
	}

	a.cfgm = config.NewManager(cfgPath)
	cfg, err := a.cfgm.Load()
	if err != nil {
		return nil, err
	}

	a.logs, a.log = logx.New(a.logConfig(cfg))
	a.log = a.log.With(logx.String("comp", "app"))

	a.creds = config.LoadCredentials()
	a.bus = eventbus.New()

	if sc := cfg.Storage; sc != nil && strings.TrimSpace(sc.Driver) != "" {
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 0)
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(storage.Config{
			Driver:      sc.Driver,
			Path:        sc.Path,
			BusyTimeout: busy,
		}, a.log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		a.store = st
		if st != nil {
			a.log.Info("storage enabled", logx.String("driver", sc.Driver))
		}
	}

	a.hb = health.New(health.Config{
		Enabled:  cfg.Health.Enabled,
		Path:     cfg.Health.Path,
		Interval: cfg.Health.Interval,
	}, a.log.With(logx.String("comp", "health")))

	return a, nil
}

// logConfig maps the config file's logging section, honoring the
// verbosity override from the command line.
func (a *App) logConfig(cfg *config.Config) logx.Config {
	level := cfg.Logging.Level
	if a.levelOverride != "" {
		level = a.levelOverride
	}
	return logx.Config{
		Level:   level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Snapshot builds the current immutable session view. Exposed for the
// status report.
func (a *App) Snapshot() *config.Snapshot {
	return a.cfgm.Get().Snapshot(a.creds)
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if err := a.hb.Start(a.sup.Context()); err != nil {
		return err
	}

	cfg := a.cfgm.Get()
	if err := a.startSession(cfg); err != nil {
		return err
	}

	// Debug-level event mirror for observability.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// Config hot-reload fan-in.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := cfg
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				sections, attrs, restart := config.SummarizeChange(lastApplied, newCfg)
				lastApplied = newCfg
				if len(sections) == 0 {
					a.log.Debug("config reload received, but no effective changes detected")
					continue
				}
				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)

				a.logs.Apply(a.logConfig(newCfg))

				for _, s := range sections {
					if s == "storage" {
						a.log.Warn("storage config changed; restart required for changes to take effect")
					}
					if s == "health" {
						a.log.Warn("health config changed; restart required for changes to take effect")
					}
				}

				if restart {
					a.log.Info("monitoring config changed; restarting session")
					a.restartSession(c, newCfg)
				}
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("monitor started", logx.String("config", a.cfgm.Path()))
	return nil
}

// startSession builds a fresh immutable snapshot and spins up the feed
// adapter plus the dispatch session for it.
func (a *App) startSession(cfg *config.Config) error {
	snap := cfg.Snapshot(a.creds)

	token := strings.TrimSpace(cfg.Telegram.Token)
	if token == "" {
		token = a.creds.BotToken
	}
	if token == "" {
		return fmt.Errorf("telegram token missing: set telegram.token or TELEGRAM_BOT_TOKEN")
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	retryBase, err := config.ParseDurationOrDefault("dispatch.retry_base", cfg.Dispatch.RetryBase, time.Second)
	if err != nil {
		return err
	}
	sendTimeout, err := config.ParseDurationOrDefault("dispatch.send_timeout", cfg.Dispatch.SendTimeout, 30*time.Second)
	if err != nil {
		return err
	}

	adapter, err := telegram.New(telegram.Config{
		Token:          token,
		PollTimeout:    pollTimeout,
		SendRatePerSec: float64(cfg.Telegram.SendRatePerSec),
		Chats:          snap.Chats,
	}, a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		return err
	}

	exec := notify.Executor{
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
		BaseDelay:      retryBase,
		AttemptTimeout: sendTimeout,
		Log:            a.log.With(logx.String("comp", "notify")),
		OnRetry: func(name string, attempt int, err error) {
			a.bus.Publish(eventbus.Event{Type: "notify.retry", Data: map[string]any{
				"channel": name,
				"attempt": attempt,
				"reason":  err.Error(),
			}})
		},
	}
	reg := notify.NewRegistry(adapter, exec, a.log)

	disp := dispatch.NewSession(snap, reg,
		dispatch.WithBus(a.bus),
		dispatch.WithStore(a.store),
		dispatch.WithLogger(a.log.With(logx.String("comp", "dispatch"))),
	)

	sctx, cancel := context.WithCancel(a.sup.Context())
	ssup := rtsup.New(sctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "session"))),
		rtsup.WithCancelOnError(false),
	)

	feed := make(chan kit.MessageEvent, 256)
	if err := adapter.Start(sctx, feed); err != nil {
		cancel()
		return err
	}

	ssup.Go0("dispatch.intake", func(c context.Context) {
		for {
			select {
			case <-c.Done():
				return
			case ev := <-feed:
				disp.Handle(c, ev)
			}
		}
	})

	a.sessMu.Lock()
	a.sess = &runningSession{cancel: cancel, adapter: adapter, disp: disp, sup: ssup}
	a.sessMu.Unlock()

	a.log.Info("monitoring session started",
		logx.Int("chats", len(snap.Chats)),
		logx.Int("keywords", len(snap.Keywords)))
	return nil
}

// stopSession ends the running session: stops intake, drains in-flight
// deliveries, and reports the session summary.
func (a *App) stopSession(ctx context.Context) {
	a.sessMu.Lock()
	sess := a.sess
	a.sess = nil
	a.sessMu.Unlock()
	if sess == nil {
		return
	}

	sess.cancel()
	_ = sess.adapter.Stop(ctx)

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	_ = sess.sup.Wait(wctx)
	cancel()

	sess.disp.Finish(ctx)
}

func (a *App) restartSession(ctx context.Context, cfg *config.Config) {
	stopCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	a.stopSession(stopCtx)
	cancel()

	if err := a.startSession(cfg); err != nil {
		a.log.Error("session restart failed", logx.Err(err))
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	a.stopSession(ctx)

	a.hb.Stop()
	a.sup.Cancel()

	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.sup.Wait(wctx); err != nil {
		a.log.Warn("shutdown wait", logx.Err(err))
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// validate rejects configs that would break a hot reload.
func validate(cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("dispatch.retry_base", cfg.Dispatch.RetryBase); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("dispatch.send_timeout", cfg.Dispatch.SendTimeout); err != nil {
		return err
	}
	if cfg.Dispatch.MaxAttempts < 0 {
		return fmt.Errorf("dispatch.max_attempts must be >= 0")
	}
	if cfg.Telegram.SendRatePerSec < 0 {
		return fmt.Errorf("telegram.send_rate_per_sec must be >= 0")
	}
	if cfg.Storage != nil {
		if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
