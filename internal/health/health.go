// Package health maintains the liveness heartbeat: a timestamp file
// refreshed on a schedule, plus systemd readiness and watchdog pings
// when running under systemd.
package health

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	logx "telewatch/pkg/logx"
)

const (
	defaultPath = "health.txt"
	defaultSpec = "@every 1m"
)

type Config struct {
	Enabled bool
	Path    string
	// Interval is a cron spec ("* * * * *") or descriptor ("@every 60s").
	// Empty means every minute.
	Interval string
}

// Service runs the heartbeat entirely off the dispatch path: a slow or
// failing disk only affects the heartbeat file, never delivery.
type Service struct {
	cfg Config
	log logx.Logger

	c      *cron.Cron
	cancel context.CancelFunc
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log}
}

// Start schedules the heartbeat and notifies systemd readiness. It is a
// no-op when the heartbeat is disabled (readiness is still signalled).
func (s *Service) Start(ctx context.Context) error {
	hctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// Readiness is independent of the heartbeat file.
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		s.log.Debug("sd_notify ready failed", logx.Err(err))
	} else if sent {
		s.log.Debug("sd_notify ready sent")
	}
	s.startWatchdog(hctx)

	if !s.cfg.Enabled {
		return nil
	}

	spec := strings.TrimSpace(s.cfg.Interval)
	if spec == "" {
		spec = defaultSpec
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s.c = cron.New(cron.WithParser(parser))
	if _, err := s.c.AddFunc(spec, s.beat); err != nil {
		return err
	}
	s.c.Start()

	// Write once immediately so the file exists before the first tick.
	s.beat()
	s.log.Info("health heartbeat started", logx.String("path", s.path()), logx.String("interval", spec))
	return nil
}

func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.c != nil {
		<-s.c.Stop().Done()
	}
}

func (s *Service) path() string {
	p := strings.TrimSpace(s.cfg.Path)
	if p == "" {
		return defaultPath
	}
	return p
}

func (s *Service) beat() {
	ts := time.Now().Format(time.RFC3339)
	if err := os.WriteFile(s.path(), []byte(ts+"\n"), 0o644); err != nil {
		s.log.Warn("heartbeat write failed", logx.String("path", s.path()), logx.Err(err))
	}
}

// startWatchdog pings the systemd watchdog at half its timeout. No-op
// when WATCHDOG_USEC is not set.
func (s *Service) startWatchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
	s.log.Info("systemd watchdog armed", logx.Duration("interval", interval))
}
