package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRefreshInterval is how often the poller refreshes the ledger statistics.
const DefaultRefreshInterval = 30 * time.Second

// Poller refreshes the store's real-time data on a fixed interval.
type Poller struct {
	store    *Store
	logger   *slog.Logger
	interval time.Duration
	runner   *cron.Cron
}

// NewPoller creates a poller for s. It does nothing until Start is called.
func NewPoller(s *Store, interval time.Duration, logger *slog.Logger) (*Poller, error) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	cl := cronLogger{logger: logger}
	p := &Poller{
		store:    s,
		logger:   logger,
		interval: interval,
		runner: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(
				cron.SkipIfStillRunning(cl),
				cron.Recover(cl),
			),
		),
	}

	if _, err := p.runner.AddFunc(fmt.Sprintf("@every %s", interval), p.refresh); err != nil {
		return nil, fmt.Errorf("failed to schedule refresh: %w", err)
	}
	return p, nil
}

// Start begins polling. The first refresh happens one interval after Start.
func (p *Poller) Start() {
	p.logger.Debug("starting real-time refresh", slog.Duration("interval", p.interval))
	p.runner.Start()
}

// Stop stops polling and waits for a running refresh to finish or ctx to end.
func (p *Poller) Stop(ctx context.Context) error {
	done := p.runner.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("real-time refresh did not stop: %w", ctx.Err())
	}
}

func (p *Poller) refresh() {
	// a refresh must finish before the next one is due
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	if err := p.store.RefreshRealTime(ctx); err != nil {
		return
	}
	p.logger.Debug("real-time data refreshed")
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
