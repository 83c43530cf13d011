package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Warmer periodically collects every registered feed so that requests are
// served from a fresh feed cache.
type Warmer struct {
	collector *Collector
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

type WarmerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

func NewWarmer(collector *Collector, config WarmerConfig, logger *slog.Logger) *Warmer {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.Timeout <= 0 || config.Timeout >= config.Interval {
		config.Timeout = config.Interval - config.Interval/10
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Warmer{
		collector: collector,
		interval:  config.Interval,
		timeout:   config.Timeout,
		logger:    logger,
	}
}

// Start runs one warm pass immediately and then one per interval until ctx
// ends or Stop is called. It returns right away.
func (w *Warmer) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("warmer already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.loop(ctx, w.stopCh, w.doneCh)
	return nil
}

func (w *Warmer) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	defer w.markStopped()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Warmer) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ids := w.collector.Registry().All()
	if len(ids) == 0 {
		return
	}
	items, err := w.collector.Collect(runCtx, CollectRequest{FeedIDs: ids})
	if err != nil {
		w.logger.Warn("Cache warm pass failed", "error", err)
		return
	}
	w.logger.Debug("Cache warm pass done", "feeds", len(ids), "items", len(items))
}

// Stop ends the loop and waits for an in-flight pass to finish or ctx to end.
func (w *Warmer) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.stopCh = nil
	w.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("warmer stop: %w", ctx.Err())
	}
}

func (w *Warmer) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Warmer) markStopped() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}
