package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dormbill/internal/log"
)

// ReminderWorker runs a ReminderProcessor on a fixed interval.
type ReminderWorker struct {
	processor *ReminderProcessor
	interval  time.Duration
	now       func() time.Time
	logger    *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReminderWorker(processor *ReminderProcessor, interval time.Duration, logger *log.Logger) *ReminderWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReminderWorker{
		processor: processor,
		interval:  interval,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentReminder),
	}
}

// Start begins the loop. Returns an error if already running.
func (w *ReminderWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reminder worker is already running")
	}
	if w.interval <= 0 {
		w.mu.Unlock()
		return fmt.Errorf("reminder interval must be positive, got %v", w.interval)
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Reminder worker started", "interval", w.interval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (w *ReminderWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.running = false
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Reminder worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Reminder worker stop timed out")
		return ctx.Err()
	}
}

func (w *ReminderWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ReminderWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ReminderWorker) runOnce(ctx context.Context) {
	if _, err := w.processor.ProcessOverdue(ctx, w.now()); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Overdue processing failed", log.FieldError, err)
	}
}
