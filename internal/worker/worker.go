package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rag-chat/internal/domain"
)

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
	maxAttempts      = 4
	initialBackoff   = 500 * time.Millisecond
	maxBackoff       = 30 * time.Second
)

var (
	// ErrQueueFull is returned when the worker cannot accept more records.
	ErrQueueFull = errors.New("chat log queue is full")
	// ErrStopped is returned for records appended after Stop.
	ErrStopped = errors.New("chat log worker is stopped")
)

// ChatLogWorker persists chat log records in the background. Append never
// blocks on the underlying sink; failed writes are retried with exponential
// backoff and remaining records are drained on Stop.
type ChatLogWorker struct {
	sink   domain.ChatLogSink
	queue  chan domain.ChatLogRecord
	depth  prometheus.Gauge
	logger *slog.Logger

	mu       sync.RWMutex
	stopped  bool
	stopChan chan struct{}
	done     chan struct{}

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewChatLogWorker(sink domain.ChatLogSink, queueSize int, depth prometheus.Gauge, logger *slog.Logger) *ChatLogWorker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &ChatLogWorker{
		sink:           sink,
		queue:          make(chan domain.ChatLogRecord, queueSize),
		depth:          depth,
		logger:         logger,
		stopChan:       make(chan struct{}),
		done:           make(chan struct{}),
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

func (w *ChatLogWorker) Start() {
	w.logger.Info("Starting ChatLogWorker", slog.Int("queue_size", cap(w.queue)))
	go w.run()
}

// Stop rejects new records, persists the queued ones and waits for the
// background goroutine to exit or ctx to expire.
func (w *ChatLogWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopChan)
	w.mu.Unlock()

	w.logger.Info("Stopping ChatLogWorker", slog.Int("pending", len(w.queue)))
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Append enqueues record. It implements domain.ChatLogSink.
func (w *ChatLogWorker) Append(ctx context.Context, record domain.ChatLogRecord) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- record:
		w.setDepth()
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *ChatLogWorker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stopChan:
			w.drain()
			return
		case record := <-w.queue:
			w.setDepth()
			w.persist(record)
		}
	}
}

func (w *ChatLogWorker) drain() {
	for {
		select {
		case record := <-w.queue:
			w.setDepth()
			w.persist(record)
		default:
			return
		}
	}
}

func (w *ChatLogWorker) persist(record domain.ChatLogRecord) {
	var backoff time.Duration
	for attempt := 1; ; attempt++ {
		err := w.write(record)
		if err == nil {
			return
		}
		if attempt >= maxAttempts {
			w.logger.Error("Dropping chat log after retries",
				slog.String("chat_log_id", record.ID.String()),
				slog.Int("attempts", attempt),
				slog.String("error", err.Error()))
			return
		}
		backoff = w.nextBackoff(backoff)
		w.logger.Warn("Chat log write failed, backing off",
			slog.String("chat_log_id", record.ID.String()),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()))
		if !w.wait(backoff) {
			// stopping: one last attempt without waiting
			if err := w.write(record); err != nil {
				w.logger.Error("Dropping chat log on shutdown",
					slog.String("chat_log_id", record.ID.String()),
					slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (w *ChatLogWorker) write(record domain.ChatLogRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return w.sink.Append(ctx, record)
}

// wait sleeps for d and reports false when the worker is stopping.
func (w *ChatLogWorker) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-w.stopChan:
		return false
	}
}

func (w *ChatLogWorker) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return w.initialBackoff
	}
	next := current * 2
	if next > w.maxBackoff {
		return w.maxBackoff
	}
	return next
}

func (w *ChatLogWorker) setDepth() {
	if w.depth != nil {
		w.depth.Set(float64(len(w.queue)))
	}
}

var _ domain.ChatLogSink = (*ChatLogWorker)(nil)
