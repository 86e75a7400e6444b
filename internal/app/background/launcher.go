package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sorealabs/mybro-agent/internal/domain"
	"github.com/sorealabs/mybro-agent/internal/observability"
)

const defaultTaskTimeout = 30 * time.Second

type job struct {
	name string
	run  domain.Task
}

// Launcher schedules fire-and-forget work on a single drain goroutine.
// Launch never blocks and the caller never observes completion: a failed
// task is logged and dropped. Tasks queued from one turn carry no
// ordering guarantee relative to each other once the queue overflows,
// because overflowing tasks run on their own goroutine.
type Launcher struct {
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	jobs   chan job
	closed bool

	drained chan struct{}
}

// NewLauncher starts the drain goroutine. buffer <= 0 defaults to 64.
func NewLauncher(buffer int) *Launcher {
	if buffer <= 0 {
		buffer = 64
	}
	l := &Launcher{
		logger:  observability.Logger(),
		timeout: defaultTaskTimeout,
		jobs:    make(chan job, buffer),
		drained: make(chan struct{}),
	}
	go l.drain()
	return l
}

// Launch implements domain.TaskLauncher.
func (l *Launcher) Launch(name string, task domain.Task) {
	j := job{name: name, run: task}

	l.mu.Lock()
	if !l.closed {
		select {
		case l.jobs <- j:
			l.mu.Unlock()
			return
		default:
			// queue full, fall through to a dedicated goroutine
		}
	}
	l.mu.Unlock()

	go l.execute(j)
}

func (l *Launcher) drain() {
	for j := range l.jobs {
		l.execute(j)
	}
	close(l.drained)
}

func (l *Launcher) execute(j job) {
	// Background work must outlive the request that scheduled it, so it
	// runs against its own context.
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("background task panicked", "task", j.name, "panic", r)
		}
	}()

	if err := j.run(ctx); err != nil {
		l.logger.Error("background task failed", "task", j.name, "error", err)
	}
}

// Close stops accepting queued work and waits for the queue to drain.
// Tasks launched after Close still run, each on its own goroutine.
func (l *Launcher) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.drained
		return
	}
	l.closed = true
	close(l.jobs)
	l.mu.Unlock()

	<-l.drained
}
