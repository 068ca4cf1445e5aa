package connectivity

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultInterval = 10 * time.Second
	defaultTimeout  = 3 * time.Second
)

// Probe reports whether the remote side is reachable right now.
type Probe interface {
	Check(ctx context.Context) bool
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) bool

// Check calls f(ctx).
func (f ProbeFunc) Check(ctx context.Context) bool { return f(ctx) }

// Options configures periodic probing.
type Options struct {
	// Interval between probes. Zero means 10s; negative disables polling.
	Interval time.Duration
	// Timeout bounds a single probe. Zero means 3s.
	Timeout time.Duration
}

type subscriber struct {
	id uint64
	fn func(online bool)
}

// Monitor is the current reachability plus its observers.
// It is safe for concurrent use.
type Monitor struct {
	log *slog.Logger

	// notifyMu is held from a change through its notification, so subscribers
	// see transitions in the order they happened. Taken before mu.
	notifyMu sync.Mutex

	mu     sync.Mutex
	online bool
	subs   []subscriber
	nextID uint64

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewStatic returns a Monitor that only changes through Set.
func NewStatic(online bool, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	done := make(chan struct{})
	close(done)
	return &Monitor{log: log, online: online, done: done, cancel: func() {}}
}

// New probes once synchronously, so Online is meaningful on return, then keeps
// probing in the background until ctx is done or Close is called.
func New(ctx context.Context, probe Probe, opts Options, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	if opts.Interval == 0 {
		opts.Interval = defaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	m := &Monitor{log: log, done: make(chan struct{})}
	m.online = check(ctx, probe, opts.Timeout)
	log.Info("connectivity.initial", "online", m.online)

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	if opts.Interval < 0 {
		go func() {
			<-runCtx.Done()
			closeProbe(probe)
			close(m.done)
		}()
		return m
	}
	go m.run(runCtx, probe, opts)
	return m
}

// Online reports the last observed reachability.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn for transitions. The returned func unsubscribes and is idempotent.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Set records a reachability observation and notifies subscribers if it
// changed. Subscribers must not call Set.
func (m *Monitor) Set(online bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := append([]subscriber(nil), m.subs...)
	m.mu.Unlock()

	m.log.Info("connectivity.change", "online", online)
	for _, s := range subs {
		s.fn(online)
	}
}

// Close stops background probing and waits for the prober to exit.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		m.cancel()
	})
	<-m.done
}

func (m *Monitor) run(ctx context.Context, probe Probe, opts Options) {
	defer close(m.done)
	defer closeProbe(probe)

	t := time.NewTicker(opts.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Set(check(ctx, probe, opts.Timeout))
		}
	}
}

func check(ctx context.Context, probe Probe, timeout time.Duration) bool {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return probe.Check(cctx)
}

func closeProbe(probe Probe) {
	if c, ok := probe.(io.Closer); ok {
		_ = c.Close()
	}
}
