package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the store connectivity as last observed by a Monitor.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrGaveUp is returned once the consecutive-attempt budget is spent.
var ErrGaveUp = errors.New("store unreachable: reconnect attempts exhausted")

// Pinger checks store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type MonitorConfig struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	MaxAttempts int
	Interval    time.Duration
	PingTimeout time.Duration
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		BaseDelay:   5 * time.Second,
		MaxDelay:    time.Minute,
		Multiplier:  1.5,
		MaxAttempts: 10,
		Interval:    10 * time.Second,
		PingTimeout: 5 * time.Second,
	}
}

// Monitor tracks store connectivity: it connects with exponential backoff at
// startup and keeps pinging afterwards, reconnecting when a ping fails.
// Identity operations never consult it.
type Monitor struct {
	pinger Pinger
	cfg    MonitorConfig
	log    *logrus.Entry

	state atomic.Int32

	mu        sync.Mutex
	listeners []func(State)

	sleep func(ctx context.Context, d time.Duration) error
}

func NewMonitor(p Pinger, cfg MonitorConfig, log *logrus.Entry) *Monitor {
	def := DefaultMonitorConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier <= 1.0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	return &Monitor{
		pinger: p,
		cfg:    cfg,
		log:    log,
		sleep:  sleepContext,
	}
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

func (m *Monitor) Connected() bool {
	return m.State() == StateConnected
}

// OnStateChange registers fn to be called on every transition.
func (m *Monitor) OnStateChange(fn func(State)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Monitor) setState(s State) {
	if State(m.state.Swap(int32(s))) == s {
		return
	}
	m.mu.Lock()
	listeners := append([]func(State){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

// NextDelay returns the wait after the given failed attempt (1-based):
// base * multiplier^(attempt-1), capped at MaxDelay.
func (m *Monitor) NextDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return m.cfg.BaseDelay
	}
	delay := float64(m.cfg.BaseDelay) * math.Pow(m.cfg.Multiplier, float64(attempt-1))
	if delay > float64(m.cfg.MaxDelay) {
		return m.cfg.MaxDelay
	}
	return time.Duration(delay)
}

// Connect pings until the store answers, backing off between failures.
// It returns ErrGaveUp after MaxAttempts consecutive failures.
func (m *Monitor) Connect(ctx context.Context) error {
	m.setState(StateConnecting)

	for attempt := 1; ; attempt++ {
		err := m.ping(ctx)
		if err == nil {
			m.setState(StateConnected)
			m.log.WithField("attempt", attempt).Info("store connection established")
			return nil
		}
		if ctx.Err() != nil {
			m.setState(StateDisconnected)
			return ctx.Err()
		}
		if attempt >= m.cfg.MaxAttempts {
			m.setState(StateDisconnected)
			m.log.WithError(err).WithField("attempts", attempt).Error("giving up on store connection")
			return fmt.Errorf("%w: %v", ErrGaveUp, err)
		}

		delay := m.NextDelay(attempt)
		m.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"retryIn": delay.String(),
		}).Warn("store connection attempt failed")

		if err := m.sleep(ctx, delay); err != nil {
			m.setState(StateDisconnected)
			return err
		}
	}
}

// Run pings every Interval and reconnects after a failed ping. It returns
// nil when ctx is cancelled and ErrGaveUp when reconnecting fails.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if err := m.sleep(ctx, m.cfg.Interval); err != nil {
			return nil
		}

		if err := m.ping(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.setState(StateDisconnected)
			m.log.WithError(err).Warn("store ping failed, reconnecting")

			if err := m.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			continue
		}
		m.setState(StateConnected)
	}
}

func (m *Monitor) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.PingTimeout)
	defer cancel()
	return m.pinger.Ping(pingCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
