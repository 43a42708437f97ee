package proctor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

// ErrClosed is returned by Snapshot once the monitor has been closed.
var ErrClosed = errors.New("proctor: monitor closed")

// State is the accounting state of a monitor.
type State int

const (
	StateIdle State = iota
	StateMonitoring
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateMonitoring:
		return "monitoring"
	case StateTerminating:
		return "terminating"
	default:
		return "idle"
	}
}

// Status is the camera/integrity indicator shown next to the test.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusOK         Status = "ok"
	StatusPending    Status = "pending"
	StatusTerminated Status = "terminated"
)

// Policy holds the proctoring thresholds.
type Policy struct {
	MaxViolations int
	AbsenceDwell  time.Duration
}

// DefaultPolicy is three violations total and a five second absence window.
func DefaultPolicy() Policy {
	return Policy{MaxViolations: 3, AbsenceDwell: 5 * time.Second}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxViolations <= 0 {
		p.MaxViolations = d.MaxViolations
	}
	if p.AbsenceDwell <= 0 {
		p.AbsenceDwell = d.AbsenceDwell
	}
	return p
}

// Warning describes a counted violation and the counters after it.
type Warning struct {
	Kind             model.ViolationKind `json:"kind"`
	Total            int                 `json:"total"`
	TabSwitches      int                 `json:"tab_switches"`
	CameraViolations int                 `json:"camera_violations"`
	Terminal         bool                `json:"terminal"`
}

// Snapshot is a consistent copy of the monitor's state.
type Snapshot struct {
	State            State
	Status           Status
	TabSwitches      int
	CameraViolations int
	TotalViolations  int
	Overlay          *Warning
	WarningsShown    int
	SignedOut        bool
}

// SignOuter invalidates the authenticated session of the user being proctored.
type SignOuter interface {
	SignOut(ctx context.Context) error
}

// Observer receives monitor output. All methods are called from the
// consumer goroutine, in event order, and must not call Close.
type Observer interface {
	OnStatus(status Status)
	OnWarning(w Warning)
	OnTerminated(w Warning)
}

type nopObserver struct{}

func (nopObserver) OnStatus(Status)      {}
func (nopObserver) OnWarning(Warning)    {}
func (nopObserver) OnTerminated(Warning) {}

type eventKind int

const (
	evStart eventKind = iota
	evReset
	evVisibility
	evPresence
	evDwellElapsed
	evAcknowledge
	evSnapshot
)

type event struct {
	kind  eventKind
	flag  bool
	gen   uint64
	reply chan Snapshot
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock used by the absence timer.
func WithClock(c Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Monitor) { m.log = log }
}

// WithQueueSize sets the event queue capacity.
func WithQueueSize(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// Monitor is the violation-accounting state machine for one assessment
// session. Visibility and presence reports are pushed onto a single ordered
// queue; Run drains it on one goroutine that owns every counter.
type Monitor struct {
	policy    Policy
	signer    SignOuter
	observer  Observer
	clock     Clock
	log       zerolog.Logger
	queueSize int

	events    chan event
	done      chan struct{}
	stopped   chan struct{}
	runState  atomic.Int32
	closeOnce sync.Once

	// owned by Run
	state         State
	tabSwitches   int
	camera        int
	overlay       *Warning
	warningsShown int
	signedOut     bool
	dwell         *DwellTimer
}

// New creates a monitor in the Idle state. Call Run on its own goroutine,
// then Start when the test begins.
func New(policy Policy, signer SignOuter, observer Observer, opts ...Option) *Monitor {
	if observer == nil {
		observer = nopObserver{}
	}
	m := &Monitor{
		policy:    policy.normalized(),
		signer:    signer,
		observer:  observer,
		clock:     SystemClock,
		log:       zerolog.Nop(),
		queueSize: 64,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events = make(chan event, m.queueSize)
	m.dwell = NewDwellTimer(m.clock, m.policy.AbsenceDwell, func(gen uint64) {
		m.enqueue(event{kind: evDwellElapsed, gen: gen})
	})
	return m
}

// Policy returns the thresholds in effect.
func (m *Monitor) Policy() Policy {
	return m.policy
}

const (
	runIdle int32 = iota
	runActive
	runAbandoned
)

// Run consumes events until ctx is cancelled or Close is called. Run
// returns immediately if Close came first or Run is already running.
func (m *Monitor) Run(ctx context.Context) {
	if !m.runState.CompareAndSwap(runIdle, runActive) {
		return
	}
	defer close(m.stopped)
	defer m.dwell.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case ev := <-m.events:
			select {
			case <-m.done:
				return
			default:
			}
			m.handle(ctx, ev)
		}
	}
}

// Close stops the consumer and releases the absence timer. Reports sent
// after Close are dropped. Close is idempotent.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() { close(m.done) })
	if m.runState.CompareAndSwap(runIdle, runAbandoned) {
		return
	}
	if m.runState.Load() == runActive {
		<-m.stopped
	}
}

// Start begins monitoring with zeroed counters.
func (m *Monitor) Start() { m.enqueue(event{kind: evStart}) }

// Reset returns the monitor to Idle, clearing counters and any pending
// absence timer.
func (m *Monitor) Reset() { m.enqueue(event{kind: evReset}) }

// ReportVisibility forwards a page visibility change.
func (m *Monitor) ReportVisibility(hidden bool) {
	m.enqueue(event{kind: evVisibility, flag: hidden})
}

// ReportPresence forwards a per-frame face presence result.
func (m *Monitor) ReportPresence(present bool) {
	m.enqueue(event{kind: evPresence, flag: present})
}

// Acknowledge dismisses the current warning overlay.
func (m *Monitor) Acknowledge() { m.enqueue(event{kind: evAcknowledge}) }

// Snapshot returns the state after every event queued before the call has
// been applied.
func (m *Monitor) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if !m.enqueue(event{kind: evSnapshot, reply: reply}) {
		return Snapshot{}, ErrClosed
	}
	select {
	case s := <-reply:
		return s, nil
	case <-m.done:
		return Snapshot{}, ErrClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (m *Monitor) enqueue(ev event) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

func (m *Monitor) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evStart:
		m.clear()
		m.state = StateMonitoring
		m.observer.OnStatus(StatusOK)

	case evReset:
		m.clear()
		m.observer.OnStatus(StatusIdle)

	case evVisibility:
		if m.state != StateMonitoring || !ev.flag {
			return
		}
		m.tabSwitches++
		m.count(ctx, model.ViolationTabSwitch)

	case evPresence:
		if m.state != StateMonitoring {
			return
		}
		if ev.flag {
			if m.dwell.Cancel() {
				m.observer.OnStatus(StatusOK)
			}
			return
		}
		if m.dwell.Arm() {
			m.observer.OnStatus(StatusPending)
		}

	case evDwellElapsed:
		if m.state != StateMonitoring || !m.dwell.Accept(ev.gen) {
			return
		}
		m.camera++
		m.count(ctx, model.ViolationCamera)
		if m.state == StateMonitoring {
			m.observer.OnStatus(StatusOK)
		}

	case evAcknowledge:
		if m.state == StateMonitoring {
			m.overlay = nil
		}

	case evSnapshot:
		ev.reply <- m.snapshot()
	}
}

func (m *Monitor) count(ctx context.Context, kind model.ViolationKind) {
	w := Warning{
		Kind:             kind,
		Total:            m.tabSwitches + m.camera,
		TabSwitches:      m.tabSwitches,
		CameraViolations: m.camera,
	}
	m.log.Info().
		Str("kind", string(kind)).
		Int("total", w.Total).
		Int("max", m.policy.MaxViolations).
		Msg("Violation counted")

	if w.Total >= m.policy.MaxViolations {
		w.Terminal = true
		m.terminate(ctx, w)
		return
	}

	m.overlay = &w
	m.warningsShown++
	m.observer.OnWarning(w)
}

func (m *Monitor) terminate(ctx context.Context, w Warning) {
	m.state = StateTerminating
	m.dwell.Cancel()
	m.overlay = &w

	if m.signedOut {
		return
	}
	m.signedOut = true

	if m.signer != nil {
		signCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := m.signer.SignOut(signCtx); err != nil {
			m.log.Error().Err(err).Msg("Forced sign-out failed")
		}
		cancel()
	}

	m.log.Warn().Int("total", w.Total).Msg("Violation limit reached, session terminated")
	m.observer.OnStatus(StatusTerminated)
	m.observer.OnTerminated(w)
}

func (m *Monitor) clear() {
	m.dwell.Cancel()
	m.state = StateIdle
	m.tabSwitches = 0
	m.camera = 0
	m.overlay = nil
	m.warningsShown = 0
	m.signedOut = false
}

func (m *Monitor) snapshot() Snapshot {
	s := Snapshot{
		State:            m.state,
		TabSwitches:      m.tabSwitches,
		CameraViolations: m.camera,
		TotalViolations:  m.tabSwitches + m.camera,
		WarningsShown:    m.warningsShown,
		SignedOut:        m.signedOut,
	}
	switch {
	case m.state == StateTerminating:
		s.Status = StatusTerminated
	case m.state == StateIdle:
		s.Status = StatusIdle
	case m.dwell.Armed():
		s.Status = StatusPending
	default:
		s.Status = StatusOK
	}
	if m.overlay != nil {
		o := *m.overlay
		s.Overlay = &o
	}
	return s
}
