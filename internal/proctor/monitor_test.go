package proctor

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

// manualClock fires scheduled callbacks only when Advance moves past them.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

type fakeSignOuter struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSignOuter) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeSignOuter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	mu         sync.Mutex
	statuses   []Status
	warnings   []Warning
	terminated []Warning
}

func (r *recorder) OnStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) OnWarning(w Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

func (r *recorder) OnTerminated(w Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminated = append(r.terminated, w)
}

func (r *recorder) Warnings() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Warning(nil), r.warnings...)
}

func (r *recorder) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func (r *recorder) Terminations() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Warning(nil), r.terminated...)
}

type harness struct {
	m      *Monitor
	clock  *manualClock
	signer *fakeSignOuter
	rec    *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: &manualClock{}, signer: &fakeSignOuter{}, rec: &recorder{}}
	h.m = New(DefaultPolicy(), h.signer, h.rec, WithClock(h.clock))

	ctx, cancel := context.WithCancel(context.Background())
	go h.m.Run(ctx)
	t.Cleanup(func() {
		h.m.Close()
		cancel()
	})
	h.m.Start()
	return h
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := h.m.Snapshot(ctx)
	require.NoError(t, err)
	return s
}

func TestMonitor_TwoTabSwitchesWarnTwice(t *testing.T) {
	h := newHarness(t)

	h.m.ReportVisibility(true)
	h.m.ReportVisibility(false)
	h.m.ReportVisibility(true)

	s := h.snapshot(t)
	assert.Equal(t, 2, s.TabSwitches)
	assert.Equal(t, 0, s.CameraViolations)
	assert.Equal(t, 2, s.TotalViolations)
	assert.Equal(t, StateMonitoring, s.State)
	assert.Equal(t, 2, s.WarningsShown)
	require.NotNil(t, s.Overlay)
	assert.Equal(t, model.ViolationTabSwitch, s.Overlay.Kind)
	assert.Equal(t, 2, s.Overlay.Total)

	warnings := h.rec.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, 1, warnings[0].Total)
	assert.Equal(t, 2, warnings[1].Total)
	assert.Zero(t, h.signer.Calls())
}

func TestMonitor_CameraTimeoutTerminatesOnce(t *testing.T) {
	h := newHarness(t)

	h.m.ReportVisibility(true)
	h.m.ReportVisibility(true)
	h.m.ReportPresence(false)
	require.Equal(t, StatusPending, h.snapshot(t).Status)

	h.clock.Advance(5 * time.Second)

	s := h.snapshot(t)
	assert.Equal(t, StateTerminating, s.State)
	assert.Equal(t, StatusTerminated, s.Status)
	assert.Equal(t, 3, s.TotalViolations)
	assert.Equal(t, 1, s.CameraViolations)
	assert.True(t, s.SignedOut)
	assert.Equal(t, 1, h.signer.Calls())

	// Further violations after termination are ignored.
	h.m.ReportVisibility(true)
	h.m.ReportPresence(false)
	h.clock.Advance(10 * time.Second)
	h.m.ReportVisibility(true)

	s = h.snapshot(t)
	assert.Equal(t, 3, s.TotalViolations)
	assert.Equal(t, 1, h.signer.Calls())

	terms := h.rec.Terminations()
	require.Len(t, terms, 1)
	assert.Equal(t, model.ViolationCamera, terms[0].Kind)
	assert.True(t, terms[0].Terminal)
}

func TestMonitor_PresenceReacquiredWithinDwell(t *testing.T) {
	h := newHarness(t)

	h.m.ReportPresence(false)
	require.Equal(t, StatusPending, h.snapshot(t).Status)
	h.clock.Advance(2 * time.Second)
	h.m.ReportPresence(true)
	_ = h.snapshot(t)
	h.clock.Advance(10 * time.Second)

	s := h.snapshot(t)
	assert.Equal(t, 0, s.CameraViolations)
	assert.Equal(t, StatusOK, s.Status)
	assert.Zero(t, s.WarningsShown)
	assert.Nil(t, s.Overlay)
	assert.Empty(t, h.rec.Warnings())
}

func TestMonitor_CameraOnlyTermination(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		h.m.ReportPresence(false)
		_ = h.snapshot(t)
		h.clock.Advance(5 * time.Second)
		_ = h.snapshot(t)
	}

	s := h.snapshot(t)
	assert.Equal(t, 3, s.CameraViolations)
	assert.Equal(t, StateTerminating, s.State)
	assert.Equal(t, 1, h.signer.Calls())
	assert.Len(t, h.rec.Warnings(), 2)
}

func TestMonitor_RepeatedAbsentFramesKeepOriginalDeadline(t *testing.T) {
	h := newHarness(t)

	h.m.ReportPresence(false)
	_ = h.snapshot(t)
	h.clock.Advance(3 * time.Second)
	h.m.ReportPresence(false)
	_ = h.snapshot(t)
	h.clock.Advance(2 * time.Second)

	s := h.snapshot(t)
	assert.Equal(t, 1, s.CameraViolations)
	assert.Equal(t, StatusOK, s.Status, "timer is disarmed after it elapses")
}

func TestMonitor_ResetCancelsPendingTimer(t *testing.T) {
	h := newHarness(t)

	h.m.ReportVisibility(true)
	h.m.ReportPresence(false)
	_ = h.snapshot(t)
	h.m.Reset()

	s := h.snapshot(t)
	assert.Equal(t, StateIdle, s.State)
	assert.Zero(t, s.TotalViolations)
	assert.Nil(t, s.Overlay)

	h.clock.Advance(10 * time.Second)
	h.m.Start()

	s = h.snapshot(t)
	assert.Equal(t, StateMonitoring, s.State)
	assert.Zero(t, s.CameraViolations)
}

func TestMonitor_EventsIgnoredWhileIdle(t *testing.T) {
	clock := &manualClock{}
	m := New(DefaultPolicy(), &fakeSignOuter{}, nil, WithClock(clock))
	go m.Run(context.Background())
	defer m.Close()

	m.ReportVisibility(true)
	m.ReportPresence(false)
	clock.Advance(time.Minute)

	s, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State)
	assert.Zero(t, s.TotalViolations)
}

func TestMonitor_Acknowledge(t *testing.T) {
	h := newHarness(t)

	h.m.ReportVisibility(true)
	require.NotNil(t, h.snapshot(t).Overlay)

	h.m.Acknowledge()
	s := h.snapshot(t)
	assert.Nil(t, s.Overlay)
	assert.Equal(t, 1, s.WarningsShown)

	h.m.ReportVisibility(true)
	h.m.ReportVisibility(true)
	h.m.Acknowledge()

	s = h.snapshot(t)
	assert.Equal(t, StateTerminating, s.State)
	require.NotNil(t, s.Overlay, "terminal overlay cannot be acknowledged")
	assert.True(t, s.Overlay.Terminal)
}

func TestMonitor_CustomPolicy(t *testing.T) {
	clock := &manualClock{}
	signer := &fakeSignOuter{}
	m := New(Policy{MaxViolations: 1, AbsenceDwell: time.Second}, signer, nil, WithClock(clock))
	go m.Run(context.Background())
	defer m.Close()

	m.Start()
	m.ReportPresence(false)
	_, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	clock.Advance(time.Second)

	s, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateTerminating, s.State)
	assert.Zero(t, s.WarningsShown)
	assert.Equal(t, 1, signer.Calls())
}

func TestMonitor_CloseReleasesTimer(t *testing.T) {
	clock := &manualClock{}
	signer := &fakeSignOuter{}
	m := New(DefaultPolicy(), signer, nil, WithClock(clock))
	go m.Run(context.Background())

	m.Start()
	m.ReportVisibility(true)
	m.ReportVisibility(true)
	m.ReportPresence(false)
	_, err := m.Snapshot(context.Background())
	require.NoError(t, err)

	m.Close()
	m.Close()
	clock.Advance(time.Minute)
	m.ReportVisibility(true)

	_, err = m.Snapshot(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, signer.Calls())
}

func TestMonitor_CloseBeforeRun(t *testing.T) {
	rec := &recorder{}
	m := New(DefaultPolicy(), &fakeSignOuter{}, rec, WithClock(&manualClock{}))

	m.Start()
	m.ReportVisibility(true)

	closed := make(chan struct{})
	go func() {
		m.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked without a running consumer")
	}

	ran := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(ran)
	}()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("Run kept going after Close")
	}

	assert.Empty(t, rec.Statuses())
	assert.Empty(t, rec.Warnings())
	m.Close()
}

func TestDwellTimer_StaleGenerationDiscarded(t *testing.T) {
	clock := &manualClock{}
	var fired []uint64
	d := NewDwellTimer(clock, time.Second, func(gen uint64) { fired = append(fired, gen) })

	require.True(t, d.Arm())
	require.False(t, d.Arm(), "second arm keeps the first deadline")
	first := d.gen

	require.True(t, d.Cancel())
	require.False(t, d.Cancel())
	assert.False(t, d.Accept(first), "cancelled generation is stale")

	require.True(t, d.Arm())
	clock.Advance(time.Second)
	require.Len(t, fired, 1)
	assert.NotEqual(t, first, fired[0])
	assert.True(t, d.Accept(fired[0]))
	assert.False(t, d.Armed())
	assert.False(t, d.Accept(fired[0]), "a generation is accepted once")
}
