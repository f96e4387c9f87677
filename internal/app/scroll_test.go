package app_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Prompter/internal/app"
	"github.com/dkeye/Prompter/internal/core"
	"github.com/dkeye/Prompter/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	types []string
}

func (r *recorder) TrySend(f core.Frame) error {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(f, &msg); err != nil {
		return err
	}
	r.mu.Lock()
	r.types = append(r.types, msg.Type)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Close() {}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.types = nil
	r.mu.Unlock()
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) app.Stopper {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

func (ft *fakeTimers) last(t *testing.T) *fakeTimer {
	t.Helper()
	ft.mu.Lock()
	defer ft.mu.Unlock()
	require.NotEmpty(t, ft.timers)
	return ft.timers[len(ft.timers)-1]
}

type scrollFixture struct {
	store  *core.ProjectStore
	rooms  *core.Rooms
	scroll *app.ScrollController
	timers *fakeTimers
	member *recorder
	pid    domain.ProjectID
}

func newScrollFixture(t *testing.T) *scrollFixture {
	t.Helper()
	store := core.NewProjectStore(zerolog.Nop())
	registry := core.NewRegistry(zerolog.Nop())
	rooms := core.NewRooms(store, registry, nil, zerolog.Nop())
	timers := &fakeTimers{}
	clock := time.Unix(1700000000, 0)
	scroll := app.NewScrollController(store, rooms, zerolog.Nop(),
		app.WithAfterFunc(timers.AfterFunc),
		app.WithClock(func() time.Time { return clock }),
	)

	p := store.Create("Talk", "hello")
	member := &recorder{}
	registry.Register("v1", "", member, nil)
	_, err := registry.SetRole("v1", domain.RoleViewer)
	require.NoError(t, err)
	require.NoError(t, rooms.Join(p.ID, "v1"))
	member.reset()

	return &scrollFixture{store: store, rooms: rooms, scroll: scroll, timers: timers, member: member, pid: p.ID}
}

// locked runs fn the way the gateway does, under the project's lock.
func (f *scrollFixture) locked(t *testing.T, fn func()) {
	t.Helper()
	unlock, err := f.store.Lock(f.pid)
	require.NoError(t, err)
	defer unlock()
	fn()
}

func (f *scrollFixture) enableDelay(t *testing.T, seconds int) {
	t.Helper()
	on := true
	_, err := f.store.UpdateSettings(f.pid, domain.Patch{UseStartDelay: &on, StartDelay: &seconds})
	require.NoError(t, err)
}

func TestScroll_StartWithoutDelayScrollsAtOnce(t *testing.T) {
	f := newScrollFixture(t)

	f.locked(t, func() {
		changed, err := f.scroll.Start(f.pid)
		require.NoError(t, err)
		assert.True(t, changed)
	})
	assert.Equal(t, domain.ScrollScrolling, f.scroll.State(f.pid))
	assert.Equal(t, []string{domain.EvtScrollingStarted}, f.member.seen())

	p, _ := f.store.Get(f.pid)
	assert.True(t, p.IsScrolling)

	f.locked(t, func() {
		changed, err := f.scroll.Start(f.pid)
		require.NoError(t, err)
		assert.False(t, changed)
	})
	assert.Len(t, f.member.seen(), 1)
}

func TestScroll_CountdownResolvesToScrolling(t *testing.T) {
	f := newScrollFixture(t)
	f.enableDelay(t, 3)

	f.locked(t, func() {
		changed, err := f.scroll.Start(f.pid)
		require.NoError(t, err)
		assert.True(t, changed)
	})
	assert.Equal(t, domain.ScrollCountingDown, f.scroll.State(f.pid))
	p, _ := f.store.Get(f.pid)
	require.NotNil(t, p.Countdown)
	assert.Equal(t, 3, p.Countdown.Seconds)
	assert.False(t, p.IsScrolling)

	timer := f.timers.last(t)
	assert.Equal(t, 3*time.Second, timer.d)
	timer.f()

	assert.Equal(t, domain.ScrollScrolling, f.scroll.State(f.pid))
	assert.Equal(t, []string{
		domain.EvtCountdownStarted,
		domain.EvtCountdownFinished,
		domain.EvtScrollingStarted,
	}, f.member.seen())
	p, _ = f.store.Get(f.pid)
	assert.Nil(t, p.Countdown)
	assert.True(t, p.IsScrolling)
}

func TestScroll_StopCancelsCountdown(t *testing.T) {
	f := newScrollFixture(t)

	f.locked(t, func() {
		_, err := f.scroll.StartCountdown(f.pid, 5)
		require.NoError(t, err)
	})
	timer := f.timers.last(t)

	f.locked(t, func() {
		changed, err := f.scroll.Stop(f.pid)
		require.NoError(t, err)
		assert.True(t, changed)
	})
	assert.True(t, timer.stopped)
	assert.Equal(t, domain.ScrollIdle, f.scroll.State(f.pid))

	// A timer that raced past Stop must not start scrolling.
	timer.f()
	assert.Equal(t, domain.ScrollIdle, f.scroll.State(f.pid))
	assert.Equal(t, []string{domain.EvtCountdownStarted, domain.EvtScrollingStopped}, f.member.seen())
}

func TestScroll_StopWhenIdleIsNoop(t *testing.T) {
	f := newScrollFixture(t)
	f.locked(t, func() {
		changed, err := f.scroll.Stop(f.pid)
		require.NoError(t, err)
		assert.False(t, changed)
	})
	assert.Empty(t, f.member.seen())
}

func TestScroll_StartCountdownBounds(t *testing.T) {
	f := newScrollFixture(t)
	f.locked(t, func() {
		_, err := f.scroll.StartCountdown(f.pid, -1)
		require.ErrorIs(t, err, domain.ErrInvalidPayload)
		_, err = f.scroll.StartCountdown(f.pid, domain.MaxStartDelay+1)
		require.ErrorIs(t, err, domain.ErrInvalidPayload)

		changed, err := f.scroll.StartCountdown(f.pid, 0)
		require.NoError(t, err)
		assert.True(t, changed)
	})
	assert.Equal(t, domain.ScrollScrolling, f.scroll.State(f.pid))
	assert.Equal(t, []string{domain.EvtScrollingStarted}, f.member.seen())

	_, err := f.scroll.StartCountdown("missing", 3)
	require.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestScroll_DeleteDuringCountdown(t *testing.T) {
	f := newScrollFixture(t)
	f.locked(t, func() {
		_, err := f.scroll.StartCountdown(f.pid, 3)
		require.NoError(t, err)
	})
	timer := f.timers.last(t)

	f.locked(t, func() {
		f.scroll.Forget(f.pid)
		f.rooms.Evict(f.pid)
		f.store.Delete(f.pid)
	})
	assert.True(t, timer.stopped)

	f.member.reset()
	timer.f()
	assert.Empty(t, f.member.seen())
	assert.Equal(t, domain.ScrollIdle, f.scroll.State(f.pid))
}

func TestScroll_SetPosition(t *testing.T) {
	f := newScrollFixture(t)
	f.locked(t, func() {
		require.NoError(t, f.scroll.SetPosition(f.pid, 42))
		require.ErrorIs(t, f.scroll.SetPosition(f.pid, 150), domain.ErrInvalidPayload)
	})
	p, _ := f.store.Get(f.pid)
	assert.Equal(t, 42.0, p.StartPosition)
	assert.Equal(t, []string{domain.EvtSetScrollPosition}, f.member.seen())
}
