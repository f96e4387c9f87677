package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Prompter/internal/core"
	"github.com/dkeye/Prompter/internal/domain"
	"github.com/rs/zerolog"
)

// Stopper is the cancellable half of a timer.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f once after d.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

type scrollSession struct {
	state     domain.ScrollState
	countdown *domain.Countdown
	timer     Stopper
	// gen identifies the armed countdown; a fired timer whose gen no longer
	// matches was cancelled and must not act.
	gen uint64
}

// ScrollController runs the per-project idle/countdown/scrolling machine.
// Exported methods expect the caller to hold the project's lock
// (ProjectStore.Lock); timer callbacks take it themselves.
type ScrollController struct {
	mu       sync.Mutex
	sessions map[domain.ProjectID]*scrollSession

	store *core.ProjectStore
	rooms *core.Rooms
	after AfterFunc
	now   func() time.Time
	log   zerolog.Logger
}

type ScrollOption func(*ScrollController)

func WithAfterFunc(f AfterFunc) ScrollOption {
	return func(c *ScrollController) { c.after = f }
}

func WithClock(now func() time.Time) ScrollOption {
	return func(c *ScrollController) { c.now = now }
}

func NewScrollController(store *core.ProjectStore, rooms *core.Rooms, logger zerolog.Logger, opts ...ScrollOption) *ScrollController {
	c := &ScrollController{
		sessions: make(map[domain.ProjectID]*scrollSession),
		store:    store,
		rooms:    rooms,
		after:    realAfterFunc,
		now:      time.Now,
		log:      logger.With().Str("module", "app.scroll").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reads the projection recorded on the project, so it is safe to call
// without the project's lock. Unknown projects read as idle.
func (c *ScrollController) State(pid domain.ProjectID) domain.ScrollState {
	p, err := c.store.Get(pid)
	if err != nil {
		return domain.ScrollIdle
	}
	return p.ScrollState
}

// Start honours the project's start delay. It reports false without side
// effects when the project is already counting down or scrolling.
func (c *ScrollController) Start(pid domain.ProjectID) (bool, error) {
	p, err := c.store.Get(pid)
	if err != nil {
		return false, err
	}
	s := c.session(pid)
	if s.state != domain.ScrollIdle {
		return false, nil
	}
	if p.UseStartDelay && p.StartDelay > 0 {
		return true, c.beginCountdown(pid, s, p.StartDelay)
	}
	return true, c.beginScrolling(pid, s)
}

// StartCountdown arms an explicit countdown. Zero seconds starts at once.
func (c *ScrollController) StartCountdown(pid domain.ProjectID, seconds int) (bool, error) {
	if seconds < 0 || seconds > domain.MaxStartDelay {
		return false, fmt.Errorf("%w: seconds must be within [0, %d]", domain.ErrInvalidPayload, domain.MaxStartDelay)
	}
	if _, err := c.store.Get(pid); err != nil {
		return false, err
	}
	s := c.session(pid)
	if s.state != domain.ScrollIdle {
		return false, nil
	}
	if seconds == 0 {
		return true, c.beginScrolling(pid, s)
	}
	return true, c.beginCountdown(pid, s, seconds)
}

// Stop aborts a countdown or halts scrolling. Both emit scrolling-stopped.
func (c *ScrollController) Stop(pid domain.ProjectID) (bool, error) {
	if _, err := c.store.Get(pid); err != nil {
		return false, err
	}
	s := c.session(pid)
	if s.state == domain.ScrollIdle {
		return false, nil
	}
	was := s.state
	c.disarm(s)
	s.state = domain.ScrollIdle
	s.countdown = nil
	if err := c.store.SetScrollState(pid, domain.ScrollIdle, nil); err != nil {
		return false, err
	}
	c.rooms.Broadcast(pid, domain.EvtScrollingStopped, domain.ProjectRef{ProjectID: pid})
	c.log.Info().Str("project", string(pid)).Str("from", string(was)).Msg("scrolling stopped")
	return true, nil
}

// SetPosition stores the advisory position and relays it to the room.
func (c *ScrollController) SetPosition(pid domain.ProjectID, pos float64) error {
	if err := domain.ValidatePosition(pos); err != nil {
		return err
	}
	if _, err := c.store.UpdateSettings(pid, domain.Patch{StartPosition: &pos}); err != nil {
		return err
	}
	c.rooms.Broadcast(pid, domain.EvtSetScrollPosition, domain.ScrollPosition{ProjectID: pid, Position: pos})
	return nil
}

// Forget cancels any pending countdown and drops the session. Call it
// before deleting the project.
func (c *ScrollController) Forget(pid domain.ProjectID) {
	c.mu.Lock()
	s, ok := c.sessions[pid]
	delete(c.sessions, pid)
	c.mu.Unlock()
	if ok {
		c.disarm(s)
		c.log.Debug().Str("project", string(pid)).Msg("scroll session dropped")
	}
}

func (c *ScrollController) session(pid domain.ProjectID) *scrollSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[pid]
	if !ok {
		s = &scrollSession{state: domain.ScrollIdle}
		c.sessions[pid] = s
	}
	return s
}

func (c *ScrollController) lookup(pid domain.ProjectID) (*scrollSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[pid]
	return s, ok
}

func (c *ScrollController) disarm(s *scrollSession) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (c *ScrollController) beginScrolling(pid domain.ProjectID, s *scrollSession) error {
	s.state = domain.ScrollScrolling
	s.countdown = nil
	if err := c.store.SetScrollState(pid, domain.ScrollScrolling, nil); err != nil {
		return err
	}
	c.rooms.Broadcast(pid, domain.EvtScrollingStarted, domain.ProjectRef{ProjectID: pid})
	c.log.Info().Str("project", string(pid)).Msg("scrolling started")
	return nil
}

func (c *ScrollController) beginCountdown(pid domain.ProjectID, s *scrollSession, seconds int) error {
	cd := domain.NewCountdown(seconds, c.now())
	c.disarm(s)
	gen := s.gen
	s.state = domain.ScrollCountingDown
	s.countdown = &cd
	if err := c.store.SetScrollState(pid, domain.ScrollCountingDown, &cd); err != nil {
		s.state, s.countdown = domain.ScrollIdle, nil
		return err
	}
	s.timer = c.after(cd.EndsAt.Sub(cd.StartedAt), func() { c.finishCountdown(pid, gen) })
	c.rooms.Broadcast(pid, domain.EvtCountdownStarted, domain.CountdownStarted{ProjectID: pid, Countdown: cd})
	c.log.Info().Str("project", string(pid)).Int("seconds", seconds).Msg("countdown started")
	return nil
}

func (c *ScrollController) finishCountdown(pid domain.ProjectID, gen uint64) {
	unlock, err := c.store.Lock(pid)
	if err != nil {
		c.log.Debug().Err(err).Str("project", string(pid)).Msg("countdown fired after project was deleted")
		return
	}
	defer unlock()

	s, ok := c.lookup(pid)
	if !ok || s.gen != gen || s.state != domain.ScrollCountingDown {
		c.log.Debug().Str("project", string(pid)).Msg("stale countdown ignored")
		return
	}
	s.timer = nil
	s.state = domain.ScrollScrolling
	s.countdown = nil
	if err := c.store.SetScrollState(pid, domain.ScrollScrolling, nil); err != nil {
		c.log.Debug().Err(err).Str("project", string(pid)).Msg("countdown finish on missing project")
		return
	}
	c.rooms.Broadcast(pid, domain.EvtCountdownFinished, domain.ProjectRef{ProjectID: pid})
	c.rooms.Broadcast(pid, domain.EvtScrollingStarted, domain.ProjectRef{ProjectID: pid})
	c.log.Info().Str("project", string(pid)).Msg("countdown finished, scrolling started")
}
