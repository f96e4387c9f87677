package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Prompter/internal/domain"
	"github.com/rs/zerolog"
)

type sessionEntry struct {
	Conn   domain.Connection
	Signal SignalConnection
	Cancel context.CancelFunc
	Drops  int
}

// Registry tracks every live transport session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
	log      zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*sessionEntry),
		log:      logger.With().Str("module", "core.registry").Logger(),
	}
}

func (r *Registry) Register(sid domain.SessionID, client string, sig SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; ok {
		r.log.Error().Str("sid", string(sid)).Msg("session id reused, replacing entry")
	}
	r.sessions[sid] = &sessionEntry{
		Conn:   domain.Connection{ID: sid, Client: client, ConnectedAt: time.Now()},
		Signal: sig,
		Cancel: cancel,
	}
	r.log.Info().Str("sid", string(sid)).Str("client", client).Int("total", len(r.sessions)).Msg("registered")
}

// Unregister returns the removed record so the caller can clean up its room.
func (r *Registry) Unregister(sid domain.SessionID) (domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return domain.Connection{}, fmt.Errorf("%w: %s", domain.ErrConnectionNotFound, sid)
	}
	delete(r.sessions, sid)
	r.log.Info().Str("sid", string(sid)).Int("total", len(r.sessions)).Msg("unregistered")
	return e.Conn, nil
}

func (r *Registry) Get(sid domain.SessionID) (domain.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Conn, nil
	}
	return domain.Connection{}, fmt.Errorf("%w: %s", domain.ErrConnectionNotFound, sid)
}

func (r *Registry) Signal(sid domain.SessionID) (SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Signal, true
	}
	return nil, false
}

// SetRole attaches a role once. Repeating the attached role is accepted,
// a different one is a conflict. RoleNone resolves to the attached role.
func (r *Registry) SetRole(sid domain.SessionID, role domain.Role) (domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return domain.RoleNone, fmt.Errorf("%w: %s", domain.ErrConnectionNotFound, sid)
	}
	switch {
	case role == domain.RoleNone || role == e.Conn.Role:
		return e.Conn.Role, nil
	case e.Conn.Role == domain.RoleNone:
		e.Conn.Role = role
		r.log.Info().Str("sid", string(sid)).Str("role", string(role)).Msg("role attached")
		return role, nil
	default:
		return e.Conn.Role, fmt.Errorf("%w: connection is %s, not %s", domain.ErrRoleConflict, e.Conn.Role, role)
	}
}

func (r *Registry) ProjectOf(sid domain.SessionID) (domain.ProjectID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || !e.Conn.InRoom() {
		return "", false
	}
	return e.Conn.ProjectID, true
}

func (r *Registry) UpdateProject(sid domain.SessionID, pid domain.ProjectID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Conn.ProjectID = pid
	return true
}

// ClearProject drops the room association only if it still points at pid.
func (r *Registry) ClearProject(sid domain.SessionID, pid domain.ProjectID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.Conn.ProjectID != pid {
		return false
	}
	e.Conn.ProjectID = ""
	return true
}

// MembersOfProject scans the registry side of the membership relation.
func (r *Registry) MembersOfProject(pid domain.ProjectID) []domain.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.SessionID
	for sid, e := range r.sessions {
		if e.Conn.ProjectID == pid {
			out = append(out, sid)
		}
	}
	return out
}

type regSnap struct {
	SID    domain.SessionID
	Signal SignalConnection
}

func (r *Registry) All() []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		out = append(out, regSnap{SID: sid, Signal: e.Signal})
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RecordDrop counts consecutive backpressure drops; ResetDrops clears it.
func (r *Registry) RecordDrop(sid domain.SessionID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return 0
	}
	e.Drops++
	return e.Drops
}

func (r *Registry) ResetDrops(sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.Drops = 0
	}
}

// Cancel stops the session's pumps and closes its transport.
func (r *Registry) Cancel(sid domain.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	if e.Signal != nil {
		e.Signal.Close()
	}
	r.log.Info().Str("sid", string(sid)).Msg("canceled session")
	return true
}
