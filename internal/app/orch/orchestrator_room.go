package orch

import (
	"encoding/json"

	"github.com/dkeye/Prompter/internal/core"
	"github.com/dkeye/Prompter/internal/domain"
)

// OnConnect registers a fresh transport session. role is the optional
// connect-time declaration.
func (o *Orchestrator) OnConnect(sid domain.SessionID, client, role string, sig core.SignalConnection, cancel func()) {
	o.Registry.Register(sid, client, sig, cancel)
	if r, err := domain.ParseRole(role); err != nil {
		o.Log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("ignoring connect-time role")
	} else if r != domain.RoleNone {
		_, _ = o.Registry.SetRole(sid, r)
	}

	_ = o.Rooms.SendTo(sid, domain.EvtProjectsList, o.Rooms.SnapshotAll())
	o.Rooms.BroadcastAll(domain.EvtConnectionCount, o.Registry.Count())
}

// OnDisconnect leaves the connection's room, if any, and forgets it. A
// running countdown in that room keeps running.
func (o *Orchestrator) OnDisconnect(sid domain.SessionID) {
	if pid, ok := o.Registry.ProjectOf(sid); ok {
		o.leave(pid, sid)
	}
	conn, err := o.Registry.Unregister(sid)
	if err != nil {
		o.Log.Debug().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("disconnect of unknown session")
		return
	}
	o.Rooms.BroadcastAll(domain.EvtConnectionCount, o.Registry.Count())
	o.Log.Info().Str("module", "orch").Str("sid", string(sid)).Str("role", conn.Role.String()).Msg("disconnected")
}

// joinProject holds the target's lock, and the previous room's lock if any,
// before touching the role or membership, so a failed join changes nothing.
func (o *Orchestrator) joinProject(sid domain.SessionID, raw json.RawMessage) error {
	req, err := decodeJoin(raw)
	if err != nil {
		return err
	}
	requested, err := domain.ParseRole(req.Role)
	if err != nil {
		return err
	}
	pid := req.ProjectID
	conn, err := o.Registry.Get(sid)
	if err != nil {
		return err
	}

	unlock, err := o.Projects.LockPair(pid, conn.ProjectID)
	if err != nil {
		return err
	}
	defer unlock()

	if requested == domain.RoleNone && conn.Role == domain.RoleNone {
		requested = domain.RoleViewer
	}
	if _, err := o.Registry.SetRole(sid, requested); err != nil {
		return err
	}
	if prev := conn.ProjectID; prev != "" && prev != pid {
		o.Rooms.Leave(prev, sid)
	}
	return o.Rooms.Join(pid, sid)
}

// leaveProject is idempotent; the role in the payload is informational,
// the registry is authoritative.
func (o *Orchestrator) leaveProject(sid domain.SessionID, raw json.RawMessage) error {
	pid, err := decodeProjectID(raw)
	if err != nil {
		return err
	}
	o.leave(pid, sid)
	return nil
}

func (o *Orchestrator) leave(pid domain.ProjectID, sid domain.SessionID) {
	unlock, err := o.Projects.Lock(pid)
	if err != nil {
		// Deleted concurrently; eviction already cleaned the room.
		o.Registry.ClearProject(sid, pid)
		return
	}
	defer unlock()
	o.Rooms.Leave(pid, sid)
}
