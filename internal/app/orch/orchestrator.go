// Package orch is the protocol-facing gateway. It decodes inbound requests,
// validates them and delegates to the project store, the rooms and the
// scroll controller, serializing per project.
package orch

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Prompter/internal/app"
	"github.com/dkeye/Prompter/internal/core"
	"github.com/dkeye/Prompter/internal/domain"
	"github.com/rs/zerolog"
)

type Orchestrator struct {
	Projects *core.ProjectStore
	Registry *core.Registry
	Rooms    *core.Rooms
	Scroll   *app.ScrollController

	// EnforceRoles rejects mutations from viewer and display connections.
	EnforceRoles bool

	// MaxMessage caps an inbound frame in bytes; zero means no cap. Keep it
	// below the transport read limit so oversized requests get an error
	// reply instead of a dropped connection.
	MaxMessage int

	Log zerolog.Logger
}

// Handle processes one inbound frame. It never panics; every failure is
// reported to sid alone.
func (o *Orchestrator) Handle(sid domain.SessionID, data []byte) {
	if o.MaxMessage > 0 && len(data) > o.MaxMessage {
		o.Fail(sid, "", fmt.Errorf("%w: frame of %d bytes exceeds %d", domain.ErrInvalidPayload, len(data), o.MaxMessage))
		return
	}
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		o.Fail(sid, "", fmt.Errorf("%w: frame must be {\"type\", \"payload\"}", domain.ErrInvalidPayload))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			o.Log.Error().Str("module", "orch").Str("sid", string(sid)).Str("type", env.Type).Interface("panic", rec).Msg("handler panic")
			o.Fail(sid, env.Type, fmt.Errorf("handler panic: %v", rec))
		}
	}()

	if err := o.dispatch(sid, env); err != nil {
		o.Fail(sid, env.Type, err)
	}
}

func (o *Orchestrator) dispatch(sid domain.SessionID, env domain.Envelope) error {
	switch env.Type {
	case domain.ReqCreateProject:
		return o.createProject(sid, env.Payload)
	case domain.ReqGetProjects:
		return o.getProjects(sid)
	case domain.ReqGetProject:
		return o.getProject(sid, env.Payload)
	case domain.ReqJoinProject:
		return o.joinProject(sid, env.Payload)
	case domain.ReqLeaveProject:
		return o.leaveProject(sid, env.Payload)
	case domain.ReqEditProject:
		return o.editProject(sid, env.Payload)
	case domain.ReqDeleteProject:
		return o.deleteProject(sid, env.Payload)
	case domain.ReqUpdateSettings:
		return o.updateSettings(sid, env.Payload)
	case domain.ReqUpdateText:
		return o.updateText(sid, env.Payload)
	case domain.ReqStartScrolling:
		return o.startScrolling(sid, env.Payload)
	case domain.ReqStopScrolling:
		return o.stopScrolling(sid, env.Payload)
	case domain.ReqStartCountdown:
		return o.startCountdown(sid, env.Payload)
	case domain.ReqSetScrollPosition:
		return o.setScrollPosition(sid, env.Payload)
	case domain.ReqPing:
		return o.ping(sid, env.Payload)
	default:
		return fmt.Errorf("%w: unknown request type %q", domain.ErrInvalidPayload, env.Type)
	}
}

// Fail converts err into an error notification for sid only.
func (o *Orchestrator) Fail(sid domain.SessionID, request string, err error) {
	apiErr := MapError(err)
	ev := o.Log.Warn()
	if apiErr.Code == CodeInternal {
		ev = o.Log.Error()
	}
	ev.Err(err).Str("module", "orch").Str("sid", string(sid)).Str("type", request).Str("code", apiErr.Code).Msg("request failed")
	_ = o.Rooms.SendTo(sid, domain.EvtError, domain.ErrorPayload{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Request: request,
	})
}

// withProject runs fn under the project's serialization lock.
func (o *Orchestrator) withProject(pid domain.ProjectID, fn func() error) error {
	unlock, err := o.Projects.Lock(pid)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (o *Orchestrator) requireMutator(sid domain.SessionID, request string) error {
	if !o.EnforceRoles {
		return nil
	}
	conn, err := o.Registry.Get(sid)
	if err != nil {
		return err
	}
	if !conn.Role.CanMutate() {
		return fmt.Errorf("%w: role %s may not %s", domain.ErrRoleConflict, conn.Role, request)
	}
	return nil
}

// resendSnapshot answers a no-op request with the current truth.
func (o *Orchestrator) resendSnapshot(sid domain.SessionID, pid domain.ProjectID) {
	if snap, err := o.Rooms.Snapshot(pid); err == nil {
		_ = o.Rooms.SendTo(sid, domain.EvtProjectData, snap)
	}
}

func (o *Orchestrator) broadcastProjects() {
	o.Rooms.BroadcastAll(domain.EvtProjectsList, o.Rooms.SnapshotAll())
}
