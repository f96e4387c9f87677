package orch

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Prompter/internal/domain"
)

func (o *Orchestrator) createProject(sid domain.SessionID, raw json.RawMessage) error {
	if err := o.requireMutator(sid, domain.ReqCreateProject); err != nil {
		return err
	}
	var req createProjectRequest
	if err := decode(raw, &req); err != nil {
		return err
	}
	name, err := domain.NormalizeProjectName(req.Name)
	if err != nil {
		return err
	}
	text := domain.DefaultText
	if req.Text != nil && *req.Text != "" {
		text = *req.Text
	}

	p := o.Projects.Create(name, text)
	_ = o.Rooms.SendTo(sid, domain.EvtProjectCreated, p)
	o.broadcastProjects()
	o.Log.Info().Str("module", "orch").Str("sid", string(sid)).Str("project", string(p.ID)).Msg("project created")
	return nil
}

func (o *Orchestrator) getProjects(sid domain.SessionID) error {
	_ = o.Rooms.SendTo(sid, domain.EvtProjectsList, o.Rooms.SnapshotAll())
	return nil
}

func (o *Orchestrator) getProject(sid domain.SessionID, raw json.RawMessage) error {
	pid, err := decodeProjectID(raw)
	if err != nil {
		return err
	}
	snap, err := o.Rooms.Snapshot(pid)
	if err != nil {
		return err
	}
	_ = o.Rooms.SendTo(sid, domain.EvtProjectData, snap)
	return nil
}

// editProject changes name and/or text. The editor gets project-updated,
// and the room gets a fresh snapshot.
func (o *Orchestrator) editProject(sid domain.SessionID, raw json.RawMessage) error {
	if err := o.requireMutator(sid, domain.ReqEditProject); err != nil {
		return err
	}
	var req editProjectRequest
	if err := decode(raw, &req); err != nil {
		return err
	}
	pid, err := requireProjectID(req.ProjectID)
	if err != nil {
		return err
	}
	patch := domain.Patch{Name: req.Name, Text: req.Text}
	if patch.Empty() {
		return fmt.Errorf("%w: name or text required", domain.ErrInvalidPayload)
	}

	err = o.withProject(pid, func() error {
		if _, err := o.Projects.UpdateSettings(pid, patch); err != nil {
			return err
		}
		snap, err := o.Rooms.Snapshot(pid)
		if err != nil {
			return err
		}
		_ = o.Rooms.SendTo(sid, domain.EvtProjectUpdated, snap)
		o.Rooms.Broadcast(pid, domain.EvtProjectData, snap)
		return nil
	})
	if err != nil {
		return err
	}
	o.broadcastProjects()
	return nil
}

// deleteProject cancels the scroll session, tells the room, evicts it and
// only then drops the project.
func (o *Orchestrator) deleteProject(sid domain.SessionID, raw json.RawMessage) error {
	if err := o.requireMutator(sid, domain.ReqDeleteProject); err != nil {
		return err
	}
	pid, err := decodeProjectID(raw)
	if err != nil {
		return err
	}

	err = o.withProject(pid, func() error {
		o.Scroll.Forget(pid)
		o.Rooms.Broadcast(pid, domain.EvtProjectDeleted, domain.ProjectRef{ProjectID: pid})
		evicted := o.Rooms.Evict(pid)
		o.Projects.Delete(pid)
		o.Log.Info().Str("module", "orch").Str("sid", string(sid)).Str("project", string(pid)).Int("evicted", len(evicted)).Msg("project deleted")
		return nil
	})
	if err != nil {
		return err
	}
	_ = o.Rooms.SendTo(sid, domain.EvtProjectDeleteConfirm, domain.ProjectRef{ProjectID: pid})
	o.broadcastProjects()
	return nil
}

func (o *Orchestrator) updateSettings(sid domain.SessionID, raw json.RawMessage) error {
	if err := o.requireMutator(sid, domain.ReqUpdateSettings); err != nil {
		return err
	}
	var req settingsRequest
	if err := decode(raw, &req); err != nil {
		return err
	}
	pid, err := requireProjectID(req.ProjectID)
	if err != nil {
		return err
	}
	patch, err := domain.DecodePatch(req.Settings)
	if err != nil {
		return err
	}
	if patch.Empty() {
		return fmt.Errorf("%w: no known settings", domain.ErrInvalidPayload)
	}

	err = o.withProject(pid, func() error {
		if _, err := o.Projects.UpdateSettings(pid, patch); err != nil {
			return err
		}
		o.Rooms.BroadcastStateChange(pid, patch)
		return nil
	})
	if err != nil {
		return err
	}
	if patch.Name != nil {
		o.broadcastProjects()
	}
	return nil
}

// updateText is the text-only fast path.
func (o *Orchestrator) updateText(sid domain.SessionID, raw json.RawMessage) error {
	if err := o.requireMutator(sid, domain.ReqUpdateText); err != nil {
		return err
	}
	var req updateTextRequest
	if err := decode(raw, &req); err != nil {
		return err
	}
	pid, err := requireProjectID(req.ProjectID)
	if err != nil {
		return err
	}
	if req.Text == nil {
		return fmt.Errorf("%w: text required", domain.ErrInvalidPayload)
	}

	return o.withProject(pid, func() error {
		if _, err := o.Projects.UpdateSettings(pid, domain.Patch{Text: req.Text}); err != nil {
			return err
		}
		o.Rooms.Broadcast(pid, domain.EvtTextUpdated, domain.TextUpdated{ProjectID: pid, Text: *req.Text})
		return nil
	})
}
