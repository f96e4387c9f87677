package orch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Prompter/internal/domain"
)

func (o *Orchestrator) startScrolling(sid domain.SessionID, raw json.RawMessage) error {
	return o.scrollTransition(sid, domain.ReqStartScrolling, raw, o.Scroll.Start)
}

func (o *Orchestrator) stopScrolling(sid domain.SessionID, raw json.RawMessage) error {
	return o.scrollTransition(sid, domain.ReqStopScrolling, raw, o.Scroll.Stop)
}

func (o *Orchestrator) scrollTransition(sid domain.SessionID, request string, raw json.RawMessage, transition func(domain.ProjectID) (bool, error)) error {
	if err := o.requireMutator(sid, request); err != nil {
		return err
	}
	pid, err := decodeProjectID(raw)
	if err != nil {
		return err
	}
	return o.withProject(pid, func() error {
		changed, err := transition(pid)
		if err != nil {
			return err
		}
		if !changed {
			o.resendSnapshot(sid, pid)
		}
		return nil
	})
}

func (o *Orchestrator) startCountdown(sid domain.SessionID, raw json.RawMessage) error {
	if err := o.requireMutator(sid, domain.ReqStartCountdown); err != nil {
		return err
	}
	var req countdownRequest
	if err := decode(raw, &req); err != nil {
		return err
	}
	pid, err := requireProjectID(req.ProjectID)
	if err != nil {
		return err
	}
	if req.Seconds == nil {
		return fmt.Errorf("%w: seconds required", domain.ErrInvalidPayload)
	}
	return o.withProject(pid, func() error {
		changed, err := o.Scroll.StartCountdown(pid, *req.Seconds)
		if err != nil {
			return err
		}
		if !changed {
			o.resendSnapshot(sid, pid)
		}
		return nil
	})
}

func (o *Orchestrator) setScrollPosition(sid domain.SessionID, raw json.RawMessage) error {
	if err := o.requireMutator(sid, domain.ReqSetScrollPosition); err != nil {
		return err
	}
	var req positionRequest
	if err := decode(raw, &req); err != nil {
		return err
	}
	pid, err := requireProjectID(req.ProjectID)
	if err != nil {
		return err
	}
	if req.Position == nil {
		return fmt.Errorf("%w: position required", domain.ErrInvalidPayload)
	}
	return o.withProject(pid, func() error {
		return o.Scroll.SetPosition(pid, *req.Position)
	})
}

func (o *Orchestrator) ping(sid domain.SessionID, raw json.RawMessage) error {
	req := decodePing(raw)
	_ = o.Rooms.SendTo(sid, domain.EvtPong, domain.NewPong(req.Timestamp, time.Now()))
	return nil
}
