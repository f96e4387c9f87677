package core

import (
	"fmt"

	"github.com/dkeye/Prompter/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a member whose send queue is full.
type Policy interface {
	OnBackPressure(conn domain.Connection, drops int) BackpressureAction
}

// SimplePolicy kicks on the first drop.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.Connection, int) BackpressureAction {
	return KickMember
}

// DropPolicy drops frames until MaxDrops consecutive drops, then kicks.
// Late joiners get a full snapshot, so a dropped frame is recoverable.
type DropPolicy struct {
	MaxDrops int
}

func (p DropPolicy) OnBackPressure(_ domain.Connection, drops int) BackpressureAction {
	if p.MaxDrops > 0 && drops >= p.MaxDrops {
		return KickMember
	}
	return DropFrame
}

// NewPolicy picks a policy by its config name: "kick" disconnects on the
// first full queue, "drop" (or empty) tolerates maxDrops in a row.
func NewPolicy(name string, maxDrops int) (Policy, error) {
	switch name {
	case "", "drop":
		return DropPolicy{MaxDrops: maxDrops}, nil
	case "kick":
		return SimplePolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
