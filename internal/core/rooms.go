package core

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Prompter/internal/domain"
	"github.com/rs/zerolog"
)

// ProjectReader is the slice of ProjectStore the rooms need.
type ProjectReader interface {
	Get(id domain.ProjectID) (domain.Project, error)
	List() []domain.Project
}

// PublishResult reports delivery stats/backpressure.
type PublishResult struct {
	SentTo  int
	Dropped []domain.SessionID
}

// MemberDTO is a read-only view of a room member.
type MemberDTO struct {
	ID   domain.SessionID `json:"id"`
	Role domain.Role      `json:"role"`
}

type room struct {
	members map[domain.SessionID]domain.Role
	viewers int
}

// Rooms maps a project to the connections joined to it and fans
// notifications out to them. It is the only writer of room membership.
// Callers serialize per project with ProjectStore.Lock.
type Rooms struct {
	mu       sync.RWMutex
	rooms    map[domain.ProjectID]*room
	projects ProjectReader
	registry *Registry
	policy   Policy
	now      func() time.Time
	log      zerolog.Logger
}

func NewRooms(projects ProjectReader, registry *Registry, policy Policy, logger zerolog.Logger) *Rooms {
	if policy == nil {
		policy = DropPolicy{}
	}
	return &Rooms{
		rooms:    make(map[domain.ProjectID]*room),
		projects: projects,
		registry: registry,
		policy:   policy,
		now:      time.Now,
		log:      logger.With().Str("module", "core.rooms").Logger(),
	}
}

// Join moves sid into pid's room. It leaves any other room first. The joiner
// gets a private snapshot, and the others get client-joined.
func (b *Rooms) Join(pid domain.ProjectID, sid domain.SessionID) error {
	if _, err := b.projects.Get(pid); err != nil {
		return err
	}
	conn, err := b.registry.Get(sid)
	if err != nil {
		return err
	}
	if conn.ProjectID != "" && conn.ProjectID != pid {
		b.Leave(conn.ProjectID, sid)
	}

	b.mu.Lock()
	rm, ok := b.rooms[pid]
	if !ok {
		rm = &room{members: make(map[domain.SessionID]domain.Role)}
		b.rooms[pid] = rm
	}
	_, already := rm.members[sid]
	if !already {
		rm.members[sid] = conn.Role
		if conn.Role == domain.RoleViewer {
			rm.viewers++
		}
	}
	size := len(rm.members)
	b.mu.Unlock()
	b.registry.UpdateProject(sid, pid)

	if snap, err := b.Snapshot(pid); err == nil {
		_ = b.SendTo(sid, domain.EvtProjectData, snap)
	}
	if already {
		b.log.Debug().Str("sid", string(sid)).Str("project", string(pid)).Msg("rejoin, snapshot resent")
		return nil
	}
	b.BroadcastExcept(pid, sid, domain.EvtClientJoined, domain.ClientEvent{ProjectID: pid, ClientID: sid, Role: conn.Role})
	b.pushViewerCount(pid)
	b.log.Info().Str("sid", string(sid)).Str("project", string(pid)).Str("role", conn.Role.String()).Int("members", size).Msg("member joined")
	return nil
}

// Leave is idempotent. Remaining members get client-left.
func (b *Rooms) Leave(pid domain.ProjectID, sid domain.SessionID) {
	b.mu.Lock()
	var (
		role    domain.Role
		present bool
	)
	if rm, ok := b.rooms[pid]; ok {
		if role, present = rm.members[sid]; present {
			delete(rm.members, sid)
			if role == domain.RoleViewer {
				rm.viewers--
			}
		}
		if len(rm.members) == 0 {
			delete(b.rooms, pid)
		}
	}
	b.mu.Unlock()

	cleared := b.registry.ClearProject(sid, pid)
	if !present {
		if cleared {
			b.log.Error().Str("sid", string(sid)).Str("project", string(pid)).Msg("registry pointed at a room without the member, reconciled")
		}
		return
	}
	if !cleared {
		if _, err := b.registry.Get(sid); err == nil {
			b.log.Error().Str("sid", string(sid)).Str("project", string(pid)).Msg("member was not bound to the room in the registry")
		}
	}

	b.Broadcast(pid, domain.EvtClientLeft, domain.ClientEvent{ProjectID: pid, ClientID: sid, Role: role})
	b.pushViewerCount(pid)
	b.log.Info().Str("sid", string(sid)).Str("project", string(pid)).Str("role", role.String()).Msg("member left")
}

// Evict empties pid's room and returns the evicted members. Registry
// entries still pointing at pid are reconciled.
func (b *Rooms) Evict(pid domain.ProjectID) []domain.SessionID {
	b.mu.Lock()
	rm := b.rooms[pid]
	delete(b.rooms, pid)
	b.mu.Unlock()

	var evicted []domain.SessionID
	if rm != nil {
		for sid := range rm.members {
			b.registry.ClearProject(sid, pid)
			evicted = append(evicted, sid)
		}
	}
	for _, sid := range b.registry.MembersOfProject(pid) {
		b.log.Error().Str("sid", string(sid)).Str("project", string(pid)).Msg("stale registry membership on evict, reconciled")
		b.registry.ClearProject(sid, pid)
	}
	b.log.Info().Str("project", string(pid)).Int("evicted", len(evicted)).Msg("room evicted")
	return evicted
}

// Broadcast sends to every member of pid's room.
func (b *Rooms) Broadcast(pid domain.ProjectID, typ string, payload any) PublishResult {
	return b.BroadcastExcept(pid, "", typ, payload)
}

// BroadcastStateChange announces applied settings to the whole room.
func (b *Rooms) BroadcastStateChange(pid domain.ProjectID, changed domain.Patch) PublishResult {
	return b.Broadcast(pid, domain.EvtSettingsUpdated, domain.SettingsUpdated{ProjectID: pid, Settings: changed})
}

func (b *Rooms) BroadcastExcept(pid domain.ProjectID, except domain.SessionID, typ string, payload any) PublishResult {
	return b.publish(b.targets(pid, func(sid domain.SessionID, _ domain.Role) bool { return sid != except }), typ, payload)
}

// BroadcastAll sends to every registered connection, joined or not.
func (b *Rooms) BroadcastAll(typ string, payload any) PublishResult {
	all := b.registry.All()
	sids := make([]domain.SessionID, 0, len(all))
	for _, snap := range all {
		sids = append(sids, snap.SID)
	}
	return b.publish(sids, typ, payload)
}

func (b *Rooms) SendTo(sid domain.SessionID, typ string, payload any) error {
	res := b.publish([]domain.SessionID{sid}, typ, payload)
	if res.SentTo == 0 {
		return ErrBackpressure
	}
	return nil
}

func (b *Rooms) ViewerCount(pid domain.ProjectID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if rm, ok := b.rooms[pid]; ok {
		return rm.viewers
	}
	return 0
}

func (b *Rooms) MemberCount(pid domain.ProjectID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if rm, ok := b.rooms[pid]; ok {
		return len(rm.members)
	}
	return 0
}

func (b *Rooms) IsMember(pid domain.ProjectID, sid domain.SessionID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if rm, ok := b.rooms[pid]; ok {
		_, in := rm.members[sid]
		return in
	}
	return false
}

// MembersSnapshot lists the room by session id.
func (b *Rooms) MembersSnapshot(pid domain.ProjectID) []MemberDTO {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rm, ok := b.rooms[pid]
	if !ok {
		return nil
	}
	out := make([]MemberDTO, 0, len(rm.members))
	for sid, role := range rm.members {
		out = append(out, MemberDTO{ID: sid, Role: role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot is the store's project with membership counts and the countdown's
// remaining seconds filled in.
func (b *Rooms) Snapshot(pid domain.ProjectID) (domain.Project, error) {
	p, err := b.projects.Get(pid)
	if err != nil {
		return domain.Project{}, err
	}
	b.annotate(&p)
	return p, nil
}

func (b *Rooms) SnapshotAll() []domain.Project {
	list := b.projects.List()
	for i := range list {
		b.annotate(&list[i])
	}
	return list
}

func (b *Rooms) annotate(p *domain.Project) {
	if p.Countdown != nil {
		p.Countdown.Left = p.Countdown.Remaining(b.now())
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if rm, ok := b.rooms[p.ID]; ok {
		p.ClientCount = len(rm.members)
		p.ViewerCount = rm.viewers
	}
}

// pushViewerCount tells the room's controllers how many viewers watch.
func (b *Rooms) pushViewerCount(pid domain.ProjectID) {
	controllers := b.targets(pid, func(_ domain.SessionID, role domain.Role) bool {
		return role == domain.RoleController
	})
	if len(controllers) == 0 {
		return
	}
	b.publish(controllers, domain.EvtViewerCount, domain.ViewerCount{ProjectID: pid, Count: b.ViewerCount(pid)})
}

func (b *Rooms) targets(pid domain.ProjectID, keep func(domain.SessionID, domain.Role) bool) []domain.SessionID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rm, ok := b.rooms[pid]
	if !ok {
		return nil
	}
	out := make([]domain.SessionID, 0, len(rm.members))
	for sid, role := range rm.members {
		if keep(sid, role) {
			out = append(out, sid)
		}
	}
	return out
}

func (b *Rooms) publish(sids []domain.SessionID, typ string, payload any) PublishResult {
	res := PublishResult{}
	if len(sids) == 0 {
		return res
	}
	frame, err := Encode(typ, payload)
	if err != nil {
		b.log.Error().Err(err).Str("type", typ).Msg("encode failed")
		return res
	}
	for _, sid := range sids {
		sig, ok := b.registry.Signal(sid)
		if !ok {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		if err := sig.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, sid)
			b.onDrop(sid, typ, err)
			continue
		}
		b.registry.ResetDrops(sid)
		res.SentTo++
	}
	b.log.Debug().Str("type", typ).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("publish result")
	return res
}

func (b *Rooms) onDrop(sid domain.SessionID, typ string, err error) {
	if errors.Is(err, ErrConnectionClosed) {
		b.log.Debug().Str("sid", string(sid)).Str("type", typ).Msg("send to closed connection")
		return
	}
	conn, gerr := b.registry.Get(sid)
	if gerr != nil {
		return
	}
	drops := b.registry.RecordDrop(sid)
	switch b.policy.OnBackPressure(conn, drops) {
	case KickMember:
		b.log.Warn().Str("sid", string(sid)).Int("drops", drops).Msg("slow consumer kicked")
		b.registry.Cancel(sid)
	case DropFrame, NoAction:
		b.log.Warn().Err(err).Str("sid", string(sid)).Str("type", typ).Int("drops", drops).Msg("frame dropped")
	}
}
