package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Prompter/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type projectEntry struct {
	// serial orders every request touching this project. It is never taken
	// while holding ProjectStore.mu.
	serial sync.Mutex

	// Guarded by ProjectStore.mu.
	project domain.Project
	deleted bool
}

// ProjectStore owns the canonical project map. It knows nothing about
// connections or transport.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[domain.ProjectID]*projectEntry
	log      zerolog.Logger

	now   func() time.Time
	newID func() domain.ProjectID
}

func NewProjectStore(logger zerolog.Logger) *ProjectStore {
	return &ProjectStore{
		projects: make(map[domain.ProjectID]*projectEntry),
		log:      logger.With().Str("module", "core.projects").Logger(),
		now:      time.Now,
		newID:    func() domain.ProjectID { return domain.ProjectID(uuid.NewString()) },
	}
}

// Create never fails; name validation belongs to the caller.
func (s *ProjectStore) Create(name, text string) domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	for s.projects[id] != nil {
		id = s.newID()
	}
	p := domain.NewProject(id, name, text, s.now())
	s.projects[id] = &projectEntry{project: p}
	s.log.Info().Str("project", string(id)).Str("name", name).Msg("project created")
	return p
}

func (s *ProjectStore) Get(id domain.ProjectID) (domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.projects[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
	}
	return e.snapshot(), nil
}

func (s *ProjectStore) Exists(id domain.ProjectID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.projects[id]
	return ok
}

func (s *ProjectStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projects)
}

// List returns snapshots, most recently updated first.
func (s *ProjectStore) List() []domain.Project {
	s.mu.RLock()
	out := make([]domain.Project, 0, len(s.projects))
	for _, e := range s.projects {
		out = append(out, e.snapshot())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// UpdateSettings merges patch into the project. Read-only fields cannot be
// expressed by domain.Patch, so they are refused at decode time.
func (s *ProjectStore) UpdateSettings(id domain.ProjectID, patch domain.Patch) (domain.Project, error) {
	if err := patch.Validate(); err != nil {
		return domain.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.projects[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
	}
	patch.ApplyTo(&e.project)
	s.touch(e)
	return e.snapshot(), nil
}

// SetScrollState records the scroll controller's state on the project.
// Only the scroll controller calls it.
func (s *ProjectStore) SetScrollState(id domain.ProjectID, state domain.ScrollState, cd *domain.Countdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.projects[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
	}
	e.project.ScrollState = state
	e.project.IsScrolling = state == domain.ScrollScrolling
	e.project.Countdown = nil
	if cd != nil {
		c := *cd
		e.project.Countdown = &c
	}
	s.touch(e)
	return nil
}

// Delete removes the project. Deleting an unknown id is not an error.
func (s *ProjectStore) Delete(id domain.ProjectID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.projects[id]
	if !ok {
		s.log.Warn().Str("project", string(id)).Msg("delete of unknown project")
		return false
	}
	e.deleted = true
	delete(s.projects, id)
	s.log.Info().Str("project", string(id)).Msg("project deleted")
	return true
}

// Lock acquires the project's serialization lock. It fails with
// ErrProjectNotFound if the project is absent or was deleted while waiting.
func (s *ProjectStore) Lock(id domain.ProjectID) (unlock func(), err error) {
	s.mu.RLock()
	e, ok := s.projects[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
	}

	e.serial.Lock()
	s.mu.RLock()
	deleted := e.deleted
	s.mu.RUnlock()
	if deleted {
		e.serial.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
	}
	return e.serial.Unlock, nil
}

// LockPair locks target and, when it still exists, other. Locks are taken in
// id order so two connections moving between the same projects in opposite
// directions cannot deadlock. It fails only when target is gone, and then
// holds nothing.
func (s *ProjectStore) LockPair(target, other domain.ProjectID) (unlock func(), err error) {
	if other == "" || other == target {
		return s.Lock(target)
	}
	first, second := target, other
	if second < first {
		first, second = second, first
	}
	u1, err1 := s.Lock(first)
	u2, err2 := s.Lock(second)
	release := func() {
		if u2 != nil {
			u2()
		}
		if u1 != nil {
			u1()
		}
	}
	if first == target && err1 != nil {
		release()
		return nil, err1
	}
	if second == target && err2 != nil {
		release()
		return nil, err2
	}
	return release, nil
}

// touch keeps UpdatedAt strictly increasing even on coarse clocks.
func (s *ProjectStore) touch(e *projectEntry) {
	now := s.now()
	if !now.After(e.project.UpdatedAt) {
		now = e.project.UpdatedAt.Add(time.Nanosecond)
	}
	e.project.UpdatedAt = now
}

func (e *projectEntry) snapshot() domain.Project {
	p := e.project
	if p.Countdown != nil {
		c := *p.Countdown
		p.Countdown = &c
	}
	return p
}
