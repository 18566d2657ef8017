package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yacciiyao/yoo-growth-buddy/internal/domain"
)

// MemoryStore 内存实现，测试和本地调试用。
type MemoryStore struct {
	mu       sync.RWMutex
	parents  map[int64]*domain.Parent
	children map[int64]*domain.Child
	devices  map[int64]*domain.Device
	sessions map[int64]*domain.ChatSession
	turns    map[int64]*domain.Turn
	nextID   int64
}

// NewMemoryStore 创建空的内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		parents:  make(map[int64]*domain.Parent),
		children: make(map[int64]*domain.Child),
		devices:  make(map[int64]*domain.Device),
		sessions: make(map[int64]*domain.ChatSession),
		turns:    make(map[int64]*domain.Turn),
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) allocID() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) FindParentByEmail(_ context.Context, email string) (*domain.Parent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.parents {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateParent(_ context.Context, p *domain.Parent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.allocID()
	p.CreatedAt = time.Now().Unix()
	cp := *p
	s.parents[p.ID] = &cp
	return nil
}

func (s *MemoryStore) CreateChild(_ context.Context, c *domain.Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.allocID()
	c.CreatedAt = time.Now().Unix()
	cp := *c
	s.children[c.ID] = &cp
	return nil
}

func (s *MemoryStore) FindChildByID(_ context.Context, id int64) (*domain.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.children[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) UpdateChild(_ context.Context, c *domain.Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.children[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now().Unix()
	cp := *c
	s.children[c.ID] = &cp
	return nil
}

func (s *MemoryStore) FindDeviceBySN(_ context.Context, sn string) (*domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.DeviceSN == sn {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindDeviceByChildID(_ context.Context, childID int64) (*domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.BoundChildID == childID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpsertDevice(_ context.Context, d *domain.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.devices {
		if existing.DeviceSN == d.DeviceSN {
			d.ID = id
			d.CreatedAt = existing.CreatedAt
			d.UpdatedAt = time.Now().Unix()
			cp := *d
			s.devices[id] = &cp
			return nil
		}
	}

	d.ID = s.allocID()
	d.CreatedAt = time.Now().Unix()
	cp := *d
	s.devices[d.ID] = &cp
	return nil
}

func (s *MemoryStore) TouchDeviceLastSeen(_ context.Context, deviceSN string, at int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.DeviceSN == deviceSN {
			d.LastSeenAt = at
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) CreateSession(_ context.Context, sess *domain.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = s.allocID()
	sess.StartedAt = time.Now().Unix()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id int64) (*domain.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) ListSessionsByChild(_ context.Context, childID int64) ([]domain.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sessions []domain.ChatSession
	for _, sess := range s.sessions {
		if sess.ChildID == childID {
			sessions = append(sessions, *sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartedAt != sessions[j].StartedAt {
			return sessions[i].StartedAt > sessions[j].StartedAt
		}
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}

func (s *MemoryStore) EndSession(_ context.Context, sessionID int64, title string, endedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.Title = title
	sess.EndedAt = endedAt
	return nil
}

func (s *MemoryStore) NextTurnSeq(_ context.Context, sessionID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	maxSeq := 0
	for _, t := range s.turns {
		if t.SessionID == sessionID && t.Seq > maxSeq {
			maxSeq = t.Seq
		}
	}
	return maxSeq + 1, nil
}

func (s *MemoryStore) SaveTurn(_ context.Context, t *domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.allocID()
	t.CreatedAt = time.Now().Unix()
	cp := *t
	s.turns[t.ID] = &cp
	return nil
}

func (s *MemoryStore) ListTurns(_ context.Context, sessionID int64) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var turns []domain.Turn
	for _, t := range s.turns {
		if t.SessionID == sessionID {
			turns = append(turns, *t)
		}
	}
	sort.Slice(turns, func(i, j int) bool { return turns[i].Seq < turns[j].Seq })
	return turns, nil
}

func (s *MemoryStore) CountTurns(_ context.Context, sessionID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.turns {
		if t.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SessionHasRisk(_ context.Context, sessionID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.turns {
		if t.SessionID == sessionID && t.RiskFlag {
			return true, nil
		}
	}
	return false, nil
}
