package profile

import (
	"context"
	"strings"
	"sync"

	"SafeCircle/internal/models"
	"SafeCircle/internal/session"
	"SafeCircle/pkg/errors"

	"github.com/google/uuid"
)

// Store 会话内的用户资料与紧急联系人。读取一律返回副本
type Store struct {
	mu      sync.RWMutex
	profile models.Profile
	session *session.Store
}

// New session 为 nil 时只保存在内存
func New(s *session.Store) *Store {
	return &Store{session: s}
}

func (s *Store) Load(ctx context.Context) error {
	if s.session == nil {
		return nil
	}
	var p models.Profile
	ok, err := s.session.Get(ctx, session.KeyProfile, &p)
	if err != nil || !ok {
		return err
	}
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	return nil
}

// Profile 快照
func (s *Store) Profile(context.Context) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Snapshot(), nil
}

func (s *Store) SetName(ctx context.Context, name string) error {
	return s.mutate(ctx, func(p *models.Profile) error {
		p.Name = strings.TrimSpace(name)
		return nil
	})
}

// AddContact 名字与号码必填，ID 为空时生成
func (s *Store) AddContact(ctx context.Context, c models.Contact) (models.Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	if c.Name == "" {
		return models.Contact{}, errors.ErrInvalidInput.WithContext("field", "name")
	}
	if c.Phone == "" {
		return models.Contact{}, errors.ErrInvalidInput.WithContext("field", "phone")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.LastAlerted = 0

	err := s.mutate(ctx, func(p *models.Profile) error {
		for _, existing := range p.EmergencyContacts {
			if existing.ID == c.ID {
				return errors.WithCodef(errors.CodeConflict, "contact %s already exists", c.ID)
			}
		}
		p.EmergencyContacts = append(p.EmergencyContacts, c)
		return nil
	})
	if err != nil {
		return models.Contact{}, err
	}
	return c, nil
}

func (s *Store) RemoveContact(ctx context.Context, id string) error {
	return s.mutate(ctx, func(p *models.Profile) error {
		for i, c := range p.EmergencyContacts {
			if c.ID == id {
				p.EmergencyContacts = append(p.EmergencyContacts[:i:i], p.EmergencyContacts[i+1:]...)
				return nil
			}
		}
		return errors.ErrNotFound.WithContext("contact", id)
	})
}

// MarkAlerted 扇出时调用；联系人在扇出期间被删除不算错误
func (s *Store) MarkAlerted(ctx context.Context, id string, at int64) error {
	return s.mutate(ctx, func(p *models.Profile) error {
		for i := range p.EmergencyContacts {
			if p.EmergencyContacts[i].ID == id {
				p.EmergencyContacts[i].LastAlerted = at
				return nil
			}
		}
		return nil
	})
}

// Replace 整体替换，导入或测试使用
func (s *Store) Replace(ctx context.Context, p models.Profile) error {
	return s.mutate(ctx, func(cur *models.Profile) error {
		*cur = p.Snapshot()
		return nil
	})
}

func (s *Store) mutate(ctx context.Context, fn func(p *models.Profile) error) error {
	s.mu.Lock()
	next := s.profile.Snapshot()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.profile = next
	s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	return s.session.Put(ctx, session.KeyProfile, next)
}
