package service

import (
	"context"
	"sync"

	"jobchat/internal/models"
)

// MemoryStore keeps registration state and drafts in process memory. It is
// used when no database is configured.
type MemoryStore struct {
	mu           sync.RWMutex
	registration *models.DeviceRegistration
	drafts       map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]string)}
}

func (m *MemoryStore) LoadRegistration(ctx context.Context) (*models.DeviceRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.registration == nil {
		return nil, nil
	}
	reg := *m.registration
	return &reg, nil
}

func (m *MemoryStore) SaveRegistration(ctx context.Context, reg *models.DeviceRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *reg
	m.registration = &cp
	return nil
}

func (m *MemoryStore) ClearRegistration(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registration = nil
	return nil
}

func (m *MemoryStore) LoadDraft(ctx context.Context, chatID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drafts[chatID], nil
}

func (m *MemoryStore) SaveDraft(ctx context.Context, chatID, draft string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if draft == "" {
		delete(m.drafts, chatID)
		return nil
	}
	m.drafts[chatID] = draft
	return nil
}
