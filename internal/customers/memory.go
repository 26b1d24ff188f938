package customers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kylevidrine/portal/internal/models"
)

// MemoryRepository is an in-process Repository used by tests and local development.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[string]*models.Customer
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: make(map[string]*models.Customer)}
}

func (m *MemoryRepository) Upsert(ctx context.Context, c *models.Customer) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[c.ID] = clone(c)
	return nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.store[id]; ok {
		return clone(c), nil
	}
	return nil, nil
}

func (m *MemoryRepository) List(ctx context.Context) ([]*models.Customer, error) {
	m.mu.RLock()
	out := make([]*models.Customer, 0, len(m.store))
	for _, c := range m.store {
		out = append(out, clone(c))
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) FindByCompanyID(ctx context.Context, companyID string) (*models.Customer, error) {
	list, _ := m.List(ctx)
	for _, c := range list {
		if c.Accounting != nil && c.Accounting.CompanyID == companyID {
			return c, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) UpdateAccounting(ctx context.Context, id string, creds *models.AccountingCredentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	next := clone(c)
	if creds != nil {
		cp := *creds
		next.Accounting = &cp
	} else {
		next.Accounting = nil
	}
	next.UpdatedAt = time.Now().UTC()
	m.store[id] = next
	return nil
}

func (m *MemoryRepository) ClearWorkspace(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	next := clone(c)
	next.Workspace = nil
	next.UpdatedAt = time.Now().UTC()
	m.store[id] = next
	return nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return 0, nil
	}
	delete(m.store, id)
	return 1, nil
}

func clone(c *models.Customer) *models.Customer {
	cp := *c
	if c.Workspace != nil {
		ws := *c.Workspace
		ws.Scopes = append([]string(nil), c.Workspace.Scopes...)
		cp.Workspace = &ws
	}
	if c.Accounting != nil {
		acc := *c.Accounting
		cp.Accounting = &acc
	}
	return &cp
}
