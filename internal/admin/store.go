// Package admin manages tenants and their users. Its routes sit behind an
// authorizer in addition to authentication.
package admin

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Store errors.
var (
	ErrTenantExists   = errors.New("tenant already exists")
	ErrTenantNotFound = errors.New("tenant not found")
	ErrUserExists     = errors.New("user already exists for tenant")
)

// Tenant is a provisioned tenant.
type Tenant struct {
	TenantID    string    `json:"tenant_id"`
	DisplayName *string   `json:"display_name"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is a member of a tenant.
type User struct {
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Email     *string   `json:"email"`
	FullName  *string   `json:"full_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

const statusActive = "active"

// Store persists tenants and users.
type Store interface {
	CreateTenant(ctx context.Context, t Tenant) error
	ListTenants(ctx context.Context, limit int) ([]Tenant, error)
	CreateUser(ctx context.Context, u User) error
	ListUsers(ctx context.Context, tenantID string, limit int) ([]User, error)
}

type tenantRecord struct {
	tenant Tenant
	users  map[string]User
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenantRecord
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]*tenantRecord)}
}

// CreateTenant implements Store
func (s *MemoryStore) CreateTenant(ctx context.Context, t Tenant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[t.TenantID]; exists {
		return ErrTenantExists
	}
	s.tenants[t.TenantID] = &tenantRecord{tenant: t, users: make(map[string]User)}
	return nil
}

// ListTenants implements Store. Tenants are ordered by id.
func (s *MemoryStore) ListTenants(ctx context.Context, limit int) ([]Tenant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Tenant, 0, len(s.tenants))
	for _, rec := range s.tenants {
		out = append(out, rec.tenant)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateUser implements Store
func (s *MemoryStore) CreateUser(ctx context.Context, u User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tenants[u.TenantID]
	if !ok {
		return ErrTenantNotFound
	}
	if _, exists := rec.users[u.UserID]; exists {
		return ErrUserExists
	}
	rec.users[u.UserID] = u
	return nil
}

// ListUsers implements Store. Users are ordered by id.
func (s *MemoryStore) ListUsers(ctx context.Context, tenantID string, limit int) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rec, ok := s.tenants[tenantID]
	if !ok {
		s.mu.RUnlock()
		return nil, ErrTenantNotFound
	}
	out := make([]User, 0, len(rec.users))
	for _, u := range rec.users {
		out = append(out, u)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
